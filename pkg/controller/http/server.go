package http

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/kazanshin/website/pkg/domain/interfaces"
	"github.com/kazanshin/website/pkg/utils/safe"
)

// Header names carrying the shared secrets.
const (
	SecretHeader     = "X-Echo-Secret"
	CronSecretHeader = "X-Echo-Cron-Secret"
)

// DefaultBodyLimit bounds request bodies.
const DefaultBodyLimit = 64 * 1024

type Server struct {
	router     *chi.Mux
	secret     string
	cronSecret string
	bodyLimit  int64
}

type Options func(*Server)

// WithSecret sets the secret required by the conversation endpoints.
func WithSecret(secret string) Options {
	return func(s *Server) {
		s.secret = secret
	}
}

// WithCronSecret sets the secret required by the pulse and log
// administration endpoints.
func WithCronSecret(secret string) Options {
	return func(s *Server) {
		s.cronSecret = secret
	}
}

func WithBodyLimit(limit int64) Options {
	return func(s *Server) {
		s.bodyLimit = limit
	}
}

type UseCase interface {
	interfaces.ChatUsecases
	interfaces.OperatorUsecases
}

func New(uc UseCase, opts ...Options) *Server {
	r := chi.NewRouter()

	s := &Server{
		router:    r,
		bodyLimit: DefaultBodyLimit,
	}
	for _, opt := range opts {
		opt(s)
	}

	r.Use(loggingMiddleware)
	r.Use(panicRecoveryMiddleware)
	r.Use(bodyLimitMiddleware(s.bodyLimit))

	r.MethodNotAllowed(methodNotAllowed)
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, r, http.StatusNotFound, errorResponse{Error: "not_found"})
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain")
		safe.Write(r.Context(), w, []byte("ok"))
	})

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(requireSecret(SecretHeader, s.secret))
			r.Post("/echo", echoPostHandler(uc))
			r.Get("/echo", echoLogsHandler(uc))
		})

		r.Group(func(r chi.Router) {
			r.Use(requireSecret(CronSecretHeader, s.cronSecret))
			r.Get("/pulse", pulseHandler(uc))
			r.Post("/seed", seedHandler(uc))
			r.Get("/export", exportHandler(uc))
			r.Post("/reset", resetHandler(uc))
		})
	})

	return s
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}
