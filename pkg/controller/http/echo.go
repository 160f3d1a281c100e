package http

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/kazanshin/website/pkg/domain/model/logentry"
	"github.com/kazanshin/website/pkg/usecase"
)

type echoRequest struct {
	Message string `json:"message"`
}

type echoResponse struct {
	Reply string `json:"reply"`
}

type logsResponse struct {
	Logs []logentry.Entry `json:"logs"`
}

type pulseResponse struct {
	Pulse string `json:"pulse"`
}

type seedResponse struct {
	Seeded int `json:"seeded"`
}

type statusResponse struct {
	Status string `json:"status"`
}

func echoPostHandler(uc UseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req echoRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid_json"})
			return
		}
		if strings.TrimSpace(req.Message) == "" {
			writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "missing_message"})
			return
		}

		reply, err := uc.Chat(r.Context(), req.Message)
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, echoResponse{Reply: reply})
	}
}

// echoLogsHandler serves GET /api/echo, which only lists the log when
// asked with logs=1 or logs=true. A missing limit lists the default
// count, a zero or unparsable one the fallback count.
func echoLogsHandler(uc UseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if logs := q.Get("logs"); logs != "1" && logs != "true" {
			methodNotAllowed(w, r)
			return
		}

		entries, err := uc.Logs(r.Context(), usecase.ParseLimit(q.Get("limit")))
		if err != nil {
			handleError(w, r, err)
			return
		}
		if entries == nil {
			entries = []logentry.Entry{}
		}
		writeJSON(w, r, http.StatusOK, logsResponse{Logs: entries})
	}
}

func pulseHandler(uc UseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		pulse, err := uc.Pulse(r.Context())
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, pulseResponse{Pulse: pulse})
	}
}

func seedHandler(uc UseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		n, err := uc.Seed(r.Context())
		if err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, seedResponse{Seeded: n})
	}
}

func exportHandler(uc UseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := uc.Export(r.Context())
		if err != nil {
			handleError(w, r, err)
			return
		}
		if entries == nil {
			entries = []logentry.Entry{}
		}
		writeJSON(w, r, http.StatusOK, entries)
	}
}

func resetHandler(uc UseCase) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := uc.Reset(r.Context()); err != nil {
			handleError(w, r, err)
			return
		}
		writeJSON(w, r, http.StatusOK, statusResponse{Status: "log cleared"})
	}
}
