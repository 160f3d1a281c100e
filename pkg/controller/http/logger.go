package http

import (
	"log/slog"
	"net/http"

	"github.com/kazanshin/website/pkg/utils/clock"
	"github.com/kazanshin/website/pkg/utils/logging"
	"github.com/kazanshin/website/pkg/utils/request_id"
)

type statusResponseWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusResponseWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusResponseWriter) Write(b []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	return w.ResponseWriter.Write(b)
}

// loggingMiddleware assigns a request ID, reusing a well-formed one from the
// caller, and writes one access log line per request. Headers are not
// logged since they carry the shared secrets.
func loggingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, reqID := request_id.Accept(r.Context(), r.Header.Get(request_id.Header))
		ctx, logger := logging.WithAttrs(ctx, "request_id", reqID)
		started := clock.Now(ctx)
		w.Header().Set(request_id.Header, reqID)

		sw := &statusResponseWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r.WithContext(ctx))

		logger.Info("Access Log",
			slog.String("method", r.Method),
			slog.String("path", r.URL.Path),
			slog.Any("query", r.URL.Query()),
			slog.Int("status", sw.status),
			slog.Duration("elapsed", clock.Since(ctx, started)),
		)
	})
}
