package http

import (
	"encoding/json"
	"net/http"

	"github.com/kazanshin/website/pkg/domain/model/errs"
	"github.com/kazanshin/website/pkg/utils/logging"
	"github.com/m-mizutani/goerr/v2"
)

type errorResponse struct {
	Error  string `json:"error"`
	Detail string `json:"detail,omitempty"`
}

func handleError(w http.ResponseWriter, r *http.Request, err error) {
	logger := logging.From(r.Context())

	switch {
	case goerr.HasTag(err, errs.TagUnauthorized):
		logger.Warn("Unauthorized", "error", err)
		writeJSON(w, r, http.StatusUnauthorized, errorResponse{Error: "unauthorized"})

	case goerr.HasTag(err, errs.TagValidation):
		logger.Warn("Bad Request", "error", err)
		writeJSON(w, r, http.StatusBadRequest, errorResponse{Error: "invalid_request", Detail: err.Error()})

	case goerr.HasTag(err, errs.TagGenerationMalformed):
		errs.Handle(r.Context(), err)
		writeJSON(w, r, http.StatusBadGateway, errorResponse{Error: "generation_malformed", Detail: err.Error()})

	case goerr.HasTag(err, errs.TagGenerationUnavailable):
		errs.Handle(r.Context(), err)
		writeJSON(w, r, http.StatusBadGateway, errorResponse{Error: "generation_unavailable", Detail: err.Error()})

	case goerr.HasTag(err, errs.TagStoreUnavailable):
		errs.Handle(r.Context(), err)
		writeJSON(w, r, http.StatusServiceUnavailable, errorResponse{Error: "store_unavailable", Detail: err.Error()})

	default:
		errs.Handle(r.Context(), err)
		writeJSON(w, r, http.StatusInternalServerError, errorResponse{Error: "server_error", Detail: err.Error()})
	}
}

func writeJSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(data); err != nil {
		logging.From(r.Context()).Warn("failed to write response", "error", err)
	}
}
