package handlers

import (
	"encoding/json"
	"net/http"

	"github.com/akolanti/PageIndexAPI/internal/adapter"
	"github.com/akolanti/PageIndexAPI/pkg/logger_i"
)

func writeJsonResponse(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		// headers are gone; nothing left to tell the client
		logger_i.NewLogger("handlers").Error("response_encode_failed", "error", err)
	}
}

func (h *Handler) validateContext(r *http.Request) bool {
	if err := r.Context().Err(); err != nil {
		h.logger.WithContext(r.Context()).Warn("request_context_done", "error", err, "remote_addr", r.RemoteAddr)
		return false
	}
	return true
}

func WriteErrorResponse(w http.ResponseWriter, httpCode int, id string, error string) {
	writeJsonResponse(w, httpCode, adapter.BadRequest(id, error, httpCode))
}

func (h *Handler) writeServiceError(w http.ResponseWriter, r *http.Request, id string, err error) {
	code, res := adapter.ToErrorResponse(id, err)
	if code >= http.StatusInternalServerError {
		h.logger.WithContext(r.Context()).Error("request_failed", "path", r.URL.Path, "error", err)
	}
	writeJsonResponse(w, code, res)
}
