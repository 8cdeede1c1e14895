package api

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/sells-group/audit-flash/internal/acquisition"
	"github.com/sells-group/audit-flash/internal/model"
	"github.com/sells-group/audit-flash/internal/store"
)

// Error codes in the JSON envelope.
const (
	CodeBadRequest          = "bad_request"
	CodeValidation          = "validation_failed"
	CodeAddressNotFound     = "address_not_found"
	CodeUpstreamUnavailable = "upstream_unavailable"
	CodeSessionExpired      = "session_expired"
	CodeSessionNotReady     = "session_not_ready"
	CodeConcurrentUpdate    = "concurrent_update"
	CodeNotFound            = "not_found"
	CodeInternal            = "internal_error"
)

// ErrorBody is the envelope of every non-2xx answer.
type ErrorBody struct {
	Error   string            `json:"error"`
	Message string            `json:"message,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
}

// classify maps an error to its status and code.
func classify(err error) (int, string) {
	var verr *model.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity, CodeValidation
	case errors.Is(err, acquisition.ErrAddressNotFound):
		return http.StatusNotFound, CodeAddressNotFound
	case errors.Is(err, acquisition.ErrAddressUnavailable):
		return http.StatusBadGateway, CodeUpstreamUnavailable
	case errors.Is(err, acquisition.ErrSessionExpired):
		return http.StatusNotFound, CodeSessionExpired
	case errors.Is(err, acquisition.ErrSessionNotReady):
		return http.StatusConflict, CodeSessionNotReady
	case errors.Is(err, acquisition.ErrConcurrentUpdate):
		return http.StatusConflict, CodeConcurrentUpdate
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound, CodeNotFound
	default:
		return http.StatusInternalServerError, CodeInternal
	}
}

func writeError(w http.ResponseWriter, r *http.Request, err error) {
	status, code := classify(err)
	body := ErrorBody{Error: code}
	if status == http.StatusInternalServerError {
		zap.L().Error("api: request failed",
			zap.String("path", r.URL.Path),
			zap.Error(err),
		)
	} else {
		body.Message = err.Error()
	}
	var verr *model.ValidationError
	if errors.As(err, &verr) {
		body.Fields = verr.Fields
	}
	writeJSON(w, status, body)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, ErrorBody{Error: CodeBadRequest, Message: msg})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		zap.L().Warn("api: encode response", zap.Error(err))
	}
}
