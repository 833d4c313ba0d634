package http

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/clubledger/objectgate"
)

// ErrorResponse represents a JSON error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// WriteError writes a JSON error response
func WriteError(w http.ResponseWriter, code int, errCode, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(ErrorResponse{
		Error:   errCode,
		Message: message,
	}); err != nil {
		slog.Error("failed to encode error response", "error", err)
	}
}

// HandleError writes the response matching err. Denials are always 401,
// never 403, so a caller cannot tell a forbidden object from one it lacks
// credentials for. A streaming failure is only logged: its headers are
// already on the wire.
func HandleError(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()

	switch {
	case errors.Is(err, objectgate.ErrStreamingFailure):
		slog.WarnContext(ctx, "response interrupted", "path", r.URL.Path, "error", err)

	case errors.Is(err, objectgate.ErrObjectNotFound):
		slog.DebugContext(ctx, "object not found", "path", r.URL.Path, "error", err)
		WriteError(w, http.StatusNotFound, "not_found", "Object not found")

	case errors.Is(err, objectgate.ErrUnauthorized),
		errors.Is(err, ErrMissingToken),
		errors.Is(err, ErrInvalidToken):
		slog.InfoContext(ctx, "request denied", "path", r.URL.Path, "error", err)
		WriteError(w, http.StatusUnauthorized, "unauthorized", "Unauthorized")

	case errors.Is(err, objectgate.ErrInvalidPolicy):
		WriteError(w, http.StatusBadRequest, "invalid_policy", err.Error())

	case errors.Is(err, objectgate.ErrInvalidInput):
		WriteError(w, http.StatusBadRequest, "invalid_input", err.Error())

	case errors.Is(err, objectgate.ErrObjectExists):
		slog.InfoContext(ctx, "object already exists", "path", r.URL.Path, "error", err)
		WriteError(w, http.StatusConflict, "object_exists", "Object already exists")

	case errors.Is(err, objectgate.ErrBrokerUnavailable):
		slog.ErrorContext(ctx, "credential broker unavailable", "path", r.URL.Path, "error", err)
		WriteError(w, http.StatusServiceUnavailable, "broker_unavailable", "Credential broker unavailable")

	case errors.Is(err, objectgate.ErrConfigurationMissing):
		slog.ErrorContext(ctx, "storage not configured", "path", r.URL.Path, "error", err)
		WriteError(w, http.StatusInternalServerError, "configuration_missing", "Object storage is not configured")

	default:
		slog.ErrorContext(ctx, "request error", "path", r.URL.Path, "error", err)
		WriteError(w, http.StatusInternalServerError, "internal_error", "Internal server error")
	}
}

// WriteJSON writes a JSON response
func WriteJSON(w http.ResponseWriter, code int, data any) error {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	return json.NewEncoder(w).Encode(data)
}

// decodeJSON reads a JSON request body, rejecting unknown fields.
func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.Join(objectgate.ErrInvalidInput, err)
	}
	return nil
}
