package http_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/clubledger/objectgate"
	gatewayhttp "github.com/clubledger/objectgate/http"
)

func TestHandleError(t *testing.T) {
	tests := []struct {
		name     string
		err      error
		wantCode int
		wantErr  string
	}{
		{"not found", objectgate.ErrObjectNotFound, http.StatusNotFound, "not_found"},
		{"wrapped not found", fmt.Errorf("stream: %w", objectgate.ErrObjectNotFound), http.StatusNotFound, "not_found"},
		{"unauthorized is 401", objectgate.ErrUnauthorized, http.StatusUnauthorized, "unauthorized"},
		{"missing token", gatewayhttp.ErrMissingToken, http.StatusUnauthorized, "unauthorized"},
		{"invalid token", gatewayhttp.ErrInvalidToken, http.StatusUnauthorized, "unauthorized"},
		{"invalid policy", objectgate.ErrInvalidPolicy, http.StatusBadRequest, "invalid_policy"},
		{"invalid input", objectgate.ErrInvalidInput, http.StatusBadRequest, "invalid_input"},
		{"object exists", fmt.Errorf("create: %w", objectgate.ErrObjectExists), http.StatusConflict, "object_exists"},
		{"broker unavailable", objectgate.ErrBrokerUnavailable, http.StatusServiceUnavailable, "broker_unavailable"},
		{"configuration missing", objectgate.ErrConfigurationMissing, http.StatusInternalServerError, "configuration_missing"},
		{"unknown", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			req := httptest.NewRequest(http.MethodGet, "/objects/x", nil)

			gatewayhttp.HandleError(rec, req, tt.err)

			assert.Equal(t, tt.wantCode, rec.Code)
			assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

			var body gatewayhttp.ErrorResponse
			require.NoError(t, json.NewDecoder(rec.Body).Decode(&body))
			assert.Equal(t, tt.wantErr, body.Error)
		})
	}
}

func TestHandleError_StreamingFailureWritesNothing(t *testing.T) {
	rec := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/objects/x", nil)

	gatewayhttp.HandleError(rec, req, fmt.Errorf("stream: %w", objectgate.ErrStreamingFailure))

	assert.Empty(t, rec.Body.String())
	assert.Empty(t, rec.Header().Get("Content-Type"))
}

func TestWriteJSON(t *testing.T) {
	rec := httptest.NewRecorder()

	err := gatewayhttp.WriteJSON(rec, http.StatusCreated, map[string]string{"objectPath": "/objects/a"})
	require.NoError(t, err)

	assert.Equal(t, http.StatusCreated, rec.Code)
	assert.JSONEq(t, `{"objectPath":"/objects/a"}`, rec.Body.String())
}

func TestWriteError(t *testing.T) {
	rec := httptest.NewRecorder()

	gatewayhttp.WriteError(rec, http.StatusTeapot, "teapot", "short and stout")

	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.JSONEq(t, `{"error":"teapot","message":"short and stout"}`, rec.Body.String())
}
