package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

// =============================================================================
// 🧪 Common 函数测试
// =============================================================================

func decodeResponse(t *testing.T, w *httptest.ResponseRecorder) Response {
	t.Helper()
	var resp Response
	require.NoError(t, json.NewDecoder(w.Body).Decode(&resp))
	return resp
}

func TestWriteJSON(t *testing.T) {
	w := httptest.NewRecorder()
	WriteJSON(w, http.StatusAccepted, map[string]string{"message": "hello"})

	assert.Equal(t, http.StatusAccepted, w.Code)
	assert.Equal(t, "application/json; charset=utf-8", w.Header().Get("Content-Type"))
	assert.Equal(t, "nosniff", w.Header().Get("X-Content-Type-Options"))
}

func TestWriteSuccess(t *testing.T) {
	w := httptest.NewRecorder()
	WriteSuccess(w, map[string]string{"key": "value"})

	assert.Equal(t, http.StatusOK, w.Code)
	resp := decodeResponse(t, w)
	assert.True(t, resp.Success)
	assert.NotNil(t, resp.Data)
	assert.Nil(t, resp.Error)
	assert.False(t, resp.Timestamp.IsZero())
}

func TestWriteError_StatusMapping(t *testing.T) {
	tests := []struct {
		code      ErrorCode
		status    int
		retryable bool
	}{
		{ErrInvalidRequest, http.StatusBadRequest, false},
		{ErrNotFound, http.StatusNotFound, false},
		{ErrConflict, http.StatusConflict, false},
		{ErrTimeout, http.StatusGatewayTimeout, true},
		{ErrServiceUnavailable, http.StatusServiceUnavailable, true},
		{ErrInternalError, http.StatusInternalServerError, false},
		{ErrorCode("UNKNOWN"), http.StatusInternalServerError, false},
	}
	for _, tt := range tests {
		t.Run(string(tt.code), func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tt.code, "boom", zap.NewNop())

			assert.Equal(t, tt.status, w.Code)
			resp := decodeResponse(t, w)
			assert.False(t, resp.Success)
			require.NotNil(t, resp.Error)
			assert.Equal(t, tt.code, resp.Error.Code)
			assert.Equal(t, "boom", resp.Error.Message)
			assert.Equal(t, tt.retryable, resp.Error.Retryable)
		})
	}
}

func TestDecodeJSONBody(t *testing.T) {
	type payload struct {
		Name string `json:"name"`
	}

	tests := []struct {
		name    string
		body    string
		wantErr bool
	}{
		{"valid", `{"name":"amy"}`, false},
		{"empty", ``, true},
		{"malformed", `{"name":`, true},
		{"unknown field", `{"name":"amy","extra":1}`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			r := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(tt.body))

			var dst payload
			err := DecodeJSONBody(w, r, &dst, nil)
			if tt.wantErr {
				require.Error(t, err)
				assert.Equal(t, http.StatusBadRequest, w.Code)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, "amy", dst.Name)
		})
	}
}

func TestResponseWriter_CapturesFirstStatus(t *testing.T) {
	rec := httptest.NewRecorder()
	rw := NewResponseWriter(rec)

	rw.WriteHeader(http.StatusTeapot)
	rw.WriteHeader(http.StatusOK)
	_, _ = rw.Write([]byte("x"))

	assert.Equal(t, http.StatusTeapot, rw.StatusCode)
	assert.Equal(t, http.StatusTeapot, rec.Code)

	implicit := NewResponseWriter(httptest.NewRecorder())
	_, _ = implicit.Write([]byte("x"))
	assert.True(t, implicit.Written)
	assert.Equal(t, http.StatusOK, implicit.StatusCode)
}
