package httputil

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	dErrors "taxregistry/pkg/domain-errors"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type plainRequest struct {
	FirstName string  `json:"first_name"`
	Amount    float64 `json:"amount"`
}

type preparedRequest struct {
	FirstName  string `json:"first_name"`
	normalized bool
}

func (r *preparedRequest) Normalize() { r.normalized = true }

func (r *preparedRequest) Validate() error {
	if r.FirstName == "" {
		return errors.New("first_name is required")
	}
	return nil
}

type codedRequest struct {
	TID string `json:"tid"`
}

func (r *codedRequest) Validate() error {
	if r.TID == "" {
		return dErrors.New(dErrors.CodeBadRequest, "tid is required")
	}
	return nil
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func decodeEnvelope(t *testing.T, w *httptest.ResponseRecorder) ErrorResponse {
	t.Helper()
	var resp ErrorResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestDecodeJSON(t *testing.T) {
	ctx := context.Background()

	t.Run("decodes body", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"first_name":"Ada","amount":-12.5}`))
		w := httptest.NewRecorder()

		result, ok := DecodeJSON[plainRequest](w, req, discardLogger(), ctx, "req-1")

		require.True(t, ok)
		assert.Equal(t, "Ada", result.FirstName)
		assert.Equal(t, -12.5, result.Amount)
	})

	t.Run("malformed body is a bad request", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{nope`))
		w := httptest.NewRecorder()

		result, ok := DecodeJSON[plainRequest](w, req, discardLogger(), ctx, "req-1")

		assert.False(t, ok)
		assert.Nil(t, result)
		assert.Equal(t, http.StatusBadRequest, w.Code)
		assert.Equal(t, "bad_request", decodeEnvelope(t, w).Error)
	})

	t.Run("oversized body is reported", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"first_name":"`+strings.Repeat("x", 64)+`"}`))
		w := httptest.NewRecorder()
		req.Body = http.MaxBytesReader(w, req.Body, 16)

		_, ok := DecodeJSON[plainRequest](w, req, discardLogger(), ctx, "req-1")

		assert.False(t, ok)
		assert.Equal(t, "request body too large", decodeEnvelope(t, w).ErrorDescription)
	})
}

func TestDecodeAndPrepare(t *testing.T) {
	ctx := context.Background()

	t.Run("normalizes then validates", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{"first_name":"Ada"}`))
		w := httptest.NewRecorder()

		result, ok := DecodeAndPrepare[preparedRequest](w, req, discardLogger(), ctx, "req-1")

		require.True(t, ok)
		assert.True(t, result.normalized)
	})

	t.Run("plain validation errors become validation_error", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
		w := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[preparedRequest](w, req, discardLogger(), ctx, "req-1")

		assert.False(t, ok)
		resp := decodeEnvelope(t, w)
		assert.Equal(t, "validation_error", resp.Error)
		assert.Equal(t, "first_name is required", resp.ErrorDescription)
	})

	t.Run("domain validation errors keep their code", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodPost, "/", strings.NewReader(`{}`))
		w := httptest.NewRecorder()

		_, ok := DecodeAndPrepare[codedRequest](w, req, discardLogger(), ctx, "req-1")

		assert.False(t, ok)
		assert.Equal(t, "bad_request", decodeEnvelope(t, w).Error)
	})
}

func TestWriteError(t *testing.T) {
	cases := []struct {
		err    error
		status int
		code   string
	}{
		{dErrors.New(dErrors.CodeNotFound, "taxpayer not found"), http.StatusNotFound, "not_found"},
		{dErrors.New(dErrors.CodeBadRequest, "invalid tid"), http.StatusBadRequest, "bad_request"},
		{dErrors.New(dErrors.CodeTimeout, "transaction aborted"), http.StatusGatewayTimeout, "timeout"},
		{dErrors.New(dErrors.CodeInternal, "failed to create taxpayer"), http.StatusInternalServerError, "internal_error"},
		{errors.New("raw"), http.StatusInternalServerError, "internal_error"},
	}
	for _, tc := range cases {
		t.Run(tc.err.Error(), func(t *testing.T) {
			w := httptest.NewRecorder()
			WriteError(w, tc.err)
			assert.Equal(t, tc.status, w.Code)
			assert.Equal(t, tc.code, decodeEnvelope(t, w).Error)
		})
	}

	t.Run("raw errors do not leak their message", func(t *testing.T) {
		w := httptest.NewRecorder()
		WriteError(w, errors.New("pq: connection refused"))
		assert.Empty(t, decodeEnvelope(t, w).ErrorDescription)
	})
}
