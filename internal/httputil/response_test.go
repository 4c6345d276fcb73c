package httputil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/domu-platform/domu/internal/errors"
)

func TestWriteErrorMapsServiceErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, fmt.Errorf("vote: %w", apperrors.Conflict("you already voted")))

	assert.Equal(t, http.StatusConflict, rec.Code)
	var body ErrorBody
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "you already voted", body.Error)
	assert.Equal(t, "CONFLICT", body.Code)
}

func TestWriteErrorHidesInternalErrors(t *testing.T) {
	rec := httptest.NewRecorder()
	WriteError(rec, fmt.Errorf("dial tcp 10.0.0.3:5432: connection refused"))

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	assert.NotContains(t, rec.Body.String(), "10.0.0.3")
	assert.Contains(t, rec.Body.String(), "internal server error")
}

type loginPayload struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

func TestDecodeJSON(t *testing.T) {
	cases := []struct {
		name    string
		body    string
		wantErr string
	}{
		{"ok", `{"email":"a@b.cl","password":"x"}`, ""},
		{"unknown field", `{"email":"a@b.cl","password":"x","admin":true}`, "unknown field"},
		{"missing", `{"email":"a@b.cl"}`, "password is required"},
		{"bad email", `{"email":"nope","password":"x"}`, "email must be a valid email"},
		{"empty", ``, "request body is required"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(tc.body))
			var p loginPayload
			err := DecodeJSON(req, &p)
			if tc.wantErr == "" {
				require.NoError(t, err)
				assert.Equal(t, "a@b.cl", p.Email)
				return
			}
			require.Error(t, err)
			assert.Contains(t, err.Error(), tc.wantErr)
			assert.Equal(t, apperrors.CodeValidation, apperrors.GetServiceError(err).Code)
		})
	}
}
