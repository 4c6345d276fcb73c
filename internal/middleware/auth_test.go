package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/errors"
	"github.com/domu-platform/domu/pkg/logger"
)

type fakeAuth map[string]user.User

func (f fakeAuth) Authenticate(_ context.Context, token string) (user.User, error) {
	u, ok := f[token]
	if !ok {
		return user.User{}, errors.InvalidToken(nil)
	}
	return u, nil
}

func newTestAuth() *AuthMiddleware {
	auth := fakeAuth{"good": {ID: 42, FirstName: "Rosa", RoleID: user.RoleResident}}
	return NewAuthMiddleware(auth, logger.NewDefault("test"), []string{"/health", "/api/auth/"}).
		AllowQueryToken("/ws/chat")
}

func echoUser(w http.ResponseWriter, r *http.Request) {
	u, ok := UserFrom(r.Context())
	if !ok {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	w.WriteHeader(http.StatusOK)
	_ = json.NewEncoder(w).Encode(map[string]int64{"id": u.ID})
}

func TestAuthMiddleware(t *testing.T) {
	handler := newTestAuth().Handler(http.HandlerFunc(echoUser))

	cases := []struct {
		name   string
		path   string
		header string
		status int
	}{
		{"public path", "/health", "", http.StatusNoContent},
		{"public prefix", "/api/auth/login", "", http.StatusNoContent},
		{"public with token", "/api/auth/login", "Bearer good", http.StatusOK},
		{"public with bad token", "/api/auth/login", "Bearer nope", http.StatusNoContent},
		{"missing header", "/api/users/me", "", http.StatusUnauthorized},
		{"bad scheme", "/api/users/me", "Basic abc", http.StatusUnauthorized},
		{"invalid token", "/api/users/me", "Bearer nope", http.StatusUnauthorized},
		{"valid token", "/api/users/me", "Bearer good", http.StatusOK},
		{"query token", "/ws/chat?token=good", "", http.StatusOK},
		{"query token elsewhere", "/api/users/me?token=good", "", http.StatusUnauthorized},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, tc.path, nil)
			if tc.header != "" {
				req.Header.Set("Authorization", tc.header)
			}
			rec := httptest.NewRecorder()
			handler.ServeHTTP(rec, req)
			assert.Equal(t, tc.status, rec.Code)
		})
	}
}

func TestAuthMiddlewareErrorBody(t *testing.T) {
	rec := httptest.NewRecorder()
	newTestAuth().Handler(http.HandlerFunc(echoUser)).
		ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/polls", nil))

	var body map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "UNAUTHORIZED", body["code"])
	assert.NotEmpty(t, body["error"])
}

func TestWithUserFeedsRequestLog(t *testing.T) {
	tracing := NewTracingMiddleware(logger.NewDefault("test"))
	var seen string
	inner := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen = logger.GetTraceID(r.Context())
		u, ok := UserFrom(r.Context())
		require.True(t, ok)
		assert.Equal(t, int64(42), u.ID)
		assert.Equal(t, "42", logger.GetUserID(r.Context()))
	})
	handler := tracing.Handler(newTestAuth().Handler(inner))

	req := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	req.Header.Set("Authorization", "Bearer good")
	req.Header.Set(TraceHeader, "trace-123")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	assert.Equal(t, "trace-123", seen)
	assert.Equal(t, "trace-123", rec.Header().Get(TraceHeader))
}

func TestRequireUser(t *testing.T) {
	handler := RequireUser(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req = req.WithContext(WithUser(req.Context(), user.User{ID: 1}))
	rec = httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}
