// Package middleware provides the HTTP middleware of the Domu API.
package middleware

import (
	"context"
	"net/http"
	"strconv"
	"strings"

	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/errors"
	"github.com/domu-platform/domu/internal/httputil"
	"github.com/domu-platform/domu/pkg/logger"
)

// Authenticator resolves a bearer token to its user.
type Authenticator interface {
	Authenticate(ctx context.Context, token string) (user.User, error)
}

type ctxKey int

const (
	userKey ctxKey = iota
	infoKey
)

// AuthMiddleware requires a valid bearer token outside the public paths.
type AuthMiddleware struct {
	auth         Authenticator
	logger       *logger.Logger
	skipPaths    map[string]bool
	skipPrefixes []string
	queryPaths   map[string]bool
}

// NewAuthMiddleware creates the middleware. A skip path ending in "/" matches
// every path below it.
func NewAuthMiddleware(auth Authenticator, log *logger.Logger, skipPaths []string) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	m := &AuthMiddleware{
		auth:       auth,
		logger:     log,
		skipPaths:  make(map[string]bool),
		queryPaths: make(map[string]bool),
	}
	for _, p := range skipPaths {
		if strings.HasSuffix(p, "/") {
			m.skipPrefixes = append(m.skipPrefixes, p)
			continue
		}
		m.skipPaths[p] = true
	}
	return m
}

// AllowQueryToken lets path carry the token in ?token= (browsers cannot set
// headers on websocket upgrades).
func (m *AuthMiddleware) AllowQueryToken(path string) *AuthMiddleware {
	m.queryPaths[path] = true
	return m
}

func (m *AuthMiddleware) skipped(path string) bool {
	if m.skipPaths[path] {
		return true
	}
	for _, prefix := range m.skipPrefixes {
		if strings.HasPrefix(path, prefix) {
			return true
		}
	}
	return false
}

// Handler returns the middleware handler. Public paths still get the user
// attached when a valid token is sent.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		public := r.Method == http.MethodOptions || m.skipped(r.URL.Path)

		token, err := m.extractToken(r)
		if err != nil {
			if public {
				next.ServeHTTP(w, r)
				return
			}
			m.respondError(w, r, err)
			return
		}

		u, err := m.auth.Authenticate(r.Context(), token)
		if err != nil {
			if public {
				next.ServeHTTP(w, r)
				return
			}
			m.logger.LogSecurityEvent(r.Context(), "invalid_token", map[string]interface{}{
				"path":   r.URL.Path,
				"method": r.Method,
			})
			m.respondError(w, r, err)
			return
		}

		ctx := WithUser(r.Context(), u)
		m.logger.WithContext(ctx).WithField("role", u.RoleID).Debug("authentication successful")
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *AuthMiddleware) extractToken(r *http.Request) (string, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		if m.queryPaths[r.URL.Path] {
			if token := r.URL.Query().Get("token"); token != "" {
				return token, nil
			}
		}
		return "", errors.Unauthorized("missing Authorization header")
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || strings.TrimSpace(parts[1]) == "" {
		return "", errors.Unauthorized("invalid Authorization header format")
	}
	return strings.TrimSpace(parts[1]), nil
}

func (m *AuthMiddleware) respondError(w http.ResponseWriter, r *http.Request, err error) {
	serviceErr := errors.GetServiceError(err)
	if serviceErr == nil {
		serviceErr = errors.Internal("authentication failed", err)
	}
	httputil.WriteErrorResponse(w, serviceErr.HTTPStatus, string(serviceErr.Code), serviceErr.Message, serviceErr.Details)

	m.logger.WithContext(r.Context()).WithError(err).WithFields(map[string]interface{}{
		"path":   r.URL.Path,
		"method": r.Method,
		"status": serviceErr.HTTPStatus,
	}).Warn("authentication failed")
}

// WithUser attaches an authenticated user to ctx.
func WithUser(ctx context.Context, u user.User) context.Context {
	id := strconv.FormatInt(u.ID, 10)
	if info, ok := ctx.Value(infoKey).(*requestInfo); ok {
		info.userID = id
	}
	ctx = context.WithValue(ctx, userKey, u)
	return logger.WithUserID(ctx, id)
}

// UserFrom returns the authenticated user, if any.
func UserFrom(ctx context.Context) (user.User, bool) {
	u, ok := ctx.Value(userKey).(user.User)
	return u, ok
}

// RequireUser rejects requests without an authenticated user.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, ok := UserFrom(r.Context()); !ok {
			httputil.Unauthorized(w, "")
			return
		}
		next.ServeHTTP(w, r)
	})
}
