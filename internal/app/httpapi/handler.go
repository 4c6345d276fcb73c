// Package httpapi exposes the Domu services over HTTP.
package httpapi

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	app "github.com/domu-platform/domu/internal/app"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/metrics"
	apperrors "github.com/domu-platform/domu/internal/errors"
	"github.com/domu-platform/domu/internal/httputil"
	"github.com/domu-platform/domu/internal/middleware"
	"github.com/domu-platform/domu/pkg/logger"
)

// BuildingHeader selects the building a request acts in.
const BuildingHeader = "X-Building-Id"

// Pinger reports database reachability for the health endpoint.
type Pinger interface {
	PingContext(ctx context.Context) error
}

// Options tune the handler. Zero values are usable.
type Options struct {
	// Context bounds background housekeeping such as rate limiter cleanup.
	Context   context.Context
	Log       *logger.Logger
	DB        Pinger
	AuditFile string
	Version   string
}

// handler bundles HTTP endpoints for the application services.
type handler struct {
	app      *app.Application
	log      *logger.Logger
	db       Pinger
	audit    *auditLog
	upgrader websocket.Upgrader
	started  time.Time
	version  string
}

// NewHandler returns the full API: routing, authentication, CORS, tracing,
// metrics and rate limiting.
func NewHandler(application *app.Application, opts Options) (http.Handler, error) {
	log := opts.Log
	if log == nil {
		log = logger.NewDefault("httpapi")
	}
	sink, err := newFileAuditSink(opts.AuditFile)
	if err != nil {
		return nil, err
	}
	cfg := application.Config
	origins := cfg.CORS.Origins()

	h := &handler{
		app:     application,
		log:     log,
		db:      opts.DB,
		audit:   newAuditLog(500, sink),
		started: time.Now(),
		version: opts.Version,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     originChecker(origins),
		},
	}

	r := mux.NewRouter()
	r.Use(metrics.InstrumentHandler)

	limiter := middleware.NewRateLimiter(cfg.RateLimit.AuthPerSecond, cfg.RateLimit.AuthBurst, log)
	if opts.Context != nil {
		limiter.StartCleanup(opts.Context, time.Minute)
	}
	h.routes(r, limiter)

	auth := middleware.NewAuthMiddleware(application.Auth, log, []string{
		"/health",
		"/health/details",
		"/metrics",
		"/api/auth/",
		"/api/buildings/requests",
		"/files/",
	}).AllowQueryToken("/ws/chat")

	var root http.Handler = r
	root = h.audit.middleware(root)
	root = auth.Handler(root)
	root = middleware.NewCORSMiddleware(origins).Handler(root)
	root = middleware.NewTracingMiddleware(log).Handler(root)
	return root, nil
}

func (h *handler) routes(r *mux.Router, limiter *middleware.RateLimiter) {
	r.HandleFunc("/health", h.health).Methods(http.MethodGet)
	r.HandleFunc("/health/details", h.healthDetails).Methods(http.MethodGet)
	r.Handle("/metrics", metrics.Handler()).Methods(http.MethodGet)
	r.HandleFunc("/files/{key:.+}", h.serveFile).Methods(http.MethodGet)
	r.HandleFunc("/ws/chat", h.chatSocket).Methods(http.MethodGet)

	api := r.PathPrefix("/api").Subrouter()

	public := api.PathPrefix("/auth").Subrouter()
	public.Use(limiter.Handler)
	h.authRoutes(public)

	h.userRoutes(api)
	h.buildingRoutes(api)
	h.unitRoutes(api)
	h.financeRoutes(api)
	h.visitRoutes(api)
	h.incidentRoutes(api)
	h.parcelRoutes(api)
	h.pollRoutes(api)
	h.amenityRoutes(api)
	h.chatRoutes(api)
	h.forumRoutes(api)
	h.staffRoutes(api)
	h.taskRoutes(api)
	h.libraryRoutes(api)
	api.HandleFunc("/admin/audit", h.auditEntries).Methods(http.MethodGet)
}

func originChecker(origins []string) func(*http.Request) bool {
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" {
			return true
		}
		for _, allowed := range origins {
			if allowed == "*" || strings.EqualFold(strings.TrimRight(allowed, "/"), strings.TrimRight(origin, "/")) {
				return true
			}
		}
		return false
	}
}

// currentUser returns the authenticated user or writes 401.
func (h *handler) currentUser(w http.ResponseWriter, r *http.Request) (user.User, bool) {
	u, ok := middleware.UserFrom(r.Context())
	if !ok {
		httputil.Unauthorized(w, "")
		return user.User{}, false
	}
	return u, true
}

// actor resolves the caller and the selected building, writing the error
// response when that fails.
func (h *handler) actor(w http.ResponseWriter, r *http.Request) (user.Actor, bool) {
	u, ok := h.currentUser(w, r)
	if !ok {
		return user.Actor{}, false
	}
	buildingID, err := h.app.Buildings.Resolve(r.Context(), u, r.Header.Get(BuildingHeader))
	if err != nil {
		h.fail(w, r, err)
		return user.Actor{}, false
	}
	return user.Actor{User: u, BuildingID: buildingID}, true
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	if svcErr := apperrors.GetServiceError(err); svcErr == nil || svcErr.HTTPStatus >= http.StatusInternalServerError {
		h.log.WithContext(r.Context()).WithError(err).
			WithField("path", r.URL.Path).
			Error("request failed")
	}
	httputil.WriteError(w, err)
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	httputil.WriteJSON(w, status, data)
}

func decode(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	if err := httputil.DecodeJSON(r, dst); err != nil {
		httputil.WriteError(w, err)
		return false
	}
	return true
}

// pathID parses a numeric route variable, writing 400 when invalid.
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	raw := mux.Vars(r)[name]
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		httputil.WriteError(w, apperrors.Validation("invalid %s %q", name, raw))
		return 0, false
	}
	return id, true
}

func queryInt64(r *http.Request, name string) (int64, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, nil
	}
	v, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return 0, apperrors.Validation("invalid %s %q", name, raw)
	}
	return v, nil
}

// queryDate parses an optional YYYY-MM-DD parameter.
func queryDate(r *http.Request, name string) (*time.Time, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01-02", raw)
	if err != nil {
		return nil, apperrors.Validation("%s must be YYYY-MM-DD", name)
	}
	return &t, nil
}

// queryMonth parses an optional YYYY-MM parameter into year*100+month.
func queryMonth(r *http.Request, name string) (*int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return nil, nil
	}
	t, err := time.Parse("2006-01", raw)
	if err != nil {
		return nil, apperrors.Validation("%s must be YYYY-MM", name)
	}
	v := t.Year()*100 + int(t.Month())
	return &v, nil
}

func noContent(w http.ResponseWriter) {
	w.WriteHeader(http.StatusNoContent)
}
