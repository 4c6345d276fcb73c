package httpapi

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	app "github.com/domu-platform/domu/internal/app"
	"github.com/domu-platform/domu/internal/app/domain/building"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/storage/memory"
	"github.com/domu-platform/domu/internal/config"
	"github.com/domu-platform/domu/internal/platform/filestore"
)

type testEnv struct {
	handler  http.Handler
	app      *app.Application
	store    *memory.Store
	building building.Building
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	cfg := config.Default()
	cfg.Auth.JWTSecret = "handler-test-secret"
	cfg.Auth.BcryptCost = bcrypt.MinCost
	cfg.CORS.AllowedOrigins = "https://app.domu.test"
	cfg.RateLimit = config.RateLimitConfig{AuthPerSecond: 100, AuthBurst: 100}
	require.NoError(t, cfg.Validate())

	files, err := filestore.NewLocal(t.TempDir(), "http://api.domu.test/files", time.Minute, "file-secret")
	require.NoError(t, err)

	store := memory.New()
	stores := app.Stores{
		Users: store, Tokens: store, Buildings: store, Units: store,
		Finance: store, Visits: store, Incidents: store, Parcels: store,
		Polls: store, Amenities: store, Chat: store, Forum: store,
		Staff: store, Tasks: store, Library: store,
	}
	application, err := app.New(stores, app.Dependencies{Config: cfg, Files: files}, nil)
	require.NoError(t, err)

	h, err := NewHandler(application, Options{Version: "test"})
	require.NoError(t, err)

	b, err := store.CreateBuilding(context.Background(), building.Building{Name: "Torre Norte", Address: "Av. Siempre Viva 742"})
	require.NoError(t, err)

	return &testEnv{handler: h, app: application, store: store, building: b}
}

// addUser creates an active user with access to the test building and
// returns a bearer token for them.
func (e *testEnv) addUser(t *testing.T, email string, role int64) (user.User, string) {
	t.Helper()
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	require.NoError(t, err)
	u, err := e.store.CreateUser(ctx, user.User{
		RoleID:       role,
		FirstName:    "Test",
		LastName:     strings.Split(email, "@")[0],
		Email:        email,
		PasswordHash: string(hash),
		Status:       user.StatusActive,
	})
	require.NoError(t, err)
	require.NoError(t, e.app.Buildings.GrantAccess(ctx, u.ID, e.building.ID))
	token, _, err := e.app.Auth.IssueToken(u)
	require.NoError(t, err)
	return u, token
}

func (e *testEnv) do(t *testing.T, method, path, token string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.handler.ServeHTTP(rec, req)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder, dst interface{}) {
	t.Helper()
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), dst), rec.Body.String())
}

func TestHealthEndpoints(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/health", "", nil)
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())

	rec = env.do(t, http.MethodGet, "/health/details", "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var details map[string]interface{}
	decodeBody(t, rec, &details)
	assert.Equal(t, "ok", details["status"])
	assert.Equal(t, "memory", details["database"])
	assert.Equal(t, "test", details["version"])
	assert.Contains(t, details, "host")
}

func TestAPIRequiresToken(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(t, http.MethodGet, "/api/users/me", "", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.NotEmpty(t, rec.Header().Get("X-Trace-ID"))

	rec = env.do(t, http.MethodGet, "/api/users/me", "not-a-jwt", nil)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestLoginThenMe(t *testing.T) {
	env := newTestEnv(t)
	env.addUser(t, "vecina@domu.test", user.RoleResident)

	rec := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "vecina@domu.test",
		"password": "wrong-password",
	})
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "VECINA@domu.test",
		"password": "password123",
	})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var session struct {
		Token string `json:"token"`
	}
	decodeBody(t, rec, &session)
	require.NotEmpty(t, session.Token)

	rec = env.do(t, http.MethodGet, "/api/users/me", session.Token, nil)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var me struct {
		Email string `json:"email"`
	}
	decodeBody(t, rec, &me)
	assert.Equal(t, "vecina@domu.test", me.Email)
}

func TestLoginRejectsUnknownFields(t *testing.T) {
	env := newTestEnv(t)
	rec := env.do(t, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email":    "a@b.c",
		"password": "x",
		"role":     "admin",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestBuildingHeaderWithoutAccess(t *testing.T) {
	env := newTestEnv(t)
	_, token := env.addUser(t, "res@domu.test", user.RoleResident)

	other, err := env.store.CreateBuilding(context.Background(), building.Building{Name: "Otro", Address: "Calle 1"})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/api/forum/threads", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	req.Header.Set(BuildingHeader, fmt.Sprint(other.ID))
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	req.Header.Set(BuildingHeader, "abc")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestForumThreads(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.addUser(t, "admin@domu.test", user.RoleAdmin)
	_, resident := env.addUser(t, "res@domu.test", user.RoleResident)

	rec := env.do(t, http.MethodPost, "/api/forum/threads", resident, map[string]interface{}{
		"title": "Ruidos", "content": "Hay ruidos en la noche", "category": "General", "pinned": true,
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code, "residents cannot pin")

	rec = env.do(t, http.MethodPost, "/api/forum/threads", admin, map[string]interface{}{
		"title": "Corte de agua", "content": "El martes se corta el agua", "category": "anuncios", "pinned": true,
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var thread struct {
		ID       int64  `json:"id"`
		Category string `json:"category"`
	}
	decodeBody(t, rec, &thread)

	rec = env.do(t, http.MethodGet, "/api/forum/threads", resident, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var threads []map[string]interface{}
	decodeBody(t, rec, &threads)
	require.Len(t, threads, 1)
	assert.Equal(t, "Test admin", threads[0]["authorName"])

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/forum/threads/%d", thread.ID), resident, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodDelete, fmt.Sprintf("/api/forum/threads/%d", thread.ID), admin, nil)
	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestPollVoteAndExport(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.addUser(t, "admin@domu.test", user.RoleAdmin)
	_, resident := env.addUser(t, "res@domu.test", user.RoleResident)

	rec := env.do(t, http.MethodPost, "/api/polls", resident, map[string]interface{}{
		"title": "Pintura", "closesAt": time.Now().Add(time.Hour), "options": []string{"Blanco", "Gris"},
	})
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodPost, "/api/polls", admin, map[string]interface{}{
		"title": "Pintura", "closesAt": time.Now().Add(time.Hour), "options": []string{"Blanco", " Gris "},
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var poll struct {
		ID      int64 `json:"id"`
		Options []struct {
			ID    int64  `json:"id"`
			Label string `json:"label"`
		} `json:"options"`
	}
	decodeBody(t, rec, &poll)
	require.Len(t, poll.Options, 2)
	assert.Equal(t, "Gris", poll.Options[1].Label)

	votePath := fmt.Sprintf("/api/polls/%d/vote", poll.ID)
	rec = env.do(t, http.MethodPost, votePath, resident, map[string]int64{"optionId": poll.Options[0].ID})
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	var result struct {
		TotalVotes int64 `json:"totalVotes"`
		HasVoted   bool  `json:"hasVoted"`
	}
	decodeBody(t, rec, &result)
	assert.Equal(t, int64(1), result.TotalVotes)
	assert.True(t, result.HasVoted)

	rec = env.do(t, http.MethodPost, votePath, resident, map[string]int64{"optionId": poll.Options[1].ID})
	assert.Equal(t, http.StatusConflict, rec.Code)

	rec = env.do(t, http.MethodGet, fmt.Sprintf("/api/polls/%d/export", poll.ID), admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Header().Get("Content-Type"), "text/csv")
	assert.True(t, strings.HasPrefix(rec.Body.String(), "Pregunta,Estado,Cierra en,Total votos"))
}

func TestLibraryUploadAndSignedDownload(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.addUser(t, "admin@domu.test", user.RoleAdmin)
	_, resident := env.addUser(t, "res@domu.test", user.RoleResident)

	content := []byte("%PDF-1.4 reglamento")
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("name", "Reglamento"))
	require.NoError(t, mw.WriteField("category", "Normas"))
	part, err := mw.CreateFormFile("file", "reglamento.pdf")
	require.NoError(t, err)
	_, err = part.Write(content)
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/library", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	req.Header.Set("Authorization", "Bearer "+admin)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/library", resident, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var docs []struct {
		Name string `json:"name"`
		URL  string `json:"url"`
	}
	decodeBody(t, rec, &docs)
	require.Len(t, docs, 1)
	assert.Equal(t, "Reglamento", docs[0].Name)

	link, err := url.Parse(docs[0].URL)
	require.NoError(t, err)
	rec = env.do(t, http.MethodGet, link.Path+"?"+link.RawQuery, "", nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, content, rec.Body.Bytes())
	assert.Equal(t, "application/pdf", rec.Header().Get("Content-Type"))

	rec = env.do(t, http.MethodGet, link.Path+"?expires=1&signature=bad", "", nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)
}

func TestCORSPreflight(t *testing.T) {
	env := newTestEnv(t)

	req := httptest.NewRequest(http.MethodOptions, "/api/polls", nil)
	req.Header.Set("Origin", "https://app.domu.test")
	req.Header.Set("Access-Control-Request-Method", http.MethodPost)
	rec := httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, "https://app.domu.test", rec.Header().Get("Access-Control-Allow-Origin"))
	assert.Contains(t, rec.Header().Get("Access-Control-Allow-Headers"), BuildingHeader)

	req.Header.Set("Origin", "https://evil.test")
	rec = httptest.NewRecorder()
	env.handler.ServeHTTP(rec, req)
	assert.Empty(t, rec.Header().Get("Access-Control-Allow-Origin"))
}

func TestAuditTrail(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.addUser(t, "admin@domu.test", user.RoleAdmin)
	_, resident := env.addUser(t, "res@domu.test", user.RoleResident)

	rec := env.do(t, http.MethodPost, "/api/incidents", resident, map[string]string{
		"title": "Luz quemada", "description": "Pasillo piso 3", "category": "Electricidad",
	})
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())

	rec = env.do(t, http.MethodGet, "/api/admin/audit", resident, nil)
	assert.Equal(t, http.StatusForbidden, rec.Code)

	rec = env.do(t, http.MethodGet, "/api/admin/audit?limit=5", admin, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var entries []struct {
		Path   string `json:"path"`
		Method string `json:"method"`
		Status int    `json:"status"`
	}
	decodeBody(t, rec, &entries)
	require.Len(t, entries, 1)
	assert.Equal(t, "/api/incidents", entries[0].Path)
	assert.Equal(t, http.StatusCreated, entries[0].Status)
}

func TestNotFoundResources(t *testing.T) {
	env := newTestEnv(t)
	_, admin := env.addUser(t, "admin@domu.test", user.RoleAdmin)

	rec := env.do(t, http.MethodGet, "/api/polls/999", admin, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)

	var body struct {
		Code string `json:"code"`
	}
	decodeBody(t, rec, &body)
	assert.Equal(t, "NOT_FOUND", body.Code)
}
