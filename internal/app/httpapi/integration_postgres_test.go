//go:build integration && postgres

package httpapi_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"
	"time"

	"github.com/joho/godotenv"
	"github.com/stretchr/testify/require"

	"github.com/domu-platform/domu/internal/app/domain/building"
	"github.com/domu-platform/domu/internal/app/domain/user"
	"github.com/domu-platform/domu/internal/app/runtime"
	"github.com/domu-platform/domu/internal/app/services/auth"
	"github.com/domu-platform/domu/internal/app/services/buildings"
	"github.com/domu-platform/domu/internal/config"
)

// Runs the HTTP surface against a migrated Postgres database.
func TestIntegrationPostgres(t *testing.T) {
	_ = godotenv.Load()
	dsn := os.Getenv("TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TEST_POSTGRES_DSN not set; skipping Postgres integration")
	}

	cfg := config.Default()
	cfg.Database.DSN = dsn
	cfg.Database.AutoMigrate = true
	cfg.Storage.LocalDir = t.TempDir()
	cfg.Jobs.Enabled = false
	require.NoError(t, cfg.Validate())

	ctx := context.Background()
	rt, err := runtime.New(ctx, cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = rt.Shutdown(context.Background()) })

	services := rt.Services()
	suffix := time.Now().UnixNano()
	resident, err := services.Auth.Register(ctx, auth.RegisterInput{
		FirstName:      "Integracion",
		LastName:       "Postgres",
		Phone:          "+56900000000",
		DocumentNumber: fmt.Sprintf("%d-K", suffix),
		Email:          fmt.Sprintf("resident-%d@domu.test", suffix),
		Password:       "integration-pass",
	})
	require.NoError(t, err)

	req, err := services.Buildings.SubmitRequest(ctx, &resident, buildings.RequestInput{
		Name:      fmt.Sprintf("Edificio %d", suffix),
		Address:   "Av. Providencia 1234",
		ProofText: "Vivo en el edificio",
	})
	require.NoError(t, err)
	require.Equal(t, building.RequestPending, req.Status)

	token, _, err := services.Auth.IssueToken(resident)
	require.NoError(t, err)

	handler := rt.Handler()
	rec := httptest.NewRecorder()
	r := httptest.NewRequest(http.MethodGet, "/api/users/me", nil)
	r.Header.Set("Authorization", "Bearer "+token)
	handler.ServeHTTP(rec, r)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())

	var me struct {
		ID     int64  `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &me))
	require.Equal(t, resident.ID, me.ID)
	require.Equal(t, user.StatusActive, me.Status)

	body, _ := json.Marshal(map[string]string{"email": resident.Email, "password": "integration-pass"})
	rec = httptest.NewRecorder()
	r = httptest.NewRequest(http.MethodPost, "/api/auth/login", bytes.NewReader(body))
	r.Header.Set("Content-Type", "application/json")
	handler.ServeHTTP(rec, r)
	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
}
