package handlers

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lablens/internal/auth"
	"lablens/internal/config"
)

func newTestAuthHandler(t *testing.T) (*AuthHandler, *auth.Service) {
	t.Helper()

	svc := auth.NewService("", time.Hour)
	adminHash, err := svc.HashPassword("admin-secret")
	require.NoError(t, err)

	cfg := &config.AuthConfig{
		DemoUserEmail:     "demo@lablens.local",
		DemoUserPassword:  "demo1234",
		AdminEmail:        "admin@lablens.local",
		AdminPasswordHash: adminHash,
	}
	return NewAuthHandler(svc, cfg), svc
}

func TestLoginDemoUser(t *testing.T) {
	handler, svc := newTestAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"demo@lablens.local","password":"demo1234"}`))
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"user"`)

	var resp struct {
		Token string `json:"token"`
	}
	require.NoError(t, decodeBody(rec, &resp))
	claims, err := svc.ValidateToken(resp.Token)
	require.NoError(t, err)
	assert.Equal(t, auth.RoleUser, claims.Role)
}

func TestLoginAdmin(t *testing.T) {
	handler, _ := newTestAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login",
		strings.NewReader(`{"email":"admin@lablens.local","password":"admin-secret"}`))
	rec := httptest.NewRecorder()
	handler.Login(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"role":"admin"`)
}

func TestLoginWrongPassword(t *testing.T) {
	handler, _ := newTestAuthHandler(t)

	for _, body := range []string{
		`{"email":"demo@lablens.local","password":"nope"}`,
		`{"email":"admin@lablens.local","password":"nope"}`,
		`{"email":"unknown@lablens.local","password":"demo1234"}`,
	} {
		req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader(body))
		rec := httptest.NewRecorder()
		handler.Login(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code, "body: %s", body)
	}
}

func TestLoginInvalidBody(t *testing.T) {
	handler, _ := newTestAuthHandler(t)

	req := httptest.NewRequest(http.MethodPost, "/api/auth/login", strings.NewReader("{"))
	rec := httptest.NewRecorder()
	handler.Login(rec, req)
	assert.Equal(t, http.StatusBadRequest, rec.Code)
}
