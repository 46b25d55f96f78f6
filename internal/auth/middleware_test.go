package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bastionhq/bastion/internal/models"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})
}

func TestAuthMiddleware_MissingHeader(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute)
	handler := AuthMiddleware(tm)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/login-attempts", nil)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthMiddleware_MalformedHeader(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute)
	handler := AuthMiddleware(tm)(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/login-attempts", nil)
	req.Header.Set("Authorization", "Basic abc123")
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusUnauthorized, rr.Code)
}

func TestAuthMiddleware_ValidTokenInjectsClaims(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute)
	token, err := tm.GenerateAccessToken("user_123", models.RoleAdmin)
	require.NoError(t, err)

	var claims *models.TokenClaims
	handler := AuthMiddleware(tm)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims = GetUserFromContext(r)
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/login-attempts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
	require.NotNil(t, claims)
	assert.Equal(t, "user_123", claims.UserID)
}

func TestRequireRole_ForbidsWrongRole(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute)
	token, err := tm.GenerateAccessToken("user_123", models.RoleViewer)
	require.NoError(t, err)

	handler := AuthMiddleware(tm)(RequireRole(models.RoleAdmin)(okHandler()))

	req := httptest.NewRequest(http.MethodDelete, "/domains/acme/login-attempts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusForbidden, rr.Code)
}

func TestRequireRole_AllowsMatchingRole(t *testing.T) {
	tm := NewTokenManager(testSecret, 15*time.Minute)
	token, err := tm.GenerateAccessToken("user_123", models.RoleAdmin)
	require.NoError(t, err)

	handler := AuthMiddleware(tm)(RequireRole(models.RoleAdmin)(okHandler()))

	req := httptest.NewRequest(http.MethodDelete, "/domains/acme/login-attempts", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rr := httptest.NewRecorder()
	handler.ServeHTTP(rr, req)

	assert.Equal(t, http.StatusOK, rr.Code)
}
