package auth

import (
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bekberov/go-user-service/internal/types"
)

func signTestToken(t *testing.T, claims Claims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString([]byte(testJWTConfig.SecretKey))
	require.NoError(t, err)
	return signed
}

func freshClaims(role types.Role) Claims {
	now := time.Now()
	return Claims{
		UserID: "user-123",
		Email:  "test@example.com",
		Role:   string(role),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   "user-123",
			Issuer:    testJWTConfig.Issuer,
			Audience:  jwt.ClaimStrings{testJWTConfig.Audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(time.Minute)),
		},
	}
}

func TestAuthenticate(t *testing.T) {
	middleware := Authenticate(slog.Default(), testJWTConfig)

	okHandler := middleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		userID, ok := GetUserIDFromContext(r.Context())
		assert.True(t, ok)
		assert.Equal(t, "user-123", userID)
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("ValidToken", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req.Header.Set("Authorization", "Bearer "+signTestToken(t, freshClaims(types.RoleUser)))
		rec := httptest.NewRecorder()

		okHandler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("MissingHeader", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		rec := httptest.NewRecorder()

		okHandler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("MalformedHeader", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req.Header.Set("Authorization", "Token abc")
		rec := httptest.NewRecorder()

		okHandler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("ExpiredToken", func(t *testing.T) {
		claims := freshClaims(types.RoleUser)
		claims.ExpiresAt = jwt.NewNumericDate(time.Now().Add(-time.Minute))
		claims.IssuedAt = jwt.NewNumericDate(time.Now().Add(-2 * time.Minute))

		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req.Header.Set("Authorization", "Bearer "+signTestToken(t, claims))
		rec := httptest.NewRecorder()

		okHandler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("WrongSignature", func(t *testing.T) {
		token := jwt.NewWithClaims(jwt.SigningMethodHS256, freshClaims(types.RoleUser))
		signed, err := token.SignedString([]byte("some-other-secret"))
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req.Header.Set("Authorization", "Bearer "+signed)
		rec := httptest.NewRecorder()

		okHandler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})

	t.Run("WrongIssuer", func(t *testing.T) {
		claims := freshClaims(types.RoleUser)
		claims.Issuer = "someone-else"

		req := httptest.NewRequest(http.MethodGet, "/users", nil)
		req.Header.Set("Authorization", "Bearer "+signTestToken(t, claims))
		rec := httptest.NewRecorder()

		okHandler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusUnauthorized, rec.Code)
	})
}

func TestRequireRole(t *testing.T) {
	authenticate := Authenticate(slog.Default(), testJWTConfig)
	requireAdmin := RequireRole(slog.Default(), types.RoleAdmin)

	handler := authenticate(requireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})))

	t.Run("AdminAllowed", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/users/some-id", nil)
		req.Header.Set("Authorization", "Bearer "+signTestToken(t, freshClaims(types.RoleAdmin)))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusOK, rec.Code)
	})

	t.Run("PlainUserForbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/users/some-id", nil)
		req.Header.Set("Authorization", "Bearer "+signTestToken(t, freshClaims(types.RoleUser)))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})

	t.Run("MissingRoleForbidden", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodDelete, "/users/some-id", nil)
		req.Header.Set("Authorization", "Bearer "+signTestToken(t, freshClaims("")))
		rec := httptest.NewRecorder()

		handler.ServeHTTP(rec, req)
		assert.Equal(t, http.StatusForbidden, rec.Code)
	})
}
