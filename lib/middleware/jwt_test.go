package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testSecret = "s3cret"

func signToken(t *testing.T, secret string, claims jwt.MapClaims) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func authned(t *testing.T, authHeader string) (*httptest.ResponseRecorder, string) {
	t.Helper()

	var subject string
	handler := VerifyJWT(testSecret)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		subject = Subject(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if authHeader != "" {
		req.Header.Set("Authorization", authHeader)
	}
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec, subject
}

func TestVerifyJWT(t *testing.T) {
	token := signToken(t, testSecret, jwt.MapClaims{"sub": "operator"})

	rec, subject := authned(t, "Bearer "+token)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "operator", subject)
}

func TestVerifyJWT_MissingHeader(t *testing.T) {
	rec, _ := authned(t, "")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifyJWT_NotBearer(t *testing.T) {
	rec, _ := authned(t, "Basic dXNlcjpwYXNz")
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifyJWT_WrongSecret(t *testing.T) {
	token := signToken(t, "other-secret", jwt.MapClaims{"sub": "operator"})

	rec, _ := authned(t, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestVerifyJWT_RejectsNonHMAC(t *testing.T) {
	// alg=none must never pass, whatever the token claims.
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{"sub": "operator"}).
		SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	rec, _ := authned(t, "Bearer "+token)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}
