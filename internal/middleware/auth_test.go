package middleware

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "test-secret"

type revokedSet map[string]bool

func (s revokedSet) IsRevoked(_ context.Context, jti string) (bool, error) {
	return s[jti], nil
}

type brokenChecker struct{}

func (brokenChecker) IsRevoked(context.Context, string) (bool, error) {
	return false, errors.New("redis down")
}

func sign(t *testing.T, claims jwt.MapClaims) string {
	t.Helper()
	s, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return s
}

func validClaims(jti string) jwt.MapClaims {
	return jwt.MapClaims{
		"sub":      "user-1",
		"username": "alice",
		"jti":      jti,
		"exp":      time.Now().Add(time.Hour).Unix(),
	}
}

func TestRequireAuth_StoresUsername(t *testing.T) {
	var seen string
	h := NewAuthenticator(secret, nil).RequireAuth(http.HandlerFunc(func(_ http.ResponseWriter, r *http.Request) {
		seen = Username(r.Context())
	}))
	require.Equal(t, http.StatusOK, serve(h, sign(t, validClaims("x"))).Code)
	assert.Equal(t, "alice", seen)
	assert.Empty(t, Username(context.Background()))
}

// echoUser writes the user id seen in the context, or "anonymous".
var echoUser = http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
	id := UserID(r.Context())
	if id == "" {
		id = "anonymous"
	}
	_, _ = w.Write([]byte(id))
})

func serve(h http.Handler, token string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec
}

func TestRequireAuth(t *testing.T) {
	a := NewAuthenticator(secret, revokedSet{"revoked": true})
	h := a.RequireAuth(echoUser)

	rec := serve(h, sign(t, validClaims("ok")))
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "user-1", rec.Body.String())

	assert.Equal(t, http.StatusUnauthorized, serve(h, "").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, "garbage").Code)
	assert.Equal(t, http.StatusUnauthorized, serve(h, sign(t, validClaims("revoked"))).Code)

	expired := validClaims("old")
	expired["exp"] = time.Now().Add(-time.Minute).Unix()
	assert.Equal(t, http.StatusUnauthorized, serve(h, sign(t, expired)).Code)

	noExp := validClaims("noexp")
	delete(noExp, "exp")
	assert.Equal(t, http.StatusUnauthorized, serve(h, sign(t, noExp)).Code)
}

func TestRequireAuth_BadScheme(t *testing.T) {
	h := NewAuthenticator(secret, nil).RequireAuth(echoUser)
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.Header.Set("Authorization", "Token "+sign(t, validClaims("x")))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestRequireAuth_BlacklistUnavailable(t *testing.T) {
	h := NewAuthenticator(secret, brokenChecker{}).RequireAuth(echoUser)
	assert.Equal(t, http.StatusUnauthorized, serve(h, sign(t, validClaims("x"))).Code)
}

func TestOptionalAuth(t *testing.T) {
	h := NewAuthenticator(secret, revokedSet{"revoked": true}).OptionalAuth(echoUser)

	assert.Equal(t, "user-1", serve(h, sign(t, validClaims("ok"))).Body.String())
	assert.Equal(t, "anonymous", serve(h, "").Body.String())
	assert.Equal(t, "anonymous", serve(h, "garbage").Body.String())
	assert.Equal(t, "anonymous", serve(h, sign(t, validClaims("revoked"))).Body.String())
}

func TestLogger_PassesThrough(t *testing.T) {
	h := Logger(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusTeapot)
		_, _ = w.Write([]byte("short and stout"))
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/pot", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
	assert.Equal(t, "short and stout", rec.Body.String())
}
