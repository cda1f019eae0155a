package middleware

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/TryOnTech0/server-api/internal/response"
)

// contextKey is an unexported type for context keys in this package.
type contextKey string

// UserIDKey is the context key for the authenticated user's ID.
const UserIDKey contextKey = "userID"

// UsernameKey is the context key for the authenticated user's name.
const UsernameKey contextKey = "username"

// TokenIDKey is the context key for the jti of the presented token.
const TokenIDKey contextKey = "tokenID"

// TokenExpiryKey is the context key for the expiry of the presented token.
const TokenExpiryKey contextKey = "tokenExpiry"

var (
	errMissingHeader = errors.New("authorization header required")
	errBadHeader     = errors.New("invalid authorization header format")
	errBadToken      = errors.New("invalid or expired token")
	errRevoked       = errors.New("token has been revoked")
)

// RevocationChecker reports whether a token id has been revoked.
type RevocationChecker interface {
	IsRevoked(ctx context.Context, jti string) (bool, error)
}

// Authenticator validates Bearer JWTs and injects user claims into the request context.
type Authenticator struct {
	secret  []byte
	revoked RevocationChecker
}

// NewAuthenticator creates an Authenticator. revoked may be nil to skip blacklist checks.
func NewAuthenticator(jwtSecret string, revoked RevocationChecker) *Authenticator {
	return &Authenticator{secret: []byte(jwtSecret), revoked: revoked}
}

// RequireAuth rejects requests without a valid, non-revoked token.
func (a *Authenticator) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := a.authenticate(r)
		if err != nil {
			response.Unauthorized(w, err.Error())
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// OptionalAuth injects claims when a valid token is presented and otherwise
// lets the request through anonymously.
func (a *Authenticator) OptionalAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx, err := a.authenticate(r)
		if err != nil {
			next.ServeHTTP(w, r)
			return
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (a *Authenticator) authenticate(r *http.Request) (context.Context, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, errMissingHeader
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, errBadHeader
	}

	token, err := jwt.Parse(parts[1], func(t *jwt.Token) (interface{}, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}), jwt.WithExpirationRequired())
	if err != nil || !token.Valid {
		return nil, errBadToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return nil, errBadToken
	}

	userID, _ := claims["sub"].(string)
	username, _ := claims["username"].(string)
	jti, _ := claims["jti"].(string)
	if userID == "" {
		return nil, errBadToken
	}

	if a.revoked != nil && jti != "" {
		revoked, err := a.revoked.IsRevoked(r.Context(), jti)
		if err != nil {
			log.Printf("auth: blacklist lookup failed jti=%s: %v", jti, err)
			return nil, errBadToken
		}
		if revoked {
			return nil, errRevoked
		}
	}

	var expiry time.Time
	if exp, err := claims.GetExpirationTime(); err == nil && exp != nil {
		expiry = exp.Time
	}

	ctx := context.WithValue(r.Context(), UserIDKey, userID)
	ctx = context.WithValue(ctx, UsernameKey, username)
	ctx = context.WithValue(ctx, TokenIDKey, jti)
	ctx = context.WithValue(ctx, TokenExpiryKey, expiry)
	return ctx, nil
}

// Username returns the authenticated user's name, or "" for anonymous requests.
func Username(ctx context.Context) string {
	name, _ := ctx.Value(UsernameKey).(string)
	return name
}

// UserID returns the authenticated user's ID, or "" for anonymous requests.
func UserID(ctx context.Context) string {
	id, _ := ctx.Value(UserIDKey).(string)
	return id
}
