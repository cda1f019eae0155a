package auth

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/TryOnTech0/server-api/internal/user"
)

// ErrInvalidCredentials is returned when the username or password is wrong.
var ErrInvalidCredentials = errors.New("invalid username or password")

// ErrUsernameTaken is returned when registering an existing username.
var ErrUsernameTaken = errors.New("username already taken")

// CredentialStore looks up stored password hashes.
type CredentialStore interface {
	GetCredential(ctx context.Context, username string) (*Credential, error)
}

// Revoker records revoked token ids.
type Revoker interface {
	Revoke(ctx context.Context, jti string, exp time.Time) error
}

// Session is a freshly issued token.
type Session struct {
	Token     string     `json:"token"     example:"eyJhbGci..."`
	ExpiresAt time.Time  `json:"expiresAt" example:"2026-03-29T14:48:34Z"`
	User      *user.User `json:"user,omitempty"`
}

// Service contains the business logic for password authentication.
type Service struct {
	creds   CredentialStore
	userSvc *user.Service
	hasher  *Hasher
	tokens  *TokenManager
	revoker Revoker
}

// NewService creates a new auth Service.
func NewService(creds CredentialStore, userSvc *user.Service, hasher *Hasher, tokens *TokenManager, revoker Revoker) *Service {
	return &Service{creds: creds, userSvc: userSvc, hasher: hasher, tokens: tokens, revoker: revoker}
}

// Register creates an account and signs the new user in.
func (s *Service) Register(ctx context.Context, username, password string) (*Session, error) {
	hash, err := s.hasher.Hash(password)
	if err != nil {
		return nil, fmt.Errorf("hash password: %w", err)
	}

	u, err := s.userSvc.Create(ctx, username, hash)
	if errors.Is(err, user.ErrAlreadyExists) {
		return nil, ErrUsernameTaken
	}
	if err != nil {
		return nil, err
	}

	sess, err := s.issue(u.ID, u.Username)
	if err != nil {
		return nil, err
	}
	sess.User = u
	log.Printf("auth: registered user id=%s username=%s", u.ID, u.Username)
	return sess, nil
}

// Login verifies the password and issues a token.
func (s *Service) Login(ctx context.Context, username, password string) (*Session, error) {
	cred, err := s.creds.GetCredential(ctx, username)
	if errors.Is(err, ErrNoCredentials) {
		return nil, ErrInvalidCredentials
	}
	if err != nil {
		return nil, err
	}

	ok, err := s.hasher.Compare(password, cred.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("compare password: %w", err)
	}
	if !ok {
		return nil, ErrInvalidCredentials
	}

	u, err := s.userSvc.GetByUsername(ctx, cred.Username)
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	sess, err := s.issue(u.ID, u.Username)
	if err != nil {
		return nil, err
	}
	sess.User = u
	return sess, nil
}

// Logout revokes the token identified by jti until it expires.
func (s *Service) Logout(ctx context.Context, jti string, exp time.Time) error {
	if jti == "" {
		return fmt.Errorf("token has no id")
	}
	if err := s.revoker.Revoke(ctx, jti, exp); err != nil {
		return fmt.Errorf("revoke token: %w", err)
	}
	log.Printf("auth: revoked token jti=%s", jti)
	return nil
}

func (s *Service) issue(userID, username string) (*Session, error) {
	token, claims, err := s.tokens.Issue(userID, username)
	if err != nil {
		return nil, fmt.Errorf("issue token: %w", err)
	}
	return &Session{Token: token, ExpiresAt: claims.ExpiresAt.Time}, nil
}
