// Package auth handles password login, token issuance and token revocation.
package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// ErrNoCredentials is returned when no account matches the username.
var ErrNoCredentials = errors.New("credentials not found")

// Credential is the login-relevant part of a user row.
type Credential struct {
	UserID       string
	Username     string
	PasswordHash string
}

// Repository reads password hashes. Profiles are handled by the user package.
type Repository struct {
	db *pgxpool.Pool
}

// NewRepository creates a new auth Repository.
func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

// GetCredential returns the stored hash for username.
func (r *Repository) GetCredential(ctx context.Context, username string) (*Credential, error) {
	c := &Credential{}
	err := r.db.QueryRow(ctx,
		`SELECT id, username, password_hash
		 FROM users
		 WHERE lower(username) = lower($1)`,
		username,
	).Scan(&c.UserID, &c.Username, &c.PasswordHash)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNoCredentials
	}
	if err != nil {
		return nil, fmt.Errorf("get credential: %w", err)
	}
	return c, nil
}
