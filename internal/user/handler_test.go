package user

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TryOnTech0/server-api/internal/middleware"
)

type memStore struct {
	mu    sync.Mutex
	users map[string]*User
}

func newMemStore() *memStore { return &memStore{users: make(map[string]*User)} }

func (m *memStore) Create(_ context.Context, username, _ string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			return nil, ErrAlreadyExists
		}
	}
	now := time.Now().UTC()
	u := &User{ID: uuid.NewString(), Username: username, CreatedAt: now, UpdatedAt: now}
	m.users[u.ID] = u
	return u, nil
}

func (m *memStore) GetByID(_ context.Context, id string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return nil, ErrNotFound
	}
	return u, nil
}

func (m *memStore) GetByUsername(_ context.Context, username string) (*User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if strings.EqualFold(u.Username, username) {
			return u, nil
		}
	}
	return nil, ErrNotFound
}

func (m *memStore) UsernameTaken(ctx context.Context, username string) (bool, error) {
	_, err := m.GetByUsername(ctx, username)
	return err == nil, nil
}

func withUser(r *http.Request, id string) *http.Request {
	return r.WithContext(context.WithValue(r.Context(), middleware.UserIDKey, id))
}

func TestGetMe(t *testing.T) {
	svc := NewService(newMemStore())
	u, err := svc.Create(context.Background(), "alice", "hash")
	require.NoError(t, err)
	h := NewHandler(svc)

	rec := httptest.NewRecorder()
	h.GetMe(rec, withUser(httptest.NewRequest(http.MethodGet, "/users/me", nil), u.ID))
	require.Equal(t, http.StatusOK, rec.Code)

	var body struct {
		Success bool `json:"success"`
		Data    User `json:"data"`
	}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.True(t, body.Success)
	assert.Equal(t, "alice", body.Data.Username)
}

func TestGetMe_Errors(t *testing.T) {
	h := NewHandler(NewService(newMemStore()))

	rec := httptest.NewRecorder()
	h.GetMe(rec, httptest.NewRequest(http.MethodGet, "/users/me", nil))
	assert.Equal(t, http.StatusUnauthorized, rec.Code)

	rec = httptest.NewRecorder()
	h.GetMe(rec, withUser(httptest.NewRequest(http.MethodGet, "/users/me", nil), uuid.NewString()))
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestCheckUsername(t *testing.T) {
	svc := NewService(newMemStore())
	_, err := svc.Create(context.Background(), "alice", "hash")
	require.NoError(t, err)
	h := NewHandler(svc)

	tests := []struct {
		query     string
		status    int
		available bool
	}{
		{"ALICE", http.StatusOK, false},
		{"bob", http.StatusOK, true},
		{"x", http.StatusBadRequest, false},
		{"bad name", http.StatusBadRequest, false},
	}
	for _, tt := range tests {
		rec := httptest.NewRecorder()
		req := httptest.NewRequest(http.MethodGet, "/users/username-check?username="+strings.ReplaceAll(tt.query, " ", "%20"), nil)
		h.CheckUsername(rec, req)
		require.Equal(t, tt.status, rec.Code, tt.query)
		if tt.status != http.StatusOK {
			continue
		}
		var body struct {
			Data usernameCheckData `json:"data"`
		}
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
		assert.Equal(t, tt.available, body.Data.Available, tt.query)
	}
}
