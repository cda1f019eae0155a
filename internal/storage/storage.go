// Package storage defines the backends that hold asset bytes.
// Two implementations exist: a local disk backend and an S3-compatible object store.
// Callers pick one through a Registry instead of branching on the backend type themselves.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
)

// Kind identifies which backend holds an asset's bytes.
type Kind string

const (
	KindLocal  Kind = "local"
	KindRemote Kind = "remote"
)

// ParseKind converts user input into a Kind. The empty string yields fallback.
func ParseKind(s string, fallback Kind) (Kind, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(s))) {
	case "":
		return fallback, nil
	case KindLocal:
		return KindLocal, nil
	case KindRemote, "s3":
		return KindRemote, nil
	}
	return "", fmt.Errorf("unknown storage type %q", s)
}

// ErrObjectNotFound is returned when a key has no stored bytes.
var ErrObjectNotFound = errors.New("object not found")

// Object is an open handle on stored bytes. The caller must close Body.
type Object struct {
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// Backend is the interface for uploading, reading and deleting asset bytes.
type Backend interface {
	// Kind reports which storage kind this backend implements.
	Kind() Kind
	// Root is the bucket name for object storage or the absolute directory for disk storage.
	Root() string
	// Upload streams data to the store under the given key.
	Upload(ctx context.Context, key string, reader io.Reader, size int64, contentType string) error
	// Open returns the bytes stored under key.
	Open(ctx context.Context, key string) (*Object, error)
	// Exists reports whether key has stored bytes.
	Exists(ctx context.Context, key string) (bool, error)
	// Delete removes the object identified by key.
	Delete(ctx context.Context, key string) error
	// PublicURL constructs the browser-accessible URL for a given key.
	PublicURL(key string) string
}

// Registry maps storage kinds to configured backends.
type Registry struct {
	backends map[Kind]Backend
}

// NewRegistry indexes the given backends by their Kind. Nil backends are skipped.
func NewRegistry(backends ...Backend) *Registry {
	r := &Registry{backends: make(map[Kind]Backend, len(backends))}
	for _, b := range backends {
		if b != nil {
			r.backends[b.Kind()] = b
		}
	}
	return r
}

// Get returns the backend for kind.
func (r *Registry) Get(kind Kind) (Backend, error) {
	b, ok := r.backends[kind]
	if !ok {
		return nil, fmt.Errorf("storage backend %q is not configured", kind)
	}
	return b, nil
}
