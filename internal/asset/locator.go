package asset

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/TryOnTech0/server-api/internal/storage"
)

// Resolution says where a record's bytes live.
// Key is the backend key (relative path for local storage); Path is the
// absolute filesystem path and is only set for local storage.
type Resolution struct {
	StorageKind storage.Kind
	Key         string
	Path        string
}

// Resolver turns records into retrieval strategies. All storage-kind branching
// for reads and deletes happens here.
type Resolver struct {
	backends *storage.Registry
}

// NewResolver creates a Resolver over the configured backends.
func NewResolver(backends *storage.Registry) *Resolver {
	return &Resolver{backends: backends}
}

// Resolve returns the storage kind and key of rec's bytes.
func (r *Resolver) Resolve(rec *Record) (Resolution, error) {
	backend, err := r.backends.Get(rec.StorageKind)
	if err != nil {
		return Resolution{}, fmt.Errorf("%w: record %s: %v", ErrNotRetrievable, rec.ID, err)
	}

	switch rec.StorageKind {
	case storage.KindRemote:
		key := remoteKey(rec, backend)
		if key == "" {
			return Resolution{}, fmt.Errorf("%w: record %s has no storage key or parseable url", ErrNotRetrievable, rec.ID)
		}
		return Resolution{StorageKind: storage.KindRemote, Key: key}, nil

	case storage.KindLocal:
		rel := strings.TrimPrefix(rec.Locator.Path, "/")
		abs, err := storage.SafeJoin(backend.Root(), rel)
		if err != nil {
			return Resolution{}, fmt.Errorf("%w: record %s: %v", ErrNotRetrievable, rec.ID, err)
		}
		return Resolution{StorageKind: storage.KindLocal, Key: rel, Path: abs}, nil
	}

	return Resolution{}, fmt.Errorf("%w: record %s has storage kind %q", ErrNotRetrievable, rec.ID, rec.StorageKind)
}

// remoteKey prefers the explicit storagePath, then the stored locator key,
// then the path component of the public URL.
func remoteKey(rec *Record, backend storage.Backend) string {
	if k := strings.TrimPrefix(rec.Metadata.StoragePath, "/"); k != "" {
		return k
	}
	if k := strings.TrimPrefix(rec.Locator.Key, "/"); k != "" {
		return k
	}
	return keyFromURL(rec.PublicURL, strings.TrimSuffix(backend.PublicURL(""), "/"), backend.Root())
}

// keyFromURL strips scheme and host from raw, then the path of publicBase or a leading bucket segment.
func keyFromURL(raw, publicBase, bucket string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	p := strings.TrimPrefix(u.Path, "/")

	basePath := ""
	if b, err := url.Parse(publicBase); err == nil {
		basePath = strings.Trim(b.Path, "/")
	}
	switch {
	case basePath != "" && strings.HasPrefix(p, basePath+"/"):
		p = p[len(basePath)+1:]
	case bucket != "" && strings.HasPrefix(p, bucket+"/"):
		p = p[len(bucket)+1:]
	}
	return p
}
