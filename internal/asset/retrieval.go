package asset

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/google/uuid"

	"github.com/TryOnTech0/server-api/internal/storage"
)

// Content is an open asset stream. The caller must close Body.
type Content struct {
	Record      *Record
	Body        io.ReadCloser
	Size        int64
	ContentType string
}

// Location describes where an asset lives without opening its bytes.
type Location struct {
	Path      string   `json:"imagePath"`
	PublicURL string   `json:"publicUrl"`
	Metadata  Metadata `json:"metadata"`
	FileName  string   `json:"fileName"`
}

// Dispatcher loads records and hands back their bytes regardless of backend.
type Dispatcher struct {
	store    Store
	resolver *Resolver
	backends *storage.Registry
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(store Store, resolver *Resolver, backends *storage.Registry) *Dispatcher {
	return &Dispatcher{store: store, resolver: resolver, backends: backends}
}

// Open loads the record and opens its bytes. Missing local files yield ErrFileNotFound;
// remote fetch failures yield ErrBackend and are not retried.
func (d *Dispatcher) Open(ctx context.Context, kind Kind, id string) (*Content, error) {
	rec, err := d.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	res, err := d.resolver.Resolve(rec)
	if err != nil {
		return nil, err
	}
	backend, err := d.backends.Get(res.StorageKind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrNotRetrievable, err)
	}

	if res.StorageKind == storage.KindLocal {
		exists, err := backend.Exists(ctx, res.Key)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", ErrBackend, err)
		}
		if !exists {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, res.Key)
		}
	}

	obj, err := backend.Open(ctx, res.Key)
	if err != nil {
		if res.StorageKind == storage.KindLocal && errors.Is(err, storage.ErrObjectNotFound) {
			return nil, fmt.Errorf("%w: %s", ErrFileNotFound, res.Key)
		}
		return nil, fmt.Errorf("%w: retrieve %s: %v", ErrBackend, res.Key, err)
	}

	ct := rec.Metadata.ContentType
	if ct == "" {
		ct = obj.ContentType
	}
	return &Content{Record: rec, Body: obj.Body, Size: obj.Size, ContentType: ct}, nil
}

// Locate returns the locator and public URL of an asset without touching its bytes.
func (d *Dispatcher) Locate(ctx context.Context, kind Kind, id string) (*Location, error) {
	rec, err := d.load(ctx, kind, id)
	if err != nil {
		return nil, err
	}
	res, err := d.resolver.Resolve(rec)
	if err != nil {
		return nil, err
	}
	return &Location{
		Path:      res.Key,
		PublicURL: rec.PublicURL,
		Metadata:  rec.Metadata,
		FileName:  rec.FileName,
	}, nil
}

func (d *Dispatcher) load(ctx context.Context, kind Kind, id string) (*Record, error) {
	canonical, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return d.store.GetByID(ctx, kind, canonical)
}

// parseID rejects malformed ids before they reach the store.
func parseID(id string) (string, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return "", fmt.Errorf("%w: malformed id %q", ErrInput, id)
	}
	return u.String(), nil
}
