package asset

import (
	"context"
	"fmt"
	"log"
)

// Store persists asset records, one collection per Kind.
type Store interface {
	Create(ctx context.Context, rec *Record) (*Record, error)
	GetByID(ctx context.Context, kind Kind, id string) (*Record, error)
	List(ctx context.Context, kind Kind, q ListQuery) (*Page, error)
	Delete(ctx context.Context, kind Kind, id string) error
}

// Service is the entry point used by the HTTP handlers.
type Service struct {
	store      Store
	pipeline   *Pipeline
	dispatcher *Dispatcher
	resolver   *Resolver
}

// NewService creates a new asset Service.
func NewService(store Store, pipeline *Pipeline, dispatcher *Dispatcher, resolver *Resolver) *Service {
	return &Service{store: store, pipeline: pipeline, dispatcher: dispatcher, resolver: resolver}
}

// Upload ingests a new asset.
func (s *Service) Upload(ctx context.Context, up Upload) (*Record, error) {
	return s.pipeline.Ingest(ctx, up)
}

// Get returns a record by id.
func (s *Service) Get(ctx context.Context, kind Kind, id string) (*Record, error) {
	canonical, err := parseID(id)
	if err != nil {
		return nil, err
	}
	return s.store.GetByID(ctx, kind, canonical)
}

// List returns one page of records of kind.
func (s *Service) List(ctx context.Context, kind Kind, q ListQuery) (*Page, error) {
	page, err := s.store.List(ctx, kind, q.Normalize())
	if err != nil {
		return nil, fmt.Errorf("list %s assets: %w", kind, err)
	}
	return page, nil
}

// Open streams an asset's bytes.
func (s *Service) Open(ctx context.Context, kind Kind, id string) (*Content, error) {
	return s.dispatcher.Open(ctx, kind, id)
}

// Locate returns an asset's locator and public URL.
func (s *Service) Locate(ctx context.Context, kind Kind, id string) (*Location, error) {
	return s.dispatcher.Locate(ctx, kind, id)
}

// Delete removes an asset's bytes, then its record. Byte removal is best effort:
// failures are logged and the record is deleted regardless.
func (s *Service) Delete(ctx context.Context, kind Kind, id string) error {
	rec, err := s.Get(ctx, kind, id)
	if err != nil {
		return err
	}

	s.removeBytes(ctx, rec)

	if err := s.store.Delete(ctx, kind, rec.ID); err != nil {
		return fmt.Errorf("delete %s record %s: %w", kind, rec.ID, err)
	}
	log.Printf("asset: deleted %s id=%s storage=%s", kind, rec.ID, rec.StorageKind)
	return nil
}

func (s *Service) removeBytes(ctx context.Context, rec *Record) {
	res, err := s.resolver.Resolve(rec)
	if err != nil {
		log.Printf("asset: skip byte cleanup for %s id=%s: %v", rec.Kind, rec.ID, err)
		return
	}
	backend, err := s.resolver.backends.Get(res.StorageKind)
	if err != nil {
		log.Printf("asset: skip byte cleanup for %s id=%s: %v", rec.Kind, rec.ID, err)
		return
	}
	if err := backend.Delete(ctx, res.Key); err != nil {
		log.Printf("asset: delete bytes for %s id=%s key=%s failed: %v", rec.Kind, rec.ID, res.Key, err)
	}
}
