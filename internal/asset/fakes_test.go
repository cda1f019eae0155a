package asset

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/TryOnTech0/server-api/internal/storage"
)

// memStore is an in-memory Store.
type memStore struct {
	mu        sync.Mutex
	records   map[Kind]map[string]Record
	created   int
	createErr error
}

func newMemStore() *memStore {
	return &memStore{records: make(map[Kind]map[string]Record)}
}

func (m *memStore) Create(_ context.Context, rec *Record) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return nil, m.createErr
	}
	if m.records[rec.Kind] == nil {
		m.records[rec.Kind] = make(map[string]Record)
	}
	m.created++
	out := *rec
	out.CreatedAt = time.Date(2026, 1, 1, 0, 0, m.created, 0, time.UTC)
	out.UpdatedAt = out.CreatedAt
	m.records[rec.Kind][rec.ID] = out
	return &out, nil
}

func (m *memStore) GetByID(_ context.Context, kind Kind, id string) (*Record, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	rec, ok := m.records[kind][id]
	if !ok {
		return nil, ErrNotFound
	}
	return &rec, nil
}

func (m *memStore) List(_ context.Context, kind Kind, q ListQuery) (*Page, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	q = q.Normalize()

	var all []Record
	for _, rec := range m.records[kind] {
		if matches(rec, q) {
			all = append(all, rec)
		}
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })

	total := int64(len(all))
	start := q.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + q.Limit
	if end > len(all) {
		end = len(all)
	}
	return newPage(all[start:end], total, q), nil
}

func (m *memStore) Delete(_ context.Context, kind Kind, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.records[kind][id]; !ok {
		return ErrNotFound
	}
	delete(m.records[kind], id)
	return nil
}

func (m *memStore) count(kind Kind) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.records[kind])
}

// put stores rec as-is, bypassing the pipeline.
func (m *memStore) put(rec Record) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.records[rec.Kind] == nil {
		m.records[rec.Kind] = make(map[string]Record)
	}
	m.records[rec.Kind][rec.ID] = rec
}

func matches(rec Record, q ListQuery) bool {
	if q.Search != "" {
		s := strings.ToLower(q.Search)
		if !strings.Contains(strings.ToLower(rec.OriginalName), s) &&
			!strings.Contains(strings.ToLower(rec.Metadata.Description), s) {
			return false
		}
	}
	if q.Format != "" && rec.Metadata.Format != q.Format {
		return false
	}
	if q.Tag != "" {
		found := false
		for _, t := range rec.Metadata.Tags {
			if t == q.Tag {
				found = true
			}
		}
		if !found {
			return false
		}
	}
	return q.OwnerID == "" || rec.OwnerID == q.OwnerID
}

// memBackend is an in-memory remote Backend.
type memBackend struct {
	mu        sync.Mutex
	bucket    string
	objects   map[string][]byte
	openErr   error
	deleteErr error
}

func newMemBackend() *memBackend {
	return &memBackend{bucket: "assets", objects: make(map[string][]byte)}
}

func (b *memBackend) Kind() storage.Kind { return storage.KindRemote }
func (b *memBackend) Root() string       { return b.bucket }

func (b *memBackend) Upload(_ context.Context, key string, r io.Reader, _ int64, _ string) error {
	data, err := io.ReadAll(r)
	if err != nil {
		return err
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.objects[key] = data
	return nil
}

func (b *memBackend) Open(_ context.Context, key string) (*storage.Object, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.openErr != nil {
		return nil, b.openErr
	}
	data, ok := b.objects[key]
	if !ok {
		return nil, fmt.Errorf("get %q: %w", key, storage.ErrObjectNotFound)
	}
	return &storage.Object{
		Body:        io.NopCloser(bytes.NewReader(data)),
		Size:        int64(len(data)),
		ContentType: "application/octet-stream",
	}, nil
}

func (b *memBackend) Exists(_ context.Context, key string) (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.objects[key]
	return ok, nil
}

func (b *memBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.deleteErr != nil {
		return b.deleteErr
	}
	delete(b.objects, key)
	return nil
}

func (b *memBackend) PublicURL(key string) string {
	return "http://minio.test/" + b.bucket + "/" + key
}

func (b *memBackend) objectCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.objects)
}

type fixture struct {
	svc    *Service
	store  *memStore
	local  *storage.LocalStorage
	remote *memBackend
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	local, err := storage.NewLocalStorage(context.Background(), t.TempDir(), "/uploads")
	require.NoError(t, err)
	remote := newMemBackend()
	store := newMemStore()

	backends := storage.NewRegistry(local, remote)
	resolver := NewResolver(backends)
	svc := NewService(store,
		NewPipeline(backends, store, storage.KindLocal),
		NewDispatcher(store, resolver, backends),
		resolver,
	)
	return &fixture{svc: svc, store: store, local: local, remote: remote}
}

const triangleOBJ = "v 0 0 0\nv 1 0 0\nv 0 1 0\nf 1 2 3\n"

func objUpload(storageKind storage.Kind) Upload {
	return Upload{
		Kind:         KindMesh,
		File:         strings.NewReader(triangleOBJ),
		OriginalName: "triangle.obj",
		Size:         int64(len(triangleOBJ)),
		StorageKind:  storageKind,
	}
}
