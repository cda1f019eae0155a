package asset

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TryOnTech0/server-api/internal/storage"
)

func newTestResolver(t *testing.T) (*Resolver, *storage.LocalStorage) {
	t.Helper()
	local, err := storage.NewLocalStorage(context.Background(), t.TempDir(), "/uploads")
	require.NoError(t, err)
	return NewResolver(storage.NewRegistry(local, newMemBackend())), local
}

func TestResolve_RemotePrefersStoragePath(t *testing.T) {
	r, _ := newTestResolver(t)
	rec := &Record{
		ID:          "a",
		StorageKind: storage.KindRemote,
		Locator:     Locator{Bucket: "assets", Key: "images/old.png"},
		PublicURL:   "http://minio.test/assets/images/other.png",
		Metadata:    Metadata{StoragePath: "/images/new.png"},
	}

	res, err := r.Resolve(rec)
	require.NoError(t, err)
	assert.Equal(t, storage.KindRemote, res.StorageKind)
	assert.Equal(t, "images/new.png", res.Key)
	assert.Empty(t, res.Path)
}

func TestResolve_RemoteFallsBackToLocatorKey(t *testing.T) {
	r, _ := newTestResolver(t)
	rec := &Record{ID: "a", StorageKind: storage.KindRemote, Locator: Locator{Bucket: "assets", Key: "images/a.png"}}

	res, err := r.Resolve(rec)
	require.NoError(t, err)
	assert.Equal(t, "images/a.png", res.Key)
}

func TestResolve_RemoteFromPublicURL(t *testing.T) {
	r, _ := newTestResolver(t)
	rec := &Record{ID: "a", StorageKind: storage.KindRemote, PublicURL: "http://minio.test/assets/images/a.png"}

	res, err := r.Resolve(rec)
	require.NoError(t, err)
	assert.Equal(t, "images/a.png", res.Key)
}

func TestResolve_RemoteUnresolvable(t *testing.T) {
	r, _ := newTestResolver(t)
	_, err := r.Resolve(&Record{ID: "a", StorageKind: storage.KindRemote})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotRetrievable))
}

func TestResolve_Local(t *testing.T) {
	r, local := newTestResolver(t)
	rec := &Record{ID: "a", StorageKind: storage.KindLocal, Locator: Locator{Path: "/images/a.png"}}

	res, err := r.Resolve(rec)
	require.NoError(t, err)
	assert.Equal(t, storage.KindLocal, res.StorageKind)
	assert.Equal(t, "images/a.png", res.Key)
	want, err := storage.SafeJoin(local.Root(), "images/a.png")
	require.NoError(t, err)
	assert.Equal(t, want, res.Path)
}

func TestResolve_LocalRejectsTraversal(t *testing.T) {
	r, _ := newTestResolver(t)
	for _, p := range []string{"", "../etc/passwd", "images/../../secret"} {
		_, err := r.Resolve(&Record{ID: "a", StorageKind: storage.KindLocal, Locator: Locator{Path: p}})
		require.Error(t, err, p)
		assert.True(t, errors.Is(err, ErrNotRetrievable), p)
	}
}

func TestResolve_UnknownStorageKind(t *testing.T) {
	r, _ := newTestResolver(t)
	_, err := r.Resolve(&Record{ID: "a", StorageKind: "tape"})
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNotRetrievable))
}

func TestKeyFromURL(t *testing.T) {
	tests := []struct {
		raw, base, bucket, want string
	}{
		{"http://minio.test/assets/images/a.png", "http://minio.test/assets", "assets", "images/a.png"},
		{"https://cdn.example.com/media/3d-models/x.glb", "https://cdn.example.com/media", "assets", "3d-models/x.glb"},
		{"http://other.host/assets/obj-files/t.obj", "https://cdn.example.com/media", "assets", "obj-files/t.obj"},
		{"http://minio.test/images/a.png", "http://minio.test", "assets", "images/a.png"},
		{"", "http://minio.test/assets", "assets", ""},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, keyFromURL(tt.raw, tt.base, tt.bucket), tt.raw)
	}
}
