package asset

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TryOnTech0/server-api/internal/storage"
)

func TestDelete_TwiceIsNotFound(t *testing.T) {
	f := newFixture(t)
	rec, err := f.svc.Upload(context.Background(), objUpload(storage.KindLocal))
	require.NoError(t, err)

	require.NoError(t, f.svc.Delete(context.Background(), KindMesh, rec.ID))

	exists, err := f.local.Exists(context.Background(), rec.Locator.Path)
	require.NoError(t, err)
	assert.False(t, exists)

	err = f.svc.Delete(context.Background(), KindMesh, rec.ID)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestDelete_RemovesRemoteBytes(t *testing.T) {
	f := newFixture(t)
	rec, err := f.svc.Upload(context.Background(), objUpload(storage.KindRemote))
	require.NoError(t, err)
	require.Equal(t, 1, f.remote.objectCount())

	require.NoError(t, f.svc.Delete(context.Background(), KindMesh, rec.ID))
	assert.Equal(t, 0, f.remote.objectCount())
	assert.Equal(t, 0, f.store.count(KindMesh))
}

func TestDelete_RecordRemovedWhenByteRemovalFails(t *testing.T) {
	f := newFixture(t)
	rec, err := f.svc.Upload(context.Background(), objUpload(storage.KindRemote))
	require.NoError(t, err)
	f.remote.deleteErr = errors.New("access denied")

	require.NoError(t, f.svc.Delete(context.Background(), KindMesh, rec.ID))
	assert.Equal(t, 0, f.store.count(KindMesh))
}

func TestDelete_UnresolvableRecordStillRemoved(t *testing.T) {
	f := newFixture(t)
	id := "0f8fad5b-d9cb-469f-a165-70867728950e"
	f.store.put(Record{ID: id, Kind: KindImage, StorageKind: storage.KindRemote})

	require.NoError(t, f.svc.Delete(context.Background(), KindImage, id))
	assert.Equal(t, 0, f.store.count(KindImage))
}

func TestList_Pagination(t *testing.T) {
	f := newFixture(t)
	for i := 0; i < 15; i++ {
		payload := fmt.Sprintf("[%d]", i)
		_, err := f.svc.Upload(context.Background(), Upload{
			Kind:         KindIntArray,
			File:         strings.NewReader(payload),
			OriginalName: fmt.Sprintf("set-%02d.json", i),
			Size:         int64(len(payload)),
		})
		require.NoError(t, err)
	}

	page, err := f.svc.List(context.Background(), KindIntArray, ListQuery{Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page.Items, 5)
	assert.Equal(t, int64(15), page.Total)
	assert.Equal(t, 2, page.Pages)
	assert.Equal(t, 2, page.Page)
	assert.Equal(t, 10, page.Limit)

	first, err := f.svc.List(context.Background(), KindIntArray, ListQuery{})
	require.NoError(t, err)
	require.Len(t, first.Items, 10)
	assert.Equal(t, "set-14.json", first.Items[0].OriginalName)
}

func TestList_Filters(t *testing.T) {
	f := newFixture(t)
	_, err := f.svc.Upload(context.Background(), Upload{
		Kind: KindMesh, File: strings.NewReader(triangleOBJ), OriginalName: "chair.obj",
		Size: int64(len(triangleOBJ)), Tags: []string{"Furniture"},
	})
	require.NoError(t, err)
	_, err = f.svc.Upload(context.Background(), Upload{
		Kind: KindMesh, File: strings.NewReader("glTF"), OriginalName: "lamp.glb",
		Size: 4, Description: "desk lamp",
	})
	require.NoError(t, err)

	byFormat, err := f.svc.List(context.Background(), KindMesh, ListQuery{Format: ".OBJ"})
	require.NoError(t, err)
	require.Len(t, byFormat.Items, 1)
	assert.Equal(t, "chair.obj", byFormat.Items[0].OriginalName)

	byTag, err := f.svc.List(context.Background(), KindMesh, ListQuery{Tag: "furniture"})
	require.NoError(t, err)
	assert.Len(t, byTag.Items, 1)

	bySearch, err := f.svc.List(context.Background(), KindMesh, ListQuery{Search: "DESK"})
	require.NoError(t, err)
	require.Len(t, bySearch.Items, 1)
	assert.Equal(t, "lamp.glb", bySearch.Items[0].OriginalName)

	empty, err := f.svc.List(context.Background(), KindImage, ListQuery{})
	require.NoError(t, err)
	assert.NotNil(t, empty.Items)
	assert.Equal(t, 0, empty.Pages)
}
