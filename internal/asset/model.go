// Package asset ingests, stores and serves typed files: images, integer-array
// datasets and 3D models. Bytes live on a storage backend; records live in Postgres.
package asset

import (
	"errors"
	"fmt"
	"path"
	"strings"
	"time"

	"github.com/TryOnTech0/server-api/internal/mesh"
	"github.com/TryOnTech0/server-api/internal/storage"
)

// AnonymousOwner is recorded when an upload carries no authenticated user.
const AnonymousOwner = "anonymous"

var (
	// ErrInput is returned for missing or invalid files and fields.
	ErrInput = errors.New("invalid input")
	// ErrNotFound is returned when an asset record does not exist.
	ErrNotFound = errors.New("asset not found")
	// ErrFileNotFound is returned when a record exists but its bytes are gone.
	ErrFileNotFound = errors.New("asset file not found")
	// ErrNotRetrievable is returned when a record carries no usable locator.
	ErrNotRetrievable = errors.New("asset is not retrievable")
	// ErrBackend wraps storage backend failures.
	ErrBackend = errors.New("storage backend error")
	// ErrUnsupportedFormat is returned when a format cannot be parsed.
	ErrUnsupportedFormat = mesh.ErrUnsupportedFormat
)

// Kind is the asset variant. Each kind has its own table and key prefix.
type Kind string

const (
	KindImage    Kind = "image"
	KindIntArray Kind = "int-array"
	KindMesh     Kind = "mesh"
)

type kindSpec struct {
	table      string
	prefix     string
	formField  string
	extensions []string
}

var kinds = map[Kind]kindSpec{
	KindImage: {
		table:      "images",
		prefix:     "images/",
		formField:  "image",
		extensions: []string{".jpg", ".jpeg", ".png", ".gif", ".webp", ".bmp", ".svg", ".tif", ".tiff"},
	},
	KindIntArray: {
		table:      "int_arrays",
		prefix:     "int-arrays/",
		formField:  "data",
		extensions: []string{".json", ".csv", ".txt", ".bin", ".dat", ".npy"},
	},
	// model extensions are mesh.Known
	KindMesh: {
		table:     "mesh_files",
		prefix:    "3d-models/",
		formField: "model",
	},
}

// objPrefix holds Wavefront OBJ uploads apart from the other model formats.
const objPrefix = "obj-files/"

// Valid reports whether k is a known kind.
func (k Kind) Valid() bool {
	_, ok := kinds[k]
	return ok
}

// Table returns the record table for k.
func (k Kind) Table() string { return kinds[k].table }

// FormField returns the multipart field that carries the upload for k.
func (k Kind) FormField() string { return kinds[k].formField }

// KeyPrefix returns the storage key prefix for a file of this kind with extension ext.
func (k Kind) KeyPrefix(ext string) string {
	if k == KindMesh && mesh.ParseFormat(ext) == mesh.FormatOBJ {
		return objPrefix
	}
	return kinds[k].prefix
}

// Accepts reports whether a file with extension ext may be uploaded as k.
func (k Kind) Accepts(ext string) bool {
	ext = strings.ToLower(ext)
	if k == KindMesh {
		return strings.HasPrefix(ext, ".") && mesh.IsKnown(mesh.ParseFormat(ext))
	}
	for _, e := range kinds[k].extensions {
		if e == ext {
			return true
		}
	}
	return false
}

// Locator is the backend-specific address of an asset's bytes.
// Path is set for local storage; Bucket and Key are set for remote storage.
type Locator struct {
	Path   string `json:"path,omitempty"`
	Bucket string `json:"bucket,omitempty"`
	Key    string `json:"key,omitempty"`
}

// Record is the persisted description of one stored asset.
type Record struct {
	ID           string       `json:"id"`
	Kind         Kind         `json:"kind"`
	OriginalName string       `json:"originalName"`
	FileName     string       `json:"fileName"`
	StorageKind  storage.Kind `json:"storageKind"`
	Locator      Locator      `json:"locator"`
	PublicURL    string       `json:"publicUrl"`
	Metadata     Metadata     `json:"metadata"`
	OwnerID      string       `json:"ownerId"`
	CreatedAt    time.Time    `json:"createdAt"`
	UpdatedAt    time.Time    `json:"updatedAt"`
}

// Validate checks that exactly one locator form is present and that it matches StorageKind.
func (r *Record) Validate() error {
	local := r.Locator.Path != ""
	remote := r.Locator.Bucket != "" || r.Locator.Key != ""
	switch r.StorageKind {
	case storage.KindLocal:
		if !local || remote {
			return fmt.Errorf("local record %s must carry only a path locator", r.ID)
		}
	case storage.KindRemote:
		if local || r.Locator.Bucket == "" || r.Locator.Key == "" {
			return fmt.Errorf("remote record %s must carry only a bucket and key locator", r.ID)
		}
	default:
		return fmt.Errorf("record %s has unknown storage kind %q", r.ID, r.StorageKind)
	}
	return nil
}

// Metadata is the typed core shared by every kind, plus optional per-kind sections
// and a bounded map of free-form fields. Per-kind sections are flattened in JSON.
type Metadata struct {
	Size        int64    `json:"size"`
	ContentType string   `json:"contentType"`
	Format      string   `json:"format"`
	Description string   `json:"description,omitempty"`
	Tags        []string `json:"tags,omitempty"`
	StoragePath string   `json:"storagePath,omitempty"`

	*ImageInfo
	*MeshInfo

	Extra map[string]any `json:"extra,omitempty"`
}

// ImageInfo is decoded from an image header.
type ImageInfo struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// MeshInfo is derived by the format extractor.
type MeshInfo struct {
	VerticesCount      int              `json:"verticesCount"`
	FacesCount         int              `json:"facesCount"`
	TextureCoordsCount int              `json:"textureCoordsCount"`
	Materials          []string         `json:"materials,omitempty"`
	BoundingBox        mesh.BoundingBox `json:"boundingBox"`
	Dimensions         mesh.Vec3        `json:"dimensions"`
	Center             mesh.Vec3        `json:"center"`
}

func newMeshInfo(g *mesh.Geometry) *MeshInfo {
	return &MeshInfo{
		VerticesCount:      len(g.Vertices),
		FacesCount:         len(g.Faces),
		TextureCoordsCount: len(g.TextureCoords),
		Materials:          g.Materials,
		BoundingBox:        g.BoundingBox,
		Dimensions:         g.Dimensions,
		Center:             g.Center,
	}
}

const (
	maxExtraKeys   = 32
	maxExtraKeyLen = 64
	maxTags        = 20
)

// boundExtra copies at most maxExtraKeys entries with reasonably short keys.
func boundExtra(in map[string]any) (map[string]any, error) {
	if len(in) == 0 {
		return nil, nil
	}
	if len(in) > maxExtraKeys {
		return nil, fmt.Errorf("%w: metadata has %d fields, at most %d allowed", ErrInput, len(in), maxExtraKeys)
	}
	out := make(map[string]any, len(in))
	for k, v := range in {
		if k == "" || len(k) > maxExtraKeyLen {
			return nil, fmt.Errorf("%w: metadata key %q is empty or too long", ErrInput, k)
		}
		out[k] = v
	}
	return out, nil
}

func normalizeTags(in []string) []string {
	var out []string
	seen := make(map[string]bool)
	for _, t := range in {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
		if len(out) == maxTags {
			break
		}
	}
	return out
}

func extOf(name string) string {
	return strings.ToLower(path.Ext(name))
}

// ListQuery selects one page of records.
type ListQuery struct {
	Page    int
	Limit   int
	Search  string
	Format  string
	Tag     string
	OwnerID string
}

const (
	defaultLimit = 10
	maxLimit     = 100
)

// Normalize applies pagination defaults: page 1, limit 10, limit capped at 100.
func (q ListQuery) Normalize() ListQuery {
	if q.Page < 1 {
		q.Page = 1
	}
	if q.Limit < 1 {
		q.Limit = defaultLimit
	}
	if q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	q.Search = strings.TrimSpace(q.Search)
	q.Format = strings.ToLower(strings.TrimPrefix(strings.TrimSpace(q.Format), "."))
	q.Tag = strings.ToLower(strings.TrimSpace(q.Tag))
	return q
}

// Offset returns the number of records preceding the requested page.
func (q ListQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

// Page is one page of records plus totals.
type Page struct {
	Items []Record `json:"items"`
	Total int64    `json:"total"`
	Pages int      `json:"pages"`
	Page  int      `json:"page"`
	Limit int      `json:"limit"`
}

func newPage(items []Record, total int64, q ListQuery) *Page {
	if items == nil {
		items = []Record{}
	}
	pages := 0
	if total > 0 {
		pages = int((total + int64(q.Limit) - 1) / int64(q.Limit))
	}
	return &Page{Items: items, Total: total, Pages: pages, Page: q.Page, Limit: q.Limit}
}
