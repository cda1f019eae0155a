package asset

import (
	"bytes"
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"fmt"
	"image"
	_ "image/gif"
	_ "image/jpeg"
	_ "image/png"
	"io"
	"log"
	"mime"
	"time"

	"github.com/google/uuid"

	"github.com/TryOnTech0/server-api/internal/mesh"
	"github.com/TryOnTech0/server-api/internal/storage"
)

// Upload is one incoming file plus the caller's choices about it.
type Upload struct {
	Kind         Kind
	File         io.Reader
	OriginalName string
	Size         int64 // declared size; -1 when unknown
	ContentType  string
	StorageKind  storage.Kind // empty selects the pipeline default
	OwnerID      string
	Description  string
	Tags         []string
	Extra        map[string]any
}

// Pipeline writes uploads to a backend and persists their records.
type Pipeline struct {
	backends    *storage.Registry
	store       Store
	defaultKind storage.Kind
	now         func() time.Time
}

// NewPipeline creates a Pipeline. defaultKind is used when an Upload does not pick a backend.
func NewPipeline(backends *storage.Registry, store Store, defaultKind storage.Kind) *Pipeline {
	return &Pipeline{backends: backends, store: store, defaultKind: defaultKind, now: time.Now}
}

// Ingest validates up, stores its bytes and creates its record. If the record
// cannot be created the stored bytes are removed on a best-effort basis.
func (p *Pipeline) Ingest(ctx context.Context, up Upload) (*Record, error) {
	if !up.Kind.Valid() {
		return nil, fmt.Errorf("%w: unknown asset kind %q", ErrInput, up.Kind)
	}
	if up.File == nil || up.Size == 0 {
		return nil, fmt.Errorf("%w: no file uploaded", ErrInput)
	}
	ext := extOf(up.OriginalName)
	if !up.Kind.Accepts(ext) {
		return nil, fmt.Errorf("%w: file type %q is not accepted for %s assets", ErrInput, ext, up.Kind)
	}
	extra, err := boundExtra(up.Extra)
	if err != nil {
		return nil, err
	}

	storageKind := up.StorageKind
	if storageKind == "" {
		storageKind = p.defaultKind
	}
	backend, err := p.backends.Get(storageKind)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	md := Metadata{
		ContentType: contentType(up.ContentType, ext),
		Format:      ext[1:],
		Description: up.Description,
		Tags:        normalizeTags(up.Tags),
		Extra:       extra,
	}

	body, size := up.File, up.Size
	if needsInspection(up.Kind) {
		buf, err := io.ReadAll(up.File)
		if err != nil {
			return nil, fmt.Errorf("%w: read upload: %v", ErrInput, err)
		}
		if len(buf) == 0 {
			return nil, fmt.Errorf("%w: no file uploaded", ErrInput)
		}
		if err := inspect(up.Kind, ext, buf, &md); err != nil {
			return nil, err
		}
		body, size = bytes.NewReader(buf), int64(len(buf))
	}

	fileName, err := p.fileName(ext)
	if err != nil {
		return nil, fmt.Errorf("%w: generate file name: %v", ErrBackend, err)
	}
	key := up.Kind.KeyPrefix(ext) + fileName

	counter := &countingReader{r: body}
	if err := backend.Upload(ctx, key, counter, size, md.ContentType); err != nil {
		p.rollback(ctx, backend, key)
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}
	if counter.n == 0 {
		p.rollback(ctx, backend, key)
		return nil, fmt.Errorf("%w: no file uploaded", ErrInput)
	}
	md.Size = counter.n

	owner := up.OwnerID
	if owner == "" {
		owner = AnonymousOwner
	}
	rec := &Record{
		ID:           uuid.NewString(),
		Kind:         up.Kind,
		OriginalName: up.OriginalName,
		FileName:     fileName,
		StorageKind:  storageKind,
		PublicURL:    backend.PublicURL(key),
		Metadata:     md,
		OwnerID:      owner,
	}
	switch storageKind {
	case storage.KindRemote:
		rec.Locator = Locator{Bucket: backend.Root(), Key: key}
		rec.Metadata.StoragePath = key
	default:
		rec.Locator = Locator{Path: key}
	}

	if err := rec.Validate(); err != nil {
		p.rollback(ctx, backend, key)
		return nil, fmt.Errorf("%w: %v", ErrBackend, err)
	}

	created, err := p.store.Create(ctx, rec)
	if err != nil {
		p.rollback(ctx, backend, key)
		return nil, fmt.Errorf("persist %s record: %w", up.Kind, err)
	}
	return created, nil
}

// rollback removes bytes written for a failed upload. Failures are logged only.
func (p *Pipeline) rollback(ctx context.Context, backend storage.Backend, key string) {
	if err := backend.Delete(context.WithoutCancel(ctx), key); err != nil {
		log.Printf("asset: rollback of %s key=%s failed: %v", backend.Kind(), key, err)
	}
}

// fileName returns "<unix millis>-<12 hex chars><ext>".
func (p *Pipeline) fileName(ext string) (string, error) {
	b := make([]byte, 6)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return fmt.Sprintf("%d-%s%s", p.now().UnixMilli(), hex.EncodeToString(b), ext), nil
}

func needsInspection(k Kind) bool {
	return k == KindMesh || k == KindImage
}

// inspect fills kind-specific metadata from the buffered upload.
func inspect(kind Kind, ext string, buf []byte, md *Metadata) error {
	switch kind {
	case KindMesh:
		g, err := mesh.Extract(bytes.NewReader(buf), mesh.ParseFormat(ext))
		if errors.Is(err, mesh.ErrUnsupportedFormat) {
			// stored without geometry
			return nil
		}
		if err != nil {
			return fmt.Errorf("%w: %v", ErrInput, err)
		}
		md.MeshInfo = newMeshInfo(g)
	case KindImage:
		if cfg, _, err := image.DecodeConfig(bytes.NewReader(buf)); err == nil {
			md.ImageInfo = &ImageInfo{Width: cfg.Width, Height: cfg.Height}
		}
	}
	return nil
}

// modelTypes overrides system mime tables, which map .obj to unrelated types on some hosts.
var modelTypes = map[string]string{
	".obj":  "model/obj",
	".gltf": "model/gltf+json",
	".glb":  "model/gltf-binary",
	".stl":  "model/stl",
	".ply":  "application/ply",
	".fbx":  "application/octet-stream",
}

func contentType(declared, ext string) string {
	if ct, ok := modelTypes[ext]; ok {
		return ct
	}
	if declared != "" && declared != "application/octet-stream" {
		return declared
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	if declared != "" {
		return declared
	}
	return "application/octet-stream"
}

type countingReader struct {
	r io.Reader
	n int64
}

func (c *countingReader) Read(p []byte) (int, error) {
	n, err := c.r.Read(p)
	c.n += int64(n)
	return n, err
}
