package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"path"
	"path/filepath"
	"strings"

	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/url"
)

// ErrOutsideRoot is returned when a relative path would escape the storage root.
var ErrOutsideRoot = errors.New("path escapes storage root")

// LocalStorage implements Backend on the local filesystem below a root directory.
// Keys are slash-separated paths relative to the root.
type LocalStorage struct {
	fs         afs.Service
	root       string
	rootURL    string
	publicPath string
}

// NewLocalStorage creates the root directory if it is missing and returns a LocalStorage
// whose files are served under publicPath (e.g. "/uploads").
func NewLocalStorage(ctx context.Context, root, publicPath string) (*LocalStorage, error) {
	if root == "" {
		return nil, fmt.Errorf("upload root cannot be empty")
	}
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolve upload root: %w", err)
	}

	s := &LocalStorage{
		fs:         afs.New(),
		root:       abs,
		rootURL:    url.Normalize(abs, file.Scheme),
		publicPath: "/" + strings.Trim(publicPath, "/"),
	}
	if err := s.ensureDir(ctx, s.rootURL); err != nil {
		return nil, fmt.Errorf("create upload root: %w", err)
	}
	return s, nil
}

func (s *LocalStorage) Kind() Kind { return KindLocal }

// Root returns the absolute upload directory.
func (s *LocalStorage) Root() string { return s.root }

// Upload writes reader to root/key, creating parent directories as needed.
func (s *LocalStorage) Upload(ctx context.Context, key string, reader io.Reader, _ int64, _ string) error {
	target, err := s.objectURL(key)
	if err != nil {
		return err
	}
	parent, _ := url.Split(target, file.Scheme)
	if err := s.ensureDir(ctx, parent); err != nil {
		return fmt.Errorf("create directory for %q: %w", key, err)
	}
	if err := s.fs.Upload(ctx, target, file.DefaultFileOsMode, reader); err != nil {
		return fmt.Errorf("write file %q: %w", key, err)
	}
	return nil
}

// Open returns a reader on root/key. The content type is derived from the extension.
func (s *LocalStorage) Open(ctx context.Context, key string) (*Object, error) {
	target, err := s.objectURL(key)
	if err != nil {
		return nil, err
	}
	obj, err := s.fs.Object(ctx, target)
	if err != nil {
		if ok, _ := s.fs.Exists(ctx, target); !ok {
			return nil, fmt.Errorf("open file %q: %w", key, ErrObjectNotFound)
		}
		return nil, fmt.Errorf("stat file %q: %w", key, err)
	}
	rc, err := s.fs.OpenURL(ctx, target)
	if err != nil {
		return nil, fmt.Errorf("open file %q: %w", key, err)
	}
	return &Object{Body: rc, Size: obj.Size(), ContentType: contentTypeFor(key)}, nil
}

// Exists reports whether root/key is present.
func (s *LocalStorage) Exists(ctx context.Context, key string) (bool, error) {
	target, err := s.objectURL(key)
	if err != nil {
		return false, err
	}
	return s.fs.Exists(ctx, target)
}

// Delete removes root/key. Deleting a missing file is not an error.
func (s *LocalStorage) Delete(ctx context.Context, key string) error {
	target, err := s.objectURL(key)
	if err != nil {
		return err
	}
	exists, err := s.fs.Exists(ctx, target)
	if err != nil {
		return fmt.Errorf("check file %q: %w", key, err)
	}
	if !exists {
		return nil
	}
	if err := s.fs.Delete(ctx, target); err != nil {
		return fmt.Errorf("delete file %q: %w", key, err)
	}
	return nil
}

// PublicURL returns the statically served path for key, e.g. "/uploads/images/x.png".
func (s *LocalStorage) PublicURL(key string) string {
	return path.Join(s.publicPath, key)
}

func (s *LocalStorage) objectURL(key string) (string, error) {
	if _, err := SafeJoin(s.root, key); err != nil {
		return "", err
	}
	return url.Join(s.rootURL, path.Clean("/"+key)[1:]), nil
}

func (s *LocalStorage) ensureDir(ctx context.Context, dirURL string) error {
	exists, err := s.fs.Exists(ctx, dirURL)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.fs.Create(ctx, dirURL, file.DefaultDirOsMode, true)
}

// SafeJoin joins a slash-separated relative path onto root and rejects results outside root.
func SafeJoin(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("empty path: %w", ErrOutsideRoot)
	}
	joined := filepath.Join(root, filepath.FromSlash(rel))
	within, err := filepath.Rel(root, joined)
	if err != nil || within == "." || within == ".." || strings.HasPrefix(within, ".."+string(filepath.Separator)) {
		return "", fmt.Errorf("%q: %w", rel, ErrOutsideRoot)
	}
	return joined, nil
}

func contentTypeFor(key string) string {
	if ct := mime.TypeByExtension(path.Ext(key)); ct != "" {
		return ct
	}
	return "application/octet-stream"
}
