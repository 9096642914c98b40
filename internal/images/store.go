// Package images serves and stores product photos kept in a GCS bucket.
package images

import (
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"

	"cloud.google.com/go/storage"

	errx "github.com/finn-shopping-assistant/server/internal/core/error"
	"github.com/finn-shopping-assistant/server/pkg/gcs"
)

var (
	ErrNotFound    = errors.New("image not found")
	ErrInvalidName = errors.New("invalid image name")
)

// Store reads product images by file name.
type Store interface {
	Open(ctx context.Context, name string) (io.ReadCloser, error)
}

// ValidName rejects names that could escape the image prefix.
func ValidName(name string) error {
	switch {
	case name == "", name == ".", strings.Contains(name, ".."),
		strings.ContainsAny(name, `/\`):
		return ErrInvalidName
	}
	return nil
}

// FileName is the object name of a product's image, matching the
// images/<name>.png url stored on the product row.
func FileName(product string) string {
	name := strings.NewReplacer("/", "-", `\`, "-").Replace(strings.TrimSpace(product))
	return name + ".png"
}

type GCSStore struct {
	bucket *storage.BucketHandle
	prefix string
}

var _ Store = (*GCSStore)(nil)

func NewGCSStore(client *storage.Client, cfg gcs.Config) *GCSStore {
	return &GCSStore{bucket: client.Bucket(cfg.Bucket), prefix: cfg.Prefix}
}

func (s *GCSStore) object(name string) *storage.ObjectHandle {
	return s.bucket.Object(path.Join(s.prefix, name))
}

func (s *GCSStore) Open(ctx context.Context, name string) (io.ReadCloser, error) {
	if err := ValidName(name); err != nil {
		return nil, err
	}
	r, err := s.object(name).NewReader(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, errx.WrapStorage(fmt.Errorf("open %s: %w", name, err))
	}
	return r, nil
}

// Exists reports whether the image is already in the bucket.
func (s *GCSStore) Exists(ctx context.Context, name string) (bool, error) {
	_, err := s.object(name).Attrs(ctx)
	if errors.Is(err, storage.ErrObjectNotExist) {
		return false, nil
	}
	if err != nil {
		return false, errx.WrapStorage(err)
	}
	return true, nil
}

// Put uploads a PNG image.
func (s *GCSStore) Put(ctx context.Context, name string, data []byte) error {
	if err := ValidName(name); err != nil {
		return err
	}
	w := s.object(name).NewWriter(ctx)
	w.ContentType = "image/png"
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return errx.WrapStorage(fmt.Errorf("write %s: %w", name, err))
	}
	if err := w.Close(); err != nil {
		return errx.WrapStorage(fmt.Errorf("close %s: %w", name, err))
	}
	return nil
}
