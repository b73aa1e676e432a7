package attachment

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dharsanguruparan/jansevak/internal/model"
	"github.com/dharsanguruparan/jansevak/internal/signing"
)

// Store keeps attachment bytes under object keys. s3storage.Storage is the
// production implementation; DiskStore serves demo mode.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) error
	// URL resolves key to a link a browser can fetch for a limited time.
	URL(ctx context.Context, key string) (string, error)
	Get(ctx context.Context, key string) ([]byte, error)
	// Delete removes key. Missing keys are not an error.
	Delete(ctx context.Context, key string) error
}

// DiskStore writes attachments below a directory and hands out signed
// download paths checked by the API's file route.
type DiskStore struct {
	dir      string
	signer   *signing.Signer
	ttl      time.Duration
	basePath string
}

// NewDiskStore creates dir if needed.
func NewDiskStore(dir string, signer *signing.Signer, ttl time.Duration, basePath string) (*DiskStore, error) {
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("create upload dir: %w", err)
	}
	return &DiskStore{dir: dir, signer: signer, ttl: ttl, basePath: basePath}, nil
}

// Put copies r to the file for key.
func (d *DiskStore) Put(ctx context.Context, key string, r io.Reader, _ int64, _ string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := d.Path(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(p), 0o750); err != nil {
		return fmt.Errorf("create object dir: %w", err)
	}
	f, err := os.Create(p)
	if err != nil {
		return fmt.Errorf("create object: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(p)
		return fmt.Errorf("write object: %w", err)
	}
	return f.Close()
}

// URL returns a signed download path for key.
func (d *DiskStore) URL(_ context.Context, key string) (string, error) {
	if _, err := d.Path(key); err != nil {
		return "", err
	}
	return d.signer.SignedPath(d.basePath, key, d.ttl), nil
}

// Get reads the object for key.
func (d *DiskStore) Get(ctx context.Context, key string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	p, err := d.Path(key)
	if err != nil {
		return nil, err
	}
	data, err := os.ReadFile(p)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, model.ErrNotFound
		}
		return nil, fmt.Errorf("read object: %w", err)
	}
	return data, nil
}

// Delete removes the object for key.
func (d *DiskStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p, err := d.Path(key)
	if err != nil {
		return err
	}
	if err := os.Remove(p); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("delete object: %w", err)
	}
	return nil
}

// Verify checks a signed download request.
func (d *DiskStore) Verify(key, expires, signature string) bool {
	return d.signer.Validate(key, expires, signature)
}

// Path maps key to a file below the store directory. Keys must be relative
// slash-separated paths with no empty, "." or ".." segments.
func (d *DiskStore) Path(key string) (string, error) {
	if key == "" || strings.HasPrefix(key, "/") || strings.ContainsRune(key, '\\') {
		return "", model.NewValidationError("key", "is invalid")
	}
	for _, seg := range strings.Split(key, "/") {
		if seg == "" || seg == "." || seg == ".." {
			return "", model.NewValidationError("key", "is invalid")
		}
	}
	return filepath.Join(d.dir, filepath.FromSlash(key)), nil
}
