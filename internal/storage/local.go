// Package storage keeps uploaded product images on the local filesystem and
// issues public URLs for them.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"strings"

	"storefront/internal/domain"

	"github.com/google/uuid"
)

// Bucket is the directory product images are written under.
const Bucket = "product-images"

// ErrInvalidKey is returned for keys that are empty or escape the base path.
var ErrInvalidKey = errors.New("invalid storage key")

// LocalStorage stores files under basePath. Objects are never overwritten.
type LocalStorage struct {
	basePath string
	urlHost  string
}

// NewLocalStorage returns a store rooted at basePath whose public URLs are
// urlHost + "/files/" + key.
func NewLocalStorage(basePath, urlHost string) *LocalStorage {
	return &LocalStorage{basePath: basePath, urlHost: strings.TrimRight(urlHost, "/")}
}

// Save writes r under a fresh random key that keeps the extension of
// filename and returns the key.
func (s *LocalStorage) Save(ctx context.Context, filename string, r io.Reader) (string, error) {
	ext := strings.ToLower(path.Ext(filename))
	key := path.Join(Bucket, uuid.NewString()+ext)
	if err := s.Put(ctx, key, r); err != nil {
		return "", err
	}
	return key, nil
}

// Put writes r under key. An existing object is reported as
// domain.ErrAlreadyExists and left untouched.
func (s *LocalStorage) Put(_ context.Context, key string, r io.Reader) error {
	full, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(full), 0o755); err != nil {
		return fmt.Errorf("create dir: %w", err)
	}

	f, err := os.OpenFile(full, os.O_WRONLY|os.O_CREATE|os.O_EXCL, 0o644)
	if err != nil {
		if errors.Is(err, fs.ErrExist) {
			return domain.ErrAlreadyExists
		}
		return fmt.Errorf("create file: %w", err)
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		os.Remove(full)
		return fmt.Errorf("write file: %w", err)
	}
	return f.Close()
}

func (s *LocalStorage) Open(_ context.Context, key string) (io.ReadCloser, error) {
	full, err := s.resolve(key)
	if err != nil {
		return nil, err
	}
	f, err := os.Open(full)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, domain.ErrNotFound
		}
		return nil, fmt.Errorf("open file: %w", err)
	}
	return f, nil
}

func (s *LocalStorage) Delete(_ context.Context, key string) error {
	full, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(full); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("remove file: %w", err)
	}
	return nil
}

// PublicURL returns the URL the file server exposes key under.
func (s *LocalStorage) PublicURL(key string) string {
	return s.urlHost + "/files/" + strings.TrimLeft(key, "/")
}

func (s *LocalStorage) resolve(key string) (string, error) {
	key = strings.TrimLeft(key, "/")
	if key == "" || !fs.ValidPath(key) {
		return "", ErrInvalidKey
	}
	return filepath.Join(s.basePath, filepath.FromSlash(key)), nil
}
