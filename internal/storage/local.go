// Package storage provides object store adapters for exported files.
package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/smartcity/transitweather/internal/domain"
)

// LocalStore implements domain.ObjectStore on a local directory.
// Object keys are slash-separated paths relative to the base directory.
type LocalStore struct {
	baseDir string
	logger  *slog.Logger
}

var _ domain.ObjectStore = (*LocalStore)(nil)

// NewLocalStore creates the base directory if needed
func NewLocalStore(baseDir string, logger *slog.Logger) (*LocalStore, error) {
	if baseDir == "" {
		return nil, errors.New("storage: base directory must be specified")
	}
	info, err := os.Stat(baseDir)
	switch {
	case os.IsNotExist(err):
		if err := os.MkdirAll(baseDir, 0o755); err != nil {
			return nil, fmt.Errorf("storage: failed to create %s: %w", baseDir, err)
		}
	case err != nil:
		return nil, fmt.Errorf("storage: failed to stat %s: %w", baseDir, err)
	case !info.IsDir():
		return nil, fmt.Errorf("storage: %s is not a directory", baseDir)
	}

	return &LocalStore{baseDir: baseDir, logger: logger}, nil
}

// Upload copies r into the object at key, creating parent directories
func (s *LocalStore) Upload(ctx context.Context, key string, r io.Reader) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("storage: failed to create directory for %s: %w", key, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("storage: failed to create %s: %w", key, err)
	}
	defer func() {
		if cerr := f.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("storage: failed to close %s: %w", key, cerr)
		}
	}()

	n, err := io.Copy(f, r)
	if err != nil {
		return fmt.Errorf("storage: failed to write %s: %w", key, err)
	}
	s.logger.Debug("uploaded object", "key", key, "bytes", n)
	return nil
}

// Download copies the object at key into w
func (s *LocalStore) Download(ctx context.Context, key string, w io.Writer) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.resolve(key)
	if err != nil {
		return err
	}

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("storage: %s: %w", key, domain.ErrNotFound)
		}
		return fmt.Errorf("storage: failed to open %s: %w", key, err)
	}
	defer f.Close()

	if _, err := io.Copy(w, f); err != nil {
		return fmt.Errorf("storage: failed to read %s: %w", key, err)
	}
	return nil
}

// List returns the objects whose keys start with prefix, sorted by key
func (s *LocalStore) List(ctx context.Context, prefix string) ([]domain.ObjectInfo, error) {
	var objects []domain.ObjectInfo
	err := filepath.WalkDir(s.baseDir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if d.IsDir() {
			return nil
		}

		rel, err := filepath.Rel(s.baseDir, path)
		if err != nil {
			return err
		}
		key := filepath.ToSlash(rel)
		if !strings.HasPrefix(key, prefix) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return err
		}
		objects = append(objects, domain.ObjectInfo{
			Key:          key,
			Size:         info.Size(),
			LastModified: info.ModTime(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("storage: failed to list %q: %w", prefix, err)
	}

	sort.Slice(objects, func(i, j int) bool { return objects[i].Key < objects[j].Key })
	return objects, nil
}

// Delete removes the object at key. A missing object is not an error.
func (s *LocalStore) Delete(ctx context.Context, key string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	path, err := s.resolve(key)
	if err != nil {
		return err
	}
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			s.logger.Warn("delete of missing object", "key", key)
			return nil
		}
		return fmt.Errorf("storage: failed to delete %s: %w", key, err)
	}
	return nil
}

// resolve maps key to a path and rejects keys escaping the base directory
func (s *LocalStore) resolve(key string) (string, error) {
	if key == "" {
		return "", errors.New("storage: empty object key")
	}
	base, err := filepath.Abs(s.baseDir)
	if err != nil {
		return "", fmt.Errorf("storage: failed to resolve %s: %w", s.baseDir, err)
	}
	path := filepath.Join(base, filepath.FromSlash(key))
	if path != base && !strings.HasPrefix(path, base+string(filepath.Separator)) {
		return "", fmt.Errorf("storage: key %q escapes base directory", key)
	}
	return path, nil
}
