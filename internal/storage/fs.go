package storage

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"mime"
	"path"

	"github.com/spf13/afero"
)

// FSStorage stores objects on an afero filesystem: the OS disk under a root
// directory in production, an in-memory filesystem in tests.
type FSStorage struct {
	fs     afero.Fs
	prefix prefix
}

// NewLocalStorage stores files below dir.
func NewLocalStorage(dir, publicPrefix string) (*FSStorage, error) {
	if err := afero.NewOsFs().MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create storage dir %s: %w", dir, err)
	}
	return &FSStorage{fs: afero.NewBasePathFs(afero.NewOsFs(), dir), prefix: newPrefix(publicPrefix)}, nil
}

// NewMemoryStorage keeps files in memory.
func NewMemoryStorage(publicPrefix string) *FSStorage {
	return &FSStorage{fs: afero.NewMemMapFs(), prefix: newPrefix(publicPrefix)}
}

func (s *FSStorage) Put(_ context.Context, key string, r io.Reader, _ int64, _ string) (string, error) {
	key, err := CleanKey(key)
	if err != nil {
		return "", err
	}
	if err := s.fs.MkdirAll(path.Dir("/"+key), 0o755); err != nil {
		return "", err
	}
	f, err := s.fs.Create("/" + key)
	if err != nil {
		return "", err
	}
	if _, err := io.Copy(f, r); err != nil {
		f.Close()
		_ = s.fs.Remove("/" + key)
		return "", err
	}
	if err := f.Close(); err != nil {
		return "", err
	}
	return s.prefix.path(key), nil
}

func (s *FSStorage) Open(_ context.Context, key string) (io.ReadCloser, Object, error) {
	key, err := CleanKey(key)
	if err != nil {
		return nil, Object{}, err
	}
	info, err := s.fs.Stat("/" + key)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, Object{}, ErrNotFound
		}
		return nil, Object{}, err
	}
	if info.IsDir() {
		return nil, Object{}, ErrNotFound
	}
	f, err := s.fs.Open("/" + key)
	if err != nil {
		return nil, Object{}, err
	}
	obj := Object{
		ContentType: mime.TypeByExtension(path.Ext(key)),
		Size:        info.Size(),
		ModTime:     info.ModTime(),
	}
	if obj.ContentType == "" {
		obj.ContentType = "application/octet-stream"
	}
	return f, obj, nil
}

func (s *FSStorage) Delete(_ context.Context, publicPath string) error {
	key, err := s.prefix.key(publicPath)
	if err != nil {
		return err
	}
	if err := s.fs.Remove("/" + key); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return err
	}
	return nil
}

func (s *FSStorage) Exists(_ context.Context, publicPath string) (bool, error) {
	key, err := s.prefix.key(publicPath)
	if err != nil {
		return false, nil
	}
	ok, err := afero.Exists(s.fs, "/"+key)
	if err != nil {
		return false, err
	}
	return ok, nil
}
