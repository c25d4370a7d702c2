package storage

import (
	"context"
	"errors"
	"io"
	"path"
	"strings"
	"time"
)

var (
	ErrNotFound = errors.New("object not found")
	// ErrInvalidPath is returned for keys that escape the storage root or
	// paths outside the public prefix.
	ErrInvalidPath = errors.New("invalid storage path")
)

// Object describes a stored file.
type Object struct {
	ContentType string
	Size        int64
	ModTime     time.Time
}

// Store keeps uploaded bytes. Put takes a key and returns the public path
// recorded on content; Delete and Exists take that path. Delete of a
// missing object is not an error.
type Store interface {
	Put(ctx context.Context, key string, r io.Reader, size int64, contentType string) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, Object, error)
	Delete(ctx context.Context, path string) error
	Exists(ctx context.Context, path string) (bool, error)
}

// CleanKey normalizes an object key and rejects traversal.
func CleanKey(key string) (string, error) {
	key = strings.TrimPrefix(strings.ReplaceAll(key, "\\", "/"), "/")
	if key == "" {
		return "", ErrInvalidPath
	}
	for _, part := range strings.Split(key, "/") {
		if part == ".." {
			return "", ErrInvalidPath
		}
	}
	cleaned := path.Clean(key)
	if cleaned == "." || strings.HasPrefix(cleaned, "../") {
		return "", ErrInvalidPath
	}
	return cleaned, nil
}

// prefix maps keys to public paths and back.
type prefix string

func newPrefix(p string) prefix {
	p = "/" + strings.Trim(p, "/")
	if p == "/" {
		p = ""
	}
	return prefix(p)
}

func (p prefix) path(key string) string { return string(p) + "/" + key }

func (p prefix) key(publicPath string) (string, error) {
	rest := strings.TrimPrefix(publicPath, string(p)+"/")
	if rest == publicPath && p != "" {
		return "", ErrInvalidPath
	}
	return CleanKey(rest)
}
