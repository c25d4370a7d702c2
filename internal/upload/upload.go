// Package upload validates multipart image files and writes them to storage
// before the lifecycle manager sees their paths.
package upload

import (
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"strings"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/fazilcanakbas/havacilaregitim/internal/config"
	"github.com/fazilcanakbas/havacilaregitim/internal/content"
	"github.com/fazilcanakbas/havacilaregitim/internal/storage"
	"github.com/fazilcanakbas/havacilaregitim/pkg/logger"
	"github.com/fazilcanakbas/havacilaregitim/pkg/metrics"
)

const field = "images"

type Service struct {
	store   storage.Store
	maxSize int64
	allowed map[string]bool
	newName func() string
}

func New(store storage.Store, cfg config.UploadConfig) *Service {
	allowed := make(map[string]bool, len(cfg.AllowedTypes))
	for _, t := range cfg.AllowedTypes {
		allowed[strings.ToLower(strings.TrimSpace(t))] = true
	}
	return &Service{store: store, maxSize: cfg.MaxFileSize, allowed: allowed, newName: uuid.NewString}
}

// SaveAll stores every file under <collection>/<uuid><ext> and returns their
// public paths in upload order. On any failure the files written by this call
// are removed and nothing is returned.
func (s *Service) SaveAll(ctx context.Context, collection string, files []*multipart.FileHeader) ([]string, error) {
	paths := make([]string, 0, len(files))
	for _, fh := range files {
		p, err := s.save(ctx, collection, fh)
		if err != nil {
			s.Discard(ctx, paths)
			return nil, err
		}
		paths = append(paths, p)
	}
	return paths, nil
}

func (s *Service) save(ctx context.Context, collection string, fh *multipart.FileHeader) (string, error) {
	if s.maxSize > 0 && fh.Size > s.maxSize {
		metrics.UploadsRejected.WithLabelValues("size").Inc()
		return "", content.Invalid(field, "%s exceeds %dMB", fh.Filename, s.maxSize/(1024*1024))
	}
	f, err := fh.Open()
	if err != nil {
		return "", &content.StorageError{Op: "read", Path: fh.Filename, Err: err}
	}
	defer f.Close()

	mt, err := mimetype.DetectReader(f)
	if err != nil {
		return "", &content.StorageError{Op: "read", Path: fh.Filename, Err: err}
	}
	if len(s.allowed) > 0 && !s.allowed[mt.String()] {
		metrics.UploadsRejected.WithLabelValues("type").Inc()
		return "", content.Invalid(field, "%s: file type %s is not allowed", fh.Filename, mt.String())
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return "", &content.StorageError{Op: "read", Path: fh.Filename, Err: err}
	}

	key := fmt.Sprintf("%s/%s%s", collection, s.newName(), mt.Extension())
	p, err := s.store.Put(ctx, key, f, fh.Size, mt.String())
	if err != nil {
		return "", &content.StorageError{Op: "write", Path: key, Err: err}
	}
	logger.Debugf("upload: stored %s as %s (%s, %d bytes)", fh.Filename, p, mt.String(), fh.Size)
	return p, nil
}

// Discard removes stored paths best-effort.
func (s *Service) Discard(ctx context.Context, paths []string) {
	for _, p := range paths {
		if err := s.store.Delete(ctx, p); err != nil {
			logger.Warnf("upload: discard %s: %v", p, err)
		}
	}
}
