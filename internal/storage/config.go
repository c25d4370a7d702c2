package storage

import (
	"context"
	"fmt"

	"github.com/fazilcanakbas/havacilaregitim/internal/config"
)

// New builds the Store selected by STORAGE_DRIVER.
func New(ctx context.Context, cfg config.StorageConfig) (Store, error) {
	switch cfg.Driver {
	case "", "local":
		return NewLocalStorage(cfg.LocalDir, cfg.PublicPrefix)
	case "minio":
		return NewMinIOStorage(ctx, cfg.MinIO, cfg.PublicPrefix)
	case "memory":
		return NewMemoryStorage(cfg.PublicPrefix), nil
	}
	return nil, fmt.Errorf("unknown storage driver %q", cfg.Driver)
}
