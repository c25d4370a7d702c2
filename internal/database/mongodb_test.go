package database

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/fazilcanakbas/havacilaregitim/internal/config"
)

func TestConnect_Unreachable(t *testing.T) {
	cfg := config.MongoDBConfig{URI: "mongodb://127.0.0.1:1/?serverSelectionTimeoutMS=200", Timeout: 300 * time.Millisecond}
	_, err := Connect(context.Background(), cfg, 1)
	require.Error(t, err)
}

func TestConnect_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	cfg := config.MongoDBConfig{URI: "mongodb://127.0.0.1:1", Timeout: 100 * time.Millisecond}

	start := time.Now()
	_, err := Connect(ctx, cfg, 5)
	require.ErrorIs(t, err, context.Canceled)
	require.Less(t, time.Since(start), time.Second)
}
