// Package server holds the wiring shared by the API binaries: backend
// connections with memory fallbacks, CORS, rate limiting, health probes
// and graceful shutdown.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fazilcanakbas/havacilaregitim/internal/config"
	"github.com/fazilcanakbas/havacilaregitim/internal/content"
	"github.com/fazilcanakbas/havacilaregitim/internal/content/service"
	"github.com/fazilcanakbas/havacilaregitim/internal/storage"
	"github.com/fazilcanakbas/havacilaregitim/pkg/logger"
	"github.com/fazilcanakbas/havacilaregitim/pkg/middleware"
)

var startTime = time.Now()

// ConnectRedis returns a pinged client, or nil when Redis is not configured
// or unreachable.
func ConnectRedis(ctx context.Context, cfg config.RedisConfig) *redis.Client {
	if cfg.Host == "" {
		return nil
	}
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Host + ":" + cfg.Port,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logger.Warnf("failed to connect to Redis (%s:%s): %v", cfg.Host, cfg.Port, err)
		_ = client.Close()
		return nil
	}
	logger.Infof("connected to Redis %s:%s", cfg.Host, cfg.Port)
	return client
}

// ContentServices builds one lifecycle manager per resource kind, on Mongo
// when db is set and in memory otherwise.
func ContentServices(ctx context.Context, cfg config.ContentConfig, db *mongo.Database, store storage.Store) ([]service.Service, error) {
	opts := service.Options{MaxImages: cfg.MaxImages, DefaultLimit: cfg.DefaultLimit, MaxLimit: cfg.MaxLimit}
	var out []service.Service
	for _, d := range content.All() {
		if db == nil {
			out = append(out, service.NewMemoryService(d, store, opts))
			continue
		}
		svc, err := service.NewMongoService(ctx, db, d, store, opts)
		if err != nil {
			return nil, fmt.Errorf("init %s: %w", d.Collection, err)
		}
		out = append(out, svc)
	}
	return out, nil
}

// CORS allows the configured origins; "*" or an empty list allows any origin.
func CORS(cfg config.CORSConfig) gin.HandlerFunc {
	cc := cors.Config{
		AllowMethods:     []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Content-Type", "Accept", "Authorization"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}
	allowed := map[string]bool{}
	for _, o := range cfg.AllowedOrigins {
		allowed[o] = true
	}
	if len(allowed) == 0 || allowed["*"] {
		cc.AllowOriginFunc = func(string) bool { return true }
	} else {
		cc.AllowOriginFunc = func(origin string) bool { return allowed[origin] }
	}
	return cors.New(cc)
}

// Limiter picks the Redis limiter when configured and available, the
// in-memory one otherwise.
func Limiter(cfg config.RateLimitConfig, rdb *redis.Client, name string, rps float64, burst int) gin.HandlerFunc {
	if cfg.UseRedis && rdb != nil {
		win := time.Duration(cfg.WindowSeconds) * time.Second
		return middleware.RedisRateLimitMiddleware(rdb, name, rps, burst, win)
	}
	return middleware.RateLimitMiddleware(name, rps, burst)
}

// Check reports whether one dependency is usable.
type Check func(ctx context.Context) error

// RegisterHealth mounts /health (liveness) and /ready, which runs every
// check and answers 503 when any fails.
func RegisterHealth(r gin.IRouter, checks map[string]Check) {
	r.GET("/health", func(c *gin.Context) {
		c.String(http.StatusOK, "healthy")
	})
	r.GET("/ready", func(c *gin.Context) {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		ready := true
		deps := map[string]bool{}
		for name, check := range checks {
			err := check(ctx)
			deps[name] = err == nil
			if err != nil {
				ready = false
				logger.Warnf("readiness: %s: %v", name, err)
			}
		}
		body := gin.H{"deps": deps, "uptime": time.Since(startTime).Round(time.Second).String()}
		if !ready {
			body["status"] = "not_ready"
			c.JSON(http.StatusServiceUnavailable, body)
			return
		}
		body["status"] = "ready"
		c.JSON(http.StatusOK, body)
	})
}

// Run serves h until SIGINT/SIGTERM, then drains in-flight requests.
func Run(cfg config.ServerConfig, h http.Handler) error {
	srv := &http.Server{
		Addr:         fmt.Sprintf("%s:%s", cfg.Host, cfg.Port),
		Handler:      h,
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() {
		logger.Infof("listening on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}
	logger.Infof("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
