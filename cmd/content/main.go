// Command content runs only the public content API (blogs, announcements,
// services) plus the uploaded file routes. Writes still require a token
// signed with JWT_SECRET by the main API.
package main

import (
	"context"
	"os"

	"github.com/gin-gonic/gin"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fazilcanakbas/havacilaregitim/handlers"
	"github.com/fazilcanakbas/havacilaregitim/internal/config"
	contenthandler "github.com/fazilcanakbas/havacilaregitim/internal/content/handler"
	"github.com/fazilcanakbas/havacilaregitim/internal/database"
	"github.com/fazilcanakbas/havacilaregitim/internal/server"
	"github.com/fazilcanakbas/havacilaregitim/internal/sessions"
	"github.com/fazilcanakbas/havacilaregitim/internal/storage"
	"github.com/fazilcanakbas/havacilaregitim/internal/tokens"
	"github.com/fazilcanakbas/havacilaregitim/internal/upload"
	"github.com/fazilcanakbas/havacilaregitim/pkg/logger"
	"github.com/fazilcanakbas/havacilaregitim/pkg/middleware"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		logger.Fatalf("failed to load config: %v", err)
	}
	logger.Init(cfg.Log.Level)
	logger.SetFormat(cfg.Log.Format)
	defer logger.Sync()

	if port := os.Getenv("CONTENT_SERVICE_PORT"); port != "" {
		cfg.Server.Port = port
	}
	if cfg.JWT.Secret == "" {
		logger.Fatalf("JWT_SECRET is required; the content service only verifies tokens issued by the main API")
	}
	ctx := context.Background()

	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery(), server.CORS(cfg.CORS))
	r.MaxMultipartMemory = cfg.Upload.MaxFileSize * int64(cfg.Content.MaxImages+1)

	checks := map[string]server.Check{}
	var db *mongo.Database
	if cfg.MongoDB.URI != "" {
		client, err := database.Connect(ctx, cfg.MongoDB, 3)
		if err != nil {
			logger.Warnf("cannot connect to MongoDB (%v); using memory-backed repositories", err)
		} else {
			defer func() { _ = client.Disconnect(context.Background()) }()
			db = client.Database(cfg.MongoDB.Database)
			checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
		}
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatalf("failed to initialize storage: %v", err)
	}
	svcs, err := server.ContentServices(ctx, cfg.Content, db, store)
	if err != nil {
		logger.Fatalf("failed to initialize content services: %v", err)
	}
	verifier, err := tokens.NewVerifier(cfg.JWT.Secret)
	if err != nil {
		logger.Fatalf("failed to initialize token verifier: %v", err)
	}
	// logouts recorded by the main API apply here too when both share Redis
	rdb := server.ConnectRedis(ctx, cfg.Redis)
	if rdb != nil {
		defer rdb.Close()
	}
	auth := middleware.AuthMiddleware(verifier, sessions.NewBlacklist(rdb))

	server.RegisterHealth(r, checks)
	uploads := upload.New(store, cfg.Upload)
	for _, svc := range svcs {
		contenthandler.RegisterContentRoutes(r, svc, uploads, auth)
	}
	handlers.RegisterFiles(r, cfg.Storage.PublicPrefix, store)

	if err := server.Run(cfg.Server, r); err != nil {
		logger.Fatalf("content service failed: %v", err)
	}
}
