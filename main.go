package main

import (
	"context"
	"crypto/rand"
	"encoding/hex"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"

	"github.com/fazilcanakbas/havacilaregitim/handlers"
	"github.com/fazilcanakbas/havacilaregitim/internal/config"
	"github.com/fazilcanakbas/havacilaregitim/internal/contactinfo"
	"github.com/fazilcanakbas/havacilaregitim/internal/content"
	contenthandler "github.com/fazilcanakbas/havacilaregitim/internal/content/handler"
	"github.com/fazilcanakbas/havacilaregitim/internal/database"
	"github.com/fazilcanakbas/havacilaregitim/internal/messages"
	"github.com/fazilcanakbas/havacilaregitim/internal/oidc"
	"github.com/fazilcanakbas/havacilaregitim/internal/server"
	"github.com/fazilcanakbas/havacilaregitim/internal/sessions"
	"github.com/fazilcanakbas/havacilaregitim/internal/storage"
	"github.com/fazilcanakbas/havacilaregitim/internal/tokens"
	"github.com/fazilcanakbas/havacilaregitim/internal/upload"
	"github.com/fazilcanakbas/havacilaregitim/internal/users"
	"github.com/fazilcanakbas/havacilaregitim/pkg/logger"
	"github.com/fazilcanakbas/havacilaregitim/pkg/metrics"
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
	logger.Infof("config loaded: env=%s keycloak=%v mongo=%v redis=%v storage=%s",
		cfg.Server.Environment, cfg.Keycloak.Issuer() != "", cfg.MongoDB.URI != "", cfg.Redis.Host != "", cfg.Storage.Driver)

	if cfg.Server.Environment == "production" {
		gin.SetMode(gin.ReleaseMode)
	}
	ctx := context.Background()

	if cfg.JWT.Secret == "" {
		if cfg.Server.Environment == "production" {
			logger.Fatalf("JWT_SECRET is required in production")
		}
		cfg.JWT.Secret = randomSecret()
		logger.Warnf("JWT_SECRET not set; using a random secret, tokens will not survive a restart")
	}

	r := gin.New()
	r.Use(middleware.RequestLogger(), gin.Recovery(), server.CORS(cfg.CORS))
	r.MaxMultipartMemory = cfg.Upload.MaxFileSize * int64(cfg.Content.MaxImages+1)

	checks := map[string]server.Check{}

	// Redis backs sessions, the token blacklist and the shared rate limiter.
	rdb := server.ConnectRedis(ctx, cfg.Redis)
	blacklist := sessions.NewBlacklist(rdb)
	if rdb != nil {
		defer rdb.Close()
		checks["redis"] = func(ctx context.Context) error { return rdb.Ping(ctx).Err() }
	}
	if cfg.RateLimit.Enabled {
		r.Use(server.Limiter(cfg.RateLimit, rdb, "global", cfg.RateLimit.RPS, cfg.RateLimit.Burst))
	}

	var db *mongo.Database
	if cfg.MongoDB.URI != "" {
		client, err := database.Connect(ctx, cfg.MongoDB, 5)
		if err != nil {
			logger.Warnf("could not connect to MongoDB: %v; falling back to in-memory repositories", err)
		} else {
			defer func() { _ = client.Disconnect(context.Background()) }()
			db = client.Database(cfg.MongoDB.Database)
			checks["mongo"] = func(ctx context.Context) error { return client.Ping(ctx, nil) }
		}
	} else {
		logger.Warnf("MONGODB_URI not set; content is kept in memory and lost on restart")
	}

	store, err := storage.New(ctx, cfg.Storage)
	if err != nil {
		logger.Fatalf("failed to initialize storage: %v", err)
	}
	if p, ok := store.(interface{ Ping(context.Context) error }); ok {
		checks["storage"] = p.Ping
	}

	userSvc, sessionsSvc, err := authServices(ctx, db, rdb)
	if err != nil {
		logger.Fatalf("failed to initialize auth services: %v", err)
	}
	if cfg.Admin.Email != "" {
		if _, err := userSvc.EnsureAdmin(ctx, cfg.Admin.Email, cfg.Admin.Name, cfg.Admin.Password); err != nil {
			logger.Fatalf("failed to bootstrap admin %s: %v", cfg.Admin.Email, err)
		}
	} else if db == nil {
		logger.Warnf("no admin account: set ADMIN_EMAIL/ADMIN_PASSWORD or create one with cmd/admin against MongoDB")
	}

	// Locally issued tokens always verify; Keycloak tokens too when configured.
	jwtVerifier, err := tokens.NewVerifier(cfg.JWT.Secret)
	if err != nil {
		logger.Fatalf("failed to initialize token verifier: %v", err)
	}
	verifier := middleware.Verifiers{jwtVerifier}
	if cfg.Keycloak.Issuer() != "" {
		kc, err := oidc.NewVerifier(ctx, cfg.Keycloak)
		if err != nil {
			logger.Warnf("failed to initialize OIDC verifier: %v", err)
			checks["oidc"] = func(context.Context) error { return err }
		} else {
			verifier = append(verifier, kc)
		}
	}
	auth := middleware.AuthMiddleware(verifier, blacklist)
	strict := server.Limiter(cfg.RateLimit, rdb, "messages", cfg.RateLimit.MessagesRPS, cfg.RateLimit.MessagesBurst)

	server.RegisterHealth(r, checks)
	metrics.RegisterCollectors(prometheus.DefaultRegisterer)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
	handlers.RegisterSwagger(r, content.All())

	h := handlers.NewAuthHandler(cfg, userSvc, sessionsSvc, blacklist)
	h.Register(r, server.Limiter(cfg.RateLimit, rdb, "login", 0.2, 5))
	h.RegisterMe(r, auth)

	contentSvcs, err := server.ContentServices(ctx, cfg.Content, db, store)
	if err != nil {
		logger.Fatalf("failed to initialize content services: %v", err)
	}
	uploads := upload.New(store, cfg.Upload)
	for _, svc := range contentSvcs {
		contenthandler.RegisterContentRoutes(r, svc, uploads, auth)
	}
	handlers.RegisterFiles(r, cfg.Storage.PublicPrefix, store)

	var contactRepo contactinfo.Repository = contactinfo.NewMemoryRepository()
	var messageRepo messages.Repository = messages.NewMemoryRepository()
	if db != nil {
		contactRepo = contactinfo.NewMongoRepository(db.Collection(contactinfo.Descriptor.Collection))
		msgRepo, err := messages.NewMongoRepository(ctx, db.Collection("messages"))
		if err != nil {
			logger.Fatalf("failed to initialize messages repository: %v", err)
		}
		messageRepo = msgRepo
	}
	contactinfo.RegisterRoutes(r, contactinfo.NewService(contactRepo), auth)
	messages.RegisterRoutes(r, messages.NewService(messageRepo, cfg.Content.DefaultLimit, cfg.Content.MaxLimit), auth, strict)

	if err := server.Run(cfg.Server, r); err != nil {
		logger.Fatalf("server failed: %v", err)
	}
}

// authServices prefers Redis for refresh sessions, then Mongo, then memory.
func authServices(ctx context.Context, db *mongo.Database, rdb *redis.Client) (*users.Service, *sessions.Service, error) {
	var userRepo users.UserRepository = users.NewMemoryUserRepository()
	var sessRepo sessions.Repository = sessions.NewMemoryRepository()
	if db != nil {
		ur, err := users.NewMongoUserRepository(ctx, db.Collection("users"))
		if err != nil {
			return nil, nil, err
		}
		userRepo = ur
		sr, err := sessions.NewMongoRepository(ctx, db.Collection("sessions"))
		if err != nil {
			return nil, nil, err
		}
		sessRepo = sr
	}
	if rdb != nil {
		sessRepo = sessions.NewRedisRepository(rdb, "")
		logger.Infof("using Redis for session storage")
	}
	return users.NewService(userRepo), sessions.NewService(sessRepo), nil
}

func randomSecret() string {
	b := make([]byte, 32)
	_, _ = rand.Read(b)
	return hex.EncodeToString(b)
}
