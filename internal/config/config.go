package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds application configuration
type Config struct {
	Server    ServerConfig
	MongoDB   MongoDBConfig
	Redis     RedisConfig
	Keycloak  KeycloakConfig
	Admin     AdminConfig
	JWT       JWTConfig
	RateLimit RateLimitConfig
	Storage   StorageConfig
	Upload    UploadConfig
	Content   ContentConfig
	CORS      CORSConfig
	Log       LogConfig
}

type ServerConfig struct {
	Port         string
	Host         string
	Environment  string
	ReadTimeout  time.Duration
	WriteTimeout time.Duration
}

type MongoDBConfig struct {
	URI      string
	Database string
	Timeout  time.Duration
}

type RedisConfig struct {
	Host     string
	Port     string
	Password string
	DB       int
}

type KeycloakConfig struct {
	URL          string
	Realm        string
	ClientID     string
	ClientSecret string
}

// Issuer returns the realm issuer URL, or "" when Keycloak is not configured.
func (k KeycloakConfig) Issuer() string {
	if k.URL == "" || k.Realm == "" {
		return ""
	}
	return strings.TrimRight(k.URL, "/") + "/realms/" + k.Realm
}

// AdminConfig seeds one admin account at startup when Email is set.
type AdminConfig struct {
	Email    string
	Name     string
	Password string
}

type JWTConfig struct {
	Secret          string
	AccessTokenTTL  time.Duration
	RefreshTokenTTL time.Duration
}

type RateLimitConfig struct {
	Enabled       bool
	UseRedis      bool
	RPS           float64
	Burst         int
	WindowSeconds int
	// public contact form gets its own, stricter bucket
	MessagesRPS   float64
	MessagesBurst int
}

type StorageConfig struct {
	Driver       string // local | minio
	LocalDir     string
	PublicPrefix string
	MinIO        MinIOConfig
}

type MinIOConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	UseSSL    bool
	Bucket    string
}

type UploadConfig struct {
	MaxFileSize  int64
	AllowedTypes []string
}

type ContentConfig struct {
	MaxImages    int
	DefaultLimit int
	MaxLimit     int
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// LoadConfig loads configuration from environment variables and .env file
func LoadConfig() (*Config, error) {
	_ = godotenv.Load(".env")

	v := viper.New()
	v.AutomaticEnv()

	v.SetDefault("SERVER_PORT", "5000")
	v.SetDefault("SERVER_HOST", "0.0.0.0")
	v.SetDefault("SERVER_ENVIRONMENT", "development")
	v.SetDefault("MONGODB_DATABASE", "havacilik")
	v.SetDefault("MONGODB_TIMEOUT", 10)
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("JWT_ACCESS_TOKEN_TTL", 15)
	v.SetDefault("JWT_REFRESH_TOKEN_TTL", 10080)
	v.SetDefault("RATE_LIMIT_ENABLED", false)
	v.SetDefault("RATE_LIMIT_USE_REDIS", false)
	v.SetDefault("RATE_LIMIT_RPS", 20)
	v.SetDefault("RATE_LIMIT_BURST", 40)
	v.SetDefault("RATE_LIMIT_WINDOW_SECONDS", 60)
	v.SetDefault("RATE_LIMIT_MESSAGES_RPS", 0.05)
	v.SetDefault("RATE_LIMIT_MESSAGES_BURST", 3)
	v.SetDefault("STORAGE_DRIVER", "local")
	v.SetDefault("STORAGE_LOCAL_DIR", "uploads")
	v.SetDefault("STORAGE_PUBLIC_PREFIX", "/uploads")
	v.SetDefault("MINIO_BUCKET", "havacilik")
	v.SetDefault("UPLOAD_MAX_FILE_MB", 5)
	v.SetDefault("UPLOAD_ALLOWED_TYPES", "image/jpeg,image/png,image/webp,image/gif")
	v.SetDefault("CONTENT_MAX_IMAGES", 3)
	v.SetDefault("CONTENT_DEFAULT_LIMIT", 20)
	v.SetDefault("CONTENT_MAX_LIMIT", 100)
	v.SetDefault("CORS_ALLOWED_ORIGINS", "*")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "console")
	v.SetDefault("ADMIN_NAME", "Admin")

	cfg := &Config{
		Server: ServerConfig{
			Port:         v.GetString("SERVER_PORT"),
			Host:         v.GetString("SERVER_HOST"),
			Environment:  v.GetString("SERVER_ENVIRONMENT"),
			ReadTimeout:  30 * time.Second,
			WriteTimeout: 30 * time.Second,
		},
		MongoDB: MongoDBConfig{
			URI:      v.GetString("MONGODB_URI"),
			Database: v.GetString("MONGODB_DATABASE"),
			Timeout:  time.Duration(v.GetInt("MONGODB_TIMEOUT")) * time.Second,
		},
		Redis: RedisConfig{
			Host:     v.GetString("REDIS_HOST"),
			Port:     v.GetString("REDIS_PORT"),
			Password: os.Getenv("REDIS_PASSWORD"),
			DB:       v.GetInt("REDIS_DB"),
		},
		Keycloak: KeycloakConfig{
			URL:          v.GetString("KEYCLOAK_URL"),
			Realm:        v.GetString("KEYCLOAK_REALM"),
			ClientID:     v.GetString("KEYCLOAK_CLIENT_ID"),
			ClientSecret: v.GetString("KEYCLOAK_CLIENT_SECRET"),
		},
		Admin: AdminConfig{
			Email:    v.GetString("ADMIN_EMAIL"),
			Name:     v.GetString("ADMIN_NAME"),
			Password: os.Getenv("ADMIN_PASSWORD"),
		},
		JWT: JWTConfig{
			Secret:          os.Getenv("JWT_SECRET"),
			AccessTokenTTL:  time.Duration(v.GetInt("JWT_ACCESS_TOKEN_TTL")) * time.Minute,
			RefreshTokenTTL: time.Duration(v.GetInt("JWT_REFRESH_TOKEN_TTL")) * time.Minute,
		},
		RateLimit: RateLimitConfig{
			Enabled:       v.GetBool("RATE_LIMIT_ENABLED"),
			UseRedis:      v.GetBool("RATE_LIMIT_USE_REDIS"),
			RPS:           v.GetFloat64("RATE_LIMIT_RPS"),
			Burst:         v.GetInt("RATE_LIMIT_BURST"),
			WindowSeconds: v.GetInt("RATE_LIMIT_WINDOW_SECONDS"),
			MessagesRPS:   v.GetFloat64("RATE_LIMIT_MESSAGES_RPS"),
			MessagesBurst: v.GetInt("RATE_LIMIT_MESSAGES_BURST"),
		},
		Storage: StorageConfig{
			Driver:       strings.ToLower(v.GetString("STORAGE_DRIVER")),
			LocalDir:     v.GetString("STORAGE_LOCAL_DIR"),
			PublicPrefix: v.GetString("STORAGE_PUBLIC_PREFIX"),
			MinIO: MinIOConfig{
				Endpoint:  v.GetString("MINIO_ENDPOINT"),
				AccessKey: v.GetString("MINIO_ACCESS_KEY"),
				SecretKey: os.Getenv("MINIO_SECRET_KEY"),
				UseSSL:    v.GetBool("MINIO_USE_SSL"),
				Bucket:    v.GetString("MINIO_BUCKET"),
			},
		},
		Upload: UploadConfig{
			MaxFileSize:  int64(v.GetInt("UPLOAD_MAX_FILE_MB")) * 1024 * 1024,
			AllowedTypes: splitList(v.GetString("UPLOAD_ALLOWED_TYPES")),
		},
		Content: ContentConfig{
			MaxImages:    v.GetInt("CONTENT_MAX_IMAGES"),
			DefaultLimit: v.GetInt("CONTENT_DEFAULT_LIMIT"),
			MaxLimit:     v.GetInt("CONTENT_MAX_LIMIT"),
		},
		CORS: CORSConfig{
			AllowedOrigins: splitList(v.GetString("CORS_ALLOWED_ORIGINS")),
		},
		Log: LogConfig{
			Level:  v.GetString("LOG_LEVEL"),
			Format: v.GetString("LOG_FORMAT"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	switch c.Storage.Driver {
	case "local", "minio":
	default:
		return fmt.Errorf("unsupported STORAGE_DRIVER %q (want local or minio)", c.Storage.Driver)
	}
	if c.Storage.Driver == "minio" && c.Storage.MinIO.Endpoint == "" {
		return fmt.Errorf("MINIO_ENDPOINT is required when STORAGE_DRIVER=minio")
	}
	if c.Admin.Email != "" && c.Admin.Password == "" {
		return fmt.Errorf("ADMIN_PASSWORD is required when ADMIN_EMAIL is set")
	}
	if c.Content.MaxImages < 1 {
		return fmt.Errorf("CONTENT_MAX_IMAGES must be at least 1")
	}
	if c.Content.MaxLimit < c.Content.DefaultLimit {
		c.Content.MaxLimit = c.Content.DefaultLimit
	}
	return nil
}

func splitList(raw string) []string {
	var out []string
	for _, p := range strings.Split(raw, ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
