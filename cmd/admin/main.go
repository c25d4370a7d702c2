// Command admin creates a back-office account in MongoDB.
//
//	go run ./cmd/admin -email ops@example.com -name "Ops"
//
// The password is read from ADMIN_PASSWORD unless -password is given.
package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/fazilcanakbas/havacilaregitim/internal/config"
	"github.com/fazilcanakbas/havacilaregitim/internal/database"
	"github.com/fazilcanakbas/havacilaregitim/internal/users"
	"github.com/fazilcanakbas/havacilaregitim/pkg/logger"
)

func main() {
	email := flag.String("email", "", "admin email (required)")
	name := flag.String("name", "Admin", "display name")
	password := flag.String("password", "", "password (defaults to $ADMIN_PASSWORD)")
	flag.Parse()

	if err := run(*email, *name, *password); err != nil {
		fmt.Fprintln(os.Stderr, "admin:", err)
		os.Exit(1)
	}
}

func run(email, name, password string) error {
	if email == "" {
		return errors.New("-email is required")
	}
	if password == "" {
		password = os.Getenv("ADMIN_PASSWORD")
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		return err
	}
	if cfg.MongoDB.URI == "" {
		return errors.New("MONGODB_URI is not set")
	}
	logger.Init(cfg.Log.Level)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	client, err := database.Connect(ctx, cfg.MongoDB, 3)
	if err != nil {
		return err
	}
	defer func() { _ = client.Disconnect(context.Background()) }()

	repo, err := users.NewMongoUserRepository(ctx, client.Database(cfg.MongoDB.Database).Collection("users"))
	if err != nil {
		return err
	}
	u, err := users.NewService(repo).CreateAdmin(ctx, email, name, password)
	if err != nil {
		return err
	}
	logger.Infof("created admin %s (%s)", u.Email, u.ID)
	return nil
}
