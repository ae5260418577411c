package main

import (
	"context"
	"os/signal"
	"syscall"

	"github.com/archaur/archaur/internal/api"
	"github.com/archaur/archaur/internal/cache"
	"github.com/archaur/archaur/internal/config"
	"github.com/archaur/archaur/internal/database"
	"github.com/archaur/archaur/internal/logger"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log := logger.NewWithLevel(cfg.LogLevel)

	db, err := database.Connect(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer db.Close()

	if err := database.RunMigrations(db, log); err != nil {
		log.Fatalf("failed to run migrations: %v", err)
	}

	// The cache is optional: without Redis, reads hit the database.
	var c *cache.Cache
	if cfg.RedisURL != "" {
		c, err = cache.New(cfg.RedisURL)
		if err != nil {
			log.Warnf("cache disabled: %v", err)
			c = nil
		} else {
			defer c.Close()
		}
	}

	server, err := api.New(cfg, db, c, log)
	if err != nil {
		log.Fatalf("failed to build server: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := server.Run(ctx); err != nil {
		log.Fatalf("server error: %v", err)
	}
	log.Info("shutdown complete")
}
