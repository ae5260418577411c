package database

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/archaur/archaur/internal/logger"
)

// migrationLockID serializes schema migrations across instances.
const migrationLockID = 874662001

var schema = []string{
	`CREATE EXTENSION IF NOT EXISTS "uuid-ossp"`,

	`CREATE TABLE IF NOT EXISTS repositories (
		id   SERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,

	`CREATE TABLE IF NOT EXISTS architectures (
		id   SERIAL PRIMARY KEY,
		name TEXT NOT NULL UNIQUE
	)`,

	`CREATE TABLE IF NOT EXISTS users (
		id            UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		username      TEXT NOT NULL UNIQUE,
		email         TEXT NOT NULL,
		password_hash TEXT NOT NULL DEFAULT '',
		created_at    TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS packages (
		id            UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		name          TEXT NOT NULL UNIQUE,
		version       TEXT NOT NULL,
		release       TEXT NOT NULL,
		epoch         TEXT NOT NULL DEFAULT '',
		description   TEXT NOT NULL,
		url           TEXT NOT NULL DEFAULT '',
		repository_id INT NOT NULL REFERENCES repositories(id),
		tarball       TEXT NOT NULL DEFAULT '',
		outdated      BOOLEAN NOT NULL DEFAULT FALSE,
		licenses      TEXT[] NOT NULL DEFAULT '{}',
		architectures TEXT[] NOT NULL DEFAULT '{}',
		"groups"      TEXT[] NOT NULL DEFAULT '{}',
		provides      TEXT[] NOT NULL DEFAULT '{}',
		conflicts     TEXT[] NOT NULL DEFAULT '{}',
		replaces      TEXT[] NOT NULL DEFAULT '{}',
		depends       TEXT[] NOT NULL DEFAULT '{}',
		makedepends   TEXT[] NOT NULL DEFAULT '{}',
		added         TIMESTAMPTZ NOT NULL DEFAULT now(),
		updated       TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_packages_repository ON packages(repository_id)`,
	`CREATE INDEX IF NOT EXISTS idx_packages_updated ON packages(updated DESC)`,

	`CREATE TABLE IF NOT EXISTS package_maintainers (
		package_id UUID NOT NULL REFERENCES packages(id) ON DELETE CASCADE,
		user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		PRIMARY KEY (package_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS package_files (
		id         UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		package_id UUID NOT NULL REFERENCES packages(id) ON DELETE CASCADE,
		filename   TEXT NOT NULL,
		blob_path  TEXT NOT NULL DEFAULT '',
		url        TEXT NOT NULL DEFAULT '',
		size       BIGINT NOT NULL DEFAULT 0,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE INDEX IF NOT EXISTS idx_package_files_package ON package_files(package_id)`,

	`CREATE TABLE IF NOT EXISTS package_hashes (
		id        UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		file_id   UUID NOT NULL REFERENCES package_files(id) ON DELETE CASCADE,
		algorithm TEXT NOT NULL,
		digest    TEXT NOT NULL
	)`,

	`CREATE INDEX IF NOT EXISTS idx_package_hashes_file ON package_hashes(file_id)`,

	`CREATE TABLE IF NOT EXISTS comments (
		id         UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		package_id UUID NOT NULL REFERENCES packages(id) ON DELETE CASCADE,
		user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		body       TEXT NOT NULL,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now()
	)`,

	`CREATE TABLE IF NOT EXISTS notifications (
		id         UUID PRIMARY KEY DEFAULT uuid_generate_v4(),
		package_id UUID NOT NULL REFERENCES packages(id) ON DELETE CASCADE,
		user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		UNIQUE (package_id, user_id)
	)`,

	`CREATE TABLE IF NOT EXISTS votes (
		package_id UUID NOT NULL REFERENCES packages(id) ON DELETE CASCADE,
		user_id    UUID NOT NULL REFERENCES users(id) ON DELETE CASCADE,
		created_at TIMESTAMPTZ NOT NULL DEFAULT now(),
		PRIMARY KEY (package_id, user_id)
	)`,
}

var seeds = []string{
	`INSERT INTO repositories (name) VALUES
		('core'), ('extra'), ('community'), ('unsupported')
	ON CONFLICT (name) DO NOTHING`,

	`INSERT INTO architectures (name) VALUES
		('i686'), ('x86_64'), ('any')
	ON CONFLICT (name) DO NOTHING`,
}

// RunMigrations creates the schema and seed rows. It is safe to run on
// every startup and across concurrent instances.
func RunMigrations(db *sql.DB, log *logger.Logger) error {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	if _, err := db.ExecContext(ctx, "SELECT pg_advisory_lock($1)", migrationLockID); err != nil {
		return fmt.Errorf("failed to acquire migration lock: %w", err)
	}
	defer func() {
		if _, err := db.Exec("SELECT pg_advisory_unlock($1)", migrationLockID); err != nil {
			log.Warnf("failed to release migration lock: %v", err)
		}
	}()

	for _, stmt := range schema {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to run migration: %w", err)
		}
	}
	for _, stmt := range seeds {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to seed data: %w", err)
		}
	}

	log.Info("database schema is up to date")
	return nil
}
