// Package database opens the PostgreSQL connection and keeps the
// schema current.
package database

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"
)

// Connect opens a PostgreSQL pool and verifies it with a ping,
// retrying briefly so the service survives a database that is still
// starting up.
func Connect(url string) (*sql.DB, error) {
	db, err := sql.Open("postgres", url)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)

	var pingErr error
	for attempt := 0; attempt < 5; attempt++ {
		if pingErr = db.Ping(); pingErr == nil {
			return db, nil
		}
		time.Sleep(time.Duration(attempt+1) * time.Second)
	}
	db.Close()
	return nil, fmt.Errorf("failed to ping database: %w", pingErr)
}
