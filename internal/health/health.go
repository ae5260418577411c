// Package health aggregates liveness information for the service's
// dependencies: database, cache and blob storage.
package health

import (
	"context"
	"database/sql"
	"os"
	"sync"
	"time"
)

// Status is the overall health report.
type Status struct {
	Timestamp    time.Time       `json:"timestamp"`
	Overall      string          `json:"overall"` // healthy, degraded, unhealthy
	Database     ComponentHealth `json:"database"`
	Cache        ComponentHealth `json:"cache"`
	Storage      ComponentHealth `json:"storage"`
	ResponseTime string          `json:"response_time"`
}

// ComponentHealth reports one dependency.
type ComponentHealth struct {
	Status  string `json:"status"`
	Message string `json:"message,omitempty"`
}

// Pinger covers the cache client; a nil Pinger means no cache is
// configured, which is healthy by definition.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Checker runs the dependency probes.
type Checker struct {
	db          *sql.DB
	cache       Pinger
	storagePath string
}

func NewChecker(db *sql.DB, cache Pinger, storagePath string) *Checker {
	return &Checker{db: db, cache: cache, storagePath: storagePath}
}

// Check probes all dependencies concurrently.
func (c *Checker) Check(ctx context.Context) *Status {
	start := time.Now()
	status := &Status{Timestamp: start}

	var wg sync.WaitGroup
	wg.Add(3)
	go func() {
		defer wg.Done()
		status.Database = c.checkDatabase(ctx)
	}()
	go func() {
		defer wg.Done()
		status.Cache = c.checkCache(ctx)
	}()
	go func() {
		defer wg.Done()
		status.Storage = c.checkStorage()
	}()
	wg.Wait()

	status.Overall = overall(status.Database, status.Cache, status.Storage)
	status.ResponseTime = time.Since(start).String()
	return status
}

func (c *Checker) checkDatabase(ctx context.Context) ComponentHealth {
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.db.PingContext(ctx); err != nil {
		return ComponentHealth{Status: "unhealthy", Message: err.Error()}
	}
	return ComponentHealth{Status: "healthy"}
}

func (c *Checker) checkCache(ctx context.Context) ComponentHealth {
	if c.cache == nil {
		return ComponentHealth{Status: "healthy", Message: "cache not configured"}
	}
	ctx, cancel := context.WithTimeout(ctx, 2*time.Second)
	defer cancel()
	if err := c.cache.Ping(ctx); err != nil {
		return ComponentHealth{Status: "degraded", Message: err.Error()}
	}
	return ComponentHealth{Status: "healthy"}
}

func (c *Checker) checkStorage() ComponentHealth {
	info, err := os.Stat(c.storagePath)
	if err != nil || !info.IsDir() {
		return ComponentHealth{Status: "unhealthy", Message: "storage root unavailable"}
	}
	return ComponentHealth{Status: "healthy"}
}

// overall is unhealthy if any component is, degraded if any component
// is degraded, healthy otherwise. A degraded cache never takes the
// service down because reads fall through to the database.
func overall(components ...ComponentHealth) string {
	result := "healthy"
	for _, c := range components {
		switch c.Status {
		case "unhealthy":
			return "unhealthy"
		case "degraded":
			result = "degraded"
		}
	}
	return result
}
