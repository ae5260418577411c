package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/archaur/archaur/internal/models"
)

// ArchitectureRepository reads the known-architecture registry.
type ArchitectureRepository struct {
	db *sql.DB
}

func NewArchitectureRepository(db *sql.DB) *ArchitectureRepository {
	return &ArchitectureRepository{db: db}
}

// ArchitectureExists reports whether the name is a registered
// architecture.
func (r *ArchitectureRepository) ArchitectureExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx,
		"SELECT EXISTS (SELECT 1 FROM architectures WHERE name = $1)", name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("failed to check architecture %s: %w", name, err)
	}
	return exists, nil
}

// List returns all registered architectures.
func (r *ArchitectureRepository) List(ctx context.Context) ([]models.Architecture, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name FROM architectures ORDER BY name")
	if err != nil {
		return nil, fmt.Errorf("failed to list architectures: %w", err)
	}
	defer rows.Close()

	var out []models.Architecture
	for rows.Next() {
		var a models.Architecture
		if err := rows.Scan(&a.ID, &a.Name); err != nil {
			return nil, fmt.Errorf("failed to scan architecture: %w", err)
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

// ListRepositories returns the fixed repository enumeration.
func (r *ArchitectureRepository) ListRepositories(ctx context.Context) ([]models.Repository, error) {
	rows, err := r.db.QueryContext(ctx, "SELECT id, name FROM repositories ORDER BY id")
	if err != nil {
		return nil, fmt.Errorf("failed to list repositories: %w", err)
	}
	defer rows.Close()

	var out []models.Repository
	for rows.Next() {
		var rep models.Repository
		if err := rows.Scan(&rep.ID, &rep.Name); err != nil {
			return nil, fmt.Errorf("failed to scan repository: %w", err)
		}
		out = append(out, rep)
	}
	return out, rows.Err()
}
