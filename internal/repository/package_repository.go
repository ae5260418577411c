// Package repository implements PostgreSQL persistence for packages
// and their related rows.
package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/archaur/archaur/internal/importer"
	"github.com/archaur/archaur/internal/models"
	"github.com/archaur/archaur/internal/pkgbuild"
)

// ErrPackageNotFound is returned when a lookup matches no package.
var ErrPackageNotFound = errors.New("package not found")

const (
	defaultSearchLimit = 50
	maxSearchLimit     = 250
)

type PackageRepository struct {
	db *sql.DB
}

func NewPackageRepository(db *sql.DB) *PackageRepository {
	return &PackageRepository{db: db}
}

const packageColumns = `p.id, p.name, p.version, p.release, p.epoch, p.description, p.url,
	r.name, p.tarball, p.outdated, p.licenses, p.architectures, p."groups",
	p.provides, p.conflicts, p.replaces, p.depends, p.makedepends, p.added, p.updated,
	(SELECT COUNT(*) FROM votes v WHERE v.package_id = p.id)`

func scanPackage(row interface{ Scan(...interface{}) error }) (*models.Package, error) {
	var p models.Package
	err := row.Scan(
		&p.ID, &p.Name, &p.Version, &p.Release, &p.Epoch, &p.Description, &p.URL,
		&p.Repository, &p.Tarball, &p.Outdated, &p.Licenses, &p.Architectures, &p.Groups,
		&p.Provides, &p.Conflicts, &p.Replaces, &p.Depends, &p.MakeDepends, &p.Added, &p.Updated,
		&p.Votes,
	)
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// Search returns the matching page of packages plus the total match
// count. Every filter field is optional.
func (r *PackageRepository) Search(ctx context.Context, f models.PackageFilter) ([]models.Package, int, error) {
	var (
		where []string
		args  []interface{}
	)
	arg := func(v interface{}) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.Query != "" {
		like := "%" + f.Query + "%"
		where = append(where, fmt.Sprintf("(p.name ILIKE %s OR p.description ILIKE %s)", arg(like), arg(like)))
	}
	if len(f.Repositories) > 0 {
		where = append(where, fmt.Sprintf("r.name = ANY(%s)", arg(pq.Array(f.Repositories))))
	}
	if len(f.Architectures) > 0 {
		where = append(where, fmt.Sprintf("p.architectures && %s", arg(pq.Array(f.Architectures))))
	}
	if f.Maintainer != "" {
		where = append(where, fmt.Sprintf(
			`EXISTS (SELECT 1 FROM package_maintainers pm
				JOIN users u ON u.id = pm.user_id
				WHERE pm.package_id = p.id AND u.username = %s)`, arg(f.Maintainer)))
	}
	if f.Outdated != nil {
		where = append(where, fmt.Sprintf("p.outdated = %s", arg(*f.Outdated)))
	}
	if !f.LastUpdate.IsZero() {
		where = append(where, fmt.Sprintf("p.updated >= %s", arg(f.LastUpdate)))
	}

	clause := ""
	if len(where) > 0 {
		clause = " WHERE " + strings.Join(where, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM packages p JOIN repositories r ON r.id = p.repository_id" + clause
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count packages: %w", err)
	}

	limit := f.Limit
	if limit <= 0 {
		limit = defaultSearchLimit
	}
	if limit > maxSearchLimit {
		limit = maxSearchLimit
	}
	offset := f.Offset
	if offset < 0 {
		offset = 0
	}

	query := fmt.Sprintf(`SELECT %s
		FROM packages p JOIN repositories r ON r.id = p.repository_id
		%s ORDER BY p.name LIMIT %s OFFSET %s`,
		packageColumns, clause, arg(limit), arg(offset))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to search packages: %w", err)
	}
	defer rows.Close()

	var out []models.Package
	for rows.Next() {
		p, err := scanPackage(rows)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan package: %w", err)
		}
		out = append(out, *p)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("failed to iterate packages: %w", err)
	}
	return out, total, nil
}

// GetByName loads one package with its maintainers, files and hashes.
func (r *PackageRepository) GetByName(ctx context.Context, name string) (*models.Package, error) {
	query := fmt.Sprintf(`SELECT %s
		FROM packages p JOIN repositories r ON r.id = p.repository_id
		WHERE p.name = $1`, packageColumns)

	p, err := scanPackage(r.db.QueryRowContext(ctx, query, name))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrPackageNotFound
		}
		return nil, fmt.Errorf("failed to load package %s: %w", name, err)
	}

	if err := r.loadMaintainers(ctx, p); err != nil {
		return nil, err
	}
	if err := r.loadFiles(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

func (r *PackageRepository) loadMaintainers(ctx context.Context, p *models.Package) error {
	rows, err := r.db.QueryContext(ctx, `SELECT u.id, u.username, u.email, u.created_at
		FROM package_maintainers pm JOIN users u ON u.id = pm.user_id
		WHERE pm.package_id = $1 ORDER BY u.username`, p.ID)
	if err != nil {
		return fmt.Errorf("failed to load maintainers: %w", err)
	}
	defer rows.Close()
	for rows.Next() {
		var u models.User
		if err := rows.Scan(&u.ID, &u.Username, &u.Email, &u.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan maintainer: %w", err)
		}
		p.Maintainers = append(p.Maintainers, u)
	}
	return rows.Err()
}

func (r *PackageRepository) loadFiles(ctx context.Context, p *models.Package) error {
	rows, err := r.db.QueryContext(ctx, `SELECT id, filename, blob_path, url, size, created_at
		FROM package_files WHERE package_id = $1 ORDER BY filename`, p.ID)
	if err != nil {
		return fmt.Errorf("failed to load files: %w", err)
	}
	defer rows.Close()

	index := make(map[uuid.UUID]int)
	for rows.Next() {
		var f models.PackageFile
		f.PackageID = p.ID
		if err := rows.Scan(&f.ID, &f.Filename, &f.BlobPath, &f.URL, &f.Size, &f.CreatedAt); err != nil {
			return fmt.Errorf("failed to scan file: %w", err)
		}
		index[f.ID] = len(p.Files)
		p.Files = append(p.Files, f)
	}
	if err := rows.Err(); err != nil {
		return err
	}
	if len(p.Files) == 0 {
		return nil
	}

	hrows, err := r.db.QueryContext(ctx, `SELECT h.id, h.file_id, h.algorithm, h.digest
		FROM package_hashes h JOIN package_files f ON f.id = h.file_id
		WHERE f.package_id = $1`, p.ID)
	if err != nil {
		return fmt.Errorf("failed to load hashes: %w", err)
	}
	defer hrows.Close()
	for hrows.Next() {
		var h models.PackageHash
		if err := hrows.Scan(&h.ID, &h.FileID, &h.Algorithm, &h.Digest); err != nil {
			return fmt.Errorf("failed to scan hash: %w", err)
		}
		if i, ok := index[h.FileID]; ok {
			p.Files[i].Hashes = append(p.Files[i].Hashes, h)
		}
	}
	return hrows.Err()
}

// Delete removes a package and returns the blob paths its rows pointed
// at so the caller can clean the blob store.
func (r *PackageRepository) Delete(ctx context.Context, name string) ([]string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	var pkgID uuid.UUID
	var tarball string
	err = tx.QueryRowContext(ctx, "SELECT id, tarball FROM packages WHERE name = $1", name).Scan(&pkgID, &tarball)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPackageNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up package %s: %w", name, err)
	}

	blobs, err := collectBlobPaths(ctx, tx, pkgID, tarball)
	if err != nil {
		return nil, err
	}

	if _, err := tx.ExecContext(ctx, "DELETE FROM packages WHERE id = $1", pkgID); err != nil {
		return nil, fmt.Errorf("failed to delete package %s: %w", name, err)
	}
	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("failed to commit delete: %w", err)
	}
	return blobs, nil
}

// SetOutdated flags or unflags a package as out of date.
func (r *PackageRepository) SetOutdated(ctx context.Context, name string, outdated bool) error {
	res, err := r.db.ExecContext(ctx, "UPDATE packages SET outdated = $2 WHERE name = $1", name, outdated)
	if err != nil {
		return fmt.Errorf("failed to update outdated flag: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPackageNotFound
	}
	return nil
}

// ResolveDependencies filters names down to those with an existing
// package record, preserving input order.
func (r *PackageRepository) ResolveDependencies(ctx context.Context, names []string) ([]string, error) {
	if len(names) == 0 {
		return nil, nil
	}
	rows, err := r.db.QueryContext(ctx, "SELECT name FROM packages WHERE name = ANY($1)", pq.Array(names))
	if err != nil {
		return nil, fmt.Errorf("failed to resolve dependencies: %w", err)
	}
	defer rows.Close()

	known := make(map[string]bool)
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, fmt.Errorf("failed to scan dependency: %w", err)
		}
		known[n] = true
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []string
	for _, n := range names {
		if known[n] {
			out = append(out, n)
		}
	}
	return out, nil
}

// ImportPackage persists an import record set in one transaction,
// replacing any existing record with the same name. Concurrent imports
// of the same name are serialized with a transaction-scoped advisory
// lock on the name's hash.
func (r *PackageRepository) ImportPackage(ctx context.Context, rec *importer.Record) (bool, []string, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, nil, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, "SELECT pg_advisory_xact_lock(hashtext($1))", rec.Name); err != nil {
		return false, nil, fmt.Errorf("failed to lock package name: %w", err)
	}

	var repoID int
	if err := tx.QueryRowContext(ctx, "SELECT id FROM repositories WHERE name = $1", rec.Repository).Scan(&repoID); err != nil {
		return false, nil, fmt.Errorf("failed to resolve repository %q: %w", rec.Repository, err)
	}

	var (
		pkgID      uuid.UUID
		oldTarball string
		created    bool
		stale      []string
	)
	err = tx.QueryRowContext(ctx, "SELECT id, tarball FROM packages WHERE name = $1", rec.Name).Scan(&pkgID, &oldTarball)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		created = true
		pkgID = uuid.New()
		_, err = tx.ExecContext(ctx, `INSERT INTO packages
			(id, name, version, release, epoch, description, url, repository_id, tarball,
			 licenses, architectures, "groups", provides, conflicts, replaces, depends, makedepends)
			VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17)`,
			pkgID, rec.Name, rec.Version, rec.Release, rec.Epoch, rec.Description, rec.URL,
			repoID, rec.Tarball,
			pq.Array(rec.Licenses), pq.Array(rec.Architectures), pq.Array(rec.Groups),
			pq.Array(rec.Provides), pq.Array(rec.Conflicts), pq.Array(rec.Replaces),
			pq.Array(rec.Depends), pq.Array(rec.MakeDepends))
		if err != nil {
			return false, nil, fmt.Errorf("failed to insert package: %w", err)
		}
		if rec.UploaderID != uuid.Nil {
			// The uploader becomes the sole maintainer of a new package.
			_, err = tx.ExecContext(ctx,
				"INSERT INTO package_maintainers (package_id, user_id) VALUES ($1, $2)",
				pkgID, rec.UploaderID)
			if err != nil {
				return false, nil, fmt.Errorf("failed to add maintainer: %w", err)
			}
		}
	case err != nil:
		return false, nil, fmt.Errorf("failed to look up package %s: %w", rec.Name, err)
	default:
		// An update replaces every prior file and hash row wholesale.
		stale, err = collectBlobPaths(ctx, tx, pkgID, oldTarball)
		if err != nil {
			return false, nil, err
		}
		if _, err := tx.ExecContext(ctx, "DELETE FROM package_files WHERE package_id = $1", pkgID); err != nil {
			return false, nil, fmt.Errorf("failed to delete prior files: %w", err)
		}
		_, err = tx.ExecContext(ctx, `UPDATE packages SET
			version=$2, release=$3, epoch=$4, description=$5, url=$6, repository_id=$7,
			tarball=$8, outdated=FALSE,
			licenses=$9, architectures=$10, "groups"=$11, provides=$12, conflicts=$13,
			replaces=$14, depends=$15, makedepends=$16, updated=$17
			WHERE id = $1`,
			pkgID, rec.Version, rec.Release, rec.Epoch, rec.Description, rec.URL, repoID,
			rec.Tarball,
			pq.Array(rec.Licenses), pq.Array(rec.Architectures), pq.Array(rec.Groups),
			pq.Array(rec.Provides), pq.Array(rec.Conflicts), pq.Array(rec.Replaces),
			pq.Array(rec.Depends), pq.Array(rec.MakeDepends), time.Now())
		if err != nil {
			return false, nil, fmt.Errorf("failed to update package: %w", err)
		}
	}

	for _, f := range rec.Files {
		var fileID uuid.UUID
		err := tx.QueryRowContext(ctx, `INSERT INTO package_files
			(package_id, filename, blob_path, url, size)
			VALUES ($1,$2,$3,$4,$5) RETURNING id`,
			pkgID, f.Filename, f.BlobPath, f.URL, f.Size).Scan(&fileID)
		if err != nil {
			return false, nil, fmt.Errorf("failed to insert file %s: %w", f.Filename, err)
		}
		for _, alg := range pkgbuild.Algorithms {
			digest, ok := f.Hashes[alg]
			if !ok {
				continue
			}
			_, err := tx.ExecContext(ctx,
				"INSERT INTO package_hashes (file_id, algorithm, digest) VALUES ($1, $2, $3)",
				fileID, alg, digest)
			if err != nil {
				return false, nil, fmt.Errorf("failed to insert %s hash: %w", alg, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return false, nil, fmt.Errorf("failed to commit import: %w", err)
	}
	return created, stale, nil
}

// collectBlobPaths gathers every blob path referenced by a package's
// rows, including its tarball.
func collectBlobPaths(ctx context.Context, tx *sql.Tx, pkgID uuid.UUID, tarball string) ([]string, error) {
	rows, err := tx.QueryContext(ctx,
		"SELECT blob_path FROM package_files WHERE package_id = $1 AND blob_path <> ''", pkgID)
	if err != nil {
		return nil, fmt.Errorf("failed to collect blob paths: %w", err)
	}
	defer rows.Close()

	var blobs []string
	for rows.Next() {
		var p string
		if err := rows.Scan(&p); err != nil {
			return nil, fmt.Errorf("failed to scan blob path: %w", err)
		}
		blobs = append(blobs, p)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if tarball != "" {
		blobs = append(blobs, tarball)
	}
	return blobs, nil
}
