package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"
)

// Repository is one of the fixed package repositories a package can
// belong to (core, extra, community, unsupported).
type Repository struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Architecture is a known target architecture (i686, x86_64, any).
type Architecture struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

// Package is a persisted package record together with its related rows.
type Package struct {
	ID          uuid.UUID `json:"id"`
	Name        string    `json:"name"`
	Version     string    `json:"version"`
	Release     string    `json:"release"`
	Epoch       string    `json:"epoch,omitempty"`
	Description string    `json:"description"`
	URL         string    `json:"url,omitempty"`
	Repository  string    `json:"repository"`

	// Tarball is the blob store path of the uploaded archive.
	Tarball  string `json:"tarball"`
	Outdated bool   `json:"outdated"`

	Licenses      pq.StringArray `json:"licenses"`
	Architectures pq.StringArray `json:"architectures"`
	Groups        pq.StringArray `json:"groups,omitempty"`
	Provides      pq.StringArray `json:"provides,omitempty"`
	Conflicts     pq.StringArray `json:"conflicts,omitempty"`
	Replaces      pq.StringArray `json:"replaces,omitempty"`

	// Depends and MakeDepends hold names of packages that resolved to
	// existing records at import time.
	Depends     pq.StringArray `json:"depends,omitempty"`
	MakeDepends pq.StringArray `json:"makedepends,omitempty"`

	Maintainers []User        `json:"maintainers,omitempty"`
	Files       []PackageFile `json:"files,omitempty"`
	Votes       int           `json:"votes"`

	Added   time.Time `json:"added"`
	Updated time.Time `json:"updated"`
}

// FullVersion renders the pacman-style version string.
func (p *Package) FullVersion() string {
	v := p.Version + "-" + p.Release
	if p.Epoch != "" {
		return p.Epoch + ":" + v
	}
	return v
}

// MaintainedBy reports whether the user is one of the package's
// maintainers.
func (p *Package) MaintainedBy(userID uuid.UUID) bool {
	for _, m := range p.Maintainers {
		if m.ID == userID {
			return true
		}
	}
	return false
}

// PackageFile is one stored or referenced file of a package: the
// PKGBUILD itself, a bundled source file, an external source URL, or an
// install scriptlet.
type PackageFile struct {
	ID        uuid.UUID `json:"id"`
	PackageID uuid.UUID `json:"package_id"`
	Filename  string    `json:"filename"`

	// BlobPath is set when the file content is stored locally; URL is
	// set when the source is an external reference instead.
	BlobPath string `json:"blob_path,omitempty"`
	URL      string `json:"url,omitempty"`

	Size   int64         `json:"size"`
	Hashes []PackageHash `json:"hashes,omitempty"`

	CreatedAt time.Time `json:"created_at"`
}

// PackageHash is a per-algorithm checksum of a package file.
type PackageHash struct {
	ID        uuid.UUID `json:"id"`
	FileID    uuid.UUID `json:"file_id"`
	Algorithm string    `json:"algorithm"`
	Digest    string    `json:"digest"`
}

// PackageFilter narrows package searches. Zero values mean "no
// constraint".
type PackageFilter struct {
	Query         string    `json:"query,omitempty"`
	Repositories  []string  `json:"repositories,omitempty"`
	Architectures []string  `json:"architectures,omitempty"`
	Maintainer    string    `json:"maintainer,omitempty"`
	Outdated      *bool     `json:"outdated,omitempty"`
	LastUpdate    time.Time `json:"last_update,omitempty"`

	Limit  int `json:"limit,omitempty"`
	Offset int `json:"offset,omitempty"`
}
