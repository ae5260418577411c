// Package importer turns a maintainer upload into a persisted package
// record set: resolve the archive, parse and validate the PKGBUILD,
// cross-check against the architecture registry, then write blobs and
// database rows with full rollback on failure.
package importer

import (
	"bytes"
	"context"
	"fmt"
	"path"

	"github.com/google/uuid"

	"github.com/archaur/archaur/internal/archive"
	"github.com/archaur/archaur/internal/logger"
	"github.com/archaur/archaur/internal/pkgbuild"
)

// BlobStore persists file content under logical slash paths.
type BlobStore interface {
	Save(ctx context.Context, name string, data []byte) error
	Delete(ctx context.Context, name string) error
}

// ArchRegistry answers whether an architecture name is known.
type ArchRegistry interface {
	ArchitectureExists(ctx context.Context, name string) (bool, error)
}

// Store is the transactional persistence boundary. ImportPackage must
// replace any existing record with the same name inside one
// transaction, returning whether a new record was created and the blob
// paths of the replaced record's files.
type Store interface {
	ImportPackage(ctx context.Context, rec *Record) (created bool, staleBlobs []string, err error)
	ResolveDependencies(ctx context.Context, names []string) ([]string, error)
}

// Record is the fully prepared package record set handed to the Store.
type Record struct {
	Name        string
	Version     string
	Release     string
	Epoch       string
	Description string
	URL         string
	Repository  string

	Licenses      []string
	Architectures []string
	Groups        []string
	Provides      []string
	Conflicts     []string
	Replaces      []string

	// Depends and MakeDepends hold only names that resolved to existing
	// package records.
	Depends     []string
	MakeDepends []string

	UploaderID uuid.UUID
	Tarball    string
	Files      []FileRecord
}

// FileRecord is one file row of the record set. Exactly one of
// BlobPath and URL is set.
type FileRecord struct {
	Filename string
	BlobPath string
	URL      string
	Size     int64
	Hashes   map[string]string
}

// ImportRequest is one upload to process.
type ImportRequest struct {
	Upload     []byte
	Repository string
	UploaderID uuid.UUID
}

// Importer orchestrates the import pipeline.
type Importer struct {
	store  Store
	blobs  BlobStore
	arches ArchRegistry
	log    *logger.Logger
}

// New wires an importer from its collaborators.
func New(store Store, blobs BlobStore, arches ArchRegistry, log *logger.Logger) *Importer {
	return &Importer{store: store, blobs: blobs, arches: arches, log: log}
}

// Import processes one upload end to end and returns the package name
// on success. Archive and parse failures abort before validation;
// validation and reference failures are returned wholesale as a
// *ValidationError; persistence failures roll back and compensate any
// blob written during this attempt.
func (im *Importer) Import(ctx context.Context, req ImportRequest) (string, error) {
	up, err := archive.Open(bytes.NewReader(req.Upload))
	if err != nil {
		return "", err
	}

	spec, err := pkgbuild.Parse(up.Pkgbuild())
	if err != nil {
		return "", err
	}

	res := pkgbuild.Validate(spec)
	if err := im.crossCheck(ctx, up, spec, &res); err != nil {
		return "", err
	}
	if !res.IsValid() {
		return "", &ValidationError{Result: res}
	}

	rec, blobs, err := im.prepare(ctx, up, spec, req)
	if err != nil {
		return "", err
	}

	written := make([]string, 0, len(blobs))
	persist := func() error {
		for _, b := range blobs {
			if err := im.blobs.Save(ctx, b.path, b.data); err != nil {
				return fmt.Errorf("failed to store %s: %w", b.path, err)
			}
			written = append(written, b.path)
		}
		_, stale, err := im.store.ImportPackage(ctx, rec)
		if err != nil {
			return err
		}
		im.reapStale(ctx, stale, written)
		return nil
	}
	if err := persist(); err != nil {
		im.compensate(ctx, written)
		return "", &PersistError{Err: err}
	}

	im.log.WithField("package", rec.Name).Info("package imported")
	return rec.Name, nil
}

// crossCheck appends the reference checks that need collaborators: each
// declared architecture must exist, and a declared install scriptlet
// must be present among the archive members.
func (im *Importer) crossCheck(ctx context.Context, up *archive.Upload, spec *pkgbuild.PackageSpec, res *pkgbuild.Result) error {
	for _, arch := range spec.Architectures {
		ok, err := im.arches.ArchitectureExists(ctx, arch)
		if err != nil {
			return fmt.Errorf("failed to look up architecture %s: %w", arch, err)
		}
		if !ok {
			res.Errors = append(res.Errors, fmt.Sprintf("architecture %s does not exist", arch))
		}
	}

	if spec.Install != "" {
		_, found := up.Member(spec.Name + "/" + spec.Install)
		if !found {
			_, found = up.Member(spec.Install)
		}
		if !found {
			res.Errors = append(res.Errors, fmt.Sprintf("install file %q is missing", spec.Install))
		}
	}
	return nil
}

// blob is one pending blob write.
type blob struct {
	path string
	data []byte
}

// prepare resolves dependencies and lays out the record set plus the
// blob writes it needs.
func (im *Importer) prepare(ctx context.Context, up *archive.Upload, spec *pkgbuild.PackageSpec, req ImportRequest) (*Record, []blob, error) {
	// Dependency names that do not resolve to existing records are
	// dropped, not rejected.
	depends, err := im.store.ResolveDependencies(ctx, spec.Depends)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve dependencies: %w", err)
	}
	makeDepends, err := im.store.ResolveDependencies(ctx, spec.MakeDepends)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to resolve make dependencies: %w", err)
	}

	rec := &Record{
		Name:          spec.Name,
		Version:       spec.Version,
		Release:       spec.Release,
		Epoch:         spec.Epoch,
		Description:   spec.Description,
		URL:           spec.URL,
		Repository:    req.Repository,
		Licenses:      spec.Licenses,
		Architectures: spec.Architectures,
		Groups:        spec.Groups,
		Provides:      spec.Provides,
		Conflicts:     spec.Conflicts,
		Replaces:      spec.Replaces,
		Depends:       depends,
		MakeDepends:   makeDepends,
		UploaderID:    req.UploaderID,
	}
	var blobs []blob

	// The PKGBUILD itself is stored with checksums under every
	// algorithm, whether or not the recipe declares any.
	body := up.Pkgbuild()
	pkgbuildPath := spec.Name + "/sources/PKGBUILD"
	blobs = append(blobs, blob{path: pkgbuildPath, data: body})
	rec.Files = append(rec.Files, FileRecord{
		Filename: "PKGBUILD",
		BlobPath: pkgbuildPath,
		Size:     int64(len(body)),
		Hashes:   pkgbuild.SumAll(body),
	})

	// Declared sources: bundled members are stored, everything else is
	// recorded as an external URL. No fetch happens at import time.
	for i, src := range spec.Sources {
		fname := path.Base(src)
		fr := FileRecord{Filename: fname, Hashes: declaredHashes(spec, i)}
		if data, ok := up.Member(fname); ok {
			fr.BlobPath = spec.Name + "/sources/" + fname
			fr.Size = int64(len(data))
			blobs = append(blobs, blob{path: fr.BlobPath, data: data})
		} else {
			fr.URL = src
		}
		rec.Files = append(rec.Files, fr)
	}

	if spec.Install != "" {
		data, ok := up.Member(spec.Name + "/" + spec.Install)
		if !ok {
			data, _ = up.Member(spec.Install)
		}
		installPath := spec.Name + "/install/" + spec.Install
		blobs = append(blobs, blob{path: installPath, data: data})
		rec.Files = append(rec.Files, FileRecord{
			Filename: spec.Install,
			BlobPath: installPath,
			Size:     int64(len(data)),
			Hashes:   pkgbuild.SumAll(data),
		})
	}

	// Every record gets a tarball blob; bare uploads are wrapped into a
	// canonical <name>/PKGBUILD archive first.
	tarball := up.Raw()
	if !up.IsTarball() {
		tarball, err = archive.WrapPKGBUILD(spec.Name, body)
		if err != nil {
			return nil, nil, err
		}
	}
	rec.Tarball = spec.Name + "/" + spec.Name + ".tar.gz"
	blobs = append(blobs, blob{path: rec.Tarball, data: tarball})

	return rec, blobs, nil
}

// declaredHashes collects the per-algorithm checksum at a source index.
func declaredHashes(spec *pkgbuild.PackageSpec, i int) map[string]string {
	hashes := make(map[string]string)
	for _, alg := range pkgbuild.Algorithms {
		sums := spec.Checksums[alg]
		if i < len(sums) {
			hashes[alg] = sums[i]
		}
	}
	return hashes
}

// reapStale deletes blobs of the replaced record that were not
// rewritten by this import.
func (im *Importer) reapStale(ctx context.Context, stale, written []string) {
	fresh := make(map[string]bool, len(written))
	for _, p := range written {
		fresh[p] = true
	}
	for _, p := range stale {
		if fresh[p] {
			continue
		}
		if err := im.blobs.Delete(ctx, p); err != nil {
			im.log.WithField("blob", p).Warnf("failed to delete stale blob: %v", err)
		}
	}
}

// compensate deletes blobs written during a failed attempt.
func (im *Importer) compensate(ctx context.Context, written []string) {
	for _, p := range written {
		if err := im.blobs.Delete(ctx, p); err != nil {
			im.log.WithField("blob", p).Warnf("failed to delete blob during rollback: %v", err)
		}
	}
}
