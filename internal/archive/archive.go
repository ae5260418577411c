// Package archive resolves maintainer uploads into a PKGBUILD stream
// plus a lookup table for any bundled source and install files. Uploads
// are either a (optionally gzip-compressed) tar archive or a bare
// PKGBUILD text file.
package archive

import (
	"archive/tar"
	"bytes"
	"compress/gzip"
	"errors"
	"fmt"
	"io"
	"path"
	"strings"
	"time"
)

const (
	// MaxMemberSize bounds a single archive member. Hostile uploads must
	// not expand into unbounded memory.
	MaxMemberSize = 10 << 20 // 10 MiB

	// MaxArchiveSize bounds the whole upload, compressed or not.
	MaxArchiveSize = 64 << 20 // 64 MiB
)

var (
	// ErrMissingPKGBUILD is returned when a tar upload has no member
	// whose path contains "PKGBUILD".
	ErrMissingPKGBUILD = errors.New("archive does not contain a PKGBUILD")

	// ErrTooLarge is returned when the upload or one of its members
	// exceeds the configured size caps.
	ErrTooLarge = errors.New("upload exceeds size limit")

	// errNotArchive marks input that never produced a valid tar header,
	// which is the cue to treat it as a bare recipe file instead.
	errNotArchive = errors.New("not a tar archive")
)

// Upload is a resolved maintainer upload. All members are held in
// memory, so there is nothing to clean up after use.
type Upload struct {
	raw      []byte
	pkgbuild []byte
	members  map[string][]byte
	tarball  bool
}

// Open reads and resolves an upload. Input that cannot be read as a tar
// archive is treated as a bare PKGBUILD body, matching how maintainers
// have always been allowed to submit a lone recipe file.
func Open(r io.Reader) (*Upload, error) {
	raw, err := readCapped(r, MaxArchiveSize)
	if err != nil {
		return nil, err
	}

	up := &Upload{raw: raw, members: make(map[string][]byte)}
	if err := up.readTar(); err != nil {
		if !errors.Is(err, errNotArchive) {
			return nil, err
		}
		// Not a tar archive: the whole input is the PKGBUILD body.
		up.pkgbuild = raw
		up.tarball = false
		return up, nil
	}
	up.tarball = true
	return up, nil
}

// Pkgbuild returns the recipe bytes.
func (u *Upload) Pkgbuild() []byte {
	return u.pkgbuild
}

// IsTarball reports whether the upload was an archive rather than a
// bare recipe file.
func (u *Upload) IsTarball() bool {
	return u.tarball
}

// Raw returns the original upload bytes as received.
func (u *Upload) Raw() []byte {
	return u.raw
}

// Member looks up an archive member by exact path or by basename. Bare
// uploads have no members.
func (u *Upload) Member(name string) ([]byte, bool) {
	if b, ok := u.members[name]; ok {
		return b, true
	}
	for p, b := range u.members {
		if path.Base(p) == name {
			return b, true
		}
	}
	return nil, false
}

// readTar scans the upload as a (possibly gzipped) tar archive and
// populates the member table. A failure before the first valid header
// means the input is not an archive at all.
func (u *Upload) readTar() error {
	var src io.Reader = bytes.NewReader(u.raw)
	if len(u.raw) >= 2 && u.raw[0] == 0x1f && u.raw[1] == 0x8b {
		gz, err := gzip.NewReader(src)
		if err != nil {
			return fmt.Errorf("%w: bad gzip stream: %v", errNotArchive, err)
		}
		defer gz.Close()
		src = gz
	}

	tr := tar.NewReader(src)
	found := false
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			if found {
				return fmt.Errorf("failed to read archive member: %w", err)
			}
			return fmt.Errorf("%w: %v", errNotArchive, err)
		}
		found = true
		if hdr.Typeflag != tar.TypeReg {
			continue
		}
		if hdr.Size > MaxMemberSize {
			return ErrTooLarge
		}
		data, err := readCapped(tr, MaxMemberSize)
		if err != nil {
			return err
		}
		name := path.Clean(hdr.Name)
		u.members[name] = data
		if u.pkgbuild == nil && strings.Contains(name, "PKGBUILD") {
			u.pkgbuild = data
		}
	}
	if !found {
		return fmt.Errorf("%w: no members", errNotArchive)
	}
	if u.pkgbuild == nil {
		return ErrMissingPKGBUILD
	}
	return nil
}

// WrapPKGBUILD builds a canonical <name>/PKGBUILD tar.gz around a bare
// recipe so that every stored package has a tarball blob.
func WrapPKGBUILD(pkgname string, body []byte) ([]byte, error) {
	var buf bytes.Buffer
	gz := gzip.NewWriter(&buf)
	tw := tar.NewWriter(gz)

	hdr := &tar.Header{
		Name:    pkgname + "/PKGBUILD",
		Mode:    0o644,
		Size:    int64(len(body)),
		ModTime: time.Now(),
	}
	if err := tw.WriteHeader(hdr); err != nil {
		return nil, fmt.Errorf("failed to write tar header: %w", err)
	}
	if _, err := tw.Write(body); err != nil {
		return nil, fmt.Errorf("failed to write tar body: %w", err)
	}
	if err := tw.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize tar archive: %w", err)
	}
	if err := gz.Close(); err != nil {
		return nil, fmt.Errorf("failed to finalize gzip stream: %w", err)
	}
	return buf.Bytes(), nil
}

func readCapped(r io.Reader, limit int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read upload: %w", err)
	}
	if int64(len(data)) > limit {
		return nil, ErrTooLarge
	}
	return data, nil
}
