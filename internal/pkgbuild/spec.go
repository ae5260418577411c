// Package pkgbuild parses and validates PKGBUILD package recipes.
//
// Parsing is deliberately restricted to a bounded variable-assignment
// grammar: scalar assignments, quoted strings and bash-style arrays.
// Function bodies (build(), package(), ...) are skipped, never executed.
package pkgbuild

// Algorithms lists the supported checksum algorithms in validation order.
var Algorithms = []string{"md5", "sha1", "sha256", "sha384", "sha512"}

// PackageSpec is the typed result of parsing a PKGBUILD. Fields that are
// absent from the recipe are left as empty strings or empty slices;
// required-field enforcement is Validate's job, not the parser's.
type PackageSpec struct {
	Name        string
	Version     string
	Release     string
	Epoch       string
	Description string
	URL         string
	Install     string

	Licenses      []string
	Architectures []string
	Depends       []string
	MakeDepends   []string
	Provides      []string
	Conflicts     []string
	Replaces      []string
	Groups        []string
	Sources       []string

	// Checksums maps an algorithm name (see Algorithms) to the checksum
	// list, aligned positionally with Sources.
	Checksums map[string][]string
}

// FullVersion renders the pacman-style version string, including the
// epoch prefix when one is set.
func (s *PackageSpec) FullVersion() string {
	v := s.Version + "-" + s.Release
	if s.Epoch != "" {
		return s.Epoch + ":" + v
	}
	return v
}

// HasChecksums reports whether any checksum algorithm is populated.
func (s *PackageSpec) HasChecksums() bool {
	for _, alg := range Algorithms {
		if len(s.Checksums[alg]) > 0 {
			return true
		}
	}
	return false
}
