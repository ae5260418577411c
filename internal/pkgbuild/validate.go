package pkgbuild

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// Result carries the outcome of validating a PackageSpec. Warnings are
// advisory and never affect validity.
type Result struct {
	Errors   []string
	Warnings []string
}

// IsValid reports whether validation produced no errors.
func (r *Result) IsValid() bool {
	return len(r.Errors) == 0
}

func (r *Result) addError(format string, args ...interface{}) {
	r.Errors = append(r.Errors, fmt.Sprintf(format, args...))
}

func (r *Result) addWarning(format string, args ...interface{}) {
	r.Warnings = append(r.Warnings, fmt.Sprintf(format, args...))
}

var (
	reName      = regexp.MustCompile(`^[\w-]+$`)
	reLowerName = regexp.MustCompile(`^[a-z0-9_-]+$`)
)

const maxDescriptionLen = 80

type requiredField struct {
	name    string
	present func(*PackageSpec) bool
}

// Required fields are checked in declaration order so error ordering is
// deterministic.
var requiredFields = []requiredField{
	{"name", func(s *PackageSpec) bool { return s.Name != "" }},
	{"description", func(s *PackageSpec) bool { return s.Description != "" }},
	{"version", func(s *PackageSpec) bool { return s.Version != "" }},
	{"release", func(s *PackageSpec) bool { return s.Release != "" }},
	{"licenses", func(s *PackageSpec) bool { return len(s.Licenses) > 0 }},
	{"architectures", func(s *PackageSpec) bool { return len(s.Architectures) > 0 }},
}

// Validate applies the structural invariants to a parsed spec. It is a
// pure function: no I/O, no registry lookups. Cross-reference checks
// (known architectures, install scriptlet presence) live with the
// import orchestrator because they need external collaborators.
func Validate(spec *PackageSpec) Result {
	var res Result

	for _, f := range requiredFields {
		if !f.present(spec) {
			res.addError("%s field is required", f.name)
		}
	}

	if spec.Name != "" {
		if !reName.MatchString(spec.Name) {
			res.addError("package name must be alphanumeric")
		} else if !reLowerName.MatchString(spec.Name) {
			res.addWarning("package name should be in lower case")
		}
	}

	if strings.Contains(spec.Version, "-") {
		res.addError("version is not allowed to contain hyphens")
	}
	if strings.Contains(spec.Release, "-") {
		res.addError("release is not allowed to contain hyphens")
	}

	if utf8.RuneCountInString(spec.Description) > maxDescriptionLen {
		res.addWarning("description should not exceed 80 characters")
	}

	for _, alg := range Algorithms {
		sums := spec.Checksums[alg]
		if len(sums) > 0 && len(sums) != len(spec.Sources) {
			res.addError("amount of %ssums and sources does not match", alg)
		}
	}
	if len(spec.Sources) > 0 && !spec.HasChecksums() {
		res.addError("sources exist without checksums")
	}

	return res
}
