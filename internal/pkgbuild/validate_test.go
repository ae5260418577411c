package pkgbuild

import (
	"strings"
	"testing"
)

// wellFormed returns a spec that passes validation cleanly.
func wellFormed() *PackageSpec {
	return &PackageSpec{
		Name:          "foo_bar-1",
		Version:       "1.0",
		Release:       "1",
		Description:   "a package",
		Licenses:      []string{"GPL"},
		Architectures: []string{"x86_64"},
		Sources:       []string{"foo.patch", "foo.tar.gz"},
		Checksums: map[string][]string{
			"sha256": {"aa", "bb"},
		},
	}
}

func TestValidate_WellFormed(t *testing.T) {
	res := Validate(wellFormed())
	if !res.IsValid() {
		t.Fatalf("expected valid, got errors: %v", res.Errors)
	}
	if len(res.Warnings) != 0 {
		t.Errorf("expected no warnings, got: %v", res.Warnings)
	}
}

func TestValidate_RequiredFields(t *testing.T) {
	cases := []struct {
		field string
		strip func(*PackageSpec)
	}{
		{"name", func(s *PackageSpec) { s.Name = "" }},
		{"description", func(s *PackageSpec) { s.Description = "" }},
		{"version", func(s *PackageSpec) { s.Version = "" }},
		{"release", func(s *PackageSpec) { s.Release = "" }},
		{"licenses", func(s *PackageSpec) { s.Licenses = nil }},
		{"architectures", func(s *PackageSpec) { s.Architectures = nil }},
	}
	for _, tc := range cases {
		t.Run(tc.field, func(t *testing.T) {
			spec := wellFormed()
			tc.strip(spec)
			res := Validate(spec)

			want := tc.field + " field is required"
			count := 0
			for _, e := range res.Errors {
				if e == want {
					count++
				}
			}
			if count != 1 {
				t.Errorf("errors = %v, want exactly one %q", res.Errors, want)
			}
		})
	}
}

func TestValidate_NamePattern(t *testing.T) {
	cases := []struct {
		name      string
		pkgname   string
		wantError bool
		wantWarn  bool
	}{
		{"underscore hyphen digits ok", "foo_bar-1", false, false},
		{"spaces and punctuation rejected", "Foo Bar!", true, false},
		{"upper case warns only", "FOO", false, true},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			spec := wellFormed()
			spec.Name = tc.pkgname
			res := Validate(spec)

			hasPatternError := false
			for _, e := range res.Errors {
				if e == "package name must be alphanumeric" {
					hasPatternError = true
				}
			}
			hasCaseWarning := false
			for _, w := range res.Warnings {
				if w == "package name should be in lower case" {
					hasCaseWarning = true
				}
			}
			if hasPatternError != tc.wantError {
				t.Errorf("pattern error = %v, want %v (errors: %v)", hasPatternError, tc.wantError, res.Errors)
			}
			if hasCaseWarning != tc.wantWarn {
				t.Errorf("case warning = %v, want %v (warnings: %v)", hasCaseWarning, tc.wantWarn, res.Warnings)
			}
		})
	}
}

func TestValidate_HyphenChecks(t *testing.T) {
	spec := wellFormed()
	spec.Version = "1.0-beta"
	spec.Release = "1-2"
	res := Validate(spec)

	wantErrors := []string{
		"version is not allowed to contain hyphens",
		"release is not allowed to contain hyphens",
	}
	for _, want := range wantErrors {
		found := false
		for _, e := range res.Errors {
			if e == want {
				found = true
			}
		}
		if !found {
			t.Errorf("missing error %q in %v", want, res.Errors)
		}
	}
}

func TestValidate_DescriptionLength(t *testing.T) {
	t.Run("exactly 80 characters passes", func(t *testing.T) {
		spec := wellFormed()
		spec.Description = strings.Repeat("x", 80)
		res := Validate(spec)
		if len(res.Warnings) != 0 {
			t.Errorf("unexpected warnings: %v", res.Warnings)
		}
	})
	t.Run("length counts characters not bytes", func(t *testing.T) {
		spec := wellFormed()
		spec.Description = strings.Repeat("é", 80)
		res := Validate(spec)
		if len(res.Warnings) != 0 {
			t.Errorf("80 multibyte characters warned: %v", res.Warnings)
		}
		spec.Description = strings.Repeat("é", 81)
		res = Validate(spec)
		if len(res.Warnings) != 1 {
			t.Errorf("81 multibyte characters did not warn: %v", res.Warnings)
		}
	})
	t.Run("81 characters warns once", func(t *testing.T) {
		spec := wellFormed()
		spec.Description = strings.Repeat("x", 81)
		res := Validate(spec)
		if len(res.Warnings) != 1 || res.Warnings[0] != "description should not exceed 80 characters" {
			t.Errorf("warnings = %v, want single length warning", res.Warnings)
		}
		if !res.IsValid() {
			t.Errorf("length warning must not affect validity: %v", res.Errors)
		}
	})
}

func TestValidate_ChecksumParity(t *testing.T) {
	t.Run("one mismatched algorithm yields one error", func(t *testing.T) {
		spec := wellFormed()
		spec.Checksums["sha256"] = []string{"only-one"}
		res := Validate(spec)
		want := "amount of sha256sums and sources does not match"
		if len(res.Errors) != 1 || res.Errors[0] != want {
			t.Errorf("errors = %v, want [%q]", res.Errors, want)
		}
	})
	t.Run("mismatches are independent per algorithm", func(t *testing.T) {
		spec := wellFormed()
		spec.Checksums = map[string][]string{
			"md5":  {"a"},
			"sha1": {"b", "c", "d"},
		}
		res := Validate(spec)
		want := []string{
			"amount of md5sums and sources does not match",
			"amount of sha1sums and sources does not match",
		}
		if len(res.Errors) != len(want) {
			t.Fatalf("errors = %v, want %v", res.Errors, want)
		}
		for i := range want {
			if res.Errors[i] != want[i] {
				t.Errorf("errors[%d] = %q, want %q", i, res.Errors[i], want[i])
			}
		}
	})
	t.Run("sources without any checksums", func(t *testing.T) {
		spec := wellFormed()
		spec.Checksums = map[string][]string{}
		res := Validate(spec)
		want := "sources exist without checksums"
		if len(res.Errors) != 1 || res.Errors[0] != want {
			t.Errorf("errors = %v, want [%q]", res.Errors, want)
		}
	})
	t.Run("no sources and no checksums is fine", func(t *testing.T) {
		spec := wellFormed()
		spec.Sources = nil
		spec.Checksums = map[string][]string{}
		res := Validate(spec)
		if !res.IsValid() {
			t.Errorf("unexpected errors: %v", res.Errors)
		}
	})
}

func TestValidate_ErrorOrderIsStable(t *testing.T) {
	res := Validate(&PackageSpec{Name: "Bad Name!", Version: "1-0"})
	want := []string{
		"description field is required",
		"version field is required",
		"release field is required",
		"licenses field is required",
		"architectures field is required",
		"package name must be alphanumeric",
		"version is not allowed to contain hyphens",
	}
	// Version "1-0" is present, so no "version field is required".
	got := res.Errors
	filtered := want[:0:0]
	for _, w := range want {
		if w != "version field is required" {
			filtered = append(filtered, w)
		}
	}
	if len(got) != len(filtered) {
		t.Fatalf("errors = %v, want %v", got, filtered)
	}
	for i := range filtered {
		if got[i] != filtered[i] {
			t.Errorf("errors[%d] = %q, want %q", i, got[i], filtered[i])
		}
	}
}
