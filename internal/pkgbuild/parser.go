package pkgbuild

import (
	"bufio"
	"bytes"
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"
)

// ParseError is returned when the input has no recognizable PKGBUILD
// structure at all.
type ParseError struct {
	Reason string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("failed to parse PKGBUILD: %s", e.Reason)
}

var (
	reAssign   = regexp.MustCompile(`^([A-Za-z_][A-Za-z0-9_]*)=(.*)$`)
	reFuncDecl = regexp.MustCompile(`^(?:function\s+)?[A-Za-z_][\w-]*\s*\(\s*\)\s*(\{)?\s*$`)
)

// Parse extracts a PackageSpec from PKGBUILD text. Only assignment
// statements for the known field set are interpreted; executable
// constructs are skipped. It fails with *ParseError when the input is
// not text or contains no assignments whatsoever.
func Parse(data []byte) (*PackageSpec, error) {
	if bytes.ContainsRune(data, 0) || !utf8.Valid(data) {
		return nil, &ParseError{Reason: "input is not valid text"}
	}

	spec := &PackageSpec{Checksums: make(map[string][]string)}
	assignments := 0

	scanner := bufio.NewScanner(bytes.NewReader(data))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	braceDepth := 0
	var pendingFunc bool

	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		// Skip the body of shell functions without interpreting it.
		if braceDepth > 0 || pendingFunc {
			if pendingFunc && strings.HasPrefix(line, "{") {
				pendingFunc = false
				braceDepth++
				line = line[1:]
			}
			braceDepth += strings.Count(line, "{")
			braceDepth -= strings.Count(line, "}")
			if braceDepth < 0 {
				braceDepth = 0
			}
			continue
		}

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if m := reFuncDecl.FindStringSubmatch(line); m != nil {
			if m[1] == "{" {
				braceDepth = 1
			} else {
				pendingFunc = true
			}
			continue
		}

		m := reAssign.FindStringSubmatch(line)
		if m == nil {
			continue
		}
		name, rawValue := m[1], m[2]

		if strings.HasPrefix(strings.TrimSpace(rawValue), "(") {
			value := strings.TrimSpace(rawValue)
			// Arrays may span multiple lines until the closing paren.
			for !arrayClosed(value) && scanner.Scan() {
				value += "\n" + scanner.Text()
			}
			items := splitArray(value)
			if assign(spec, name, "", items) {
				assignments++
			}
			continue
		}

		if assign(spec, name, unquoteScalar(rawValue), nil) {
			assignments++
		}
	}
	if err := scanner.Err(); err != nil {
		return nil, &ParseError{Reason: err.Error()}
	}

	if assignments == 0 {
		return nil, &ParseError{Reason: "no PKGBUILD assignments found"}
	}
	return spec, nil
}

// assign stores a recognized field on the spec and reports whether the
// variable name was one of the known PKGBUILD fields.
func assign(spec *PackageSpec, name, scalar string, items []string) bool {
	switch name {
	case "pkgname":
		if items != nil {
			// Split packages declare pkgname as an array; the first
			// entry names the package record.
			if len(items) > 0 {
				spec.Name = items[0]
			}
		} else {
			spec.Name = scalar
		}
	case "pkgver":
		spec.Version = scalar
	case "pkgrel":
		spec.Release = scalar
	case "epoch":
		spec.Epoch = scalar
	case "pkgdesc":
		spec.Description = scalar
	case "url":
		spec.URL = scalar
	case "install":
		spec.Install = scalar
	case "license":
		spec.Licenses = items
	case "arch":
		spec.Architectures = items
	case "depends":
		spec.Depends = items
	case "makedepends":
		spec.MakeDepends = items
	case "provides":
		spec.Provides = items
	case "conflicts":
		spec.Conflicts = items
	case "replaces":
		spec.Replaces = items
	case "groups":
		spec.Groups = items
	case "source":
		spec.Sources = items
	default:
		for _, alg := range Algorithms {
			if name == alg+"sums" {
				spec.Checksums[alg] = items
				return true
			}
		}
		return false
	}
	return true
}

// arrayClosed reports whether an array literal has its closing paren
// outside of any quoted string.
func arrayClosed(s string) bool {
	var quote rune
	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			}
		case r == '\'' || r == '"':
			quote = r
		case r == '#':
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
		case r == ')':
			return true
		}
	}
	return false
}

// splitArray tokenizes the contents of a bash array literal, honoring
// single and double quotes.
func splitArray(s string) []string {
	if i := strings.IndexRune(s, '('); i >= 0 {
		s = s[i+1:]
	}

	items := []string{}
	var cur strings.Builder
	var quote rune
	inToken := false

	flush := func() {
		if inToken {
			items = append(items, cur.String())
			cur.Reset()
			inToken = false
		}
	}

	runes := []rune(s)
	for i := 0; i < len(runes); i++ {
		r := runes[i]
		switch {
		case quote != 0:
			if r == quote {
				quote = 0
			} else {
				cur.WriteRune(r)
			}
		case r == '\'' || r == '"':
			quote = r
			inToken = true
		case r == ')':
			flush()
			return items
		case r == '#':
			// Comment runs to end of line.
			flush()
			for i < len(runes) && runes[i] != '\n' {
				i++
			}
		case r == ' ' || r == '\t' || r == '\n' || r == '\r':
			flush()
		default:
			cur.WriteRune(r)
			inToken = true
		}
	}
	flush()
	return items
}

// unquoteScalar strips surrounding quotes and trailing comments from a
// scalar assignment value.
func unquoteScalar(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	if s[0] == '\'' || s[0] == '"' {
		q := s[0]
		if end := strings.IndexByte(s[1:], q); end >= 0 {
			return s[1 : end+1]
		}
		return s[1:]
	}
	if i := strings.IndexAny(s, " \t#"); i >= 0 {
		s = s[:i]
	}
	return s
}
