package qname

import (
	"errors"
	"fmt"
	"strings"
)

// ErrEmpty is returned when parsing an empty name.
var ErrEmpty = errors.New("qualified name is empty")

// Parse reads a rendered qualified name back into its structured form.
func Parse(s string) (QualifiedName, error) {
	return ParseWithSeparator(s, "")
}

// ParseWithSeparator parses s, using sep for single-segment names whose
// separator cannot be inferred from the text.
func ParseWithSeparator(s, sep string) (QualifiedName, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return QualifiedName{}, ErrEmpty
	}
	if s[0] == '<' {
		return parseTraitForm(s)
	}
	if idx := findKeyword(s, "impl "); idx >= 0 {
		scope, detected, err := parseScope(s[:idx])
		if err != nil {
			return QualifiedName{}, fmt.Errorf("invalid impl scope in %q: %w", s, err)
		}
		typePath := strings.TrimSpace(s[idx+len("impl "):])
		if typePath == "" {
			return QualifiedName{}, fmt.Errorf("impl without type in %q", s)
		}
		q := InherentImpl(scope, typePath)
		q.separator = pick(detected, sep)
		return q, nil
	}
	if idx := findKeyword(s, "extern"); idx >= 0 {
		tail := s[idx+len("extern"):]
		if tail == "" || tail[0] == ' ' {
			scope, detected, err := parseScope(s[:idx])
			if err != nil {
				return QualifiedName{}, fmt.Errorf("invalid extern scope in %q: %w", s, err)
			}
			q := ExternBlock(scope, strings.Trim(strings.TrimSpace(tail), `"`))
			q.separator = pick(detected, sep)
			return q, nil
		}
	}
	segs, detected := splitTopLevel(s)
	for _, seg := range segs {
		if seg == "" {
			return QualifiedName{}, fmt.Errorf("empty segment in %q", s)
		}
	}
	return SimplePath(pick(detected, sep), segs...), nil
}

// MustParse is Parse for names known to be valid, such as test fixtures.
func MustParse(s string) QualifiedName {
	q, err := Parse(s)
	if err != nil {
		panic(err)
	}
	return q
}

func pick(detected, fallback string) string {
	if detected != "" {
		return detected
	}
	if fallback != "" {
		return fallback
	}
	return DefaultSeparator
}

func parseTraitForm(s string) (QualifiedName, error) {
	closeIdx := matchAngle(s)
	if closeIdx < 0 {
		return QualifiedName{}, fmt.Errorf("unbalanced angle brackets in %q", s)
	}
	typePath, traitPath, ok := splitAs(s[1:closeIdx])
	if !ok {
		return QualifiedName{}, fmt.Errorf("missing `as` clause in %q", s)
	}
	rest := s[closeIdx+1:]
	if rest == "" {
		return TraitImpl(nil, typePath, traitPath), nil
	}
	if !strings.HasPrefix(rest, "::") || len(rest) == 2 {
		return QualifiedName{}, fmt.Errorf("invalid trait item suffix in %q", s)
	}
	return TraitImplItem(typePath, traitPath, rest[2:]), nil
}

// SplitTraitForm splits `<Type as Trait>::rest` into its parts. Generic
// arguments inside the brackets are kept.
func SplitTraitForm(s string) (typePath, traitPath, rest string, ok bool) {
	s = strings.TrimSpace(s)
	if s == "" || s[0] != '<' {
		return "", "", "", false
	}
	closeIdx := matchAngle(s)
	if closeIdx < 0 {
		return "", "", "", false
	}
	typePath, traitPath, ok = splitAs(s[1:closeIdx])
	if !ok {
		return "", "", "", false
	}
	return typePath, traitPath, strings.TrimPrefix(s[closeIdx+1:], "::"), true
}

// matchAngle returns the index of the '>' closing the '<' at position 0.
func matchAngle(s string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			if i > 0 && s[i-1] == '-' {
				continue
			}
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func splitAs(inner string) (string, string, bool) {
	depth := 0
	for i := 0; i+4 <= len(inner); i++ {
		switch inner[i] {
		case '<':
			depth++
		case '>':
			depth--
		case ' ':
			if depth == 0 && inner[i:i+4] == " as " {
				t := strings.TrimSpace(inner[:i])
				tr := strings.TrimSpace(inner[i+4:])
				return t, tr, t != "" && tr != ""
			}
		}
	}
	return "", "", false
}

// findKeyword finds kw at depth zero where it starts a segment.
func findKeyword(s, kw string) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			depth--
		}
		if depth != 0 || !strings.HasPrefix(s[i:], kw) {
			continue
		}
		if i == 0 || strings.HasSuffix(s[:i], "::") || strings.HasSuffix(s[:i], ".") {
			return i
		}
	}
	return -1
}

func parseScope(prefix string) ([]string, string, error) {
	prefix = strings.TrimSuffix(strings.TrimSuffix(prefix, "::"), ".")
	if prefix == "" {
		return nil, "", nil
	}
	segs, sep := splitTopLevel(prefix)
	for _, seg := range segs {
		if seg == "" {
			return nil, "", errors.New("empty segment")
		}
	}
	return segs, sep, nil
}

// splitTopLevel splits on `::` or `.` outside angle brackets and reports the
// first separator seen.
func splitTopLevel(s string) ([]string, string) {
	var (
		segs  []string
		sep   string
		depth int
		start int
	)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '<':
			depth++
		case '>':
			if depth > 0 {
				depth--
			}
		case ':':
			if depth == 0 && i+1 < len(s) && s[i+1] == ':' {
				segs = append(segs, strings.TrimSpace(s[start:i]))
				if sep == "" {
					sep = "::"
				}
				i++
				start = i + 1
			}
		case '.':
			if depth == 0 {
				segs = append(segs, strings.TrimSpace(s[start:i]))
				if sep == "" {
					sep = "."
				}
				start = i + 1
			}
		}
	}
	segs = append(segs, strings.TrimSpace(s[start:]))
	return segs, sep
}
