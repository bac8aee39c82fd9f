package config

import (
	"bufio"
	"os"
	"path/filepath"
	"strings"
)

// gitignorePattern is one parsed .gitignore line
type gitignorePattern struct {
	Pattern   string
	Negate    bool
	Directory bool
	Absolute  bool
}

// LoadGitignore reads the root .gitignore and converts its rules into
// doublestar exclusion globs. A missing file yields no patterns.
func LoadGitignore(root string) ([]string, error) {
	f, err := os.Open(filepath.Join(root, ".gitignore"))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, err
	}
	defer f.Close()

	var out []string
	sc := bufio.NewScanner(f)
	for sc.Scan() {
		line := strings.TrimRight(sc.Text(), " \t\r")
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		p := parseGitignoreLine(line)
		// Negations cannot be expressed as plain exclusions
		if p.Negate || p.Pattern == "" {
			continue
		}
		out = append(out, gitignoreToGlob(p))
	}
	return out, sc.Err()
}

func parseGitignoreLine(line string) gitignorePattern {
	var p gitignorePattern
	if strings.HasPrefix(line, "!") {
		p.Negate = true
		line = line[1:]
	}
	if strings.HasSuffix(line, "/") {
		p.Directory = true
		line = strings.TrimSuffix(line, "/")
	}
	if strings.HasPrefix(line, "/") {
		p.Absolute = true
		line = strings.TrimPrefix(line, "/")
	} else if strings.Contains(line, "/") && !strings.HasPrefix(line, "**/") {
		// A slash in the middle anchors the pattern like a leading slash
		p.Absolute = true
	}
	p.Pattern = line
	return p
}

func gitignoreToGlob(p gitignorePattern) string {
	glob := p.Pattern
	if !p.Absolute && !strings.HasPrefix(glob, "**/") {
		glob = "**/" + glob
	}
	if p.Directory {
		return glob + "/**"
	}
	return glob
}
