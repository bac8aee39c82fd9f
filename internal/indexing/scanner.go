package indexing

import (
	"bytes"
	"context"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/standardbeagle/codegraph/internal/config"
	"github.com/standardbeagle/codegraph/internal/debug"
	"github.com/standardbeagle/codegraph/internal/extract"
	"github.com/standardbeagle/codegraph/internal/lang"
	"github.com/standardbeagle/codegraph/internal/types"
)

// Directories never descended into, whatever the exclude patterns say.
var skippedDirs = map[string]bool{
	"vendor":       true,
	"node_modules": true,
}

// ScanStats counts what a scan looked at and why files were dropped.
type ScanStats struct {
	Files       int   `json:"files"`
	Bytes       int64 `json:"bytes"`
	Excluded    int   `json:"excluded"`
	Unsupported int   `json:"unsupported"`
	TooLarge    int   `json:"too_large"`
	Binary      int   `json:"binary"`
	Unreadable  int   `json:"unreadable"`
}

// Scanner discovers the source files of a repository.
type Scanner struct {
	root      string
	include   []string
	exclude   []string
	maxSize   int64
	languages map[types.Language]bool
}

// NewScanner creates a scanner from the project configuration.
func NewScanner(cfg *config.Config) *Scanner {
	s := &Scanner{
		root:    cfg.Project.Root,
		include: cfg.Include,
		exclude: cfg.Exclude,
		maxSize: cfg.Extract.MaxFileSize,
	}
	if len(cfg.Extract.Languages) > 0 {
		s.languages = make(map[types.Language]bool, len(cfg.Extract.Languages))
		for _, l := range cfg.Extract.Languages {
			s.languages[types.Language(strings.ToLower(l))] = true
		}
	}
	return s
}

// Root returns the directory being scanned.
func (s *Scanner) Root() string { return s.root }

// Scan walks the root and reads every file that passes the filters. Files
// come back in walk order with repository-relative slash paths.
func (s *Scanner) Scan(ctx context.Context) ([]extract.File, ScanStats, error) {
	var files []extract.File
	var stats ScanStats

	err := filepath.WalkDir(s.root, func(path string, d fs.DirEntry, walkErr error) error {
		if err := ctx.Err(); err != nil {
			return err
		}
		if walkErr != nil {
			// Unreadable directories are skipped, not fatal
			debug.LogWatch("scan: %s: %v\n", path, walkErr)
			if d != nil && d.IsDir() && path != s.root {
				return filepath.SkipDir
			}
			return nil
		}

		rel, err := filepath.Rel(s.root, path)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if d.IsDir() {
			if path != s.root && s.SkipDir(rel) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() {
			return nil
		}

		if !s.Accepts(rel) {
			if lang.Supported(rel) {
				stats.Excluded++
			} else {
				stats.Unsupported++
			}
			return nil
		}

		info, err := d.Info()
		if err != nil {
			stats.Unreadable++
			return nil
		}
		if s.maxSize > 0 && info.Size() > s.maxSize {
			debug.LogWatch("scan: skipping %s (%d bytes)\n", rel, info.Size())
			stats.TooLarge++
			return nil
		}

		content, err := os.ReadFile(path)
		if err != nil {
			stats.Unreadable++
			return nil
		}
		if isBinary(content) {
			stats.Binary++
			return nil
		}

		files = append(files, extract.File{Path: rel, Content: content})
		stats.Files++
		stats.Bytes += int64(len(content))
		return nil
	})
	if err != nil {
		return nil, stats, err
	}
	return files, stats, nil
}

// SkipDir reports whether a directory, given relative to the root, is left
// out of the walk.
func (s *Scanner) SkipDir(rel string) bool {
	name := filepath.Base(rel)
	if strings.HasPrefix(name, ".") || skippedDirs[name] {
		return true
	}
	return s.excluded(rel) || s.excluded(rel+"/")
}

// Accepts applies the path filters: language, include and exclude. Size
// and content checks need the file itself and happen during Scan.
func (s *Scanner) Accepts(rel string) bool {
	spec, ok := lang.ForPath(rel)
	if !ok {
		return false
	}
	if s.languages != nil && !s.languages[spec.Name] {
		return false
	}
	for _, dir := range strings.Split(filepath.ToSlash(filepath.Dir(rel)), "/") {
		if (strings.HasPrefix(dir, ".") && dir != ".") || skippedDirs[dir] {
			return false
		}
	}
	if s.excluded(rel) {
		return false
	}
	if len(s.include) == 0 {
		return true
	}
	for _, p := range s.include {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func (s *Scanner) excluded(rel string) bool {
	for _, p := range s.exclude {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

// Known binary signatures. Content is sniffed even for source extensions:
// .ts is also MPEG transport stream.
var magicNumbers = [][]byte{
	{0x1F, 0x8B},             // gzip
	{0x50, 0x4B, 0x03, 0x04}, // zip
	{0x89, 0x50, 0x4E, 0x47}, // png
	{0xFF, 0xD8, 0xFF},       // jpeg
	{0x25, 0x50, 0x44, 0x46}, // pdf
	{0x7F, 0x45, 0x4C, 0x46}, // elf
	{0xCA, 0xFE, 0xBA, 0xBE}, // mach-o, java class
}

// isBinary sniffs the first 512 bytes for a signature, NUL bytes or a high
// share of control characters.
func isBinary(content []byte) bool {
	sample := content
	if len(sample) > 512 {
		sample = sample[:512]
	}
	if len(sample) == 0 {
		return false
	}
	for _, m := range magicNumbers {
		if bytes.HasPrefix(sample, m) {
			return true
		}
	}
	if bytes.IndexByte(sample, 0) >= 0 {
		return true
	}
	control := 0
	for _, b := range sample {
		if b < 0x20 && b != '\t' && b != '\n' && b != '\r' && b != '\f' {
			control++
		}
	}
	return control > len(sample)*30/100
}
