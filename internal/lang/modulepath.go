package lang

import (
	"path"
	"strings"
)

// multi-part extensions are checked before path.Ext
var compoundExts = []string{".d.ts", ".d.mts", ".d.cts"}

// StripExt removes the file extension from a slash-separated path.
func StripExt(rel string) string {
	for _, ext := range compoundExts {
		if strings.HasSuffix(rel, ext) {
			return strings.TrimSuffix(rel, ext)
		}
	}
	return strings.TrimSuffix(rel, path.Ext(rel))
}

// PathEntityIdentifier is the file-path identity of a file: the repo-relative
// path without extension, segments joined with dots (src/a/b.ts is src.a.b).
func PathEntityIdentifier(relPath string) string {
	return strings.Join(splitPath(StripExt(relPath)), ".")
}

func splitPath(p string) []string {
	p = strings.Trim(path.Clean("/"+strings.ReplaceAll(p, "\\", "/")), "/")
	if p == "" {
		return nil
	}
	return strings.Split(p, "/")
}

func dropLeading(segs []string, dir string) []string {
	if len(segs) > 1 && segs[0] == dir {
		return segs[1:]
	}
	return segs
}

func dropTrailing(segs []string, names ...string) []string {
	if len(segs) == 0 {
		return segs
	}
	for _, n := range names {
		if segs[len(segs)-1] == n {
			return segs[:len(segs)-1]
		}
	}
	return segs
}

// rustModulePath maps a crate-relative file to its module path:
// src/lib.rs is the crate root, src/a/mod.rs and src/a.rs are both `a`.
func rustModulePath(rel string) []string {
	segs := dropLeading(splitPath(StripExt(rel)), "src")
	if len(segs) == 1 && (segs[0] == "lib" || segs[0] == "main") {
		return nil
	}
	return dropTrailing(segs, "mod")
}

// scriptModulePath keeps the directory structure; a trailing index file
// names its directory.
func scriptModulePath(rel string) []string {
	segs := splitPath(StripExt(rel))
	if len(segs) > 1 {
		segs = dropTrailing(segs, "index")
	}
	return segs
}

func pythonModulePath(rel string) []string {
	segs := dropLeading(splitPath(StripExt(rel)), "src")
	return dropTrailing(segs, "__init__")
}

// dirModulePath uses the directory only: every file in a Go package shares it.
func dirModulePath(rel string) []string {
	d := path.Dir(strings.ReplaceAll(rel, "\\", "/"))
	if d == "." || d == "/" {
		return nil
	}
	return splitPath(d)
}

// javaModulePath is the fallback when a file has no package declaration.
func javaModulePath(rel string) []string {
	segs := dirModulePath(rel)
	for i := 0; i+2 < len(segs); i++ {
		if segs[i] == "src" && (segs[i+1] == "main" || segs[i+1] == "test") {
			return segs[i+3:]
		}
	}
	return segs
}

func zigModulePath(rel string) []string {
	return dropLeading(splitPath(StripExt(rel)), "src")
}

func noModulePath(string) []string { return nil }
