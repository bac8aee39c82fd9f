// Package version reports what build of codegraph is running. Graph stores
// record the build id next to every snapshot, so a graph written by an older
// binary can be recognised and rebuilt.
package version

import (
	"crypto/sha256"
	"fmt"
	"runtime/debug"
	"strings"
	"sync"
)

// Version is the current semantic version.
const Version = "0.3.0"

// Set with -ldflags "-X github.com/standardbeagle/codegraph/internal/version.GitCommit=...".
// When empty, the VCS stamp the Go toolchain embeds is used instead.
var (
	GitCommit string
	BuildDate string
)

// Build describes the running binary.
type Build struct {
	Version   string `json:"version"`
	Commit    string `json:"commit"`
	Date      string `json:"date"`
	GoVersion string `json:"go_version"`
	// Modified is set when the binary was built from a dirty tree.
	Modified bool `json:"modified,omitempty"`
	// ID fingerprints the toolchain, module and VCS state.
	ID string `json:"id"`
}

func (b Build) String() string {
	commit := b.Commit
	if b.Modified {
		commit += "+dirty"
	}
	return fmt.Sprintf("codegraph %s (commit: %s, built: %s, %s)", b.Version, commit, b.Date, b.GoVersion)
}

var (
	current     Build
	currentOnce sync.Once
)

// Current returns the build of the running binary. It is computed once.
func Current() Build {
	currentOnce.Do(func() {
		info, _ := debug.ReadBuildInfo()
		current = newBuild(info)
	})
	return current
}

// Info returns the short version string.
func Info() string { return Version }

// BuildID returns the fingerprint of the running binary.
func BuildID() string { return Current().ID }

func newBuild(info *debug.BuildInfo) Build {
	b := Build{Version: Version, Commit: GitCommit, Date: BuildDate}
	if info == nil {
		b.Commit = orDefault(b.Commit, "unknown")
		b.Date = orDefault(b.Date, "development")
		b.ID = Version + "-" + b.Commit
		return b
	}
	b.GoVersion = info.GoVersion

	h := sha256.New()
	h.Write([]byte(info.GoVersion))
	h.Write([]byte(info.Main.Path))
	h.Write([]byte(info.Main.Version))
	for _, s := range info.Settings {
		switch s.Key {
		case "vcs.revision":
			if b.Commit == "" {
				b.Commit = shortRevision(s.Value)
			}
		case "vcs.time":
			if b.Date == "" {
				b.Date = s.Value
			}
		case "vcs.modified":
			b.Modified = s.Value == "true"
		default:
			continue
		}
		h.Write([]byte(s.Key))
		h.Write([]byte(s.Value))
	}
	b.Commit = orDefault(b.Commit, "unknown")
	b.Date = orDefault(b.Date, "development")
	b.ID = fmt.Sprintf("%x", h.Sum(nil))[:16]
	return b
}

func shortRevision(rev string) string {
	rev = strings.TrimSpace(rev)
	if len(rev) > 12 {
		return rev[:12]
	}
	return rev
}

func orDefault(s, def string) string {
	if s == "" {
		return def
	}
	return s
}
