package version

import (
	"runtime/debug"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
)

// TestCurrentStable tests that the running build is computed once.
func TestCurrentStable(t *testing.T) {
	b := Current()
	assert.Equal(t, Version, b.Version)
	assert.NotEmpty(t, b.ID)
	assert.Equal(t, b, Current())
	assert.Equal(t, b.ID, BuildID())
	assert.Equal(t, Version, Info())
	assert.True(t, strings.HasPrefix(b.String(), "codegraph "+Version+" "))
}

// TestNewBuildFromVCSStamp tests that VCS settings fill what ldflags left
// empty and feed the fingerprint.
func TestNewBuildFromVCSStamp(t *testing.T) {
	info := &debug.BuildInfo{
		GoVersion: "go1.24.3",
		Main:      debug.Module{Path: "github.com/standardbeagle/codegraph", Version: "(devel)"},
		Settings: []debug.BuildSetting{
			{Key: "vcs.revision", Value: "0123456789abcdef0123"},
			{Key: "vcs.time", Value: "2026-01-02T03:04:05Z"},
			{Key: "vcs.modified", Value: "true"},
			{Key: "GOOS", Value: "linux"},
		},
	}

	b := newBuild(info)
	assert.Equal(t, "0123456789ab", b.Commit)
	assert.Equal(t, "2026-01-02T03:04:05Z", b.Date)
	assert.True(t, b.Modified)
	assert.Equal(t, "go1.24.3", b.GoVersion)
	assert.Len(t, b.ID, 16)
	assert.Contains(t, b.String(), "commit: 0123456789ab+dirty")

	// GOOS is not part of the fingerprint
	info.Settings[3].Value = "darwin"
	assert.Equal(t, b.ID, newBuild(info).ID)

	info.Settings[0].Value = "fedcba9876543210"
	assert.NotEqual(t, b.ID, newBuild(info).ID)
}

// TestNewBuildWithoutBuildInfo tests the fallback for binaries built
// without module support.
func TestNewBuildWithoutBuildInfo(t *testing.T) {
	b := newBuild(nil)
	assert.Equal(t, "unknown", b.Commit)
	assert.Equal(t, "development", b.Date)
	assert.Equal(t, Version+"-unknown", b.ID)
}
