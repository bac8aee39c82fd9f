package config

import (
	"os"
	"path/filepath"
	"runtime"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseKDL_Defaults(t *testing.T) {
	cfg, err := parseKDL("", "/repo")
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, runtime.NumCPU(), cfg.Extract.Workers)
	assert.Equal(t, int64(2*1024*1024), cfg.Extract.MaxFileSize)
	assert.Equal(t, 4096, cfg.Extract.CacheSize)
	assert.Equal(t, "memory", cfg.Store.Driver)
	assert.Contains(t, cfg.Exclude, "**/target/**")
}

func TestParseKDL_AllSections(t *testing.T) {
	kdlContent := `
project {
    root "."
    name "my_crate"
    repository_id "repo-1"
}
extract {
    workers 3
    max_file_size "512KB"
    cache_size 0
    languages "rust" "python"
    respect_gitignore false
}
resolve {
    kinds "contains" "calls"
}
store {
    driver "sqlite"
    path "graph.db"
}
watch {
    enabled true
    debounce_ms 50
}
rules {
    dir "custom-rules"
}
include "src/**" "lib/**"
exclude "**/generated/**"
exclude "**/*.pb.go"
`
	cfg, err := parseKDL(kdlContent, "/repo")
	require.NoError(t, err)

	assert.Equal(t, ".", cfg.Project.Root)
	assert.Equal(t, "my_crate", cfg.Project.Name)
	assert.Equal(t, "repo-1", cfg.Project.RepositoryID)
	assert.Equal(t, 3, cfg.Extract.Workers)
	assert.Equal(t, int64(512*1024), cfg.Extract.MaxFileSize)
	assert.Equal(t, 0, cfg.Extract.CacheSize)
	assert.Equal(t, []string{"rust", "python"}, cfg.Extract.Languages)
	assert.False(t, cfg.Extract.RespectGitignore)
	assert.Equal(t, []string{"contains", "calls"}, cfg.Resolve.Kinds)
	assert.Equal(t, "sqlite", cfg.Store.Driver)
	assert.Equal(t, "graph.db", cfg.Store.Path)
	assert.True(t, cfg.Watch.Enabled)
	assert.Equal(t, 50, cfg.Watch.DebounceMs)
	assert.Equal(t, "custom-rules", cfg.Rules.Dir)
	assert.Equal(t, []string{"src/**", "lib/**"}, cfg.Include)
	assert.Equal(t, []string{"**/generated/**", "**/*.pb.go"}, cfg.Exclude)
}

func TestParseKDL_BadSize(t *testing.T) {
	_, err := parseKDL(`extract { max_file_size "lots" }`, "/repo")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "extract.max_file_size")
}

func TestParseSize(t *testing.T) {
	tests := map[string]int64{
		"10":    10,
		"10B":   10,
		"2KB":   2048,
		"3 MB":  3 * 1024 * 1024,
		"1gb":   1024 * 1024 * 1024,
	}
	for in, want := range tests {
		got, err := parseSize(in)
		require.NoError(t, err, in)
		assert.Equal(t, want, got, in)
	}
}

func TestValidator(t *testing.T) {
	t.Run("rejects unknown store driver", func(t *testing.T) {
		cfg := Default("/repo")
		cfg.Store.Driver = "postgres"
		err := NewValidator().ValidateAndSetDefaults(cfg)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "store.driver")
	})

	t.Run("rejects bad glob", func(t *testing.T) {
		cfg := Default("/repo")
		cfg.Include = []string{"src/[unclosed"}
		require.Error(t, NewValidator().ValidateAndSetDefaults(cfg))
	})

	t.Run("fills zero workers", func(t *testing.T) {
		cfg := Default("/repo")
		cfg.Extract.Workers = 0
		require.NoError(t, NewValidator().ValidateAndSetDefaults(cfg))
		assert.Equal(t, runtime.NumCPU(), cfg.Extract.Workers)
	})
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "Cargo.toml"), []byte("[package]\nname = \"my-crate\"\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ".gitignore"), []byte("# comment\n/out/\n*.log\n!keep.log\n"), 0644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, ConfigFileName), []byte(`store { driver "sqlite"; path "db/graph.db" }`), 0644))

	cfg, err := Load(dir)
	require.NoError(t, err)

	assert.Equal(t, "my_crate", cfg.Project.Name)
	assert.Equal(t, RepositoryID(dir), cfg.Project.RepositoryID)
	assert.Equal(t, filepath.Join(dir, "db", "graph.db"), cfg.Store.Path)
	assert.Contains(t, cfg.Exclude, "out/**")
	assert.Contains(t, cfg.Exclude, "**/*.log")
	assert.NotContains(t, cfg.Exclude, "**/keep.log")
}

func TestRepositoryIDStable(t *testing.T) {
	assert.Equal(t, RepositoryID("/a/b"), RepositoryID("/a/b"))
	assert.NotEqual(t, RepositoryID("/a/b"), RepositoryID("/a/c"))
}
