package main

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/urfave/cli/v2"
	"go.uber.org/goleak"

	"github.com/standardbeagle/codegraph/internal/config"
	"github.com/standardbeagle/codegraph/internal/store"
	"github.com/standardbeagle/codegraph/internal/version"
)

func TestMain(m *testing.M) {
	// signal.NotifyContext starts the runtime's signal loop once per process
	goleak.VerifyTestMain(m, goleak.IgnoreAnyFunction("os/signal.loop"))
}

const libRS = `pub fn helper(x: u32) -> u32 {
    x + 1
}

pub fn run() -> u32 {
    helper(1)
}
`

func createTestRepo(t *testing.T) string {
	t.Helper()
	root := t.TempDir()
	files := map[string]string{
		"Cargo.toml":       "[package]\nname = \"demo\"\n",
		"src/lib.rs":       libRS,
		"vendor/skip.rs":   "pub fn vendored() {}\n",
		"generated/gen.rs": "pub fn generated() {}\n",
	}
	for rel, content := range files {
		path := filepath.Join(root, filepath.FromSlash(rel))
		require.NoError(t, os.MkdirAll(filepath.Dir(path), 0755))
		require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	}
	return root
}

// runApp runs the CLI in-process and returns stdout.
func runApp(t *testing.T, args ...string) (string, error) {
	t.Helper()
	var out, errOut bytes.Buffer
	app := newApp()
	app.Writer = &out
	app.ErrWriter = &errOut
	err := app.Run(append([]string{"codegraph"}, args...))
	return out.String(), err
}

func TestLoadConfigWithOverrides(t *testing.T) {
	root := createTestRepo(t)

	var cfg *config.Config
	app := newApp()
	app.Commands = append(app.Commands, &cli.Command{
		Name: "capture",
		Action: func(c *cli.Context) error {
			var err error
			cfg, err = loadConfigWithOverrides(c)
			return err
		},
	})
	err := app.Run([]string{"codegraph",
		"--root", root,
		"--include", "src/**",
		"--exclude", "generated/**",
		"--language", "rust",
		"--workers", "3",
		"--store", "SQLite",
		"--store-path", "db/graph.db",
		"--kinds", "calls",
		"capture",
	})
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, root, cfg.Project.Root)
	assert.Equal(t, "demo", cfg.Project.Name)
	assert.Equal(t, []string{"src/**"}, cfg.Include)
	assert.Contains(t, cfg.Exclude, "generated/**")
	assert.Contains(t, cfg.Exclude, "**/vendor/**")
	assert.Equal(t, []string{"rust"}, cfg.Extract.Languages)
	assert.Equal(t, 3, cfg.Extract.Workers)
	assert.Equal(t, store.DriverSQLite, cfg.Store.Driver)
	assert.Equal(t, filepath.Join(root, "db", "graph.db"), cfg.Store.Path)
	assert.Equal(t, []string{"calls"}, cfg.Resolve.Kinds)
}

func TestExtractCommand(t *testing.T) {
	root := createTestRepo(t)

	out, err := runApp(t, "--root", root, "extract", "--lines", "src/lib.rs")
	require.NoError(t, err)
	assert.Contains(t, out, "helper (function, public)")
	assert.Contains(t, out, "[src/lib.rs:5]")

	out, err = runApp(t, "--root", root, "--format", "compact", "extract", filepath.Join(root, "src", "lib.rs"))
	require.NoError(t, err)
	assert.Contains(t, out, "function\t")
	assert.Contains(t, out, "src/lib.rs:1:")

	_, err = runApp(t, "--root", root, "extract")
	assert.Error(t, err)

	_, err = runApp(t, "--root", root, "extract", "../outside.rs")
	assert.ErrorContains(t, err, "outside the repository root")
}

func TestIndexCommandSQLite(t *testing.T) {
	root := createTestRepo(t)

	out, err := runApp(t, "--root", root, "--store", "sqlite", "--exclude", "generated/**", "index")
	require.NoError(t, err)
	assert.Contains(t, out, "Indexed repository")
	assert.Contains(t, out, "Resolution:")
	assert.FileExists(t, filepath.Join(root, ".codegraph", "graph.db"))

	out, err = runApp(t, "--root", root, "--store", "sqlite", "-f", "compact", "index")
	require.NoError(t, err)
	assert.Contains(t, out, "files=2 ")

	s, err := store.OpenSQLite(filepath.Join(root, ".codegraph", "graph.db"))
	require.NoError(t, err)
	defer s.Close()
	build, err := s.SnapshotBuild(t.Context(), config.RepositoryID(root))
	require.NoError(t, err)
	assert.Equal(t, version.BuildID(), build)
}

func TestRulesCommand(t *testing.T) {
	root := createTestRepo(t)

	out, err := runApp(t, "--root", root, "--language", "rust", "rules")
	require.NoError(t, err)
	assert.Regexp(t, `^rust: \d+ rules\n$`, out)

	override := filepath.Join(root, "rules")
	require.NoError(t, os.MkdirAll(override, 0755))
	require.NoError(t, os.WriteFile(filepath.Join(override, "rust.yaml"), []byte("rules: [\n"), 0644))
	_, err = runApp(t, "--root", root, "--language", "rust", "rules", "--dir", override)
	assert.ErrorContains(t, err, "invalid rule tables")
}

func TestInvalidFlags(t *testing.T) {
	root := createTestRepo(t)

	_, err := runApp(t, "--root", root, "--language", "cobol", "index")
	assert.ErrorContains(t, err, "cobol")

	_, err = runApp(t, "--root", root, "--format", "xml", "index")
	assert.ErrorContains(t, err, "unknown format")

	_, err = runApp(t, "--root", root, "--store", "postgres", "index")
	assert.Error(t, err)
}

func TestVersionCommand(t *testing.T) {
	out, err := runApp(t, "version")
	require.NoError(t, err)
	assert.Contains(t, out, version.Version)
	assert.Contains(t, out, version.BuildID())

	out, err = runApp(t, "--format", "json", "version")
	require.NoError(t, err)
	var b version.Build
	require.NoError(t, json.Unmarshal([]byte(out), &b))
	assert.Equal(t, version.Current(), b)
}
