package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/codegraph/internal/config"
	"github.com/standardbeagle/codegraph/internal/debug"
	"github.com/standardbeagle/codegraph/internal/display"
	cgerrors "github.com/standardbeagle/codegraph/internal/errors"
	"github.com/standardbeagle/codegraph/internal/extract"
	"github.com/standardbeagle/codegraph/internal/indexing"
	"github.com/standardbeagle/codegraph/internal/lang"
	"github.com/standardbeagle/codegraph/internal/mcp"
	"github.com/standardbeagle/codegraph/internal/rules"
	"github.com/standardbeagle/codegraph/internal/store"
	"github.com/standardbeagle/codegraph/internal/types"
	"github.com/standardbeagle/codegraph/pkg/pathutil"
)

// configuredLanguages maps the configured language names onto the registry.
// An empty list means every registered language.
func configuredLanguages(cfg *config.Config) ([]types.Language, error) {
	var out []types.Language
	for _, name := range cfg.Extract.Languages {
		l := types.Language(strings.ToLower(name))
		if _, ok := lang.Get(l); !ok {
			return nil, cgerrors.NewConfigError("extract.languages", name, fmt.Errorf("unsupported language (known: %v)", lang.Names()))
		}
		out = append(out, l)
	}
	return out, nil
}

// session bundles what every command needs to index one repository.
type session struct {
	cfg      *config.Config
	rules    *rules.Set
	store    store.Store
	pipeline *indexing.Pipeline
}

// openSession loads rule tables and opens the configured store. A rule table
// that fails validation only disables its language.
func openSession(cfg *config.Config, driver string) (*session, error) {
	languages, err := configuredLanguages(cfg)
	if err != nil {
		return nil, err
	}
	set, err := rules.LoadAll(cfg.Rules.Dir, languages...)
	if err != nil {
		if len(set.Languages()) == 0 {
			return nil, err
		}
		debug.LogRules("continuing without rejected tables: %v\n", err)
	}

	st, err := store.Open(driver, cfg.Store.Path)
	if err != nil {
		set.Close()
		return nil, err
	}

	p, err := indexing.NewPipeline(cfg, set, st, indexing.Options{})
	if err != nil {
		st.Close()
		set.Close()
		return nil, err
	}
	return &session{cfg: cfg, rules: set, store: st, pipeline: p}, nil
}

func (s *session) Close() {
	s.pipeline.Close()
	if err := s.store.Close(); err != nil {
		debug.LogStore("closing store: %v\n", err)
	}
	s.rules.Close()
}

// signalContext is cancelled on SIGINT or SIGTERM.
func signalContext(parent context.Context) (context.Context, context.CancelFunc) {
	return signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
}

func reportFormatter(c *cli.Context) *display.ReportFormatter {
	return display.NewReportFormatter(display.FormatterOptions{Format: c.String("format")})
}

func extractCommand() *cli.Command {
	return &cli.Command{
		Name:      "extract",
		Usage:     "Extract the entities of one or more files and print them as a tree",
		ArgsUsage: "<file>...",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "lines", Aliases: []string{"n"}, Usage: "Show file locations"},
			&cli.BoolFlag{Name: "ids", Usage: "Show entity ids"},
			&cli.IntFlag{Name: "depth", Aliases: []string{"d"}, Usage: "Maximum tree depth (0 = unlimited)"},
		},
		Action: extractAction,
	}
}

func extractAction(c *cli.Context) error {
	if c.NArg() == 0 {
		return errors.New("extract requires at least one file")
	}
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	// extraction alone never touches the persistent store
	sess, err := openSession(cfg, store.DriverMemory)
	if err != nil {
		return err
	}
	defer sess.Close()

	formatter := display.NewTreeFormatter(display.FormatterOptions{
		Format:    c.String("format"),
		ShowLines: c.Bool("lines"),
		ShowIDs:   c.Bool("ids"),
		MaxDepth:  c.Int("depth"),
	})

	var all []*types.Entity
	var errs []error
	for _, arg := range c.Args().Slice() {
		rel, err := relativeToRoot(cfg.Project.Root, arg)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		content, err := os.ReadFile(pathutil.ToAbsolute(rel, cfg.Project.Root))
		if err != nil {
			errs = append(errs, err)
			continue
		}
		res, err := sess.pipeline.Extractor().ExtractFile(c.Context, extract.File{Path: rel, Content: content})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		for _, sk := range res.Skipped {
			fmt.Fprintf(c.App.ErrWriter, "skipped: %v\n", sk)
		}
		all = append(all, res.Entities...)
	}

	fmt.Fprintln(c.App.Writer, formatter.Format(all))
	return errors.Join(errs...)
}

// relativeToRoot turns a command-line path into a repository path. Relative
// paths are tried against the working directory first, then the root.
func relativeToRoot(root, arg string) (string, error) {
	if !filepath.IsAbs(arg) {
		if abs, err := filepath.Abs(arg); err == nil {
			if _, statErr := os.Stat(abs); statErr == nil {
				arg = abs
			}
		}
	}
	return pathutil.ToRepoPath(arg, root)
}

func indexCommand() *cli.Command {
	return &cli.Command{
		Name:   "index",
		Usage:  "Scan, extract and resolve the repository and store the graph",
		Action: indexAction,
	}
}

func indexAction(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	sess, err := openSession(cfg, cfg.Store.Driver)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := signalContext(c.Context)
	defer cancel()

	report, err := sess.pipeline.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, reportFormatter(c).FormatRun(report))
	if failed := report.Resolve.Failed(); len(failed) > 0 {
		return fmt.Errorf("resolution failed for %v", failed)
	}
	return nil
}

func watchCommand() *cli.Command {
	return &cli.Command{
		Name:   "watch",
		Usage:  "Index the repository, then re-index whenever source files change",
		Action: watchAction,
	}
}

func watchAction(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	sess, err := openSession(cfg, cfg.Store.Driver)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := signalContext(c.Context)
	defer cancel()

	formatter := reportFormatter(c)
	report, err := sess.pipeline.Run(ctx)
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, formatter.FormatRun(report))

	watcher, err := indexing.NewWatcher(sess.pipeline, func(changed map[string]indexing.EventType, report *indexing.RunReport, err error) {
		if err != nil {
			fmt.Fprintf(c.App.ErrWriter, "re-index failed: %v\n", err)
			return
		}
		fmt.Fprintf(c.App.Writer, "%d files changed\n%s\n", len(changed), formatter.FormatRun(report))
	})
	if err != nil {
		return err
	}
	if err := watcher.Start(ctx); err != nil {
		return err
	}
	fmt.Fprintf(c.App.ErrWriter, "watching %s (Ctrl-C to stop)\n", cfg.Project.Root)

	<-ctx.Done()
	debug.LogWatch("shutting down watcher\n")
	return watcher.Stop()
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Serve extraction and the code graph as MCP tools over stdio",
		Flags: []cli.Flag{
			&cli.BoolFlag{Name: "watch", Usage: "Re-index on file changes (also enabled by watch in .codegraph.kdl)"},
		},
		Action: serveAction,
	}
}

func serveAction(c *cli.Context) error {
	// stdout belongs to the protocol from here on
	debug.SetMCPMode(true)

	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	sess, err := openSession(cfg, cfg.Store.Driver)
	if err != nil {
		return err
	}
	defer sess.Close()

	ctx, cancel := signalContext(c.Context)
	defer cancel()

	if c.Bool("watch") || cfg.Watch.Enabled {
		watcher, err := indexing.NewWatcher(sess.pipeline, nil)
		if err != nil {
			return err
		}
		if err := watcher.Start(ctx); err != nil {
			return err
		}
		defer watcher.Stop()
	}

	if err := mcp.NewServer(sess.pipeline).Start(ctx); err != nil && ctx.Err() == nil {
		return debug.Fatal("MCP server error: %v\n", err)
	}
	return nil
}

func rulesCommand() *cli.Command {
	return &cli.Command{
		Name:  "rules",
		Usage: "Load and validate rule tables, then list them",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "dir", Usage: "Override directory holding <language>.yaml tables"},
			&cli.BoolFlag{Name: "verbose", Aliases: []string{"v"}, Usage: "List every rule"},
		},
		Action: rulesAction,
	}
}

func rulesAction(c *cli.Context) error {
	cfg, err := loadConfigWithOverrides(c)
	if err != nil {
		return err
	}
	languages, err := configuredLanguages(cfg)
	if err != nil {
		return err
	}
	dir := cfg.Rules.Dir
	if c.IsSet("dir") {
		dir = c.String("dir")
	}

	set, loadErr := rules.LoadAll(dir, languages...)
	defer set.Close()

	for _, l := range set.Languages() {
		table, _ := set.For(l)
		fmt.Fprintf(c.App.Writer, "%s: %d rules\n", l, len(table.Rules))
		if c.Bool("verbose") {
			for _, r := range table.Rules {
				fmt.Fprintf(c.App.Writer, "  %s\n", r)
			}
		}
	}
	if loadErr != nil {
		return fmt.Errorf("invalid rule tables: %w", loadErr)
	}
	return nil
}
