package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/urfave/cli/v2"

	"github.com/standardbeagle/codegraph/internal/config"
	"github.com/standardbeagle/codegraph/internal/debug"
	"github.com/standardbeagle/codegraph/internal/display"
	"github.com/standardbeagle/codegraph/internal/version"
)

// loadConfigWithOverrides loads .codegraph.kdl from the root and applies CLI
// flag overrides on top of it.
func loadConfigWithOverrides(c *cli.Context) (*config.Config, error) {
	root := c.String("root")
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve root path %q: %w", root, err)
	}

	cfg, err := config.Load(absRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to load config from %s: %w", filepath.Join(absRoot, config.ConfigFileName), err)
	}

	if includeFlags := c.StringSlice("include"); len(includeFlags) > 0 {
		cfg.Include = includeFlags
	}
	if excludeFlags := c.StringSlice("exclude"); len(excludeFlags) > 0 {
		cfg.Exclude = config.DeduplicatePatterns(append(cfg.Exclude, excludeFlags...))
	}
	if languages := c.StringSlice("language"); len(languages) > 0 {
		cfg.Extract.Languages = languages
	}
	if c.IsSet("workers") {
		if n := c.Int("workers"); n > 0 {
			cfg.Extract.Workers = n
		}
	}
	if c.IsSet("store") {
		cfg.Store.Driver = strings.ToLower(c.String("store"))
	}
	if c.IsSet("store-path") {
		path := c.String("store-path")
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.Project.Root, path)
		}
		cfg.Store.Path = path
	}
	if c.IsSet("kinds") {
		cfg.Resolve.Kinds = c.StringSlice("kinds")
	}
	return cfg, nil
}

func newApp() *cli.App {
	return &cli.App{
		Name:                   "codegraph",
		Usage:                  "Extract code entities and resolve their relationships into a code graph",
		Version:                version.Info(),
		UseShortOptionHandling: true,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "root",
				Aliases: []string{"r"},
				Usage:   "Repository root (reads .codegraph.kdl from it)",
				Value:   ".",
			},
			&cli.StringSliceFlag{
				Name:    "include",
				Aliases: []string{"i"},
				Usage:   "Only index files matching these glob patterns",
			},
			&cli.StringSliceFlag{
				Name:    "exclude",
				Aliases: []string{"e"},
				Usage:   "Additional glob patterns to skip",
			},
			&cli.StringSliceFlag{
				Name:    "language",
				Aliases: []string{"l"},
				Usage:   "Restrict indexing to these languages",
			},
			&cli.IntFlag{
				Name:    "workers",
				Aliases: []string{"w"},
				Usage:   "Extraction workers (default: number of CPUs)",
			},
			&cli.StringFlag{
				Name:  "store",
				Usage: "Store driver: memory or sqlite",
			},
			&cli.StringFlag{
				Name:  "store-path",
				Usage: "SQLite database path, relative to the root",
			},
			&cli.StringSliceFlag{
				Name:  "kinds",
				Usage: "Relationship kinds to resolve (default: all)",
			},
			&cli.StringFlag{
				Name:    "format",
				Aliases: []string{"f"},
				Usage:   "Output format: text, json or compact",
				Value:   display.FormatText,
			},
			&cli.BoolFlag{
				Name:  "debug",
				Usage: "Write debug logs to stderr (also enabled by DEBUG=1)",
			},
			&cli.BoolFlag{
				Name:  "debug-log",
				Usage: "Write debug logs to a file in the temp directory",
			},
		},
		Before: func(c *cli.Context) error {
			if c.Bool("debug") || c.Bool("debug-log") {
				debug.SetEnabled(true)
			}
			if c.Bool("debug-log") {
				path, err := debug.InitDebugLogFile()
				if err != nil {
					return err
				}
				fmt.Fprintf(c.App.ErrWriter, "debug log: %s\n", path)
			} else if debug.IsDebugEnabled() {
				debug.SetDebugOutput(c.App.ErrWriter)
			}
			switch c.String("format") {
			case display.FormatText, display.FormatJSON, display.FormatCompact:
				return nil
			}
			return fmt.Errorf("unknown format %q (want text, json or compact)", c.String("format"))
		},
		After: func(c *cli.Context) error {
			return debug.CloseDebugLog()
		},
		Commands: []*cli.Command{
			extractCommand(),
			indexCommand(),
			watchCommand(),
			serveCommand(),
			rulesCommand(),
			{
				Name:  "version",
				Usage: "Show build information",
				Action: func(c *cli.Context) error {
					b := version.Current()
					if c.String("format") == display.FormatJSON {
						return json.NewEncoder(c.App.Writer).Encode(b)
					}
					fmt.Fprintln(c.App.Writer, b)
					fmt.Fprintf(c.App.Writer, "build id: %s\n", b.ID)
					return nil
				},
			},
		},
	}
}

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
