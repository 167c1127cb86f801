// Package main is the entry point for the appshim settings tool.
package main

import (
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"strings"

	"golang.org/x/term"

	"github.com/dshills/appshim/internal/config"
	"github.com/dshills/appshim/internal/logging"
	"github.com/dshills/appshim/internal/platform"
	"github.com/dshills/appshim/internal/storage"
)

// Version information (set via ldflags during build).
var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// errUsage marks errors caused by bad command lines.
var errUsage = errors.New("usage")

func main() {
	os.Exit(run(os.Args[1:], os.Stdout, os.Stderr))
}

// options holds the global flags.
type options struct {
	configPath string
	platform   string
	locality   string
	container  string
	dataDir    string
	logLevel   string
	create     bool
}

// cli carries what every command needs.
type cli struct {
	stdout io.Writer
	stderr io.Writer
	tty    bool

	opts   options
	cfg    *config.Config
	logger *logging.Logger
	data   *storage.AppData
}

func run(args []string, stdout, stderr io.Writer) int {
	fs := flag.NewFlagSet("appshim", flag.ContinueOnError)
	fs.SetOutput(stderr)

	var opts options
	fs.StringVar(&opts.configPath, "config", "", "Path to configuration file (TOML or YAML)")
	fs.StringVar(&opts.configPath, "c", "", "Path to configuration file (shorthand)")
	fs.StringVar(&opts.platform, "platform", "", "Platform backend (overrides config)")
	fs.StringVar(&opts.platform, "p", "", "Platform backend (shorthand)")
	fs.StringVar(&opts.locality, "locality", "local", "Settings locality (local, roaming, temporary, shared)")
	fs.StringVar(&opts.locality, "l", "local", "Settings locality (shorthand)")
	fs.StringVar(&opts.container, "container", "", "Slash-separated child container path")
	fs.BoolVar(&opts.create, "create", false, "Create missing containers along -container")
	fs.StringVar(&opts.dataDir, "data-dir", "", "Data directory (overrides config)")
	fs.StringVar(&opts.logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	fs.Usage = func() {
		fmt.Fprintf(stderr, "appshim - application settings across platform backends\n\n")
		fmt.Fprintf(stderr, "Usage: appshim [options] <command> [args]\n\n")
		fmt.Fprintf(stderr, "Commands:\n")
		for _, c := range commands {
			fmt.Fprintf(stderr, "  %-10s %s\n", c.name, c.summary)
		}
		fmt.Fprintf(stderr, "\nOptions:\n")
		fs.PrintDefaults()
		fmt.Fprintf(stderr, "\nExamples:\n")
		fmt.Fprintf(stderr, "  appshim set -type int32 volume 7\n")
		fmt.Fprintf(stderr, "  appshim -platform android -locality roaming ls 'ui.*'\n")
		fmt.Fprintf(stderr, "  appshim -container profile/alice -create get theme\n")
	}

	if err := fs.Parse(args); err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		return 2
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return 2
	}

	name, rest := fs.Arg(0), fs.Args()[1:]
	cmd, ok := lookupCommand(name)
	if !ok {
		fmt.Fprintf(stderr, "Error: unknown command %q\n", name)
		fs.Usage()
		return 2
	}

	c := &cli{stdout: stdout, stderr: stderr, tty: isTerminal(stdout), opts: opts}
	if cmd.needsConfig {
		if err := c.setup(); err != nil {
			fmt.Fprintf(stderr, "Error: %v\n", err)
			return 1
		}
		// Ensure pending writes reach disk on all exit paths.
		defer func() {
			if c.data != nil {
				if err := c.data.Close(); err != nil {
					fmt.Fprintf(stderr, "Error: closing settings: %v\n", err)
				}
			}
		}()
	}

	if err := cmd.run(c, rest); err != nil {
		fmt.Fprintf(stderr, "Error: %v\n", err)
		if errors.Is(err, errUsage) {
			return 2
		}
		return 1
	}
	return 0
}

// setup loads the configuration, applies flag overrides and opens the
// settings provider.
func (c *cli) setup() error {
	cfg, err := config.Load(c.opts.configPath)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if c.opts.platform != "" {
		cfg.Platform = c.opts.platform
	}
	if c.opts.dataDir != "" {
		cfg.DataDir = c.opts.dataDir
	}
	if c.opts.logLevel != "" {
		cfg.Log.Level = c.opts.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return err
	}

	c.cfg = cfg
	c.logger = logging.New(logging.Config{
		Level:  cfg.LogLevel(),
		Output: c.stderr,
		Prefix: "appshim",
	})
	c.data = platform.Open(cfg, c.logger)
	c.logger.Debug("configuration: %s", cfg)
	return nil
}

// container resolves the -locality and -container flags.
func (c *cli) container() (*storage.Container, error) {
	loc, err := storage.ParseLocality(c.opts.locality)
	if err != nil {
		return nil, err
	}
	ct, err := c.data.Container(loc)
	if err != nil {
		return nil, err
	}

	disposition := storage.DispositionExisting
	if c.opts.create {
		disposition = storage.DispositionAlways
	}
	for _, part := range strings.Split(c.opts.container, "/") {
		if part == "" {
			continue
		}
		if ct, err = ct.CreateContainer(part, disposition); err != nil {
			return nil, err
		}
	}
	return ct, nil
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
