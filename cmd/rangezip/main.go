// Command rangezip lists, tests, and extracts ZIP archives from local files
// or HTTP servers, fetching only the byte ranges it needs.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/meigma/rangezip/internal/config"
	"github.com/meigma/rangezip/internal/logging"
)

// app carries state shared by the subcommands of one invocation.
type app struct {
	v       *viper.Viper
	cfgFile string
	cfg     *config.Config
	log     *slog.Logger
	closers []func() error

	stdout io.Writer
	stderr io.Writer
}

func newRootCmd(stdout, stderr io.Writer) *cobra.Command {
	a := &app{v: viper.New(), stdout: stdout, stderr: stderr}
	config.SetDefaults(a.v)

	root := &cobra.Command{
		Use:           "rangezip",
		Short:         "Read ZIP archives over random access sources",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			return a.setup()
		},
		PersistentPostRunE: func(*cobra.Command, []string) error {
			return a.close()
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)

	flags := root.PersistentFlags()
	flags.StringVar(&a.cfgFile, "config", "", "path to config file")
	flags.String("log-level", "info", "log level (debug, info, warn, error)")
	flags.String("log-output-dir", "", "directory to write JSON log files to, in addition to stderr")
	flags.String("password", "", "password for encrypted entries")
	flags.String("cache-dir", "", "directory for the disk block cache")
	flags.Int64("cache-max-bytes", 0, "disk block cache size limit (0 = unlimited)")
	flags.Int("memory-cache-blocks", 0, "number of blocks held in the in-memory cache (0 = disabled)")
	flags.Int64("block-size", 64<<10, "block cache block size")
	flags.StringArray("header", nil, `extra HTTP request header "Key: Value" (repeatable)`)

	bind := map[string]string{
		"log_level":           "log-level",
		"log_output_dir":      "log-output-dir",
		"password":            "password",
		"cache_dir":           "cache-dir",
		"cache_max_bytes":     "cache-max-bytes",
		"memory_cache_blocks": "memory-cache-blocks",
		"block_size":          "block-size",
		"headers":             "header",
	}
	for key, flag := range bind {
		_ = a.v.BindPFlag(key, flags.Lookup(flag)) //nolint:errcheck // flag names are static
	}

	root.AddCommand(
		a.listCmd(),
		a.testCmd(),
		a.extractCmd(),
		a.catCmd(),
		a.catalogCmd(),
	)
	return root
}

// setup reads the configuration and configures logging.
func (a *app) setup() error {
	if err := config.Init(a.v, a.cfgFile); err != nil {
		return err
	}
	if used := a.v.ConfigFileUsed(); used != "" {
		fmt.Fprintf(a.stderr, "Using config file: %s\n", used)
	}
	cfg, err := config.Load(a.v)
	if err != nil {
		return err
	}
	a.cfg = cfg

	logger, closeLog, err := logging.Setup(a.stderr, cfg.LogLevel, cfg.LogOutputDir)
	if err != nil {
		return fmt.Errorf("could not set up logging: %w", err)
	}
	a.log = logger
	a.closers = append(a.closers, closeLog)
	return nil
}

func (a *app) close() error {
	var first error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil && first == nil {
			first = err
		}
	}
	a.closers = nil
	return first
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := newRootCmd(os.Stdout, os.Stderr).ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
