// Package cmd provides the CLI commands for retrieve.
package cmd

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/milad-o/agenticflow-sub002/internal/config"
	aerrors "github.com/milad-o/agenticflow-sub002/internal/errors"
	"github.com/milad-o/agenticflow-sub002/internal/logging"
	"github.com/milad-o/agenticflow-sub002/internal/profiling"
	"github.com/milad-o/agenticflow-sub002/pkg/version"
)

// rootOptions holds persistent flags and the state set up from them
// before a subcommand runs.
type rootOptions struct {
	configPath string
	logLevel   string
	logFile    string
	logFormat  string
	profile    profiling.Options

	cfg      *config.Config
	logger   *slog.Logger
	cleanup  func()
	profiler *profiling.Session
}

// NewRootCmd creates the root command for the retrieve CLI.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}

	cmd := &cobra.Command{
		Use:   "retrieve",
		Short: "Rank documents with composable retrieval strategies",
		Long: `retrieve loads documents from JSONL, YAML or text files into a data
source and ranks them for a query with a single strategy (keyword, bm25,
semantic, ...) or a tree of composites described in retrieve.yaml.`,
		Version:            version.Version,
		SilenceUsage:       true,
		SilenceErrors:      true,
		PersistentPreRunE:  opts.setup,
		PersistentPostRunE: opts.teardown,
	}
	cmd.SetVersionTemplate("retrieve version {{.Version}}\n")

	pf := cmd.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "Config file (default ./"+config.DefaultFileName+" if present)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Log level: debug, info, warn, error")
	pf.StringVar(&opts.logFile, "log-file", "", "Also write logs to this file, rotated by size")
	pf.StringVar(&opts.logFormat, "log-format", "", "Log format: text or json")
	pf.StringVar(&opts.profile.CPU, "profile-cpu", "", "Write CPU profile to file")
	pf.StringVar(&opts.profile.Heap, "profile-mem", "", "Write memory profile to file")
	pf.StringVar(&opts.profile.Trace, "profile-trace", "", "Write execution trace to file")

	cmd.AddCommand(newSearchCmd(opts))
	cmd.AddCommand(newHealthCmd(opts))
	cmd.AddCommand(newTypesCmd())
	cmd.AddCommand(newConfigCmd(opts))
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// setup loads configuration, applies logging flags and installs the
// logger.
func (o *rootOptions) setup(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(o.configPath)
	if err != nil {
		return aerrors.New(aerrors.ErrCodeConfigInvalid, "failed to load configuration", err).
			WithSuggestion("check the file passed to --config or the RETRIEVAL_* environment variables")
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.Logging.Level = o.logLevel
	}
	if flags.Changed("log-file") {
		cfg.Logging.File = o.logFile
	}
	if flags.Changed("log-format") {
		cfg.Logging.Format = o.logFormat
	}
	if err := cfg.Validate(); err != nil {
		return aerrors.New(aerrors.ErrCodeConfigInvalid, "invalid configuration", err)
	}

	logger, cleanup, err := logging.Setup(cfg.LoggingConfig())
	if err != nil {
		return fmt.Errorf("failed to setup logging: %w", err)
	}
	slog.SetDefault(logger)

	o.cfg = cfg
	o.logger = logger
	o.cleanup = cleanup

	if o.profile.Enabled() {
		if o.profiler, err = profiling.Start(o.profile); err != nil {
			return err
		}
	}
	logger.Debug("configuration_loaded",
		slog.String("path", o.configPath),
		slog.String("backend", cfg.Source.Backend),
		slog.String("retriever", cfg.Retriever.Type))
	return nil
}

func (o *rootOptions) teardown(_ *cobra.Command, _ []string) error {
	var err error
	if o.profiler != nil {
		err = o.profiler.Stop()
		o.profiler = nil
	}
	if o.cleanup != nil {
		o.cleanup()
		o.cleanup = nil
	}
	return err
}

// Execute runs the root command, printing any error to stderr.
func Execute() error {
	err := NewRootCmd().Execute()
	if err != nil {
		_, _ = fmt.Fprint(os.Stderr, aerrors.FormatForCLI(err))
	}
	return err
}
