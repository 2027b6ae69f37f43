package cli

import (
	"fmt"
	"io"
	"log/slog"
	"slices"

	"github.com/spf13/cobra"

	"github.com/andreyvit/pkstore"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	DB         string
	Engine     string
	ConfigFile string
	EnvFile    string
	Verbose    bool
	Format     string // "json" | "text"

	// Resolved by PersistentPreRunE.
	Config Config
	Logger *slog.Logger
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the pkstore CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:   "pkstore",
		Short: "pkstore - an ordered record store keyed by (PK, SK)",
		Long: `Inspect and maintain an ordered record store keyed by (PK, SK).

The store location and engine come from --db and --engine, the PKSTORE_DB
and PKSTORE_ENGINE environment variables (also read from .env), or a YAML
config file passed with --config.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return opts.resolve(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&opts.DB, "db", "", "database path (default \"db\")")
	cmd.PersistentFlags().StringVar(&opts.Engine, "engine", "", fmt.Sprintf("storage engine %v (default %q)", pkstore.Engines, defaultEngine))
	cmd.PersistentFlags().StringVar(&opts.ConfigFile, "config", "", "YAML config file")
	cmd.PersistentFlags().StringVar(&opts.EnvFile, "env-file", ".env", "dotenv file with PKSTORE_* variables, ignored if missing")
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	cmd.AddCommand(NewSeedCommand(opts))
	cmd.AddCommand(NewKeysCommand(opts))
	cmd.AddCommand(NewValuesCommand(opts))
	cmd.AddCommand(NewListCommand(opts))
	cmd.AddCommand(NewMigrateCommand(opts))

	return cmd
}

func (opts *RootOptions) resolve(cmd *cobra.Command) error {
	if !slices.Contains(ValidFormats, opts.Format) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid format %q: must be one of %v", opts.Format, ValidFormats))
	}

	if opts.ConfigFile != "" {
		cfg, err := LoadConfigFile(opts.ConfigFile)
		if err != nil {
			return WrapExitError(ExitCommandError, "cannot load config", err)
		}
		opts.Config = *cfg
	}

	dotenv, err := loadDotEnv(opts.EnvFile)
	if err != nil {
		return WrapExitError(ExitCommandError, "cannot load env file", err)
	}
	opts.Config.applyEnv(dotenv)

	if opts.DB != "" {
		opts.Config.DB = opts.DB
	}
	if opts.Engine != "" {
		opts.Config.Engine = opts.Engine
	}
	opts.Config.setDefaults()
	if !slices.Contains(pkstore.Engines, opts.Config.Engine) {
		return NewExitError(ExitCommandError, fmt.Sprintf("invalid engine %q: must be one of %v", opts.Config.Engine, pkstore.Engines))
	}

	opts.Logger = newLogger(cmd.ErrOrStderr(), opts.Verbose)
	return nil
}

func newLogger(w io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// OpenStore opens the configured store.
func (opts *RootOptions) OpenStore() (*pkstore.Store, error) {
	codec, err := opts.Config.codec()
	if err != nil {
		return nil, WrapExitError(ExitCommandError, "invalid config", err)
	}
	st, err := pkstore.OpenPath(opts.Config.Engine, opts.Config.DB, pkstore.Options{
		Codec:           codec,
		Logger:          opts.Logger,
		Verbose:         opts.Verbose,
		ScanBatchSize:   opts.Config.ScanBatchSize,
		EntityTypeField: opts.Config.EntityTypeField,
	})
	if err != nil {
		return nil, WrapExitError(ExitCommandError, fmt.Sprintf("cannot open %s store at %s", opts.Config.Engine, opts.Config.DB), err)
	}
	return st, nil
}

func (opts *RootOptions) formatter(cmd *cobra.Command) *OutputFormatter {
	return &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}
}
