package cli

import (
	"fmt"
	"io"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/roach88/relfilter/internal/backend"
	"github.com/roach88/relfilter/internal/config"
	"github.com/roach88/relfilter/internal/engine"
	"github.com/roach88/relfilter/internal/ir"
	"github.com/roach88/relfilter/internal/schema"
)

// RootOptions holds global flags for all commands.
type RootOptions struct {
	Verbose bool
	Format  string // "json" | "text"

	// Config is the environment configuration. Loaded on first use when nil.
	Config *config.Config

	// TraceGenerator allows overriding the trace id generator (for testing).
	// If nil, defaults to UUIDv7Generator.
	TraceGenerator engine.TraceIDGenerator
}

// ValidFormats defines the allowed output formats.
var ValidFormats = []string{"text", "json"}

// NewRootCommand creates the root command for the relfilter CLI.
func NewRootCommand() *cobra.Command {
	opts := &RootOptions{}

	cmd := &cobra.Command{
		Use:     "relfilter",
		Version: fmt.Sprintf("%s (filter ir v%s)", ir.EngineVersion, ir.IRVersion),
		Short:   "relfilter - cross-connector query filters",
		Long: `Compile filter descriptions against a CUE model schema and dispatch them
to the storage connector each model is bound to.

Settings are read from RELFILTER_* environment variables; flags override them.`,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := opts.config()
			if err != nil {
				return NewExitError(ExitCommandError, err.Error())
			}
			if !cmd.Flags().Changed("format") {
				opts.Format = cfg.Format
			}
			if !isValidFormat(opts.Format) {
				return fmt.Errorf("invalid format %q: must be one of %v", opts.Format, ValidFormats)
			}
			return nil
		},
	}

	// Global flags
	cmd.PersistentFlags().BoolVarP(&opts.Verbose, "verbose", "v", false, "verbose output")
	cmd.PersistentFlags().StringVar(&opts.Format, "format", "text", "output format (json|text)")

	// Add subcommands
	cmd.AddCommand(NewValidateCommand(opts))
	cmd.AddCommand(NewQueryCommand(opts))
	cmd.AddCommand(NewExecCommand(opts))
	cmd.AddCommand(NewTestCommand(opts))

	return cmd
}

// isValidFormat checks if the format is one of the allowed values.
func isValidFormat(format string) bool {
	for _, f := range ValidFormats {
		if f == format {
			return true
		}
	}
	return false
}

// config returns the loaded configuration, reading the environment once.
func (o *RootOptions) config() (config.Config, error) {
	if o.Config != nil {
		return *o.Config, nil
	}
	cfg, err := config.Load()
	if err != nil {
		return config.Config{}, err
	}
	o.Config = &cfg
	return cfg, nil
}

// logger returns a text logger writing to w at the configured level, or at
// debug level in verbose mode.
func (o *RootOptions) logger(w io.Writer, cfg config.Config) *slog.Logger {
	level := cfg.LogLevel
	if o.Verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}

// newEngine binds the configured connectors and builds an engine over reg.
func (o *RootOptions) newEngine(reg *schema.Registry, cfg config.Config, logger *slog.Logger) (*engine.Engine, error) {
	connectors, err := backend.NewRegistry(cfg.Connectors, reg)
	if err != nil {
		return nil, err
	}

	engOpts := []engine.Option{engine.WithLogger(logger)}
	if o.TraceGenerator != nil {
		engOpts = append(engOpts, engine.WithTraceGenerator(o.TraceGenerator))
	}
	return engine.New(reg, connectors, engOpts...), nil
}
