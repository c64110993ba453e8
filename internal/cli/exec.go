package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relfilter/internal/ir"
	"github.com/roach88/relfilter/internal/querysql"
	"github.com/roach88/relfilter/internal/store"
)

// ExecOptions holds flags for the exec command.
type ExecOptions struct {
	*RootOptions
	FilterInput
	DBPath   string // overrides RELFILTER_DB
	SeedFile string // YAML seed rows inserted before the query runs
}

// ExecResult is what the exec command reports.
type ExecResult struct {
	QueryResult
	Rows  []store.Record `json:"rows"`
	Count int            `json:"count"`
}

// NewExecCommand creates the exec command.
func NewExecCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &ExecOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "exec <model>",
		Short: "Run a filter against a SQLite database",
		Long: `Compile a filter, build the SQL statement and run it against a SQLite
database whose tables are created from the schema.

Only models bound to a sql connector can be executed. --seed inserts rows
from a YAML file first:

  - model: application::tag.tag
    rows:
      - {id: 1, label: go}

Examples:
  relfilter exec article --db blog.db -w author.username=ana
  relfilter exec tag --db :memory: --seed seed.yaml -w label_in=go`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runExec(opts, args[0], cmd)
		},
	}

	opts.addFlags(cmd)
	cmd.Flags().StringVar(&opts.DBPath, "db", "", "SQLite database path (default $RELFILTER_DB)")
	cmd.Flags().StringVar(&opts.SeedFile, "seed", "", "YAML seed file inserted before the query")

	return cmd
}

func runExec(opts *ExecOptions, entity string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	cfg, err := opts.config()
	if err != nil {
		return outputQueryError(formatter, &LoadError{Code: ErrCodeGeneric, Message: err.Error()})
	}
	dbPath := cfg.DBPath
	if opts.DBPath != "" {
		dbPath = opts.DBPath
	}

	p, loaded, err := prepareQuery(opts.RootOptions, &opts.FilterInput, entity, cmd)
	if err != nil {
		return outputQueryError(formatter, err)
	}
	q, ok := p.Query.(*querysql.Query)
	if !ok {
		_ = formatter.Error(ErrCodeNotExecutable,
			fmt.Sprintf("%s is bound to a %s connector; only sql queries can be executed", p.Model.UID, p.Query.Backend()), nil)
		return NewExitError(ExitFailure, fmt.Sprintf("%s: cannot execute %s query", ErrCodeNotExecutable, p.Query.Backend()))
	}

	st, err := store.Open(dbPath)
	if err != nil {
		return outputQueryError(formatter, &LoadError{Code: ErrCodeNotFound, Message: err.Error()})
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.ApplyModels(ctx, loaded.Registry); err != nil {
		return outputQueryError(formatter, &LoadError{Code: ErrCodeWriteFailed, Message: err.Error()})
	}
	formatter.VerboseLog("Applied %d model(s) to %s", loaded.Registry.Len(), dbPath)

	if opts.SeedFile != "" {
		if err := seedStore(ctx, st, opts.SeedFile); err != nil {
			return outputQueryError(formatter, err)
		}
	}

	records, err := st.Run(ctx, q)
	if err != nil {
		return outputQueryError(formatter, &LoadError{Code: ErrCodeGeneric, Message: err.Error()})
	}

	described, err := describeQuery(p)
	if err != nil {
		return outputQueryError(formatter, err)
	}
	if records == nil {
		records = []store.Record{}
	}
	result := ExecResult{QueryResult: described, Rows: records, Count: len(records)}

	if formatter.Format == "json" {
		return formatter.SuccessWithTrace(result, p.TraceID)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ %s: %d row(s)\n", result.Model, result.Count)
	for _, rec := range records {
		line, err := ir.MarshalCanonical(map[string]any(rec))
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  %s\n", line)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "  warning: %s\n", warning)
	}
	formatter.VerboseLog("statement: %s", result.Statement)
	return nil
}

// seedStore inserts every row of the seed file in order.
func seedStore(ctx context.Context, st *store.Store, path string) error {
	steps, err := readSeed(path)
	if err != nil {
		return &LoadError{Code: ErrCodeBadInput, Message: err.Error()}
	}
	for i, step := range steps {
		for j, row := range step.Rows {
			if _, err := st.Insert(ctx, step.Model, store.Row(row)); err != nil {
				return &LoadError{Code: ErrCodeWriteFailed, Message: fmt.Sprintf("seed[%d] row %d: %v", i, j, err)}
			}
		}
	}
	return nil
}
