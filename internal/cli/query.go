package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/roach88/relfilter/internal/engine"
	"github.com/roach88/relfilter/internal/ir"
	"github.com/roach88/relfilter/internal/querydoc"
	"github.com/roach88/relfilter/internal/querysql"
	"github.com/roach88/relfilter/internal/schema"
)

// QueryOptions holds flags for the query command.
type QueryOptions struct {
	*RootOptions
	FilterInput
}

// QueryResult is what the query command reports for one prepared query.
type QueryResult struct {
	Model     string          `json:"model"`
	FilterID  string          `json:"filter_id"`
	Compiled  json.RawMessage `json:"compiled"`
	Backend   string          `json:"backend"`
	Statement string          `json:"statement"`
	Params    []any           `json:"params,omitempty"`
	Warnings  []string        `json:"warnings,omitempty"`
}

// NewQueryCommand creates the query command.
func NewQueryCommand(rootOpts *RootOptions) *cobra.Command {
	opts := &QueryOptions{RootOptions: rootOpts}

	cmd := &cobra.Command{
		Use:   "query <model>",
		Short: "Compile a filter and show the connector query",
		Long: `Compile a filter against a model and print the query its connector builds.

The model is a UID (application::article.article) or a model name, with
--plugin selecting the namespace. The filter comes from a YAML file, from
REST-style parameters, or both.

Relational models print a parameterized SQL statement; document models
print the aggregate command as extended JSON.

Examples:
  relfilter query article -w author.id=4
  relfilter query article -w 'title_contains=go' -w '_sort=id:desc'
  relfilter query comment -f filter.yaml --format json`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runQuery(opts, args[0], cmd)
		},
	}

	opts.addFlags(cmd)

	return cmd
}

func runQuery(opts *QueryOptions, entity string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(),
		Verbose:   opts.Verbose,
	}

	p, _, err := prepareQuery(opts.RootOptions, &opts.FilterInput, entity, cmd)
	if err != nil {
		return outputQueryError(formatter, err)
	}

	result, err := describeQuery(p)
	if err != nil {
		return outputQueryError(formatter, err)
	}

	if formatter.Format == "json" {
		return formatter.SuccessWithTrace(result, p.TraceID)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ %s -> %s\n", result.Model, result.Backend)
	fmt.Fprintf(w, "  filter_id: %s\n", result.FilterID)
	fmt.Fprintf(w, "  compiled:  %s\n", result.Compiled)
	fmt.Fprintf(w, "  statement: %s\n", result.Statement)
	if len(result.Params) > 0 {
		params, err := ir.MarshalCanonical(result.Params)
		if err != nil {
			return err
		}
		fmt.Fprintf(w, "  params:    %s\n", params)
	}
	for _, warning := range result.Warnings {
		fmt.Fprintf(w, "  warning:   %s\n", warning)
	}
	formatter.VerboseLog("trace_id: %s", p.TraceID)
	return nil
}

// prepareQuery loads the schema, binds connectors and prepares the filter
// described by in against entity.
func prepareQuery(opts *RootOptions, in *FilterInput, entity string, cmd *cobra.Command) (*engine.Prepared, *schema.LoadResult, error) {
	cfg, err := opts.config()
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}

	dir := cfg.SchemaDir
	if in.SchemaDir != "" {
		dir = in.SchemaDir
	}
	loaded, err := LoadSchema(dir)
	if err != nil {
		return nil, nil, err
	}

	f, err := in.Filter()
	if err != nil {
		if engine.CodeOf(err) != "" {
			return nil, nil, err
		}
		return nil, nil, &LoadError{Code: ErrCodeBadInput, Message: err.Error()}
	}

	logger := opts.logger(cmd.ErrOrStderr(), cfg)
	eng, err := opts.newEngine(loaded.Registry, cfg, logger)
	if err != nil {
		return nil, nil, &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
	}

	mq, err := eng.For(entity, in.Plugin)
	if err != nil {
		return nil, nil, err
	}
	p, err := mq.Prepare(f, nil)
	if err != nil {
		return nil, nil, err
	}
	return p, loaded, nil
}

// describeQuery renders a prepared query for output.
func describeQuery(p *engine.Prepared) (QueryResult, error) {
	compiled, err := ir.MarshalCanonical(p.Compiled)
	if err != nil {
		return QueryResult{}, err
	}
	result := QueryResult{
		Model:    p.Model.UID,
		FilterID: p.FilterID,
		Compiled: compiled,
		Backend:  p.Query.Backend(),
		Warnings: p.Warnings,
	}

	switch q := p.Query.(type) {
	case *querysql.Query:
		result.Statement = q.SQL
		result.Params = q.Params
	case *querydoc.Query:
		result.Statement, err = q.ExtJSON()
		if err != nil {
			return QueryResult{}, err
		}
	default:
		result.Statement = fmt.Sprintf("%v", q)
	}
	return result, nil
}

// outputQueryError reports a failed query. Filters the engine rejects exit
// with ExitFailure; configuration faults and unreadable input exit with
// ExitCommandError.
func outputQueryError(formatter *OutputFormatter, err error) error {
	var loadErr *LoadError
	if errors.As(err, &loadErr) {
		_ = formatter.Error(loadErr.Code, loadErr.Message, nil)
		return NewExitError(ExitCommandError, loadErr.Error())
	}

	code := engine.CodeOf(err)
	if code == "" {
		_ = formatter.Error(ErrCodeGeneric, err.Error(), nil)
		return WrapExitError(ExitCommandError, "query failed", err)
	}

	_ = formatter.Error(code, err.Error(), nil)
	exitCode := ExitFailure
	if engine.StatusOf(err) >= http.StatusInternalServerError {
		exitCode = ExitCommandError
	}
	return WrapExitError(exitCode, code, err)
}
