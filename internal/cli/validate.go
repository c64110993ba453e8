package cli

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/roach88/relfilter/internal/ir"
)

// ValidationResult holds validation results.
type ValidationResult struct {
	Valid  bool           `json:"valid"`
	Files  int            `json:"files,omitempty"`
	Models []ModelSummary `json:"models,omitempty"`

	// Unbound lists models whose storage engine has no connector binding.
	// Queries against them fail with UNREGISTERED_CONNECTOR.
	Unbound []string `json:"unbound,omitempty"`
}

// ModelSummary describes one loaded model.
type ModelSummary struct {
	UID        string   `json:"uid"`
	Kind       ir.Kind  `json:"kind"`
	Connector  string   `json:"connector"`
	Collection string   `json:"collection"`
	Attributes int      `json:"attributes"`
	Relations  []string `json:"relations,omitempty"`
}

// NewValidateCommand creates the validate command.
func NewValidateCommand(rootOpts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate [schema-dir]",
		Short: "Validate a model schema",
		Long: `Load the CUE models in a schema directory and check them as a set.

Reports syntax errors, unknown attribute types, broken relations and
duplicate collections with their source position. Models bound to a
storage engine without a configured connector are listed as unbound.

The schema directory defaults to RELFILTER_SCHEMA_DIR.`,
		Args:          cobra.MaximumNArgs(1),
		SilenceUsage:  true, // Don't print usage on errors
		SilenceErrors: true, // Don't print errors - we handle our own error output
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := rootOpts.config()
			if err != nil {
				return NewExitError(ExitCommandError, err.Error())
			}
			dir := cfg.SchemaDir
			if len(args) == 1 {
				dir = args[0]
			}
			return runValidate(rootOpts, dir, cmd)
		},
	}

	return cmd
}

func runValidate(opts *RootOptions, schemaDir string, cmd *cobra.Command) error {
	formatter := &OutputFormatter{
		Format:    opts.Format,
		Writer:    cmd.OutOrStdout(),
		ErrWriter: cmd.ErrOrStderr(), // Verbose logs go to stderr to avoid corrupting JSON
		Verbose:   opts.Verbose,
	}

	cfg, err := opts.config()
	if err != nil {
		return NewExitError(ExitCommandError, err.Error())
	}

	loaded, err := LoadSchema(schemaDir)
	if err != nil {
		var loadErr *LoadError
		if !errors.As(err, &loadErr) {
			loadErr = &LoadError{Code: ErrCodeGeneric, Message: err.Error()}
		}
		return outputValidationFailure(formatter, loadErr)
	}

	formatter.VerboseLog("Found %d CUE file(s) in %s", loaded.FileCount, schemaDir)

	result := ValidationResult{Valid: true, Files: loaded.FileCount}
	for _, m := range loaded.Registry.Models() {
		formatter.VerboseLog("Validated model: %s", m.UID)
		result.Models = append(result.Models, summarize(m))
		if _, ok := cfg.Connectors[m.Connector]; !ok {
			result.Unbound = append(result.Unbound, m.UID)
		}
	}

	return outputValidateSuccess(formatter, result)
}

func summarize(m *ir.Model) ModelSummary {
	s := ModelSummary{
		UID:        m.UID,
		Kind:       m.Kind,
		Connector:  m.Connector,
		Collection: m.CollectionName,
		Attributes: len(m.Attributes),
	}
	for _, a := range m.Associations {
		s.Relations = append(s.Relations, fmt.Sprintf("%s (%s)", a.Alias, a.Nature))
	}
	return s
}

// outputValidateSuccess outputs successful validation results.
func outputValidateSuccess(formatter *OutputFormatter, result ValidationResult) error {
	if formatter.Format == "json" {
		return formatter.Success(result)
	}

	w := formatter.Writer
	fmt.Fprintf(w, "✓ %d model(s) valid\n", len(result.Models))
	if formatter.Verbose {
		for _, m := range result.Models {
			fmt.Fprintf(w, "  %s [%s] -> %s\n", m.UID, m.Collection, m.Connector)
		}
	}
	for _, uid := range result.Unbound {
		fmt.Fprintf(w, "  warning: %s has no connector binding\n", uid)
	}
	return nil
}

// outputValidationFailure outputs a schema that failed to load.
func outputValidationFailure(formatter *OutputFormatter, loadErr *LoadError) error {
	// A missing or empty directory is a command error, not a bad schema.
	exitCode := ExitFailure
	switch loadErr.Code {
	case ErrCodeNotFound, ErrCodeNoFiles, ErrCodeScanError:
		exitCode = ExitCommandError
	}

	var details map[string]any
	if loadErr.Pos.IsValid() {
		details = map[string]any{
			"file":   loadErr.Pos.Filename(),
			"line":   loadErr.Pos.Line(),
			"column": loadErr.Pos.Column(),
		}
	}

	if formatter.Format == "json" {
		response := CLIResponse{
			Status: "error",
			Data:   ValidationResult{Valid: false},
			Error: &CLIError{
				Code:    loadErr.Code,
				Message: loadErr.Message,
				Details: details,
			},
		}

		encoder := json.NewEncoder(formatter.Writer)
		encoder.SetIndent("", "  ")
		if err := encoder.Encode(response); err != nil {
			return err
		}
		return NewExitError(exitCode, loadErr.Error())
	}

	// Text format
	fmt.Fprintln(formatter.Writer, "✗ Validation failed")
	fmt.Fprintln(formatter.Writer)
	if loadErr.Pos.IsValid() {
		fmt.Fprintf(formatter.Writer, "%s:%d:%d\n", loadErr.Pos.Filename(), loadErr.Pos.Line(), loadErr.Pos.Column())
	}
	fmt.Fprintf(formatter.Writer, "  %s: %s\n", loadErr.Code, loadErr.Message)

	return NewExitError(exitCode, loadErr.Error())
}

