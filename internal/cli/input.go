package cli

import (
	"bytes"
	"fmt"
	"net/url"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/roach88/relfilter/internal/filter"
	"github.com/roach88/relfilter/internal/harness"
	"github.com/roach88/relfilter/internal/ir"
)

// FilterInput holds the flags that describe one filter.
type FilterInput struct {
	SchemaDir string   // overrides RELFILTER_SCHEMA_DIR
	Plugin    string   // namespace of the model argument
	File      string   // YAML filter description
	Where     []string // REST-style query parameters
}

func (in *FilterInput) addFlags(cmd *cobra.Command) {
	cmd.Flags().StringVar(&in.SchemaDir, "schema", "", "schema directory (default $RELFILTER_SCHEMA_DIR)")
	cmd.Flags().StringVar(&in.Plugin, "plugin", "", "plugin namespace of the model")
	cmd.Flags().StringVarP(&in.File, "filter", "f", "", "YAML filter description file")
	cmd.Flags().StringArrayVarP(&in.Where, "where", "w", nil, "query parameter, e.g. title_contains=news (repeatable)")
}

// Filter reads the filter file, if any, then applies the query parameters.
// Parameter where clauses follow the file's; limit and start from
// parameters win.
func (in *FilterInput) Filter() (ir.Filter, error) {
	var f ir.Filter
	if in.File != "" {
		data, err := os.ReadFile(in.File)
		if err != nil {
			return ir.Filter{}, fmt.Errorf("read filter: %w", err)
		}
		dec := yaml.NewDecoder(bytes.NewReader(data))
		dec.KnownFields(true)
		if err := dec.Decode(&f); err != nil {
			return ir.Filter{}, fmt.Errorf("parse filter %s: %w", in.File, err)
		}
	}
	if len(in.Where) == 0 {
		return f, nil
	}

	values := url.Values{}
	for _, w := range in.Where {
		parsed, err := url.ParseQuery(w)
		if err != nil {
			return ir.Filter{}, fmt.Errorf("parse --where %q: %w", w, err)
		}
		for k, vs := range parsed {
			values[k] = append(values[k], vs...)
		}
	}
	params, err := filter.ParseParams(values)
	if err != nil {
		return ir.Filter{}, err
	}

	f.Where = append(f.Where, params.Where...)
	f.Sort = append(f.Sort, params.Sort...)
	if params.Limit != nil {
		f.Limit = params.Limit
	}
	if params.Start != nil {
		f.Start = params.Start
	}
	for k, v := range params.Options {
		if f.Options == nil {
			f.Options = make(map[string]any)
		}
		f.Options[k] = v
	}
	return f, nil
}

// readSeed reads a YAML list of seed steps, the same shape a scenario's
// seed section has.
func readSeed(path string) ([]harness.SeedStep, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed: %w", err)
	}
	var steps []harness.SeedStep
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&steps); err != nil {
		return nil, fmt.Errorf("parse seed %s: %w", path, err)
	}
	for i, step := range steps {
		if step.Model == "" {
			return nil, fmt.Errorf("seed[%d]: model is required", i)
		}
	}
	return steps, nil
}
