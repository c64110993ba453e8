// Package backend binds storage-engine keys to the connector implementations
// shipped with relfilter.
package backend

import (
	"fmt"

	"github.com/roach88/relfilter/internal/config"
	"github.com/roach88/relfilter/internal/connector"
	"github.com/roach88/relfilter/internal/filter"
	"github.com/roach88/relfilter/internal/querydoc"
	"github.com/roach88/relfilter/internal/querysql"
)

// Builder returns the query builder for a connector kind.
func Builder(kind string, models filter.ModelProvider) (connector.QueryBuilder, error) {
	switch kind {
	case config.KindSQL:
		return querysql.NewSQLCompiler(models), nil
	case config.KindDocument:
		return querydoc.NewPipelineBuilder(models), nil
	}
	return nil, fmt.Errorf("unknown connector kind %q", kind)
}

// NewRegistry builds a connector registry from key → kind bindings such as
// {"bookshelf": "sql", "mongoose": "document"}.
func NewRegistry(bindings map[string]string, models filter.ModelProvider) (*connector.Registry, error) {
	builders := make(map[string]connector.QueryBuilder, len(bindings))
	for key, kind := range bindings {
		b, err := Builder(kind, models)
		if err != nil {
			return nil, fmt.Errorf("connector %q: %w", key, err)
		}
		builders[key] = b
	}
	return connector.NewRegistry(builders), nil
}

// DefaultBindings is the binding set used when none is configured.
func DefaultBindings() map[string]string {
	return map[string]string{
		"bookshelf": config.KindSQL,
		"mongoose":  config.KindDocument,
	}
}
