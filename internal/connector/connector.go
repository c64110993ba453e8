package connector

import (
	"sort"

	"github.com/roach88/relfilter/internal/ir"
)

// Request is everything a connector receives for one query.
type Request struct {
	// Model is the model being queried.
	Model *ir.Model

	// Filter is the compiled filter: resolved, coerced and normalized.
	Filter ir.Filter

	// Options carries caller options other than the filter, forwarded
	// verbatim.
	Options map[string]any
}

// Query is a backend-native query ready for execution.
//
// Each connector returns its own concrete type; callers type-switch or use
// the Backend key to find out which.
type Query interface {
	// Backend names the connector implementation that built the query
	// ("sql", "document"). It is not the storage-engine key the connector is
	// registered under.
	Backend() string
}

// QueryBuilder turns a compiled filter into a backend-native query.
//
// Implementations must not mutate the request and must be safe for
// concurrent use.
type QueryBuilder interface {
	BuildQuery(req Request) (Query, error)
}

// QueryBuilderFunc adapts a function to QueryBuilder.
type QueryBuilderFunc func(req Request) (Query, error)

// BuildQuery calls f(req).
func (f QueryBuilderFunc) BuildQuery(req Request) (Query, error) {
	return f(req)
}

// Registry maps storage-engine keys to query builders.
//
// A Registry is populated once at construction and read-only afterwards, so
// it is safe for concurrent use.
type Registry struct {
	builders map[string]QueryBuilder
}

// NewRegistry creates a Registry from a key → builder map. The map is
// copied; later changes to it do not affect the registry.
func NewRegistry(builders map[string]QueryBuilder) *Registry {
	r := &Registry{builders: make(map[string]QueryBuilder, len(builders))}
	for k, b := range builders {
		r.builders[k] = b
	}
	return r
}

// Lookup returns the builder registered for key.
func (r *Registry) Lookup(key string) (QueryBuilder, bool) {
	b, ok := r.builders[key]
	return b, ok
}

// Keys returns the registered keys in sorted order.
func (r *Registry) Keys() []string {
	keys := make([]string, 0, len(r.builders))
	for k := range r.builders {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
