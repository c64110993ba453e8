package engine

import (
	"log/slog"

	"github.com/roach88/relfilter/internal/connector"
	"github.com/roach88/relfilter/internal/filter"
	"github.com/roach88/relfilter/internal/ir"
	"github.com/roach88/relfilter/internal/queryir"
)

// Models is the schema an engine serves. schema.Registry satisfies it.
type Models interface {
	filter.ModelProvider

	// Lookup finds a model by UID, or by name within plugin.
	Lookup(entity, plugin string) (*ir.Model, bool)
}

// Engine compiles filters and dispatches them to storage connectors.
//
// An Engine holds only read-only state built at construction: the model set,
// the connector registry, the filter compiler and the trace generator. It is
// safe for concurrent use and takes no locks.
type Engine struct {
	models     Models
	connectors *connector.Registry
	compiler   *filter.Compiler
	logger     *slog.Logger
	traceGen   TraceIDGenerator
}

// Option allows configuration of engine parameters.
type Option func(*Engine)

// WithLogger sets the logger used for deep-filter warnings and dispatch
// diagnostics. Default: slog.Default().
func WithLogger(logger *slog.Logger) Option {
	return func(e *Engine) {
		e.logger = logger
	}
}

// WithTraceGenerator sets the trace id generator. Default: UUIDv7Generator.
func WithTraceGenerator(gen TraceIDGenerator) Option {
	return func(e *Engine) {
		e.traceGen = gen
	}
}

// New creates an Engine over models and connectors.
func New(models Models, connectors *connector.Registry, opts ...Option) *Engine {
	e := &Engine{
		models:     models,
		connectors: connectors,
		logger:     slog.Default(),
		traceGen:   UUIDv7Generator{},
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.logger == nil {
		e.logger = slog.Default()
	}
	e.compiler = filter.NewCompiler(models, e.logger)
	return e
}

// Compiler returns the engine's filter compiler.
func (e *Engine) Compiler() *filter.Compiler {
	return e.compiler
}

// Dispatch hands a compiled filter to the connector registered for the
// model's storage engine and returns the connector's query unmodified.
//
// An unknown storage engine fails with an UNREGISTERED_CONNECTOR error before
// any connector is called.
func (e *Engine) Dispatch(model *ir.Model, compiled ir.Filter, opts map[string]any) (connector.Query, error) {
	builder, ok := e.connectors.Lookup(model.Connector)
	if !ok {
		return nil, NewUnregisteredConnectorError(model.UID, model.Connector)
	}
	return builder.BuildQuery(connector.Request{
		Model:   model,
		Filter:  compiled,
		Options: opts,
	})
}

// BuildQuery looks up the model, compiles f against it and dispatches the
// result.
func (e *Engine) BuildQuery(uid string, f ir.Filter, opts map[string]any) (connector.Query, error) {
	p, err := e.Prepare(uid, f, opts)
	if err != nil {
		return nil, err
	}
	return p.Query, nil
}

// Prepared is everything known about one dispatched query.
type Prepared struct {
	TraceID  string
	FilterID string
	Model    *ir.Model
	Compiled ir.Filter
	Query    connector.Query

	// Warnings lists constructs some connectors evaluate differently. They
	// never stop the query.
	Warnings []string
}

// Prepare is BuildQuery plus the bookkeeping the CLI and harness report:
// a trace id, the compiled filter's identity and portability warnings.
func (e *Engine) Prepare(uid string, f ir.Filter, opts map[string]any) (*Prepared, error) {
	model, ok := e.models.Model(uid)
	if !ok {
		return nil, NewModelNotFoundError(uid)
	}
	return e.prepare(model, f, opts)
}

func (e *Engine) prepare(model *ir.Model, f ir.Filter, opts map[string]any) (*Prepared, error) {
	traceID := e.traceGen.Generate()
	logger := e.logger.With("trace_id", traceID, "model", model.UID)

	// Check the binding before compiling so a misconfigured model fails
	// the same way whatever the filter holds.
	if _, ok := e.connectors.Lookup(model.Connector); !ok {
		err := NewUnregisteredConnectorError(model.UID, model.Connector)
		logger.Error("no connector registered", "connector", model.Connector)
		return nil, err
	}

	compiled, err := e.compiler.Compile(model, f)
	if err != nil {
		logger.Debug("filter rejected", "error", err)
		return nil, err
	}

	filterID, err := ir.FilterID(model.UID, compiled)
	if err != nil {
		return nil, err
	}

	var warnings []string
	if sel, err := queryir.Plan(e.models, model, compiled); err == nil {
		warnings = queryir.Validate(sel).Warnings
	}
	for _, w := range warnings {
		logger.Debug("portability warning", "warning", w)
	}

	q, err := e.Dispatch(model, compiled, opts)
	if err != nil {
		return nil, err
	}
	logger.Debug("query dispatched",
		"connector", model.Connector,
		"backend", q.Backend(),
		"filter_id", filterID)

	return &Prepared{
		TraceID:  traceID,
		FilterID: filterID,
		Model:    model,
		Compiled: compiled,
		Query:    q,
		Warnings: warnings,
	}, nil
}

// ModelQuery is a query handle bound to one model.
type ModelQuery struct {
	engine *Engine
	model  *ir.Model
}

// For returns a query handle for the model named entity within plugin (the
// application namespace when plugin is empty). entity may also be a UID.
func (e *Engine) For(entity, plugin string) (*ModelQuery, error) {
	model, ok := e.models.Lookup(entity, plugin)
	if !ok {
		if plugin != "" {
			return nil, NewModelNotFoundError(plugin + "." + entity)
		}
		return nil, NewModelNotFoundError(entity)
	}
	return &ModelQuery{engine: e, model: model}, nil
}

// Model returns the model the handle is bound to.
func (q *ModelQuery) Model() *ir.Model {
	return q.model
}

// Compile compiles f against the handle's model without dispatching it.
func (q *ModelQuery) Compile(f ir.Filter) (ir.Filter, error) {
	return q.engine.compiler.Compile(q.model, f)
}

// BuildQuery compiles f and dispatches it to the model's connector.
func (q *ModelQuery) BuildQuery(f ir.Filter, opts map[string]any) (connector.Query, error) {
	p, err := q.engine.prepare(q.model, f, opts)
	if err != nil {
		return nil, err
	}
	return p.Query, nil
}

// Prepare is BuildQuery with the full Prepared record.
func (q *ModelQuery) Prepare(f ir.Filter, opts map[string]any) (*Prepared, error) {
	return q.engine.prepare(q.model, f, opts)
}
