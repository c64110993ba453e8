package harness

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/roach88/relfilter/internal/backend"
	"github.com/roach88/relfilter/internal/engine"
	"github.com/roach88/relfilter/internal/ir"
	"github.com/roach88/relfilter/internal/querydoc"
	"github.com/roach88/relfilter/internal/querysql"
	"github.com/roach88/relfilter/internal/schema"
	"github.com/roach88/relfilter/internal/store"
	"github.com/roach88/relfilter/internal/testutil"
)

// Harness is the test execution engine.
// It runs scenarios against a real engine with a fixed trace id, a fresh
// in-memory store and a captured logger.
type Harness struct {
	store  *store.Store
	engine *engine.Engine
	logger *slog.Logger
}

// Run executes a test scenario and returns the result.
//
// Each scenario runs in a fresh in-memory database for isolation.
//
// Execution flow:
// 1. Load the schema directory
// 2. Create a fresh in-memory database and materialize every model
// 3. Insert the seed rows
// 4. Run each query through the engine and check its expect clause
// 5. Evaluate assertions against the captured logs and the store
//
// An error is returned only when the scenario cannot be set up; query
// mismatches and failed assertions are reported in Result.Errors.
func Run(scenario *Scenario) (*Result, error) {
	loaded, err := schema.LoadDir(scenario.Schema)
	if err != nil {
		return nil, fmt.Errorf("failed to load schema: %w", err)
	}

	st, err := store.Open(":memory:")
	if err != nil {
		return nil, fmt.Errorf("failed to create in-memory store: %w", err)
	}
	defer st.Close()

	ctx := context.Background()
	if err := st.ApplyModels(ctx, loaded.Registry); err != nil {
		return nil, fmt.Errorf("failed to apply models: %w", err)
	}

	bindings := scenario.Connectors
	if bindings == nil {
		bindings = backend.DefaultBindings()
	}
	connectors, err := backend.NewRegistry(bindings, loaded.Registry)
	if err != nil {
		return nil, fmt.Errorf("failed to build connectors: %w", err)
	}

	logger, logs := testutil.NewLogger()
	h := &Harness{
		store:  st,
		logger: logger,
		engine: engine.New(loaded.Registry, connectors,
			engine.WithLogger(logger),
			engine.WithTraceGenerator(testutil.NewFixedTraceGenerator(scenario.TraceID))),
	}

	if err := h.seed(ctx, scenario.Seed); err != nil {
		return nil, fmt.Errorf("failed to seed store: %w", err)
	}

	result := NewResult()
	for _, step := range scenario.Queries {
		h.executeQuery(ctx, step, result)
	}
	result.Logs = logs.String()

	actx := &AssertionContext{
		Store: st,
		Ctx:   ctx,
	}
	for _, errMsg := range EvaluateAssertions(result, scenario.Assertions, actx) {
		result.AddError(errMsg)
	}

	return result, nil
}

// seed inserts every seed row in order.
func (h *Harness) seed(ctx context.Context, steps []SeedStep) error {
	for i, step := range steps {
		for j, row := range step.Rows {
			if _, err := h.store.Insert(ctx, step.Model, store.Row(row)); err != nil {
				return fmt.Errorf("seed[%d] row %d: %w", i, j, err)
			}
		}
	}
	return nil
}

// executeQuery prepares one query, runs it when the relational connector
// built it, records the trace event and checks the expect clause.
func (h *Harness) executeQuery(ctx context.Context, step QueryStep, result *Result) {
	ev := TraceEvent{Query: step.Name}
	defer func() { result.AddTrace(ev) }()

	fail := func(format string, args ...any) {
		result.AddError(fmt.Sprintf("query %q: ", step.Name) + fmt.Sprintf(format, args...))
	}

	mq, err := h.engine.For(step.Model, step.Plugin)
	if err == nil {
		ev.Model = mq.Model().UID
		var p *engine.Prepared
		p, err = mq.Prepare(step.Filter, step.Options)
		if err == nil {
			err = h.record(ctx, p, &ev)
		}
	}

	expect := step.Expect
	if err != nil {
		ev.Error = engine.CodeOf(err)
		if ev.Error == "" {
			ev.Error = err.Error()
		}
		switch {
		case expect == nil || expect.Error == "":
			fail("unexpected error: %v", err)
		case expect.Error != ev.Error:
			fail("expected error %s, got %s (%v)", expect.Error, ev.Error, err)
		}
		return
	}
	if expect == nil {
		return
	}
	if expect.Error != "" {
		fail("expected error %s, got success", expect.Error)
		return
	}

	if expect.Where != nil {
		want, err := ir.MarshalCanonical(ir.Filter{Where: expect.Where})
		if err != nil {
			fail("expected where: %v", err)
			return
		}
		got, err := ir.MarshalCanonical(ir.Filter{Where: ev.Filter.Where})
		if err != nil {
			fail("compiled where: %v", err)
			return
		}
		if string(want) != string(got) {
			fail("compiled filter mismatch\n  Expected: %s\n  Actual: %s", want, got)
		}
	}
	if expect.Backend != "" && expect.Backend != ev.Backend {
		fail("expected backend %s, got %s", expect.Backend, ev.Backend)
	}
	if expect.SQL != "" && expect.SQL != ev.SQL {
		fail("statement mismatch\n  Expected: %s\n  Actual: %s", expect.SQL, ev.SQL)
	}
	if expect.NoRows && len(ev.Rows) > 0 {
		fail("expected no rows, got %v", ev.Rows)
	}
	if len(expect.Rows) > 0 {
		if ev.Backend != querysql.Backend {
			fail("rows can only be checked for %s queries, got %s", querysql.Backend, ev.Backend)
			return
		}
		want, _ := ir.MarshalCanonical(expect.Rows)
		got, _ := ir.MarshalCanonical(ev.Rows)
		if string(want) != string(got) {
			fail("rows mismatch\n  Expected: %s\n  Actual: %s", want, got)
		}
	}
}

// record copies what a prepared query produced into ev. Relational queries
// are executed and their primary keys collected.
func (h *Harness) record(ctx context.Context, p *engine.Prepared, ev *TraceEvent) error {
	compiled := p.Compiled
	ev.Filter = &compiled
	ev.Backend = p.Query.Backend()

	switch q := p.Query.(type) {
	case *querysql.Query:
		ev.SQL = q.SQL
		records, err := h.store.Run(ctx, q)
		if err != nil {
			return err
		}
		ev.Rows = make([]any, len(records))
		for i, rec := range records {
			ev.Rows[i] = rec[p.Model.PrimaryKey]
		}
	case *querydoc.Query:
		h.logger.Debug("document query not executed", "collection", q.Collection)
	}
	return nil
}
