package harness

import "github.com/roach88/relfilter/internal/ir"

// TraceEvent records what one query step produced.
type TraceEvent struct {
	Seq     int        `json:"seq"`
	Query   string     `json:"query"`
	Model   string     `json:"model,omitempty"`
	Backend string     `json:"backend,omitempty"`
	Filter  *ir.Filter `json:"filter,omitempty"`
	SQL     string     `json:"sql,omitempty"`
	Rows    []any      `json:"rows,omitempty"`
	Error   string     `json:"error,omitempty"`
}

// Result is the outcome of a test scenario execution.
type Result struct {
	// Pass indicates overall test success.
	// True if all expect clauses and assertions match.
	Pass bool `json:"pass"`

	// Trace holds one event per query step, in order.
	Trace []TraceEvent `json:"trace"`

	// Errors contains validation error messages.
	// Empty if Pass is true.
	Errors []string `json:"errors,omitempty"`

	// Logs is the warn-and-above log output captured during the run.
	Logs string `json:"logs,omitempty"`
}

// NewResult creates a new passing result.
// Used as the starting point for test execution.
func NewResult() *Result {
	return &Result{
		Pass:   true,
		Trace:  []TraceEvent{},
		Errors: []string{},
	}
}

// AddError adds a validation error and marks the result as failed.
func (r *Result) AddError(err string) {
	r.Errors = append(r.Errors, err)
	r.Pass = false
}

// AddTrace appends an event, numbering it after the ones already recorded.
func (r *Result) AddTrace(ev TraceEvent) {
	ev.Seq = len(r.Trace) + 1
	r.Trace = append(r.Trace, ev)
}
