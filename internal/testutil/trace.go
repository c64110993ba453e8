package testutil

// FixedTraceGenerator generates the same trace id every time.
//
// This keeps CLI envelopes and scenario output byte-identical between runs so
// they can be compared against golden files.
//
// Thread-safety: FixedTraceGenerator is stateless and safe for concurrent use.
type FixedTraceGenerator struct {
	id string
}

// NewFixedTraceGenerator creates a new fixed trace id generator.
//
// If id is empty, Generate() returns "test-trace-default".
func NewFixedTraceGenerator(id string) *FixedTraceGenerator {
	if id == "" {
		id = "test-trace-default"
	}
	return &FixedTraceGenerator{id: id}
}

// Generate returns the fixed trace id.
//
// Implements engine.TraceIDGenerator.
func (g *FixedTraceGenerator) Generate() string {
	return g.id
}
