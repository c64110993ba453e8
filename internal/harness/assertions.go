package harness

import (
	"context"
	"fmt"
	"strings"

	"github.com/roach88/relfilter/internal/store"
)

// AssertionError is returned when an assertion fails.
// It includes detailed context to help debug the failure.
type AssertionError struct {
	Type     string // Assertion type for categorization
	Expected string // Human-readable expected outcome
	Actual   string // Human-readable actual outcome
	Logs     string // Captured log output for debugging context
}

// Error implements the error interface.
func (e *AssertionError) Error() string {
	var buf strings.Builder

	fmt.Fprintf(&buf, "Assertion failed: %s\n", e.Type)
	fmt.Fprintf(&buf, "  Expected: %s\n", e.Expected)
	fmt.Fprintf(&buf, "  Actual: %s\n", e.Actual)

	if e.Logs != "" {
		fmt.Fprintf(&buf, "\nCaptured logs:\n")
		for _, line := range logLines(e.Logs) {
			fmt.Fprintf(&buf, "  %s\n", line)
		}
	}

	return buf.String()
}

// logLines splits captured output into non-empty lines.
func logLines(logs string) []string {
	var lines []string
	for _, line := range strings.Split(logs, "\n") {
		if line != "" {
			lines = append(lines, line)
		}
	}
	return lines
}

// countLines returns how many log lines contain text.
func countLines(logs, text string) int {
	n := 0
	for _, line := range logLines(logs) {
		if strings.Contains(line, text) {
			n++
		}
	}
	return n
}

// assertLogContains checks that at least one log line contains the text.
func assertLogContains(logs string, assertion Assertion) error {
	if countLines(logs, assertion.Text) > 0 {
		return nil
	}
	return &AssertionError{
		Type:     AssertLogContains,
		Expected: fmt.Sprintf("a log line containing %q", assertion.Text),
		Actual:   "not found in logs",
		Logs:     logs,
	}
}

// assertLogCount checks that exactly Count log lines contain the text.
func assertLogCount(logs string, assertion Assertion) error {
	count := countLines(logs, assertion.Text)
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertLogCount,
			Expected: fmt.Sprintf("%d log lines containing %q", assertion.Count, assertion.Text),
			Actual:   fmt.Sprintf("%d lines", count),
			Logs:     logs,
		}
	}
	return nil
}

// assertRowCount checks the number of rows stored for a model.
func assertRowCount(ctx context.Context, st *store.Store, assertion Assertion) error {
	count, err := st.Count(ctx, assertion.Model)
	if err != nil {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("count rows of %s", assertion.Model),
			Actual:   fmt.Sprintf("query error: %v", err),
		}
	}
	if count != assertion.Count {
		return &AssertionError{
			Type:     AssertRowCount,
			Expected: fmt.Sprintf("%d rows in %s", assertion.Count, assertion.Model),
			Actual:   fmt.Sprintf("%d rows", count),
		}
	}
	return nil
}

// AssertionContext provides context for evaluating assertions.
type AssertionContext struct {
	Store *store.Store
	Ctx   context.Context
}

// EvaluateAssertions evaluates all assertions against the result.
// Returns a slice of error messages for failed assertions.
// The actx parameter provides database access for row_count assertions.
func EvaluateAssertions(result *Result, assertions []Assertion, actx *AssertionContext) []string {
	var errors []string

	for i, assertion := range assertions {
		var err error

		switch assertion.Type {
		case AssertLogContains:
			err = assertLogContains(result.Logs, assertion)
		case AssertLogCount:
			err = assertLogCount(result.Logs, assertion)
		case AssertRowCount:
			if actx == nil || actx.Store == nil {
				err = fmt.Errorf("assertion[%d]: row_count requires database context", i)
			} else {
				err = assertRowCount(actx.Ctx, actx.Store, assertion)
			}
		default:
			err = fmt.Errorf("assertion[%d]: unknown assertion type %q", i, assertion.Type)
		}

		if err != nil {
			errors = append(errors, err.Error())
		}
	}

	return errors
}
