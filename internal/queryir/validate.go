package queryir

import (
	"fmt"

	"github.com/roach88/relfilter/internal/ir"
)

// ValidationResult contains portability analysis of a query.
//
// A portable query returns the same rows from every connector. Queries
// outside the portable fragment still run; the warnings tell callers which
// connector-specific behavior they are relying on.
type ValidationResult struct {
	// IsPortable indicates if the query uses only portable fragment features.
	IsPortable bool

	// Warnings lists non-portable features used in the query.
	// Empty when IsPortable is true.
	Warnings []string
}

// Validate checks if a query conforms to the portable fragment rules.
//
// Portable fragment rules:
//  1. Substring operators only on text-like attributes
//  2. Range operators not on json, boolean or untyped attributes
//  3. No ordering through a to-many relation
//  4. Every compared value has the shape its operator expects
//
// Validate is a pure function with no side effects.
func Validate(sel *Select) ValidationResult {
	v := &validator{
		warnings: []string{},
		toMany:   make(map[string]bool),
	}
	v.validateSelect(sel)

	return ValidationResult{
		IsPortable: len(v.warnings) == 0,
		Warnings:   v.warnings,
	}
}

// validator accumulates warnings during traversal.
type validator struct {
	warnings []string
	toMany   map[string]bool // join aliases reached through a to-many hop
}

// addWarning appends a warning message.
func (v *validator) addWarning(format string, args ...any) {
	v.warnings = append(v.warnings, fmt.Sprintf(format, args...))
}

func (v *validator) validateSelect(sel *Select) {
	if sel == nil {
		v.addWarning("nil query - portable fragment requires a valid query")
		return
	}

	for _, j := range sel.Joins {
		v.toMany[j.Alias] = v.toMany[j.Parent] || j.Association.Nature.ToMany()
	}

	if sel.Filter != nil {
		v.validatePredicate(sel.Filter)
	}

	// Rule 3: ordering on a to-many relation picks an arbitrary element
	for _, o := range sel.Order {
		if v.toMany[o.Ref.Alias] {
			v.addWarning("Ordering by %s through a to-many relation - row order differs between connectors", describe(o.Ref))
		}
	}
}

// validatePredicate recursively validates a predicate node.
func (v *validator) validatePredicate(p Predicate) {
	switch pred := p.(type) {
	case nil:
	case Compare:
		v.validateCompare(pred)
	case *Compare:
		v.validateCompare(*pred)
	case And:
		v.validateAnd(pred)
	case *And:
		v.validateAnd(*pred)
	default:
		v.addWarning("Unknown predicate type: %T - portability cannot be verified", p)
	}
}

func (v *validator) validateCompare(c Compare) {
	switch c.Op {
	case ir.OpContains, ir.OpNcontains, ir.OpContainss, ir.OpNcontainss:
		// Rule 1
		if !textLike(c.Ref.Type) {
			v.addWarning("Substring operator %s on %s attribute %s - matching differs between connectors", c.Op, typeName(c.Ref.Type), describe(c.Ref))
		}
	case ir.OpLt, ir.OpLte, ir.OpGt, ir.OpGte:
		// Rule 2
		switch c.Ref.Type {
		case ir.TypeJSON, ir.TypeBoolean, ir.TypeUntyped:
			v.addWarning("Range operator %s on %s attribute %s - ordering differs between connectors", c.Op, typeName(c.Ref.Type), describe(c.Ref))
		}
	}

	// Rule 4
	switch c.Op {
	case ir.OpIn, ir.OpNin:
		if _, ok := c.Value.([]any); !ok {
			v.addWarning("Operator %s on %s expects a list, got %T", c.Op, describe(c.Ref), c.Value)
		}
	case ir.OpNull:
		if _, ok := c.Value.(bool); !ok {
			v.addWarning("Operator null on %s expects a boolean, got %T", describe(c.Ref), c.Value)
		}
	}
}

// validateAnd validates an And predicate.
func (v *validator) validateAnd(and And) {
	for _, subPred := range and.Predicates {
		v.validatePredicate(subPred)
	}
}

func textLike(t ir.AttrType) bool {
	switch t {
	case ir.TypeString, ir.TypeText, ir.TypeRichText, ir.TypeEmail,
		ir.TypeUID, ir.TypeEnumeration, ir.TypePassword:
		return true
	}
	return false
}

func typeName(t ir.AttrType) string {
	if t == ir.TypeUntyped {
		return "untyped"
	}
	return string(t)
}

func describe(ref ColumnRef) string {
	if ref.Alias == "" {
		return ref.Column
	}
	return ref.Alias + "." + ref.Column
}
