package ir

import (
	"fmt"
	"strings"
)

// Operator is a backend-independent comparison operator.
type Operator string

const (
	OpEq         Operator = "eq"
	OpNe         Operator = "ne"
	OpLt         Operator = "lt"
	OpLte        Operator = "lte"
	OpGt         Operator = "gt"
	OpGte        Operator = "gte"
	OpIn         Operator = "in"
	OpNin        Operator = "nin"
	OpContains   Operator = "contains"
	OpNcontains  Operator = "ncontains"
	OpContainss  Operator = "containss"
	OpNcontainss Operator = "ncontainss"
	OpNull       Operator = "null"
)

// Operators lists the full operator vocabulary.
var Operators = []Operator{
	OpEq, OpNe, OpLt, OpLte, OpGt, OpGte, OpIn, OpNin,
	OpContains, OpNcontains, OpContainss, OpNcontainss, OpNull,
}

// ParseOperator returns the operator named by s.
func ParseOperator(s string) (Operator, error) {
	for _, op := range Operators {
		if string(op) == s {
			return op, nil
		}
	}
	return "", fmt.Errorf("unknown operator %q", s)
}

// IsSubstring reports whether the operator is one of the contains family.
func (op Operator) IsSubstring() bool {
	switch op {
	case OpContains, OpNcontains, OpContainss, OpNcontainss:
		return true
	}
	return false
}

// WhereClause is one field/operator/value filter condition.
//
// Field is a dot-separated path that may cross relations ("author.name").
// Value is whatever the caller supplied; after compilation it holds the value
// coerced to the terminal attribute's type, or a []any of coerced values.
type WhereClause struct {
	Field    string   `json:"field" yaml:"field"`
	Operator Operator `json:"operator" yaml:"operator"`
	Value    any      `json:"value" yaml:"value"`
}

// SortOrder is the direction of a sort key.
type SortOrder string

const (
	SortAsc  SortOrder = "asc"
	SortDesc SortOrder = "desc"
)

// Sort is one ordering key.
type Sort struct {
	Field string    `json:"field" yaml:"field"`
	Order SortOrder `json:"order" yaml:"order"`
}

// ParseSort parses "field:ASC,other:desc". A key without a direction sorts
// ascending.
func ParseSort(s string) ([]Sort, error) {
	var keys []Sort
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		field, dir, _ := strings.Cut(part, ":")
		order := SortAsc
		switch strings.ToLower(strings.TrimSpace(dir)) {
		case "", "asc":
		case "desc":
			order = SortDesc
		default:
			return nil, fmt.Errorf("invalid sort direction %q for %q", dir, field)
		}
		keys = append(keys, Sort{Field: strings.TrimSpace(field), Order: order})
	}
	return keys, nil
}

// Filter is a request-scoped filter description.
//
// The same shape carries both the caller's raw description and the compiled
// filter handed to connectors. Limit and Start are nil when unset; a negative
// Limit means "no limit". Options carries backend-specific passthrough values.
type Filter struct {
	Where   []WhereClause  `json:"where,omitempty" yaml:"where,omitempty"`
	Sort    []Sort         `json:"sort,omitempty" yaml:"sort,omitempty"`
	Limit   *int           `json:"limit,omitempty" yaml:"limit,omitempty"`
	Start   *int           `json:"start,omitempty" yaml:"start,omitempty"`
	Options map[string]any `json:"options,omitempty" yaml:"options,omitempty"`
}

// Int returns a pointer to n, for filling Limit and Start.
func Int(n int) *int {
	return &n
}
