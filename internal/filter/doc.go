// Package filter turns a declarative, relation-aware filter description into
// a normalized filter that any storage connector can consume.
//
// For each where clause the Compiler:
//
//  1. resolves the field path across relations (Resolve)
//  2. looks up the terminal attribute's declared type
//  3. coerces the value, element-wise for sequences (package coerce)
//  4. rewrites a trailing id to the real primary key (NormalizeField)
//
// Clauses with nil values are dropped. Paths crossing more than one relation
// are logged as a warning and still compiled.
//
// The package holds no mutable state. Schemas come from an explicitly passed
// ModelProvider, never from a global registry.
package filter
