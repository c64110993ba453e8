// Package queryir provides the connector-neutral query plan built from a
// compiled filter.
//
// QueryIR is the abstraction boundary between the filter compiler and the
// storage connectors. Both the relational and the document connector consume
// the same plan:
//
//	[compiled filter] → [Query IR] → [SQL connector]
//	                               → [document connector]
//
// The plan fixes everything that does not depend on the backend: which
// relations must be joined (each relation path once, parents first), which
// column each clause compares, and which column each sort key orders by.
// Backends only decide how to spell joins, operators and parameters.
//
// SEALED INTERFACES:
//
// Predicate is a sealed interface using the marker method pattern. Only
// types in this package can implement it, so connectors can switch over
// Compare and And exhaustively.
//
// PORTABLE FRAGMENT:
//
// Validate reports the features whose results differ between connectors:
// substring matching on non-text columns, range comparisons on json or
// boolean columns and ordering through to-many relations. Such queries
// still run; the warnings are advisory.
package queryir
