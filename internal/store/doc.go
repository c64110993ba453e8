// Package store provides the SQLite database the relational connector's
// statements run against.
//
// A store materializes a model set as tables:
//   - One table per model, named after its collection, primary key first
//   - One column per owning relation (oneWay, oneToOne, manyToOne) holding the
//     target's primary key
//   - One link table per manyWay or manyToMany relation
//   - relfilter_models: the canonical definition and hash of every applied model
//
// # Critical Patterns
//
// Values are written through the same coercion and parameter conversion the
// filter compiler uses, so a stored value and a filter value of the same
// attribute always compare in the same representation. Timestamps are stored
// as fixed-width UTC text, which keeps lexical and chronological order equal.
//
// Every statement Run executes carries an ORDER BY with a primary-key
// tiebreaker, so results are deterministic.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - foreign_keys=ON: Enforce referential integrity
//
// Model hashes are computed via internal/ir/hash.go using RFC 8785 canonical
// JSON and SHA-256 with domain separation.
package store
