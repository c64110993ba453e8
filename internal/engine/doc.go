// Package engine implements query dispatch: it binds models to storage
// connectors and drives a filter from its raw description to a
// backend-native query.
//
// ARCHITECTURE:
//
// Request Flow:
//  1. BuildQuery (or For(...).BuildQuery) looks the model up by UID or name
//  2. The model's storage-engine key is checked against the connector registry
//  3. filter.Compiler resolves, coerces and normalizes every where clause
//  4. Dispatch hands the compiled filter, with sort, pagination and options,
//     to the registered connector.QueryBuilder
//  5. The connector's query is returned unmodified
//
// The engine never executes queries; connectors build them and callers run
// them (internal/store for the relational connector).
//
// CRITICAL PATTERNS:
//
// Fail Before Dispatch:
// An unregistered storage engine is a configuration fault. It is reported as
// UNREGISTERED_CONNECTOR before the compiler or any connector runs, and is
// never retried.
//
// Immutable After Construction:
// Models, the connector registry and the compiler are fixed by New. Every
// method is safe for concurrent use without locks.
//
// Correlation:
// Every prepared query gets a trace id from the TraceIDGenerator (UUIDv7 in
// production) that tags its log lines and the CLI output envelope.
package engine
