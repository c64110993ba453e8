// Package harness provides conformance testing for relfilter schemas and
// filters.
//
// A scenario loads a CUE schema directory, seeds an in-memory store, runs
// filter queries through the real engine and checks what comes out: the
// compiled filter, the connector that built the query, the statement, the
// rows it selects and any error code.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	schema: ../schema
//	trace_id: trace-001
//	connectors: { bookshelf: sql, mongoose: document }
//	seed:
//	  - model: application::article.article
//	    rows:
//	      - { id: 1, title: "Go Tips", author: 42 }
//	queries:
//	  - name: by_author
//	    model: article
//	    filter:
//	      where:
//	        - { field: author.id, operator: eq, value: "42" }
//	    expect:
//	      where:
//	        - { field: author.userId, operator: eq, value: 42 }
//	      backend: sql
//	      rows: [1]
//	assertions:
//	  - type: log_count
//	    text: deep filtering
//	    count: 0
//
// # Assertion Types
//
// The following assertion types are supported:
//
//   - log_contains: Verifies some captured log line contains a text
//   - log_count: Verifies exactly N captured log lines contain a text
//   - row_count: Verifies the number of rows stored for a model
//
// # Deterministic Testing
//
// Every query of a scenario carries the scenario's fixed trace id, the store
// is a fresh in-memory SQLite database and relational results are always
// ordered by primary key last, so traces are identical across runs and can
// be compared against golden files.
//
// # Usage
//
//	scenario, err := harness.LoadScenario("testdata/scenarios/deep_relations.yaml")
//	if err != nil {
//	    log.Fatal(err)
//	}
//
//	result, err := harness.Run(scenario)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	if !result.Pass {
//	    for _, msg := range result.Errors {
//	        log.Println(msg)
//	    }
//	}
package harness
