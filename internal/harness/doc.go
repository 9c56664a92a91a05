// Package harness runs query scenarios: YAML files that set up a database,
// register compiled queries and execute terms against them, checking each
// result and the final database state.
//
// # Scenario Format
//
// Scenarios are defined in YAML files with the following structure:
//
//	name: scenario_name
//	description: "What this scenario validates"
//	sources: ../queries        # optional CUE query sources
//	schema:
//	  - CREATE TABLE users (id INTEGER PRIMARY KEY, name TEXT)
//	  - INSERT INTO users VALUES (1, 'ada')
//	queries:
//	  users:
//	    interface: { keys: { userID: id } }
//	    sql: SELECT id, name FROM users
//	  admins:
//	    term: "users:active"
//	globals: { tenantID: 1 }
//	flow:
//	  - term: "users(messages)"
//	    params: { userID: 1 }
//	    expect:
//	      result: [{ id: 1, name: ada, messages: [] }]
//	  - term: users.rename
//	    run: true
//	    params: { id: 1, name: ann }
//	assertions:
//	  - type: trace_contains
//	    term: users.rename
//	  - type: final_state
//	    table: users
//	    where: { id: 1 }
//	    expect: { name: ann }
//
// # Assertion Types
//
//   - trace_contains: a step ran the term with matching params (subset)
//   - trace_order: terms ran in the given order
//   - trace_count: a term ran exactly N times
//   - final_state: one row of a table matches the expected values
//
// # Deterministic Testing
//
// Every scenario runs against its own in-memory SQLite database with
// sequential run ids, so the recorded trace is identical across runs and
// can be compared against a golden file with RunWithGolden.
package harness
