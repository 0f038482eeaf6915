// Package harness runs UI stream scenarios against a real engine session.
//
// A scenario streams patches into a session, optionally dispatches actions
// through stub handlers, and asserts on the rendered tree, the data model
// and the diagnostics.
//
// # Scenario Format
//
// Scenarios are YAML files:
//
//	name: save_flow
//	description: "Saving shows a confirmation message"
//	catalog: |
//	  components: {Stack: {}, Button: {props: {label: string}}}
//	  actions: save_changes: {}
//	data:
//	  doc: {id: d1}
//	handlers:
//	  save_changes: {result: {ok: true}}
//	stream:
//	  - {op: set, path: /root, value: page}
//	  - {op: add, path: /elements/page, value: {type: Stack, props: {}, children: [save]}}
//	steps:
//	  - dispatch: save
//	    expect: success
//	assertions:
//	  - type: handler_calls
//	    action: save_changes
//	    count: 1
//
// # Assertion Types
//
//   - data_equals: the data model at path equals value
//   - visible / hidden: an element key is or is not in the rendered tree
//   - settled: the stream reached the settled state
//   - dangling: the listed keys are reported as dangling references
//   - diagnostic: a diagnostic with code (and optionally element) was raised
//   - handler_calls: a handler ran exactly count times
//
// # Deterministic Runs
//
// Every run uses a fresh in-memory journal, a fixed session ID and
// sequential invocation IDs, so the same scenario always renders the same
// outline. RunWithGolden compares that outline against
// testdata/golden/<name>.golden.
package harness
