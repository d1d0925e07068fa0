// Package backup converts the logical content of a storage engine to and
// from a versioned JSON bundle.
//
// Bundle layout:
//
//	{"version": 3, "timestamp": "2024-05-06T07:08:09.000Z", "data": {"<table>": [{...}, ...]}}
//
// Rows carry only primitive values; structured payloads are stored as JSON
// text. Exports list tables in name order and rows in the engine's stable
// order, so two exports of the same state differ only in timestamp.
//
// Import validates the whole bundle against the destination engine before
// touching it, then replaces every named table in one atomic step.
package backup
