// Package state durably tracks which remote scan files have been acquired.
//
// Two interchangeable backends satisfy the Tracker contract: a flat JSON file
// and an embedded SQLite database. Callers stay backend-agnostic; the choice
// is made once at construction from configuration. Writes are serialized per
// store and a record is fully durable before a mark call returns. A corrupted
// persisted store degrades to an empty store with a logged warning instead of
// failing.
package state
