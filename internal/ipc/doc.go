// Package ipc exposes daemon control over a Unix domain socket using
// JSON-RPC: status queries, state lookups, runtime reconfiguration, and
// shutdown.
package ipc
