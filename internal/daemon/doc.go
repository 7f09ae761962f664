// Package daemon wires the pipeline services together: it builds the state
// tracker, download daemon, and processing daemon from one configuration,
// enforces single-instance execution with a file lock, and exposes status and
// runtime reconfiguration to the IPC layer.
package daemon
