// Command radarpipe is the operator CLI for the pipeline daemon: status,
// state queries, runtime reconfiguration, configuration management, and a
// one-shot alignment mode for local scan files.
package main
