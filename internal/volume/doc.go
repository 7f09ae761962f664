// Package volume groups acquired scan files into logical acquisition volumes
// and runs the processing daemon that dispatches complete groups through the
// alignment algorithm.
//
// A volume group collects every file sharing one (instrument, scan,
// timestamp) key. When a caller-supplied completeness policy judges a group
// done, its members are decoded by the external decoder, aligned onto the
// reference grid, and the assembled volume is handed to the external
// consumer. Group outcomes are journaled separately from download state so
// the two daemons progress and recover independently.
package volume
