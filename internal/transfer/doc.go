// Package transfer talks to the remote file source.
//
// It defines the client contract shared by the blocking FTP client and the
// capped concurrent pool, the probe-based directory detection the protocol
// forces on us, and the TransferError kind callers use to decide retry
// policy. Downloads always land through a temporary file and an atomic
// rename, so no consumer ever observes a partially written file.
package transfer
