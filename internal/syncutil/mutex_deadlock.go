//go:build deadlock

// Package syncutil provides the lock that serializes PN532 exchanges.
// This file is compiled when building with -tags=deadlock.
package syncutil

import deadlock "github.com/sasha-s/go-deadlock"

func init() {
	// A single exchange may legitimately hold the lock while it keeps
	// re-sending an unacknowledged frame, so only lock-order inversions
	// are reported, not long holds.
	deadlock.Opts.DeadlockTimeout = 0
}

// Mutex wraps deadlock.Mutex for lock-order checking.
type Mutex struct {
	deadlock.Mutex
}

// DetectionEnabled reports whether this build checks lock ordering.
func DetectionEnabled() bool { return true }
