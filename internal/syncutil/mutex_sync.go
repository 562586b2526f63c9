//go:build !deadlock

// Package syncutil provides the lock that serializes PN532 exchanges.
// By default it is a plain sync.Mutex. Build with -tags=deadlock to check
// lock ordering via github.com/sasha-s/go-deadlock.
package syncutil

import "sync"

// Mutex wraps sync.Mutex. Build with -tags=deadlock for lock-order checking.
//
//nolint:gocritic // Intentionally embedding sync.Mutex to expose its interface
type Mutex struct {
	sync.Mutex
}

// DetectionEnabled reports whether this build checks lock ordering.
func DetectionEnabled() bool { return false }
