// Copyright 2026 The Zaparoo Project Contributors.
// SPDX-License-Identifier: Apache-2.0
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package pn532

import "time"

// Connection retry constants control device connection behavior.
const (
	// DefaultConnectionRetries is the number of attempts to connect to a device.
	DefaultConnectionRetries = 3
	// ConnectionInitialBackoff is the initial delay between connection attempts.
	ConnectionInitialBackoff = 100 * time.Millisecond
	// ConnectionMaxBackoff is the maximum delay between connection attempts.
	ConnectionMaxBackoff = 500 * time.Millisecond
	// ConnectionBackoffMultiplier is the exponential backoff multiplier.
	ConnectionBackoffMultiplier = 2.0
	// ConnectionJitter is the random jitter factor (0.0-1.0) to prevent thundering herd.
	ConnectionJitter = 0.1
	// ConnectionRetryTimeout is the overall timeout for all connection attempts.
	ConnectionRetryTimeout = 10 * time.Second
)

// Handshake timing. A request frame is written, then the input is polled
// until the ACK shows up or the ACK window closes, and the frame is
// written again after a pause.
const (
	// DefaultAckTimeout is how long one attempt waits for the ACK.
	DefaultAckTimeout = 1000 * time.Millisecond
	// DefaultRetryInterval is the pause before re-sending an unacknowledged frame.
	DefaultRetryInterval = 300 * time.Millisecond
	// DefaultPollInterval is the delay before each read so bytes can accumulate.
	DefaultPollInterval = 120 * time.Millisecond
	// DefaultReadTimeout bounds a single transport read.
	DefaultReadTimeout = 50 * time.Millisecond
	// DefaultMaxHandshakeAttempts of zero keeps re-sending until the
	// context is cancelled.
	DefaultMaxHandshakeAttempts = 0
)

// Target polling used by WaitForTarget.
const (
	// DefaultTargetPollInterval is the base delay between discovery attempts.
	DefaultTargetPollInterval = 250 * time.Millisecond
	// TargetPollJitter spreads discovery attempts slightly.
	TargetPollJitter = 0.1
)

// SAM configuration used by ConfigureReader: normal mode, 20 x 50 ms
// virtual card timeout, IRQ pin in use.
const (
	DefaultSAMTimeout byte = 0x14
	DefaultSAMUseIRQ  byte = 0x01
)

// readChunkSize is large enough for a maximum frame plus a couple of ACKs.
const readChunkSize = 512
