// go-pn532-mifare
// Copyright (c) 2025 The Zaparoo Project Contributors.
// SPDX-License-Identifier: LGPL-3.0-or-later
//
// This file is part of go-pn532-mifare.
//
// go-pn532-mifare is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; either
// version 3 of the License, or (at your option) any later version.
//
// go-pn532-mifare is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with go-pn532-mifare; if not, write to the Free Software Foundation,
// Inc., 51 Franklin Street, Fifth Floor, Boston, MA  02110-1301, USA.

package testing

import (
	"errors"
	"io"
	"sync/atomic"
	"time"

	"github.com/ZaparooProject/go-pn532-mifare/internal/syncutil"
)

// ErrPortClosed is returned by SimulatorPort once Close has been called.
var ErrPortClosed = errors.New("simulator port closed")

// ErrInjected is returned by reads and writes failed on purpose.
var ErrInjected = errors.New("injected I/O failure")

// SimulatorPort exposes a VirtualPN532 through the method set of
// pn532.Transport, so a Device can be driven end to end without hardware.
type SimulatorPort struct {
	conn          io.ReadWriter
	sim           *VirtualPN532
	writes        [][]byte
	readTimeout   time.Duration
	mu            syncutil.Mutex
	resets        atomic.Int32
	failWrites    int
	failReads     int
	shortWrites   int
	closed        bool
	closeCount    int
	readTimeoutOK bool
}

// NewSimulatorPort creates a port connected directly to sim.
func NewSimulatorPort(sim *VirtualPN532) *SimulatorPort {
	return &SimulatorPort{sim: sim, conn: sim, readTimeoutOK: true}
}

// NewJitteryPort creates a port whose reads go through a JitteryConnection.
func NewJitteryPort(sim *VirtualPN532, config JitterConfig) *SimulatorPort {
	return &SimulatorPort{sim: sim, conn: NewJitteryConnection(sim, config), readTimeoutOK: true}
}

// Simulator returns the underlying VirtualPN532 for test setup.
func (p *SimulatorPort) Simulator() *VirtualPN532 {
	return p.sim
}

// String names the port in logs and errors.
func (*SimulatorPort) String() string {
	return "sim"
}

// Read returns pending simulator output, or 0, nil when there is none.
func (p *SimulatorPort) Read(buf []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, ErrPortClosed
	}
	if p.failReads > 0 {
		p.failReads--
		p.mu.Unlock()
		return 0, ErrInjected
	}
	p.mu.Unlock()

	return p.conn.Read(buf) //nolint:wrapcheck // Pass-through wrapper
}

// Write forwards data to the simulator and records it.
func (p *SimulatorPort) Write(data []byte) (int, error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return 0, ErrPortClosed
	}
	if p.failWrites > 0 {
		p.failWrites--
		p.mu.Unlock()
		return 0, ErrInjected
	}
	short := false
	if p.shortWrites > 0 {
		p.shortWrites--
		short = true
	}
	p.writes = append(p.writes, append([]byte(nil), data...))
	p.mu.Unlock()

	if short {
		// The simulator never sees a truncated frame; the host reports a
		// short write before the rest could be sent.
		return len(data) / 2, nil
	}
	return p.conn.Write(data) //nolint:wrapcheck // Pass-through wrapper
}

// ResetInputBuffer discards simulator output not yet read.
func (p *SimulatorPort) ResetInputBuffer() error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return ErrPortClosed
	}

	p.resets.Add(1)
	p.sim.DiscardOutput()
	if j, ok := p.conn.(*JitteryConnection); ok {
		j.ClearBuffer()
	}
	return nil
}

// SetReadTimeout records the timeout. Reads never block, so it has no
// other effect.
func (p *SimulatorPort) SetReadTimeout(t time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.readTimeoutOK {
		return ErrInjected
	}
	p.readTimeout = t
	return nil
}

// Close marks the port closed. Later calls are counted but do nothing.
func (p *SimulatorPort) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closeCount++
	p.closed = true
	return nil
}

// FailWrites makes the next n writes fail.
func (p *SimulatorPort) FailWrites(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failWrites = n
}

// FailReads makes the next n reads fail.
func (p *SimulatorPort) FailReads(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.failReads = n
}

// ShortWrites makes the next n writes report only half the bytes written.
func (p *SimulatorPort) ShortWrites(n int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.shortWrites = n
}

// FailSetReadTimeout makes SetReadTimeout return an error.
func (p *SimulatorPort) FailSetReadTimeout() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.readTimeoutOK = false
}

// Writes returns a copy of every buffer passed to Write.
func (p *SimulatorPort) Writes() [][]byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([][]byte, len(p.writes))
	for i, w := range p.writes {
		out[i] = append([]byte(nil), w...)
	}
	return out
}

// WriteCount returns how many writes were attempted successfully.
func (p *SimulatorPort) WriteCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.writes)
}

// ResetCount returns how many times ResetInputBuffer ran.
func (p *SimulatorPort) ResetCount() int {
	return int(p.resets.Load())
}

// ReadTimeout returns the last timeout passed to SetReadTimeout.
func (p *SimulatorPort) ReadTimeout() time.Duration {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.readTimeout
}

// Closed reports whether Close has been called.
func (p *SimulatorPort) Closed() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closed
}

// CloseCount returns how many times Close was called.
func (p *SimulatorPort) CloseCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closeCount
}
