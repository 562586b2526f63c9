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

// Package uart implements the PN532 HSU byte stream on a serial port.
package uart

import (
	"errors"
	"fmt"
	"runtime"
	"strings"
	"sync"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532-mifare"
	"go.bug.st/serial"
)

// DefaultBaudRate is the PN532 HSU rate after power-on.
const DefaultBaudRate = 115200

type config struct {
	baudRate    int
	readTimeout time.Duration
}

// Option configures Open.
type Option func(*config)

// WithBaudRate overrides the 115200 baud default.
func WithBaudRate(baud int) Option {
	return func(c *config) {
		c.baudRate = baud
	}
}

// WithReadTimeout overrides the platform default read timeout.
func WithReadTimeout(timeout time.Duration) Option {
	return func(c *config) {
		c.readTimeout = timeout
	}
}

// Transport implements pn532.Transport on a go.bug.st/serial port.
type Transport struct {
	port     serial.Port
	portName string
	mu       sync.Mutex
	closed   bool
}

// isWindows returns true if running on Windows
func isWindows() bool {
	return runtime.GOOS == "windows"
}

// getWindowsTimeout returns the default read timeout for the platform.
// 50ms works on Linux/Mac, Windows drivers need 100ms.
func getWindowsTimeout() time.Duration {
	if isWindows() {
		return 100 * time.Millisecond
	}
	return 50 * time.Millisecond
}

// windowsPostWriteDelay gives Windows drivers time to flush after a write.
func windowsPostWriteDelay() {
	if isWindows() {
		time.Sleep(15 * time.Millisecond)
	}
}

// Open opens portName as 8N1 at 115200 baud unless overridden.
func Open(portName string, opts ...Option) (*Transport, error) {
	cfg := config{
		baudRate:    DefaultBaudRate,
		readTimeout: getWindowsTimeout(),
	}
	for _, opt := range opts {
		opt(&cfg)
	}
	if cfg.baudRate <= 0 || cfg.readTimeout <= 0 {
		return nil, fmt.Errorf("%w: baud rate %d, read timeout %v",
			pn532.ErrInvalidParameter, cfg.baudRate, cfg.readTimeout)
	}

	port, err := serial.Open(portName, &serial.Mode{
		BaudRate: cfg.baudRate,
		DataBits: 8,
		Parity:   serial.NoParity,
		StopBits: serial.OneStopBit,
	})
	if err != nil {
		return nil, pn532.NewTransportError("open", portName,
			fmt.Errorf("failed to open UART port: %w", err), pn532.ErrorTypePermanent)
	}

	if err := port.SetReadTimeout(cfg.readTimeout); err != nil {
		_ = port.Close()
		return nil, pn532.NewTransportError("open", portName,
			fmt.Errorf("failed to set UART read timeout: %w", err), pn532.ErrorTypePermanent)
	}

	pn532.Debugf("UART %s opened at %d baud, read timeout %v", portName, cfg.baudRate, cfg.readTimeout)
	return NewWithPort(port, portName), nil
}

// NewWithPort wraps an already opened port.
func NewWithPort(port serial.Port, portName string) *Transport {
	return &Transport{
		port:     port,
		portName: portName,
	}
}

// ListPorts returns the serial port names present on the system.
func ListPorts() ([]string, error) {
	ports, err := serial.GetPortsList()
	if err != nil {
		return nil, fmt.Errorf("failed to enumerate serial ports: %w", err)
	}
	return ports, nil
}

// String returns the port name.
func (t *Transport) String() string {
	return t.portName
}

// Read returns whatever bytes arrive before the read timeout. A timeout
// with nothing received is 0, nil.
func (t *Transport) Read(p []byte) (int, error) {
	port, err := t.openPort("read")
	if err != nil {
		return 0, err
	}

	n, err := port.Read(p)
	if err != nil {
		if isInterruptedSystemCall(err) {
			return n, nil
		}
		return n, pn532.NewTransportReadError("read", t.portName, err)
	}
	return n, nil
}

// Write writes p and drains it to the wire.
func (t *Transport) Write(p []byte) (int, error) {
	port, err := t.openPort("write")
	if err != nil {
		return 0, err
	}

	n, err := port.Write(p)
	if err != nil {
		return n, pn532.NewTransportWriteError("write", t.portName, err)
	}
	if err := t.drainWithRetry(port, "write"); err != nil {
		return n, err
	}
	windowsPostWriteDelay()
	return n, nil
}

// ResetInputBuffer discards unread input.
func (t *Transport) ResetInputBuffer() error {
	port, err := t.openPort("reset input")
	if err != nil {
		return err
	}
	if err := port.ResetInputBuffer(); err != nil {
		return pn532.NewTransportReadError("reset input", t.portName, err)
	}
	return nil
}

// SetReadTimeout bounds how long a single Read may block.
func (t *Transport) SetReadTimeout(timeout time.Duration) error {
	port, err := t.openPort("set timeout")
	if err != nil {
		return err
	}
	if err := port.SetReadTimeout(timeout); err != nil {
		return pn532.NewTransportError("set timeout", t.portName,
			fmt.Errorf("UART set timeout failed: %w", err), pn532.ErrorTypePermanent)
	}
	return nil
}

// Close closes the port. Closing twice is a no-op.
func (t *Transport) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.port == nil {
		t.closed = true
		return nil
	}
	t.closed = true
	if err := t.port.Close(); err != nil {
		return pn532.NewTransportError("close", t.portName,
			fmt.Errorf("UART close failed: %w", err), pn532.ErrorTypePermanent)
	}
	return nil
}

func (t *Transport) openPort(op string) (serial.Port, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.closed || t.port == nil {
		return nil, pn532.NewTransportError(op, t.portName, pn532.ErrTransportClosed, pn532.ErrorTypePermanent)
	}
	return t.port, nil
}

// isInterruptedSystemCall checks if an error is caused by an interrupted system call
func isInterruptedSystemCall(err error) bool {
	if err == nil {
		return false
	}
	if isInterruptedErrno(err) {
		return true
	}
	// Some serial backends only report the errno text.
	errStr := strings.ToLower(err.Error())
	return strings.Contains(errStr, "interrupted system call") ||
		strings.Contains(errStr, "eintr")
}

var errDrainRetriesExhausted = errors.New("drain retries exhausted")

// drainWithRetry performs port drain with retry logic for interrupted system calls
func (t *Transport) drainWithRetry(port serial.Port, operation string) error {
	const maxRetries = 3
	baseDelay := 2 * time.Millisecond

	var err error
	for attempt := range maxRetries {
		err = port.Drain()
		if err == nil {
			return nil
		}
		if !isInterruptedSystemCall(err) {
			return pn532.NewTransportWriteError(operation+" drain", t.portName, err)
		}
		if attempt < maxRetries-1 {
			time.Sleep(baseDelay << attempt) // 2ms, 4ms
		}
	}

	return pn532.NewTransportWriteError(operation+" drain", t.portName,
		fmt.Errorf("%w after %d attempts: %w", errDrainRetriesExhausted, maxRetries, err))
}
