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

package pn532

import (
	"context"
	"fmt"
	"time"

	"github.com/ZaparooProject/go-pn532-mifare/internal/frame"
	"github.com/ZaparooProject/go-pn532-mifare/internal/syncutil"
)

// DeviceConfig contains configuration options for the Device
type DeviceConfig struct {
	// AckTimeout is how long one handshake attempt waits for the ACK.
	AckTimeout time.Duration
	// RetryInterval is the pause before an unacknowledged frame is re-sent.
	RetryInterval time.Duration
	// PollInterval is the delay before each read while waiting for the ACK.
	PollInterval time.Duration
	// ReadTimeout bounds a single transport read.
	ReadTimeout time.Duration
	// MaxHandshakeAttempts limits how often a frame is sent before the
	// exchange fails with ErrHandshakeTimeout. Zero means no limit; the
	// caller's context is then the only way to stop it.
	MaxHandshakeAttempts int
	// TargetPollInterval is the base delay between WaitForTarget attempts.
	TargetPollInterval time.Duration
}

// DefaultDeviceConfig returns default device configuration
func DefaultDeviceConfig() *DeviceConfig {
	return &DeviceConfig{
		AckTimeout:           DefaultAckTimeout,
		RetryInterval:        DefaultRetryInterval,
		PollInterval:         DefaultPollInterval,
		ReadTimeout:          DefaultReadTimeout,
		MaxHandshakeAttempts: DefaultMaxHandshakeAttempts,
		TargetPollInterval:   DefaultTargetPollInterval,
	}
}

// Validate reports the first invalid field, wrapped in ErrInvalidParameter.
func (c *DeviceConfig) Validate() error {
	switch {
	case c.AckTimeout <= 0:
		return fmt.Errorf("%w: ack timeout must be positive, got %v", ErrInvalidParameter, c.AckTimeout)
	case c.RetryInterval < 0:
		return fmt.Errorf("%w: retry interval must not be negative, got %v", ErrInvalidParameter, c.RetryInterval)
	case c.PollInterval < 0:
		return fmt.Errorf("%w: poll interval must not be negative, got %v", ErrInvalidParameter, c.PollInterval)
	case c.ReadTimeout <= 0:
		return fmt.Errorf("%w: read timeout must be positive, got %v", ErrInvalidParameter, c.ReadTimeout)
	case c.MaxHandshakeAttempts < 0:
		return fmt.Errorf("%w: max handshake attempts must not be negative, got %d",
			ErrInvalidParameter, c.MaxHandshakeAttempts)
	case c.TargetPollInterval <= 0:
		return fmt.Errorf("%w: target poll interval must be positive, got %v",
			ErrInvalidParameter, c.TargetPollInterval)
	default:
		return nil
	}
}

// Option configures a Device at construction.
type Option func(*Device) error

// WithConfig replaces the whole configuration.
func WithConfig(config *DeviceConfig) Option {
	return func(d *Device) error {
		if config == nil {
			return fmt.Errorf("%w: nil config", ErrInvalidParameter)
		}
		if err := config.Validate(); err != nil {
			return err
		}
		cfg := *config
		d.config = &cfg
		return nil
	}
}

// WithAckTimeout sets how long each handshake attempt waits for the ACK.
func WithAckTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: ack timeout must be positive, got %v", ErrInvalidParameter, timeout)
		}
		d.config.AckTimeout = timeout
		return nil
	}
}

// WithRetryInterval sets the pause before an unacknowledged frame is re-sent.
func WithRetryInterval(interval time.Duration) Option {
	return func(d *Device) error {
		if interval < 0 {
			return fmt.Errorf("%w: retry interval must not be negative, got %v", ErrInvalidParameter, interval)
		}
		d.config.RetryInterval = interval
		return nil
	}
}

// WithPollInterval sets the delay before each read during the handshake.
func WithPollInterval(interval time.Duration) Option {
	return func(d *Device) error {
		if interval < 0 {
			return fmt.Errorf("%w: poll interval must not be negative, got %v", ErrInvalidParameter, interval)
		}
		d.config.PollInterval = interval
		return nil
	}
}

// WithReadTimeout sets the per-read timeout applied to the transport.
func WithReadTimeout(timeout time.Duration) Option {
	return func(d *Device) error {
		if timeout <= 0 {
			return fmt.Errorf("%w: read timeout must be positive, got %v", ErrInvalidParameter, timeout)
		}
		d.config.ReadTimeout = timeout
		return nil
	}
}

// WithMaxHandshakeAttempts bounds how often a frame is sent without an ACK.
// Zero restores the unlimited default.
func WithMaxHandshakeAttempts(attempts int) Option {
	return func(d *Device) error {
		if attempts < 0 {
			return fmt.Errorf("%w: max handshake attempts must not be negative, got %d",
				ErrInvalidParameter, attempts)
		}
		d.config.MaxHandshakeAttempts = attempts
		return nil
	}
}

// WithTargetPollInterval sets the base delay between WaitForTarget attempts.
func WithTargetPollInterval(interval time.Duration) Option {
	return func(d *Device) error {
		if interval <= 0 {
			return fmt.Errorf("%w: target poll interval must be positive, got %v", ErrInvalidParameter, interval)
		}
		d.config.TargetPollInterval = interval
		return nil
	}
}

// Device represents a PN532 reached over a byte-stream transport.
//
// Thread Safety: all exchanges on a Device are serialized by an internal
// lock, so at most one request is outstanding at a time. Methods may be
// called from several goroutines but they will queue behind each other.
type Device struct {
	transport       Transport
	config          *DeviceConfig
	firmwareVersion *FirmwareVersion
	name            string
	mu              syncutil.Mutex
	closed          bool
}

// New creates a Device that owns transport. Nothing is written to the
// wire; call Begin to wake the chip.
func New(transport Transport, opts ...Option) (*Device, error) {
	if transport == nil {
		return nil, fmt.Errorf("%w: nil transport", ErrInvalidParameter)
	}

	device := &Device{
		transport: transport,
		config:    DefaultDeviceConfig(),
		name:      transportName(transport),
	}

	for _, opt := range opts {
		if err := opt(device); err != nil {
			return nil, err
		}
	}

	if err := transport.SetReadTimeout(device.config.ReadTimeout); err != nil {
		return nil, NewTransportError("set read timeout", device.name, err, ErrorTypePermanent)
	}

	if syncutil.DetectionEnabled() {
		Debugf("%s: exchange lock built with lock-order checking", device.name)
	}

	return device, nil
}

// Config returns a copy of the active configuration.
func (d *Device) Config() DeviceConfig {
	return *d.config
}

// Transport returns the underlying transport
func (d *Device) Transport() Transport {
	return d.transport
}

// Begin wakes the PN532 from power-down by sending the HSU wake-up
// preamble. It must be called once before the first command.
func (d *Device) Begin(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return fmt.Errorf("begin: %w", err)
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return d.closedError("begin")
	}

	Debugf("%s: TX wakeup: %s", d.name, formatHexBytes(frame.WakeupSequence))
	return d.writeAll("wakeup", frame.WakeupSequence)
}

// Close releases the transport. Further calls return nil.
func (d *Device) Close() error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil
	}
	d.closed = true
	Debugln(d.name+":", "closing transport")

	if err := d.transport.Close(); err != nil {
		return fmt.Errorf("failed to close transport: %w", err)
	}
	return nil
}

func (d *Device) closedError(op string) error {
	return NewTransportError(op, d.name, ErrTransportClosed, ErrorTypePermanent)
}
