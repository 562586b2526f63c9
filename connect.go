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

import (
	"context"
	"errors"
	"fmt"
)

// connectHandshakeAttempts bounds each handshake while ConnectDevice brings
// the reader up, unless the caller configured a bound of their own.
const connectHandshakeAttempts = 3

// TransportFactory opens the transport for a port path.
type TransportFactory func(path string) (Transport, error)

// ConnectOption represents a functional option for ConnectDevice
type ConnectOption func(*connectConfig) error

type connectConfig struct {
	transportFactory  TransportFactory
	deviceOptions     []Option
	connectionRetries int
}

// WithTransportFactory sets the transport factory function
func WithTransportFactory(factory TransportFactory) ConnectOption {
	return func(c *connectConfig) error {
		if factory == nil {
			return fmt.Errorf("%w: nil transport factory", ErrInvalidParameter)
		}
		c.transportFactory = factory
		return nil
	}
}

// WithDeviceOptions adds device-level options
func WithDeviceOptions(opts ...Option) ConnectOption {
	return func(c *connectConfig) error {
		c.deviceOptions = append(c.deviceOptions, opts...)
		return nil
	}
}

// WithConnectionRetries sets the number of connection attempts
func WithConnectionRetries(maxAttempts int) ConnectOption {
	return func(c *connectConfig) error {
		if maxAttempts < 1 {
			return fmt.Errorf("%w: connection retries must be at least 1, got %d", ErrInvalidParameter, maxAttempts)
		}
		c.connectionRetries = maxAttempts
		return nil
	}
}

func applyConnectOptions(opts []ConnectOption) (*connectConfig, error) {
	config := &connectConfig{
		connectionRetries: DefaultConnectionRetries,
	}

	for _, opt := range opts {
		if err := opt(config); err != nil {
			return nil, fmt.Errorf("failed to apply connect option: %w", err)
		}
	}

	if config.transportFactory == nil {
		return nil, errors.New("transport factory not provided")
	}
	return config, nil
}

// ConnectDevice opens path, wakes the PN532, reads its firmware version and
// configures it for reading cards. Bring-up is retried on retryable errors.
//
// Example usage:
//
//	device, err := pn532.ConnectDevice(ctx, "/dev/ttyUSB0",
//		pn532.WithTransportFactory(func(path string) (pn532.Transport, error) {
//			return uart.Open(path)
//		}))
func ConnectDevice(ctx context.Context, path string, opts ...ConnectOption) (*Device, error) {
	config, err := applyConnectOptions(opts)
	if err != nil {
		return nil, err
	}

	transport, err := config.transportFactory(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create transport for path %s: %w", path, err)
	}

	device, err := New(transport, config.deviceOptions...)
	if err != nil {
		_ = transport.Close()
		return nil, fmt.Errorf("failed to create device: %w", err)
	}

	err = RetryWithConfig(ctx, ConnectionRetryConfig(config.connectionRetries), func() error {
		return device.bringUp(ctx)
	})
	if err != nil {
		_ = device.Close()
		return nil, fmt.Errorf("failed to setup device after %d attempts: %w", config.connectionRetries, err)
	}

	return device, nil
}

// bringUp runs the wake-up, version check and SAM configuration sequence.
func (d *Device) bringUp(ctx context.Context) error {
	configured := d.config.MaxHandshakeAttempts
	if configured == 0 {
		d.config.MaxHandshakeAttempts = connectHandshakeAttempts
		defer func() { d.config.MaxHandshakeAttempts = configured }()
	}

	if err := d.Begin(ctx); err != nil {
		return err
	}

	fw, err := d.GetFirmwareVersion(ctx)
	if err != nil {
		return err
	}
	Debugf("%s: PN5%02X firmware %s", d.name, fw.IC, fw)

	return d.ConfigureReader(ctx)
}
