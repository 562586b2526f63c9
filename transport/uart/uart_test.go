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

package uart

import (
	"bytes"
	"context"
	"errors"
	"io"
	"sync"
	"testing"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532-mifare"
	virt "github.com/ZaparooProject/go-pn532-mifare/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.bug.st/serial"
)

// errPortClosed is returned when operations are attempted on a closed port
var errPortClosed = errors.New("port is closed")

var errEINTR = errors.New("interrupted system call")

// MockSerialPort wraps VirtualPN532 to implement serial.Port interface
type MockSerialPort struct {
	conn        io.ReadWriter
	sim         *virt.VirtualPN532
	readErr     error
	drainErrs   []error
	readTimeout time.Duration
	mu          sync.Mutex
	drains      int
	resets      int
	closed      bool
	closeCount  int
}

// NewMockSerialPort creates a mock serial port backed by the wire simulator
func NewMockSerialPort(sim *virt.VirtualPN532) *MockSerialPort {
	return &MockSerialPort{
		sim:         sim,
		conn:        sim,
		readTimeout: 100 * time.Millisecond,
	}
}

// NewJitteryMockSerialPort delivers simulator output in random fragments.
func NewJitteryMockSerialPort(sim *virt.VirtualPN532, config virt.JitterConfig) *MockSerialPort {
	port := NewMockSerialPort(sim)
	port.conn = virt.NewJitteryConnection(sim, config)
	return port
}

func (*MockSerialPort) SetMode(_ *serial.Mode) error {
	return nil
}

func (m *MockSerialPort) Read(p []byte) (int, error) {
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		return 0, errPortClosed
	}
	if m.readErr != nil {
		err := m.readErr
		m.readErr = nil
		m.mu.Unlock()
		return 0, err
	}
	m.mu.Unlock()
	return m.conn.Read(p) //nolint:wrapcheck // mock
}

func (m *MockSerialPort) Write(p []byte) (int, error) {
	m.mu.Lock()
	closed := m.closed
	m.mu.Unlock()
	if closed {
		return 0, errPortClosed
	}
	return m.conn.Write(p) //nolint:wrapcheck // mock
}

func (m *MockSerialPort) Drain() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.drains++
	if len(m.drainErrs) > 0 {
		err := m.drainErrs[0]
		m.drainErrs = m.drainErrs[1:]
		return err
	}
	return nil
}

func (m *MockSerialPort) ResetInputBuffer() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.resets++
	m.sim.DiscardOutput()
	if j, ok := m.conn.(*virt.JitteryConnection); ok {
		j.ClearBuffer()
	}
	return nil
}

func (*MockSerialPort) ResetOutputBuffer() error {
	return nil
}

func (*MockSerialPort) SetDTR(_ bool) error {
	return nil
}

func (*MockSerialPort) SetRTS(_ bool) error {
	return nil
}

func (*MockSerialPort) GetModemStatusBits() (*serial.ModemStatusBits, error) {
	return &serial.ModemStatusBits{}, nil
}

func (m *MockSerialPort) SetReadTimeout(t time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.readTimeout = t
	return nil
}

func (m *MockSerialPort) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.closeCount++
	return nil
}

func (*MockSerialPort) Break(_ time.Duration) error {
	return nil
}

// Verify interface implementation
var (
	_ serial.Port     = (*MockSerialPort)(nil)
	_ pn532.Transport = (*Transport)(nil)
)

var firmwareFrame = []byte{0x00, 0x00, 0xFF, 0x02, 0xFE, 0xD4, 0x02, 0x2A, 0x00}

func newTestTransport(sim *virt.VirtualPN532) (*Transport, *MockSerialPort) {
	mock := NewMockSerialPort(sim)
	return NewWithPort(mock, "mock://test"), mock
}

func fastDeviceOptions() []pn532.Option {
	return []pn532.Option{
		pn532.WithPollInterval(time.Millisecond),
		pn532.WithAckTimeout(100 * time.Millisecond),
		pn532.WithRetryInterval(time.Millisecond),
		pn532.WithMaxHandshakeAttempts(3),
	}
}

func TestTransport_WriteThenRead(t *testing.T) {
	t.Parallel()

	transport, mock := newTestTransport(virt.NewVirtualPN532())
	assert.Equal(t, "mock://test", transport.String())

	n, err := transport.Write(firmwareFrame)
	require.NoError(t, err)
	assert.Equal(t, len(firmwareFrame), n)
	assert.Equal(t, 1, mock.drains, "writes are drained")

	buf := make([]byte, 64)
	n, err = transport.Read(buf)
	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(buf[:n], virt.ACKFrame))
	assert.Equal(t, virt.BuildResponseFrame(virt.CmdGetFirmwareVersion, []byte{0x32, 0x01, 0x06, 0x07}), buf[len(virt.ACKFrame):n])

	n, err = transport.Read(buf)
	require.NoError(t, err)
	assert.Zero(t, n, "nothing pending reads as a timeout")
}

func TestTransport_DrainRetry(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name       string
		drainErrs  []error
		wantErr    bool
		wantDrains int
	}{
		{name: "Succeeds_First_Time", wantDrains: 1},
		{name: "EINTR_Then_Success", drainErrs: []error{errEINTR, errEINTR}, wantDrains: 3},
		{name: "EINTR_Exhausted", drainErrs: []error{errEINTR, errEINTR, errEINTR}, wantErr: true, wantDrains: 3},
		{name: "Other_Error_Not_Retried", drainErrs: []error{errors.New("i/o error")}, wantErr: true, wantDrains: 1},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			transport, mock := newTestTransport(virt.NewVirtualPN532())
			mock.drainErrs = tt.drainErrs

			_, err := transport.Write(firmwareFrame)
			assert.Equal(t, tt.wantDrains, mock.drains)
			if !tt.wantErr {
				require.NoError(t, err)
				return
			}

			require.Error(t, err)
			require.ErrorIs(t, err, pn532.ErrTransportWrite)
			var te *pn532.TransportError
			require.ErrorAs(t, err, &te)
			assert.Equal(t, "mock://test", te.Port)
		})
	}
}

func TestTransport_ReadErrors(t *testing.T) {
	t.Parallel()

	t.Run("Interrupted_Read_Is_Timeout", func(t *testing.T) {
		t.Parallel()
		transport, mock := newTestTransport(virt.NewVirtualPN532())
		mock.readErr = errEINTR

		n, err := transport.Read(make([]byte, 8))
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("IO_Error_Wrapped", func(t *testing.T) {
		t.Parallel()
		transport, mock := newTestTransport(virt.NewVirtualPN532())
		mock.readErr = errors.New("device not configured")

		_, err := transport.Read(make([]byte, 8))
		require.ErrorIs(t, err, pn532.ErrTransportRead)
		assert.True(t, pn532.IsRetryable(err))
	})
}

func TestTransport_ResetAndTimeout(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualPN532()
	transport, mock := newTestTransport(sim)

	_, err := transport.Write(firmwareFrame)
	require.NoError(t, err)
	require.NoError(t, transport.ResetInputBuffer())
	assert.Equal(t, 1, mock.resets)

	n, err := transport.Read(make([]byte, 64))
	require.NoError(t, err)
	assert.Zero(t, n, "pending response discarded")

	require.NoError(t, transport.SetReadTimeout(20*time.Millisecond))
	assert.Equal(t, 20*time.Millisecond, mock.readTimeout)
}

func TestTransport_Close(t *testing.T) {
	t.Parallel()

	transport, mock := newTestTransport(virt.NewVirtualPN532())
	require.NoError(t, transport.Close())
	require.NoError(t, transport.Close())
	assert.Equal(t, 1, mock.closeCount)

	_, err := transport.Write(firmwareFrame)
	require.ErrorIs(t, err, pn532.ErrTransportClosed)
	assert.True(t, pn532.IsFatal(err))

	_, err = transport.Read(make([]byte, 8))
	require.ErrorIs(t, err, pn532.ErrTransportClosed)
	require.ErrorIs(t, transport.ResetInputBuffer(), pn532.ErrTransportClosed)
	require.ErrorIs(t, transport.SetReadTimeout(time.Second), pn532.ErrTransportClosed)
}

func TestDevice_ClosedUARTIsNotRetryable(t *testing.T) {
	t.Parallel()

	transport, _ := newTestTransport(virt.NewVirtualPN532())
	device, err := pn532.New(transport, fastDeviceOptions()...)
	require.NoError(t, err)
	require.NoError(t, transport.Close())

	_, err = device.Call(context.Background(), pn532.CmdGetFirmwareVersion)
	require.ErrorIs(t, err, pn532.ErrTransportClosed)
	assert.False(t, pn532.IsRetryable(err))
	assert.True(t, pn532.IsFatal(err))
}

func TestOpen_InvalidOptions(t *testing.T) {
	t.Parallel()

	_, err := Open("/dev/null-pn532", WithBaudRate(0))
	require.ErrorIs(t, err, pn532.ErrInvalidParameter)

	_, err = Open("/dev/null-pn532", WithReadTimeout(-time.Second))
	require.ErrorIs(t, err, pn532.ErrInvalidParameter)
}

func TestOpen_MissingPort(t *testing.T) {
	t.Parallel()

	_, err := Open("/dev/does-not-exist-pn532")
	require.Error(t, err)

	var te *pn532.TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, pn532.ErrorTypePermanent, te.Type)
	assert.Equal(t, "/dev/does-not-exist-pn532", te.Port)
}

func TestDevice_OverUART(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		port func(*virt.VirtualPN532) *MockSerialPort
	}{
		{name: "Direct", port: NewMockSerialPort},
		{name: "Jittery", port: func(sim *virt.VirtualPN532) *MockSerialPort {
			return NewJitteryMockSerialPort(sim, virt.JitterConfig{
				FragmentReads:    true,
				FragmentMinBytes: 1,
				USBBoundary:      true,
				Seed:             99,
			})
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sim := virt.NewVirtualPN532()
			card := virt.NewVirtualMIFARE1K(nil)
			sim.SetCard(card)
			payload := bytes.Repeat([]byte{0x5A}, 16)
			card.SetBlock(4, payload)

			device, err := pn532.New(NewWithPort(tt.port(sim), "mock://"+tt.name), fastDeviceOptions()...)
			require.NoError(t, err)
			t.Cleanup(func() { _ = device.Close() })

			ctx := context.Background()
			require.NoError(t, device.Begin(ctx))

			fw, err := device.GetFirmwareVersion(ctx)
			require.NoError(t, err)
			assert.Equal(t, "1.6", fw.String())
			require.NoError(t, device.ConfigureReader(ctx))

			uid, found, err := device.DiscoverTarget(ctx, pn532.BaudISO14443A)
			require.NoError(t, err)
			require.True(t, found)
			assert.Equal(t, "12345678", uid.String())

			ok, err := device.AuthenticateBlock(ctx, uid, 4, pn532.KeyB, pn532.DefaultKey)
			require.NoError(t, err)
			require.True(t, ok)

			data, ok, err := device.ReadBlock(ctx, 4)
			require.NoError(t, err)
			require.True(t, ok)
			assert.Equal(t, payload, data)
		})
	}
}
