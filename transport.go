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
	"fmt"
	"time"
)

// Transport is the raw byte stream to a PN532 in HSU (UART) mode. A Device
// takes ownership of it at construction and closes it in Close.
//
// go.bug.st/serial's serial.Port satisfies this interface, as does
// transport/uart.Transport.
type Transport interface {
	// Read reads whatever bytes are available. It returns 0, nil when the
	// read timeout elapses with nothing received.
	Read(p []byte) (int, error)

	// Write writes p to the device.
	Write(p []byte) (int, error)

	// ResetInputBuffer discards any unread input.
	ResetInputBuffer() error

	// SetReadTimeout bounds how long a single Read may block.
	SetReadTimeout(t time.Duration) error

	// Close releases the underlying port.
	Close() error
}

// transportName returns a label for logs and errors.
func transportName(t Transport) string {
	if s, ok := t.(fmt.Stringer); ok {
		return s.String()
	}
	return "hsu"
}
