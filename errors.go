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
	"errors"
	"fmt"
	"io"
	"runtime"
	"syscall"

	"github.com/ZaparooProject/go-pn532-mifare/internal/frame"
)

// Frame errors. These are the same values the frame codec returns so
// errors.Is works across the package boundary.
var (
	ErrInvalidPayloadSize      = frame.ErrInvalidPayloadSize
	ErrMalformedPreamble       = frame.ErrMalformedPreamble
	ErrLengthChecksumMismatch  = frame.ErrLengthChecksumMismatch
	ErrPayloadChecksumMismatch = frame.ErrPayloadChecksumMismatch
)

// Protocol and card errors
var (
	ErrUnexpectedResponse    = errors.New("unexpected response")
	ErrInvalidParameterType  = errors.New("invalid parameter type")
	ErrNoDevice              = errors.New("no PN532 device responded")
	ErrMultipleCardsDetected = errors.New("more than one card detected")
	ErrUidTooLong            = errors.New("card UID longer than 7 bytes") //nolint:revive // established public name
	ErrInvalidBlockSize      = errors.New("block data must be exactly 16 bytes")
	ErrHandshakeTimeout      = errors.New("no ACK received from PN532")

	// Returned by the retrying block helpers once every attempt was
	// rejected by the card.
	ErrAuthenticationFailed = errors.New("card rejected the key")
	ErrBlockRejected        = errors.New("card rejected the block operation")

	// ErrNoTarget is an outcome rather than a failure: the chip acknowledged
	// the command but no card answered. Use IsNoTarget to test for it.
	ErrNoTarget = errors.New("no target responded")
)

// Transport errors
var (
	ErrTransportWrite   = errors.New("transport write failed")
	ErrTransportRead    = errors.New("transport read failed")
	ErrTransportClosed  = errors.New("transport is closed")
	ErrInvalidParameter = errors.New("invalid parameter")
)

// ErrorType represents the category of error for retry logic
type ErrorType int

const (
	// ErrorTypeTransient indicates a potentially retryable error
	ErrorTypeTransient ErrorType = iota
	// ErrorTypePermanent indicates a non-retryable error
	ErrorTypePermanent
	// ErrorTypeTimeout indicates a timeout error (special handling)
	ErrorTypeTimeout
)

func (t ErrorType) String() string {
	switch t {
	case ErrorTypeTransient:
		return "transient"
	case ErrorTypePermanent:
		return "permanent"
	case ErrorTypeTimeout:
		return "timeout"
	default:
		return fmt.Sprintf("ErrorType(%d)", int(t))
	}
}

// TransportError wraps transport-level errors with additional context
type TransportError struct {
	Err       error     // Underlying error
	Op        string    // Operation that failed
	Port      string    // Port or device identifier
	Type      ErrorType // Error category
	Retryable bool      // Whether the error is retryable
}

func (e *TransportError) Error() string {
	if e.Port != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Port, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsRetryable returns true if the error is potentially retryable.
// Frame integrity errors are never retryable: a corrupted response is
// reported to the caller rather than silently re-requested.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) {
		return te.Retryable
	}

	// A rejected key or block usually means the card moved while it was
	// being slid into place.
	switch {
	case errors.Is(err, ErrHandshakeTimeout),
		errors.Is(err, ErrTransportRead),
		errors.Is(err, ErrTransportWrite),
		errors.Is(err, ErrAuthenticationFailed),
		errors.Is(err, ErrBlockRejected):
		return true
	default:
		return false
	}
}

// IsFatal returns true if the error indicates the device/connection is gone
// and the caller should stop using the Device. This is distinct from
// IsRetryable which indicates whether a single operation can be retried.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}

	var te *TransportError
	if errors.As(err, &te) && te.Type == ErrorTypePermanent {
		return true
	}

	if isDeviceGoneError(err) {
		return true
	}

	switch {
	case errors.Is(err, ErrTransportClosed),
		errors.Is(err, io.EOF),
		errors.Is(err, io.ErrClosedPipe):
		return true
	default:
		return false
	}
}

// IsNoTarget reports whether err means "the chip answered but no card did".
func IsNoTarget(err error) bool {
	return errors.Is(err, ErrNoTarget)
}

// Windows error codes for device disconnection detection.
// These are defined here because they're not available on non-Windows platforms.
const (
	errAccessDenied syscall.Errno = 5   // ERROR_ACCESS_DENIED
	errGenFailure   syscall.Errno = 31  // ERROR_GEN_FAILURE
	errNoSuchDevice syscall.Errno = 433 // ERROR_NO_SUCH_DEVICE
)

// isDeviceGoneError checks for OS-level errors indicating device disconnection.
// These errors occur when a USB serial adapter is unplugged during I/O.
func isDeviceGoneError(err error) bool {
	if err == nil {
		return false
	}

	var errno syscall.Errno
	if errors.As(err, &errno) {
		//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
		switch errno {
		case syscall.EIO, syscall.ENXIO, syscall.ENODEV:
			return true
		}

		if runtime.GOOS == "windows" {
			//nolint:exhaustive // Only checking specific device-gone errors, not all errno values
			switch errno {
			case errAccessDenied, errGenFailure, errNoSuchDevice:
				return true
			}
		}
	}

	return false
}

// StatusMeaning returns a human-readable meaning for a PN532 status byte,
// as reported in the first byte of an InDataExchange response.
// Codes are from the PN532 User Manual section 7.1.
func StatusMeaning(code byte) string {
	meanings := map[byte]string{
		0x00: "success",
		0x01: "timeout",
		0x02: "CRC error",
		0x03: "parity error",
		0x04: "erroneous bit count during anti-collision",
		0x05: "framing error during mifare operation",
		0x06: "abnormal bit collision",
		0x07: "communication buffer size insufficient",
		0x09: "RF buffer overflow",
		0x0A: "RF field not activated in time",
		0x0B: "RF protocol error",
		0x0D: "overheating",
		0x0E: "internal buffer overflow",
		0x10: "invalid parameter",
		0x13: "dataformat does not match",
		0x14: "authentication error",
		0x23: "UID check byte is wrong",
		0x26: "operation not allowed",
		0x27: "wrong context for command",
		0x29: "target released by initiator",
		0x2A: "card ID mismatch",
		0x2B: "card disappeared",
		0x2D: "over-current event",
		0x81: "command not supported",
	}
	if m, ok := meanings[code]; ok {
		return m
	}
	// Bits 6 and 7 carry the NAD and MI flags.
	if m, ok := meanings[code&0x3F]; ok && code&0x3F != 0 {
		return m
	}
	return "unknown error"
}

// NewTransportError creates a standard transport error with consistent formatting
func NewTransportError(op, port string, err error, errType ErrorType) *TransportError {
	return &TransportError{
		Op:        op,
		Port:      port,
		Err:       err,
		Type:      errType,
		Retryable: errType == ErrorTypeTransient || errType == ErrorTypeTimeout,
	}
}

// NewTransportWriteError wraps a failed or short write. Device-gone
// conditions are classified as permanent.
func NewTransportWriteError(op, port string, cause error) *TransportError {
	return newIOError(op, port, ErrTransportWrite, cause)
}

// NewTransportReadError wraps a failed read. Device-gone conditions are
// classified as permanent.
func NewTransportReadError(op, port string, cause error) *TransportError {
	return newIOError(op, port, ErrTransportRead, cause)
}

// NewHandshakeTimeoutError reports that no ACK arrived within the
// configured number of attempts.
func NewHandshakeTimeoutError(op, port string, attempts int) *TransportError {
	return NewTransportError(op, port,
		fmt.Errorf("%w after %d attempts", ErrHandshakeTimeout, attempts), ErrorTypeTimeout)
}

func newIOError(op, port string, sentinel, cause error) *TransportError {
	if cause == nil {
		return NewTransportError(op, port, sentinel, ErrorTypeTransient)
	}
	wrapped := fmt.Errorf("%w: %w", sentinel, cause)

	// A transport that already classified the failure keeps its verdict.
	var inner *TransportError
	if errors.As(cause, &inner) {
		te := NewTransportError(op, port, wrapped, inner.Type)
		te.Retryable = inner.Retryable
		return te
	}

	errType := ErrorTypeTransient
	if isDeviceGoneError(cause) || errors.Is(cause, io.EOF) ||
		errors.Is(cause, io.ErrClosedPipe) || errors.Is(cause, ErrTransportClosed) {
		errType = ErrorTypePermanent
	}
	return NewTransportError(op, port, wrapped, errType)
}
