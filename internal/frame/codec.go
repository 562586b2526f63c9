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

package frame

import (
	"bytes"
	"errors"
	"fmt"
)

// Frame errors. The root package re-exports these so callers never need to
// import this package.
var (
	// ErrAck is returned by Decode when the input is exactly the ACK frame.
	// It is a sentinel, not a failure.
	ErrAck = errors.New("acknowledgement frame")

	ErrInvalidPayloadSize      = errors.New("invalid payload size")
	ErrMalformedPreamble       = errors.New("malformed frame preamble")
	ErrLengthChecksumMismatch  = errors.New("frame length checksum mismatch")
	ErrPayloadChecksumMismatch = errors.New("frame payload checksum mismatch")
)

// Encode wraps payload (TFI + command + parameters) in a normal information
// frame: PREAMBLE 00 FF LEN LCS payload DCS POSTAMBLE.
func Encode(payload []byte) ([]byte, error) {
	if len(payload) < MinPayloadLength || len(payload) > MaxPayloadLength {
		return nil, fmt.Errorf("%w: %d bytes (must be %d-%d)",
			ErrInvalidPayloadSize, len(payload), MinPayloadLength, MaxPayloadLength)
	}

	length := byte(len(payload))
	frm := make([]byte, 0, len(payload)+Overhead)
	frm = append(frm, Preamble, StartCode1, StartCode2, length, LengthChecksum(length))
	frm = append(frm, payload...)
	frm = append(frm, Checksum(payload), Postamble)
	return frm, nil
}

// Decode validates a received frame and returns a copy of its payload.
// When raw is exactly the ACK frame it returns ErrAck and no payload.
func Decode(raw []byte) ([]byte, error) {
	if IsAck(raw) {
		return nil, ErrAck
	}

	off, err := FindStartCode(raw)
	if err != nil {
		return nil, err
	}

	frameLen, err := ValidateLengthChecksum(raw, off)
	if err != nil {
		return nil, err
	}

	// Skip LEN and LCS
	off += 2
	if err := ValidatePayloadChecksum(raw, off, frameLen); err != nil {
		return nil, err
	}

	payload := make([]byte, frameLen)
	copy(payload, raw[off:off+frameLen])
	return payload, nil
}

// IsAck reports whether buf is exactly the ACK frame.
func IsAck(buf []byte) bool {
	return bytes.Equal(buf, AckFrame)
}

// StripAck looks for the ACK frame in buf. When found it returns the bytes
// that are not part of the acknowledgement: anything received before the
// first ACK followed by whatever came after it, minus further ACK frames
// directly following the first one. If only ACK frames (or 0x00 padding)
// were received, a copy of AckFrame is returned so callers can tell that no
// response has arrived yet.
func StripAck(buf []byte) (pending []byte, found bool) {
	idx := bytes.Index(buf, AckFrame)
	if idx < 0 {
		return nil, false
	}

	rest := buf[idx+len(AckFrame):]
	for bytes.HasPrefix(rest, AckFrame) {
		rest = rest[len(AckFrame):]
	}

	pending = make([]byte, 0, idx+len(rest))
	pending = append(pending, buf[:idx]...)
	pending = append(pending, rest...)

	if isPadding(pending) {
		return append([]byte(nil), AckFrame...), true
	}
	return pending, true
}

func isPadding(buf []byte) bool {
	for _, b := range buf {
		if b != Preamble {
			return false
		}
	}
	return true
}
