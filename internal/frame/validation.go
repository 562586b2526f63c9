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

import "fmt"

// FindStartCode checks the preamble of a received frame and returns the
// offset of the LEN byte. The first byte must be 0x00; any further 0x00
// bytes are skipped until the 0xFF start code byte.
func FindStartCode(buf []byte) (int, error) {
	if len(buf) == 0 || buf[0] != Preamble {
		return 0, fmt.Errorf("%w: frame does not start with 0x00", ErrMalformedPreamble)
	}

	off := 1
	for off < len(buf) && buf[off] == StartCode1 {
		off++
	}
	if off >= len(buf) || buf[off] != StartCode2 {
		return 0, fmt.Errorf("%w: start code 0x00FF not found", ErrMalformedPreamble)
	}

	return off + 1, nil
}

// ValidateLengthChecksum validates the LEN/LCS pair at off and returns LEN.
func ValidateLengthChecksum(buf []byte, off int) (int, error) {
	if off < 0 || off+1 >= len(buf) {
		return 0, fmt.Errorf("%w: frame truncated before length bytes", ErrLengthChecksumMismatch)
	}

	frameLen := buf[off]
	lengthChecksum := buf[off+1]

	// LEN + LCS must wrap to zero
	if frameLen+lengthChecksum != 0 {
		return 0, fmt.Errorf("%w: LEN 0x%02X LCS 0x%02X", ErrLengthChecksumMismatch, frameLen, lengthChecksum)
	}

	return int(frameLen), nil
}

// ValidatePayloadChecksum verifies the frameLen payload bytes starting at
// start together with the DCS byte that follows them.
func ValidatePayloadChecksum(buf []byte, start, frameLen int) error {
	end := start + frameLen + 1
	if start < 0 || frameLen < 0 || end > len(buf) {
		return fmt.Errorf("%w: frame truncated (need %d bytes, have %d)",
			ErrPayloadChecksumMismatch, end, len(buf))
	}

	if sum := Checksum(buf[start:end]); sum != 0 {
		return fmt.Errorf("%w: residue 0x%02X", ErrPayloadChecksumMismatch, sum)
	}
	return nil
}

// Complete reports whether buf holds every byte of the frame it starts
// with, up to and including DCS. A buffer whose header is already invalid
// counts as complete since more input cannot repair it.
func Complete(buf []byte) bool {
	if IsAck(buf) {
		return true
	}
	off, err := FindStartCode(buf)
	if err != nil {
		// A run of 0x00 may still be followed by the start code.
		return !isPadding(buf)
	}
	frameLen, err := ValidateLengthChecksum(buf, off)
	if err != nil {
		return off+1 < len(buf)
	}
	return len(buf) >= off+2+frameLen+1
}
