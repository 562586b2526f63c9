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

// Frame direction constants - these indicate the direction of data flow
const (
	HostToPn532 = 0xD4 // Commands from host to PN532
	Pn532ToHost = 0xD5 // Responses from PN532 to host
)

// Frame markers and control bytes
const (
	Preamble   = 0x00 // Frame preamble byte
	StartCode1 = 0x00 // Start code byte 1
	StartCode2 = 0xFF // Start code byte 2
	Postamble  = 0x00 // Frame postamble byte
)

// Frame size limits
const (
	MinPayloadLength = 1   // A payload carries at least the direction tag
	MaxPayloadLength = 254 // Largest payload a normal information frame can carry
	Overhead         = 7   // preamble + start code(2) + len + lcs + dcs + postamble
)

// ChecksumSeed is the accumulator start value used by Checksum.
const ChecksumSeed = 0xFF

// AckFrame is sent by the PN532 once it has accepted a command frame.
var AckFrame = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}

// WakeupSequence wakes the PN532 HSU interface out of low-power mode.
var WakeupSequence = []byte{0x55, 0x55, 0x00, 0x00, 0x00}
