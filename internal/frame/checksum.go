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

// Checksum computes the data checksum used by PN532 information frames.
// Bytes are accumulated with 8-bit wraparound starting from ChecksumSeed and
// the complement of the accumulator is returned. Appending the result to data
// makes Checksum of the extended slice return zero.
func Checksum(data []byte) byte {
	acc := byte(ChecksumSeed)
	for _, b := range data {
		acc += b
	}
	return ^acc
}

// LengthChecksum returns the LCS byte for a frame length so that
// LEN + LCS wraps to zero.
func LengthChecksum(length byte) byte {
	return ^length + 1
}
