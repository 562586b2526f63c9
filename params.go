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

import "fmt"

// Param is one command parameter. The set of implementations is closed:
// Byte, Int, Bytes, Text, Params, Key and UID. Each appends its own wire
// bytes when a command is flattened.
type Param interface {
	appendTo(dst []byte) []byte
}

// Byte is a single raw byte.
type Byte byte

// Int is an integer sent as one byte; higher bits are dropped.
type Int int

// Bytes is a byte sequence sent as-is.
type Bytes []byte

// Text is a string sent as its raw bytes.
type Text string

// Params is a nested parameter sequence.
type Params []Param

func (b Byte) appendTo(dst []byte) []byte  { return append(dst, byte(b)) }
func (n Int) appendTo(dst []byte) []byte   { return append(dst, byte(n&0xFF)) }
func (b Bytes) appendTo(dst []byte) []byte { return append(dst, b...) }
func (s Text) appendTo(dst []byte) []byte  { return append(dst, s...) }

func (p Params) appendTo(dst []byte) []byte {
	for _, param := range p {
		dst = param.appendTo(dst)
	}
	return dst
}

// Flatten concatenates params into the byte sequence that follows the
// command code in a request payload.
func Flatten(params ...Param) ([]byte, error) {
	if err := validateParams(params); err != nil {
		return nil, err
	}
	return Params(params).appendTo(make([]byte, 0, len(params))), nil
}

func validateParams(params []Param) error {
	for i, param := range params {
		switch p := param.(type) {
		case nil:
			return fmt.Errorf("%w: parameter %d is nil", ErrInvalidParameterType, i)
		case Params:
			if err := validateParams(p); err != nil {
				return fmt.Errorf("parameter %d: %w", i, err)
			}
		}
	}
	return nil
}
