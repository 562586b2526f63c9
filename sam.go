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
	"fmt"
)

// SAMMode represents the SAM configuration mode
type SAMMode byte

const (
	// SAMModeNormal - normal mode (default)
	SAMModeNormal SAMMode = 0x01
	// SAMModeVirtualCard - Virtual Card mode
	SAMModeVirtualCard SAMMode = 0x02
	// SAMModeWiredCard - Wired Card mode
	SAMModeWiredCard SAMMode = 0x03
	// SAMModeDualCard - Dual Card mode
	SAMModeDualCard SAMMode = 0x04
)

// SAMConfiguration selects how the PN532 uses its security access module.
// timeout is in units of 50 ms and only applies to virtual card mode.
// A bare ACK counts as success.
func (d *Device) SAMConfiguration(ctx context.Context, mode SAMMode, timeout, irq byte) error {
	if mode < SAMModeNormal || mode > SAMModeDualCard {
		return fmt.Errorf("%w: SAM mode 0x%02X", ErrInvalidParameter, byte(mode))
	}

	_, err := d.Call(ctx, CmdSAMConfiguration, Byte(mode), Byte(timeout), Byte(irq))
	if err != nil && !IsNoTarget(err) {
		return fmt.Errorf("SAM configuration command failed: %w", err)
	}
	return nil
}

// ConfigureReader puts the PN532 in normal mode, ready to read MIFARE cards.
func (d *Device) ConfigureReader(ctx context.Context) error {
	return d.SAMConfiguration(ctx, SAMModeNormal, DefaultSAMTimeout, DefaultSAMUseIRQ)
}
