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

const noDeviceHint = "make sure the reader has sufficient power (1 A or greater supply), " +
	"is wired to the right port and its header solder joints are solid"

// FirmwareVersion contains PN532 firmware information
type FirmwareVersion struct {
	IC       byte // 0x32 for a PN532
	Version  byte
	Revision byte
	Support  byte // bit 0 ISO14443A, bit 1 ISO14443B, bit 2 ISO18092
}

// String returns "Version.Revision", e.g. "1.6".
func (f *FirmwareVersion) String() string {
	return fmt.Sprintf("%d.%d", f.Version, f.Revision)
}

// SupportsISO14443A reports ISO/IEC 14443 type A support.
func (f *FirmwareVersion) SupportsISO14443A() bool { return f.Support&0x01 != 0 }

// SupportsISO14443B reports ISO/IEC 14443 type B support.
func (f *FirmwareVersion) SupportsISO14443B() bool { return f.Support&0x02 != 0 }

// SupportsISO18092 reports ISO 18092 (NFCIP-1) support.
func (f *FirmwareVersion) SupportsISO18092() bool { return f.Support&0x04 != 0 }

// GetFirmwareVersion asks the chip for its IC and firmware version. It
// fails with ErrNoDevice when nothing usable comes back.
func (d *Device) GetFirmwareVersion(ctx context.Context) (*FirmwareVersion, error) {
	res, err := d.Call(ctx, CmdGetFirmwareVersion)
	switch {
	case IsNoTarget(err):
		return nil, fmt.Errorf("%w: acknowledged but sent no version; %s", ErrNoDevice, noDeviceHint)
	case errors.Is(err, ErrHandshakeTimeout):
		return nil, fmt.Errorf("%w: %s: %w", ErrNoDevice, noDeviceHint, err)
	case err != nil:
		return nil, fmt.Errorf("failed to send GetFirmwareVersion command: %w", err)
	}

	Debugf("%s: GetFirmwareVersion response: %s (len=%d)", d.name, formatHexBytes(res), len(res))

	if len(res) < 4 {
		return nil, fmt.Errorf("%w: version response too short (%d bytes); %s", ErrNoDevice, len(res), noDeviceHint)
	}

	fw := &FirmwareVersion{
		IC:       res[0],
		Version:  res[1],
		Revision: res[2],
		Support:  res[3],
	}
	d.setFirmwareVersion(fw)
	return fw, nil
}

// FirmwareVersion returns the version from the last successful
// GetFirmwareVersion call, or nil.
func (d *Device) FirmwareVersion() *FirmwareVersion {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.firmwareVersion
}

func (d *Device) setFirmwareVersion(fw *FirmwareVersion) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.firmwareVersion = fw
}
