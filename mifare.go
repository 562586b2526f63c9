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
	"encoding/hex"
	"fmt"
	"strings"
)

// MIFARE Classic memory structure
const (
	MifareBlockSize  = 16 // bytes per block
	MifareKeySize    = 6  // bytes per key
	mifareSectorSize = 4  // blocks per sector in the first 32 sectors
	maxUIDLength     = 7
)

// dataExchangeTarget is the logical target number used with
// InDataExchange. DiscoverTarget only ever lists one card.
const dataExchangeTarget byte = 0x01

// UID is a card identifier, 4 or 7 bytes for MIFARE Classic.
type UID []byte

func (u UID) appendTo(dst []byte) []byte { return append(dst, u...) }

// String returns the UID as upper-case hex, e.g. "DEADBEEF".
func (u UID) String() string {
	return strings.ToUpper(hex.EncodeToString(u))
}

// Key is a 6-byte MIFARE Classic sector key.
type Key [MifareKeySize]byte

func (k Key) appendTo(dst []byte) []byte { return append(dst, k[:]...) }

// DefaultKey is the transport key blank cards ship with.
var DefaultKey = Key{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// ParseKey parses a key written as 12 hex digits. Spaces and colons are
// ignored, so "FF:FF:FF:FF:FF:FF" works too.
func ParseKey(s string) (Key, error) {
	cleaned := strings.NewReplacer(" ", "", ":", "").Replace(s)
	raw, err := hex.DecodeString(cleaned)
	if err != nil {
		return Key{}, fmt.Errorf("%w: key %q: %w", ErrInvalidParameter, s, err)
	}
	defer clear(raw)
	if len(raw) != MifareKeySize {
		return Key{}, fmt.Errorf("%w: key must be %d bytes, got %d", ErrInvalidParameter, MifareKeySize, len(raw))
	}
	var k Key
	copy(k[:], raw)
	return k, nil
}

// IsSectorTrailer reports whether block holds a sector's keys and access
// bits. Writing a bad trailer can lock the sector for good.
func IsSectorTrailer(block uint8) bool {
	if block < 128 {
		return block%mifareSectorSize == mifareSectorSize-1
	}
	// MIFARE Classic 4K: sectors 32-39 have 16 blocks each.
	return block%16 == 15
}

// DiscoverTarget lists at most one passive target at the given baud
// profile. It reports false, with a nil error, when no card is present.
// The UID is parsed from the ISO/IEC 14443 type A target data layout.
func (d *Device) DiscoverTarget(ctx context.Context, baud BaudRate) (UID, bool, error) {
	res, err := d.Call(ctx, CmdInListPassiveTarget, Byte(1), Byte(baud))
	if IsNoTarget(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("InListPassiveTarget failed: %w", err)
	}

	if len(res) == 0 || res[0] == 0 {
		return nil, false, nil
	}
	if res[0] != 1 {
		return nil, false, fmt.Errorf("%w: %d targets listed", ErrMultipleCardsDetected, res[0])
	}

	// NbTg, Tg, SENS_RES(2), SEL_RES, NFCIDLength, NFCID...
	if len(res) < 6 {
		return nil, false, fmt.Errorf("%w: target data truncated: %s", ErrUnexpectedResponse, formatHexBytes(res))
	}
	uidLen := int(res[5])
	if uidLen > maxUIDLength {
		return nil, false, fmt.Errorf("%w: %d bytes", ErrUidTooLong, uidLen)
	}
	if len(res) < 6+uidLen {
		return nil, false, fmt.Errorf("%w: UID truncated: %s", ErrUnexpectedResponse, formatHexBytes(res))
	}

	uid := make(UID, uidLen)
	copy(uid, res[6:6+uidLen])
	Debugf("%s: found card UID %s (SENS_RES %02X%02X, SEL_RES %02X)", d.name, uid, res[2], res[3], res[4])
	return uid, true, nil
}

// WaitForTarget polls DiscoverTarget until a card shows up, ctx is done or
// discovery fails.
func (d *Device) WaitForTarget(ctx context.Context, baud BaudRate) (UID, error) {
	for {
		uid, found, err := d.DiscoverTarget(ctx, baud)
		if err != nil {
			return nil, err
		}
		if found {
			return uid, nil
		}

		sleep := calculateJitteredSleep(d.config.TargetPollInterval, TargetPollJitter)
		if err := sleepCtx(ctx, sleep); err != nil {
			return nil, fmt.Errorf("waiting for card: %w", err)
		}
	}
}

// AuthenticateBlock authenticates the sector holding block with key. It
// returns false when the card rejects the key or is no longer present.
// The key is kept out of debug output and wire traces.
func (d *Device) AuthenticateBlock(ctx context.Context, uid UID, block uint8, keyType KeyType, key Key) (bool, error) {
	defer clear(key[:])

	if keyType != KeyA && keyType != KeyB {
		return false, fmt.Errorf("%w: key type 0x%02X", ErrInvalidParameter, byte(keyType))
	}
	if len(uid) > maxUIDLength {
		return false, fmt.Errorf("%w: %d bytes", ErrUidTooLong, len(uid))
	}

	args := make([]byte, 0, 3+MifareKeySize+len(uid))
	args = append(args, dataExchangeTarget, byte(keyType), block)
	args = key.appendTo(args)
	args = uid.appendTo(args)
	defer clear(args)

	res, err := d.call(ctx, CmdInDataExchange, args, true)
	if IsNoTarget(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("authenticate block %d: %w", block, err)
	}
	return d.dataExchangeOK("authenticate", block, res), nil
}

// ReadBlock reads one 16-byte block from an authenticated sector. It
// returns false when the card reports an error or is no longer present.
func (d *Device) ReadBlock(ctx context.Context, block uint8) ([]byte, bool, error) {
	res, err := d.Call(ctx, CmdInDataExchange, Byte(dataExchangeTarget), Byte(MifareCmdRead), Byte(block))
	if IsNoTarget(err) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("read block %d: %w", block, err)
	}
	if !d.dataExchangeOK("read", block, res) {
		return nil, false, nil
	}

	if len(res)-1 < MifareBlockSize {
		return nil, false, fmt.Errorf("%w: block %d returned %d data bytes",
			ErrUnexpectedResponse, block, len(res)-1)
	}

	data := make([]byte, MifareBlockSize)
	copy(data, res[1:1+MifareBlockSize])
	return data, true, nil
}

// WriteBlock writes exactly 16 bytes to block in an authenticated sector.
func (d *Device) WriteBlock(ctx context.Context, block uint8, data []byte) (bool, error) {
	if len(data) != MifareBlockSize {
		return false, fmt.Errorf("%w: got %d", ErrInvalidBlockSize, len(data))
	}

	res, err := d.Call(ctx, CmdInDataExchange,
		Byte(dataExchangeTarget), Byte(MifareCmdWrite), Byte(block), Bytes(data))
	if IsNoTarget(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("write block %d: %w", block, err)
	}
	return d.dataExchangeOK("write", block, res), nil
}

// dataExchangeOK checks the status byte that leads every InDataExchange
// response.
func (d *Device) dataExchangeOK(op string, block uint8, res []byte) bool {
	if len(res) == 0 {
		Debugf("%s: %s block %d: empty response", d.name, op, block)
		return false
	}
	if status := res[0]; status != 0x00 {
		Debugf("%s: %s block %d: status 0x%02X (%s)", d.name, op, block, status, StatusMeaning(status))
		return false
	}
	return true
}
