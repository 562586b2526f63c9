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

package main

import (
	"bytes"
	"context"
	"io"
	"strings"
	"testing"
	"time"

	pn532 "github.com/ZaparooProject/go-pn532-mifare"
	virt "github.com/ZaparooProject/go-pn532-mifare/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newSimDevice(t *testing.T, sim *virt.VirtualPN532) *pn532.Device {
	t.Helper()

	device, err := pn532.New(virt.NewSimulatorPort(sim),
		pn532.WithPollInterval(time.Millisecond),
		pn532.WithAckTimeout(50*time.Millisecond),
		pn532.WithRetryInterval(time.Millisecond),
		pn532.WithTargetPollInterval(5*time.Millisecond),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = device.Close() })
	return device
}

func TestParseConfig(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		args    []string
		wantErr bool
		check   func(t *testing.T, cfg *config)
	}{
		{
			name: "Defaults",
			args: []string{"-port", "/dev/ttyUSB0"},
			check: func(t *testing.T, cfg *config) {
				t.Helper()
				assert.Equal(t, "/dev/ttyUSB0", cfg.portName)
				assert.Equal(t, 16, cfg.blocks)
				assert.Equal(t, pn532.DefaultKey, cfg.key)
				assert.Equal(t, pn532.KeyB, cfg.keyType)
				assert.Equal(t, 115200, cfg.baudRate)
			},
		},
		{
			name: "Key_A_Custom_Key",
			args: []string{"-port", "COM3", "-a", "-key", "A0:A1:A2:A3:A4:A5", "-blocks", "4"},
			check: func(t *testing.T, cfg *config) {
				t.Helper()
				assert.Equal(t, pn532.KeyA, cfg.keyType)
				assert.Equal(t, pn532.Key{0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5}, cfg.key)
				assert.Equal(t, 4, cfg.blocks)
			},
		},
		{name: "Missing_Port", args: nil, wantErr: true},
		{name: "Bad_Key", args: []string{"-port", "p", "-key", "FFFF"}, wantErr: true},
		{name: "Too_Many_Blocks", args: []string{"-port", "p", "-blocks", "65"}, wantErr: true},
		{name: "Unknown_Flag", args: []string{"-nope"}, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg, err := parseConfig(tt.args, io.Discard)
			if tt.wantErr {
				require.ErrorIs(t, err, errUsage)
				return
			}
			require.NoError(t, err)
			tt.check(t, cfg)
		})
	}
}

func TestReadCard(t *testing.T) {
	t.Parallel()

	sim := virt.NewVirtualPN532()
	card := virt.NewVirtualMIFARE1K(nil)
	card.SetBlock(4, []byte("Hello, MIFARE!\x00\x00"))
	card.SetSectorKeys(2, virt.TransportKey, [6]byte{1, 2, 3, 4, 5, 6})
	sim.SetCard(card)
	device := newSimDevice(t, sim)

	cfg := &config{blocks: 13, key: pn532.DefaultKey, keyType: pn532.KeyB}
	var out bytes.Buffer
	require.NoError(t, readCard(context.Background(), device, cfg, &out))

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	require.Len(t, lines, 2+13)
	assert.Equal(t, "Card UID: 12345678", lines[1])
	assert.Contains(t, lines[2], "Block  0: 12345678")
	assert.Contains(t, lines[5], "(sector trailer)")
	assert.Contains(t, lines[6], "|Hello, MIFARE!..|")
	for i := 10; i <= 13; i++ {
		assert.Contains(t, lines[i], "authentication failed")
	}

	// Each rejection halts the card, so it is selected again before the
	// next block and sector 3 reads normally.
	assert.Equal(t, "Block 12: "+strings.Repeat("00", 16)+" |................|", lines[14])
	assert.Equal(t, 1+4, sim.CommandCount(virt.CmdInListPassiveTarget))
	assert.False(t, card.Halted())
}

func TestReselect(t *testing.T) {
	t.Parallel()

	tests := []struct {
		card    *virt.VirtualCard
		wantErr error
		name    string
	}{
		{name: "Same_Card", card: virt.NewVirtualMIFARE1K(nil)},
		{name: "Card_Gone", wantErr: errCardLost},
		{name: "Card_Swapped", card: virt.NewVirtualMIFARE1K([]byte{0xDE, 0xAD, 0xBE, 0xEF}), wantErr: errCardChanged},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			sim := virt.NewVirtualPN532()
			if tt.card != nil {
				sim.SetCard(tt.card)
			}
			device := newSimDevice(t, sim)

			err := reselect(context.Background(), device, pn532.UID(virt.TestMIFARE1KUID))
			if tt.wantErr == nil {
				require.NoError(t, err)
				return
			}
			require.ErrorIs(t, err, tt.wantErr)
		})
	}
}

func TestReadCard_Cancelled(t *testing.T) {
	t.Parallel()

	device := newSimDevice(t, virt.NewVirtualPN532())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	var out bytes.Buffer
	err := readCard(ctx, device, &config{blocks: 1, key: pn532.DefaultKey, keyType: pn532.KeyB}, &out)
	require.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Contains(t, out.String(), "Waiting for a MIFARE Classic card")
}

func TestPrintable(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "AB..z", printable([]byte{'A', 'B', 0x00, 0xFF, 'z'}))
}
