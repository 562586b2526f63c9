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
	"bytes"
	"context"
	"testing"
	"time"

	virt "github.com/ZaparooProject/go-pn532-mifare/internal/testing"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestUID_String(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "12345678", UID(virt.TestMIFARE1KUID).String())
	assert.Equal(t, "04ABCDEF123456", UID(virt.TestSevenByteUID).String())
	assert.Empty(t, UID(nil).String())
}

func TestParseKey(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		input   string
		want    Key
		wantErr bool
	}{
		{name: "Plain", input: "FFFFFFFFFFFF", want: DefaultKey},
		{name: "Lower_Case", input: "a0a1a2a3a4a5", want: Key{0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5}},
		{name: "Colons", input: "D3:F7:D3:F7:D3:F7", want: Key{0xD3, 0xF7, 0xD3, 0xF7, 0xD3, 0xF7}},
		{name: "Spaces", input: "00 00 00 00 00 00", want: Key{}},
		{name: "Too_Short", input: "FFFF", wantErr: true},
		{name: "Too_Long", input: "FFFFFFFFFFFFFF", wantErr: true},
		{name: "Not_Hex", input: "GGGGGGGGGGGG", wantErr: true},
		{name: "Empty", input: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			key, err := ParseKey(tt.input)
			if tt.wantErr {
				require.ErrorIs(t, err, ErrInvalidParameter)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, key)
		})
	}
}

func TestIsSectorTrailer(t *testing.T) {
	t.Parallel()

	for block, want := range map[uint8]bool{
		0: false, 3: true, 4: false, 7: true, 62: false, 63: true,
		127: true, 128: false, 142: false, 143: true, 255: true,
	} {
		assert.Equal(t, want, IsSectorTrailer(block), "block %d", block)
	}
}

func TestDiscoverTarget(t *testing.T) {
	t.Parallel()

	device, _, sim := newSimDevice(t, false)

	uid, found, err := device.DiscoverTarget(context.Background(), BaudISO14443A)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, UID{0x12, 0x34, 0x56, 0x78}, uid)

	cmds := sim.Commands()
	require.Len(t, cmds, 1)
	assert.Equal(t, []byte{0x01, 0x00}, cmds[0].Params, "one target, 106 kbps type A")
}

func TestDiscoverTarget_SevenByteUID(t *testing.T) {
	t.Parallel()

	device, _, sim := newSimDevice(t, true)
	sim.AddCard(virt.NewVirtualMIFARE1K(virt.TestSevenByteUID))

	uid, found, err := device.DiscoverTarget(context.Background(), BaudISO14443A)
	require.NoError(t, err)
	require.True(t, found)
	assert.Equal(t, UID(virt.TestSevenByteUID), uid)
}

func TestDiscoverTarget_NoCard(t *testing.T) {
	t.Parallel()

	t.Run("Ack_Only", func(t *testing.T) {
		t.Parallel()

		device, _, _ := newSimDevice(t, true)

		uid, found, err := device.DiscoverTarget(context.Background(), BaudISO14443A)
		require.NoError(t, err)
		assert.False(t, found)
		assert.Nil(t, uid)
	})

	t.Run("Empty_List", func(t *testing.T) {
		t.Parallel()

		device, _, sim := newSimDevice(t, true)
		sim.SetEmptyListWhenNoCard(true)

		_, found, err := device.DiscoverTarget(context.Background(), BaudISO14443A)
		require.NoError(t, err)
		assert.False(t, found)
	})

	t.Run("Wrong_Modulation", func(t *testing.T) {
		t.Parallel()

		device, _, _ := newSimDevice(t, false)

		_, found, err := device.DiscoverTarget(context.Background(), BaudFeliCa212)
		require.NoError(t, err)
		assert.False(t, found)
	})
}

func TestDiscoverTarget_MalformedLists(t *testing.T) {
	t.Parallel()

	eightByteUID := []byte{0x01, 0x01, 0x00, 0x04, 0x08, 0x08, 1, 2, 3, 4, 5, 6, 7, 8}

	tests := []struct {
		target error
		name   string
		params []byte
	}{
		{name: "Two_Targets", params: []byte{0x02, 0x01, 0x00, 0x04, 0x08, 0x04, 1, 2, 3, 4}, target: ErrMultipleCardsDetected},
		{name: "UID_Too_Long", params: eightByteUID, target: ErrUidTooLong},
		{name: "Header_Truncated", params: []byte{0x01, 0x01, 0x00, 0x04}, target: ErrUnexpectedResponse},
		{name: "UID_Truncated", params: []byte{0x01, 0x01, 0x00, 0x04, 0x08, 0x07, 1, 2}, target: ErrUnexpectedResponse},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, _, sim := newSimDevice(t, true)
			sim.QueueResponse(virt.CmdInListPassiveTarget, tt.params)

			uid, found, err := device.DiscoverTarget(context.Background(), BaudISO14443A)
			require.ErrorIs(t, err, tt.target)
			assert.False(t, found)
			assert.Nil(t, uid)
		})
	}
}

func TestWaitForTarget(t *testing.T) {
	t.Parallel()

	device, _, sim := newSimDevice(t, true)
	sim.SetEmptyListWhenNoCard(true)

	go func() {
		time.Sleep(20 * time.Millisecond)
		sim.AddCard(virt.NewVirtualMIFARE4K(nil))
	}()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	uid, err := device.WaitForTarget(ctx, BaudISO14443A)
	require.NoError(t, err)
	assert.Equal(t, UID(virt.TestMIFARE4KUID), uid)
	assert.GreaterOrEqual(t, sim.CommandCount(virt.CmdInListPassiveTarget), 2)
}

func TestWaitForTarget_Cancelled(t *testing.T) {
	t.Parallel()

	device, _, _ := newSimDevice(t, true)

	ctx, cancel := context.WithTimeout(context.Background(), 2*testAckTimeout)
	defer cancel()

	_, err := device.WaitForTarget(ctx, BaudISO14443A)
	require.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestWaitForTarget_StopsOnError(t *testing.T) {
	t.Parallel()

	device, _, sim := newSimDevice(t, true)
	sim.QueueResponse(virt.CmdInListPassiveTarget, []byte{0x02})

	_, err := device.WaitForTarget(context.Background(), BaudISO14443A)
	require.ErrorIs(t, err, ErrMultipleCardsDetected)
	assert.Equal(t, 1, sim.CommandCount(virt.CmdInListPassiveTarget))
}

// selectCard discovers the simulator's card so InDataExchange has a target.
func selectCard(t *testing.T, device *Device) UID {
	t.Helper()

	uid, found, err := device.DiscoverTarget(context.Background(), BaudISO14443A)
	require.NoError(t, err)
	require.True(t, found)
	return uid
}

func TestAuthenticateThenRead(t *testing.T) {
	t.Parallel()

	device, _, sim := newSimDevice(t, true)
	card := virt.NewVirtualMIFARE1K(nil)
	card.SetBlock(4, []byte("Hello, MIFARE!\x00\x00"))
	sim.AddCard(card)

	ctx := context.Background()
	uid := selectCard(t, device)

	ok, err := device.AuthenticateBlock(ctx, uid, 4, KeyB, DefaultKey)
	require.NoError(t, err)
	require.True(t, ok)

	data, ok, err := device.ReadBlock(ctx, 4)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Len(t, data, MifareBlockSize)
	assert.Equal(t, []byte("Hello, MIFARE!\x00\x00"), data)

	cmds := sim.Commands()
	require.Len(t, cmds, 3)
	wantAuth := []byte{0x01, 0x61, 0x04, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0x12, 0x34, 0x56, 0x78}
	assert.Equal(t, wantAuth, cmds[1].Params)
	assert.Equal(t, []byte{0x01, 0x30, 0x04}, cmds[2].Params)
}

func TestAuthenticateBlock_Rejected(t *testing.T) {
	t.Parallel()

	tests := []struct {
		setup func(*virt.VirtualPN532, *virt.VirtualCard)
		name  string
		key   Key
	}{
		{
			name:  "Wrong_Key",
			setup: func(*virt.VirtualPN532, *virt.VirtualCard) {},
			key:   Key{0xA0, 0xA1, 0xA2, 0xA3, 0xA4, 0xA5},
		},
		{
			name:  "Status_Timeout",
			setup: func(s *virt.VirtualPN532, _ *virt.VirtualCard) { s.QueueResponse(virt.CmdInDataExchange, []byte{0x01}) },
			key:   DefaultKey,
		},
		{
			name:  "Card_Removed",
			setup: func(_ *virt.VirtualPN532, c *virt.VirtualCard) { c.Remove() },
			key:   DefaultKey,
		},
		{
			name:  "Ack_Only",
			setup: func(s *virt.VirtualPN532, _ *virt.VirtualCard) { s.AckOnly(1) },
			key:   DefaultKey,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			device, _, sim := newSimDevice(t, true)
			card := virt.NewVirtualMIFARE1K(nil)
			sim.AddCard(card)
			uid := selectCard(t, device)
			tt.setup(sim, card)

			ok, err := device.AuthenticateBlock(context.Background(), uid, 4, KeyA, tt.key)
			require.NoError(t, err)
			assert.False(t, ok)
		})
	}
}

func TestAuthenticateBlock_InvalidArguments(t *testing.T) {
	t.Parallel()

	device, port, _ := newSimDevice(t, true)
	ctx := context.Background()

	_, err := device.AuthenticateBlock(ctx, UID(virt.TestMIFARE1KUID), 4, KeyType(0x30), DefaultKey)
	require.ErrorIs(t, err, ErrInvalidParameter)

	_, err = device.AuthenticateBlock(ctx, UID{1, 2, 3, 4, 5, 6, 7, 8}, 4, KeyA, DefaultKey)
	require.ErrorIs(t, err, ErrUidTooLong)

	assert.Zero(t, port.WriteCount())
}

func TestAuthenticateBlock_KeyKeptOffTheTrace(t *testing.T) {
	t.Parallel()

	device, _, sim := newSimDevice(t, false)
	uid := selectCard(t, device)
	sim.InjectChecksumError()

	secret := Key{0x5E, 0xC2, 0xE7, 0x5E, 0xC2, 0xE7}
	_, err := device.AuthenticateBlock(context.Background(), uid, 4, KeyA, secret)
	require.ErrorIs(t, err, ErrPayloadChecksumMismatch)

	te := GetTrace(err)
	require.NotNil(t, te)
	for _, entry := range te.Trace {
		if entry.Direction != TraceTX {
			continue
		}
		assert.Empty(t, entry.Data)
		assert.Contains(t, entry.Note, "redacted")
	}
	assert.NotContains(t, te.FormatTrace(), "5E C2 E7")
	assert.Equal(t, Key{0x5E, 0xC2, 0xE7, 0x5E, 0xC2, 0xE7}, secret, "caller's key is left alone")
}

func TestReadBlock_Failures(t *testing.T) {
	t.Parallel()

	t.Run("Not_Authenticated", func(t *testing.T) {
		t.Parallel()

		device, _, _ := newSimDevice(t, false)
		selectCard(t, device)

		data, ok, err := device.ReadBlock(context.Background(), 4)
		require.NoError(t, err)
		assert.False(t, ok)
		assert.Nil(t, data)
	})

	t.Run("Short_Data", func(t *testing.T) {
		t.Parallel()

		device, _, sim := newSimDevice(t, false)
		sim.QueueResponse(virt.CmdInDataExchange, []byte{0x00, 0x01, 0x02, 0x03})

		_, ok, err := device.ReadBlock(context.Background(), 4)
		require.ErrorIs(t, err, ErrUnexpectedResponse)
		assert.False(t, ok)
	})

	t.Run("No_Target", func(t *testing.T) {
		t.Parallel()

		device, _, sim := newSimDevice(t, false)
		sim.AckOnly(1)

		_, ok, err := device.ReadBlock(context.Background(), 4)
		require.NoError(t, err)
		assert.False(t, ok)
	})
}

func TestReadBlock_SectorTrailerHidesKeyA(t *testing.T) {
	t.Parallel()

	device, _, _ := newSimDevice(t, false)
	uid := selectCard(t, device)
	ctx := context.Background()

	ok, err := device.AuthenticateBlock(ctx, uid, 7, KeyA, DefaultKey)
	require.NoError(t, err)
	require.True(t, ok)

	data, ok, err := device.ReadBlock(ctx, 7)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, make([]byte, MifareKeySize), data[:MifareKeySize])
	assert.Equal(t, DefaultKey[:], data[10:16])
}

func TestWriteBlock(t *testing.T) {
	t.Parallel()

	device, _, sim := newSimDevice(t, true)
	card := virt.NewVirtualMIFARE1K(nil)
	sim.AddCard(card)
	uid := selectCard(t, device)
	ctx := context.Background()

	ok, err := device.AuthenticateBlock(ctx, uid, 5, KeyA, DefaultKey)
	require.NoError(t, err)
	require.True(t, ok)

	data := bytes.Repeat([]byte{0xA5}, MifareBlockSize)
	ok, err = device.WriteBlock(ctx, 5, data)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, data, card.Block(5))
	assert.Equal(t, 1, card.WriteCount())

	cmds := sim.Commands()
	last := cmds[len(cmds)-1]
	assert.Equal(t, append([]byte{0x01, 0xA0, 0x05}, data...), last.Params)

	got, ok, err := device.ReadBlock(ctx, 5)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, data, got)
}

func TestWriteBlock_WrongSizeSendsNothing(t *testing.T) {
	t.Parallel()

	for _, size := range []int{0, 15, 17} {
		device, port, _ := newSimDevice(t, false)

		ok, err := device.WriteBlock(context.Background(), 4, make([]byte, size))
		require.ErrorIs(t, err, ErrInvalidBlockSize, "size %d", size)
		assert.False(t, ok)
		assert.Zero(t, port.WriteCount(), "size %d", size)
	}
}

func TestWriteBlock_ManufacturerBlockRejected(t *testing.T) {
	t.Parallel()

	device, _, _ := newSimDevice(t, false)
	uid := selectCard(t, device)
	ctx := context.Background()

	ok, err := device.AuthenticateBlock(ctx, uid, 0, KeyA, DefaultKey)
	require.NoError(t, err)
	require.True(t, ok)

	ok, err = device.WriteBlock(ctx, 0, make([]byte, MifareBlockSize))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestMifare4K_LargeSector(t *testing.T) {
	t.Parallel()

	device, _, sim := newSimDevice(t, true)
	card := virt.NewVirtualMIFARE4K(nil)
	card.SetBlock(200, bytes.Repeat([]byte{0x42}, MifareBlockSize))
	sim.AddCard(card)
	uid := selectCard(t, device)
	ctx := context.Background()

	ok, err := device.AuthenticateBlock(ctx, uid, 200, KeyB, DefaultKey)
	require.NoError(t, err)
	require.True(t, ok)

	data, ok, err := device.ReadBlock(ctx, 200)
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, card.Block(200), data)
}
