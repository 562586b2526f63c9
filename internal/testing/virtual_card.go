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

package testing

import (
	"bytes"
	"encoding/hex"
	"strings"
)

// CardType identifies the MIFARE Classic variant a VirtualCard emulates.
type CardType string

const (
	CardMIFARE1K CardType = "MIFARE1K"
	CardMIFARE4K CardType = "MIFARE4K"
)

// MIFARE Classic commands carried in InDataExchange.
const (
	mifareAuthA = 0x60
	mifareAuthB = 0x61
	mifareRead  = 0x30
	mifareWrite = 0xA0
)

const (
	blockSize = 16
	keySize   = 6
)

// TransportKey is the key blank cards ship with, for both key A and key B.
var TransportKey = [keySize]byte{0xFF, 0xFF, 0xFF, 0xFF, 0xFF, 0xFF}

// defaultAccessBits grant read/write with either key on data blocks.
var defaultAccessBits = []byte{0xFF, 0x07, 0x80, 0x69}

// VirtualCard is a simulated MIFARE Classic card. Keys live in the sector
// trailers just as on a real card, so writing a trailer changes them.
//
// Access bits are stored but not enforced: any successful authentication
// grants read and write on the whole sector, except for block 0.
//
// A rejected key halts the card, like real MIFARE Classic silicon: every
// later command times out until the card is selected again.
type VirtualCard struct {
	Type                CardType
	UID                 []byte
	Memory              [][]byte
	Present             bool
	halted              bool
	authenticatedSector int
	writeCount          int
}

// NewVirtualMIFARE1K creates a blank 1K card (16 sectors of 4 blocks).
func NewVirtualMIFARE1K(uid []byte) *VirtualCard {
	if uid == nil {
		uid = TestMIFARE1KUID
	}
	return newVirtualCard(CardMIFARE1K, uid, 64)
}

// NewVirtualMIFARE4K creates a blank 4K card (32 small and 8 large sectors).
func NewVirtualMIFARE4K(uid []byte) *VirtualCard {
	if uid == nil {
		uid = TestMIFARE4KUID
	}
	return newVirtualCard(CardMIFARE4K, uid, 256)
}

func newVirtualCard(cardType CardType, uid []byte, blocks int) *VirtualCard {
	card := &VirtualCard{
		Type:                cardType,
		UID:                 append([]byte(nil), uid...),
		Memory:              make([][]byte, blocks),
		Present:             true,
		authenticatedSector: -1,
	}

	for i := range card.Memory {
		card.Memory[i] = make([]byte, blockSize)
	}

	// Manufacturer block: UID, BCC for 4-byte UIDs, then SAK/ATQA.
	copy(card.Memory[0], card.UID)
	if len(card.UID) == 4 {
		card.Memory[0][4] = card.UID[0] ^ card.UID[1] ^ card.UID[2] ^ card.UID[3]
	}
	card.Memory[0][5] = card.SAK()
	copy(card.Memory[0][6:8], card.ATQA())

	for sector := range card.Sectors() {
		card.writeTrailer(sector, TransportKey, TransportKey)
	}
	return card
}

// UIDString returns the UID as upper-case hex.
func (c *VirtualCard) UIDString() string {
	return strings.ToUpper(hex.EncodeToString(c.UID))
}

// SAK returns the SEL_RES byte the card answers anticollision with.
func (c *VirtualCard) SAK() byte {
	if c.Type == CardMIFARE4K {
		return 0x18
	}
	return 0x08
}

// ATQA returns the SENS_RES bytes, most significant first.
func (c *VirtualCard) ATQA() []byte {
	if c.Type == CardMIFARE4K {
		return []byte{0x00, 0x02}
	}
	return []byte{0x00, 0x04}
}

// Sectors returns the number of sectors on the card.
func (c *VirtualCard) Sectors() int {
	if c.Type == CardMIFARE4K {
		return 40
	}
	return 16
}

// SectorOf returns the sector holding block.
func (c *VirtualCard) SectorOf(block int) int {
	if block < 128 {
		return block / 4
	}
	return 32 + (block-128)/16
}

// TrailerOf returns the trailer block of sector.
func (c *VirtualCard) TrailerOf(sector int) int {
	if sector < 32 {
		return sector*4 + 3
	}
	return 128 + (sector-32)*16 + 15
}

// SetSectorKeys replaces the keys stored in a sector trailer.
func (c *VirtualCard) SetSectorKeys(sector int, keyA, keyB [keySize]byte) {
	c.writeTrailer(sector, keyA, keyB)
}

func (c *VirtualCard) writeTrailer(sector int, keyA, keyB [keySize]byte) {
	trailer := c.Memory[c.TrailerOf(sector)]
	copy(trailer[0:6], keyA[:])
	copy(trailer[6:10], defaultAccessBits)
	copy(trailer[10:16], keyB[:])
}

// Block returns a copy of a block's stored bytes, bypassing authentication.
func (c *VirtualCard) Block(block int) []byte {
	return append([]byte(nil), c.Memory[block]...)
}

// SetBlock stores data in block, bypassing authentication.
func (c *VirtualCard) SetBlock(block int, data []byte) {
	copy(c.Memory[block], data)
}

// WriteCount returns the number of successful block writes.
func (c *VirtualCard) WriteCount() int {
	return c.writeCount
}

// AuthenticatedSector returns the sector authenticated last, or -1.
func (c *VirtualCard) AuthenticatedSector() int {
	return c.authenticatedSector
}

// Halted reports whether a rejected key has halted the card.
func (c *VirtualCard) Halted() bool {
	return c.halted
}

// Select wakes the card as a fresh anticollision round does.
func (c *VirtualCard) Select() {
	c.halted = false
	c.authenticatedSector = -1
}

// Remove takes the card out of the field.
func (c *VirtualCard) Remove() {
	c.Present = false
	c.Select()
}

// Insert puts the card back into the field, unauthenticated.
func (c *VirtualCard) Insert() {
	c.Present = true
	c.Select()
}

// Authenticate runs a MIFARE Auth A/B and returns the PN532 status byte.
// A failed attempt drops any previous authentication.
func (c *VirtualCard) Authenticate(authCmd byte, block int, key, uid []byte) byte {
	if !c.Present || c.halted {
		return errTimeout
	}
	if block < 0 || block >= len(c.Memory) || len(key) != keySize {
		return errMifareAuth
	}
	if !bytes.Equal(uid, c.UID) {
		return c.halt()
	}

	sector := c.SectorOf(block)
	trailer := c.Memory[c.TrailerOf(sector)]

	var expected []byte
	switch authCmd {
	case mifareAuthA:
		expected = trailer[0:6]
	case mifareAuthB:
		expected = trailer[10:16]
	default:
		return errInvalidParam
	}

	if !bytes.Equal(key, expected) {
		return c.halt()
	}

	c.authenticatedSector = sector
	return statusOK
}

func (c *VirtualCard) halt() byte {
	c.halted = true
	c.authenticatedSector = -1
	return errMifareAuth
}

// ReadBlock returns the block data and the PN532 status byte. Key A always
// reads back as zeros from a trailer, as on a real card.
func (c *VirtualCard) ReadBlock(block int) ([]byte, byte) {
	if status := c.checkAccess(block); status != statusOK {
		return nil, status
	}

	data := c.Block(block)
	if block == c.TrailerOf(c.SectorOf(block)) {
		clear(data[0:6])
	}
	return data, statusOK
}

// WriteBlock stores 16 bytes and returns the PN532 status byte. Block 0 is
// read-only.
func (c *VirtualCard) WriteBlock(block int, data []byte) byte {
	if status := c.checkAccess(block); status != statusOK {
		return status
	}
	if block == 0 {
		return errOperationNotAllowed
	}
	if len(data) != blockSize {
		return errDataFormat
	}

	copy(c.Memory[block], data)
	c.writeCount++
	return statusOK
}

func (c *VirtualCard) checkAccess(block int) byte {
	if !c.Present || c.halted {
		return errTimeout
	}
	if block < 0 || block >= len(c.Memory) {
		return errTimeout
	}
	if c.authenticatedSector != c.SectorOf(block) {
		return errMifareAuth
	}
	return statusOK
}
