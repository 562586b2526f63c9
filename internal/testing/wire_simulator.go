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

// Package testing provides test utilities including a wire-level PN532 simulator.
//
// VirtualPN532 implements io.ReadWriter and behaves like a PN532 on its HSU
// interface: it parses normal information frames, answers with an ACK and
// a response frame, and drives VirtualCard instances through
// InListPassiveTarget and InDataExchange. Faults seen on real hardware can
// be injected: lost frames, ACK-only answers, corrupted checksums and
// duplicated ACKs.
//
// Protocol Reference: PN532 User Manual, section 6.2 "Host controller communication protocol"
package testing

import (
	"bytes"
	"errors"
	"fmt"

	"github.com/ZaparooProject/go-pn532-mifare/internal/syncutil"
)

// PN532 Protocol Constants from PN532 User Manual §6.2.1
const (
	pn532Preamble   = 0x00
	pn532StartCode1 = 0x00
	pn532StartCode2 = 0xFF
	pn532Postamble  = 0x00

	tfiHostToPN532 = 0xD4
	tfiPN532ToHost = 0xD5
	tfiError       = 0x7F

	// hsuWakeupByte is the 0x55 byte a host sends to wake the HSU link.
	hsuWakeupByte = 0x55
)

// ACKFrame is sent to acknowledge successful frame reception (§6.2.1.3)
var ACKFrame = []byte{0x00, 0x00, 0xFF, 0x00, 0xFF, 0x00}

// Command codes the simulator understands (§7).
const (
	CmdGetFirmwareVersion  = 0x02
	CmdSAMConfiguration    = 0x14
	CmdInListPassiveTarget = 0x4A
	CmdInDataExchange      = 0x40
)

// Status bytes from PN532 User Manual §7.1 (Table 13)
const (
	statusOK               = 0x00
	errTimeout             = 0x01
	errInvalidParam        = 0x10
	errDataFormat          = 0x13
	errMifareAuth          = 0x14
	errOperationNotAllowed = 0x26
	errCardDisappeared     = 0x2B
)

// SimulatorState tracks the internal state of the simulated PN532
type SimulatorState struct {
	Awake          bool
	SAMConfigured  bool
	SelectedTarget int // -1 = none
	WakeupCount    int
}

// CommandLogEntry records a command frame the simulator accepted.
type CommandLogEntry struct {
	Params []byte
	Cmd    byte
	Acked  bool
}

// queuedResponse replaces the handler's answer for one command.
type queuedResponse struct {
	params []byte
	raw    []byte
}

// VirtualPN532 simulates a PN532 chip at the wire protocol level.
// It implements io.ReadWriter to plug directly into transport layer tests.
type VirtualPN532 struct {
	queued              map[byte][]queuedResponse
	cards               []*VirtualCard
	log                 []CommandLogEntry
	rxBuffer            bytes.Buffer
	txBuffer            bytes.Buffer
	state               SimulatorState
	mu                  syncutil.Mutex
	dropFrames          int
	ackOnly             int
	firmware            [4]byte
	injectChecksumError bool
	duplicateACK        bool
	requireWakeup       bool
	emptyListNoCard     bool
}

// NewVirtualPN532 creates a new wire-level PN532 simulator, awake, with no
// card in the field and firmware 1.6 supporting ISO14443A/B and ISO18092.
func NewVirtualPN532() *VirtualPN532 {
	return &VirtualPN532{
		state: SimulatorState{
			Awake:          true,
			SelectedTarget: -1,
		},
		firmware: [4]byte{0x32, 0x01, 0x06, 0x07},
		queued:   make(map[byte][]queuedResponse),
	}
}

// Write implements io.Writer - receives data from the host controller.
func (v *VirtualPN532) Write(data []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	v.rxBuffer.Write(data)
	v.processReceivedData()
	return len(data), nil
}

// Read implements io.Reader - returns response data to the host controller.
// It returns 0, nil when nothing is pending, like a serial read timeout.
func (v *VirtualPN532) Read(buf []byte) (int, error) {
	v.mu.Lock()
	defer v.mu.Unlock()

	if v.txBuffer.Len() == 0 {
		return 0, nil
	}

	n, err := v.txBuffer.Read(buf)
	if err != nil {
		return n, fmt.Errorf("read from tx buffer: %w", err)
	}
	return n, nil
}

// DiscardOutput drops any bytes not yet read by the host.
func (v *VirtualPN532) DiscardOutput() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.txBuffer.Reset()
}

// PushRaw queues bytes for the host as if the chip had sent them.
func (v *VirtualPN532) PushRaw(data []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.txBuffer.Write(data)
}

// AddCard places a card in the field.
func (v *VirtualPN532) AddCard(card *VirtualCard) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cards = append(v.cards, card)
}

// SetCard replaces all cards in the field with card.
func (v *VirtualPN532) SetCard(card *VirtualCard) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cards = []*VirtualCard{card}
	v.state.SelectedTarget = -1
}

// RemoveAllCards empties the field.
func (v *VirtualPN532) RemoveAllCards() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.cards = nil
	v.state.SelectedTarget = -1
}

// SetFirmwareVersion configures the firmware version returned by GetFirmwareVersion.
func (v *VirtualPN532) SetFirmwareVersion(ic, ver, rev, support byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.firmware = [4]byte{ic, ver, rev, support}
}

// SetRequireWakeup makes the simulator ignore frames until it has seen
// the HSU wake-up preamble.
func (v *VirtualPN532) SetRequireWakeup(require bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.requireWakeup = require
	if require {
		v.state.Awake = false
	}
}

// SetEmptyListWhenNoCard makes InListPassiveTarget answer NbTg=0 instead
// of only acknowledging when the field is empty.
func (v *VirtualPN532) SetEmptyListWhenNoCard(empty bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.emptyListNoCard = empty
}

// SetDuplicateACK makes every ACK go out twice.
func (v *VirtualPN532) SetDuplicateACK(duplicate bool) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.duplicateACK = duplicate
}

// InjectChecksumError causes the next response to have an invalid checksum.
func (v *VirtualPN532) InjectChecksumError() {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.injectChecksumError = true
}

// DropFrames makes the simulator lose the next n command frames: no ACK,
// no response.
func (v *VirtualPN532) DropFrames(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.dropFrames = n
}

// DropNextACK loses the next command frame.
func (v *VirtualPN532) DropNextACK() {
	v.DropFrames(1)
}

// AckOnly makes the next n commands get an ACK but no response frame.
func (v *VirtualPN532) AckOnly(n int) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.ackOnly = n
}

// QueueResponse makes the next cmd answer with params instead of the
// simulated result. Responses queue up in order.
func (v *VirtualPN532) QueueResponse(cmd byte, params []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.queued[cmd] = append(v.queued[cmd], queuedResponse{params: append([]byte{}, params...)})
}

// QueueRawResponse makes the next cmd answer with raw bytes after the ACK.
func (v *VirtualPN532) QueueRawResponse(cmd byte, raw []byte) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.queued[cmd] = append(v.queued[cmd], queuedResponse{raw: append([]byte{}, raw...)})
}

// GetState returns the current simulator state.
func (v *VirtualPN532) GetState() SimulatorState {
	v.mu.Lock()
	defer v.mu.Unlock()
	return v.state
}

// Commands returns every command frame received so far.
func (v *VirtualPN532) Commands() []CommandLogEntry {
	v.mu.Lock()
	defer v.mu.Unlock()
	return append([]CommandLogEntry(nil), v.log...)
}

// CommandCount returns how many frames carrying cmd were received.
func (v *VirtualPN532) CommandCount(cmd byte) int {
	v.mu.Lock()
	defer v.mu.Unlock()
	count := 0
	for _, entry := range v.log {
		if entry.Cmd == cmd {
			count++
		}
	}
	return count
}

// processReceivedData parses frames from the receive buffer and generates responses.
func (v *VirtualPN532) processReceivedData() {
	for {
		v.consumeWakeup()

		data := v.rxBuffer.Bytes()
		if len(data) < 6 {
			return
		}

		startIdx := findFrameStart(data)
		if startIdx < 0 {
			// Keep a trailing 0x00 that may start the next start code.
			v.rxBuffer.Next(len(data) - 1)
			return
		}
		if startIdx > 0 {
			v.rxBuffer.Next(startIdx)
			data = v.rxBuffer.Bytes()
		}

		frameData, frameLen, err := parseFrame(data)
		if err != nil {
			if errors.Is(err, errIncompleteFrame) {
				return
			}
			// Bad frame: skip the start code and resynchronise.
			v.rxBuffer.Next(2)
			continue
		}

		v.rxBuffer.Next(frameLen)
		v.processCommand(frameData)
	}
}

func (v *VirtualPN532) consumeWakeup() {
	data := v.rxBuffer.Bytes()
	n := 0
	for n < len(data) && data[n] == hsuWakeupByte {
		n++
	}
	if n > 0 {
		v.rxBuffer.Next(n)
		v.state.Awake = true
		v.state.WakeupCount++
	}
}

var errIncompleteFrame = errors.New("incomplete frame")

// findFrameStart locates the 0x00 0xFF start code pattern (§6.2.1.6)
func findFrameStart(data []byte) int {
	for i := range len(data) - 1 {
		if data[i] == pn532StartCode1 && data[i+1] == pn532StartCode2 {
			return i
		}
	}
	return -1
}

// parseFrame validates a normal information frame starting at the start
// code. It returns TFI + command + params and the bytes consumed.
func parseFrame(data []byte) (frameData []byte, consumed int, err error) {
	// START(2) + LEN(1) + LCS(1)
	if len(data) < 4 {
		return nil, 0, errIncompleteFrame
	}

	frameLen := int(data[2])
	lcs := data[3]
	if byte(frameLen)+lcs != 0 {
		return nil, 0, errors.New("length checksum error")
	}
	if frameLen == 0 {
		return nil, 0, errors.New("empty frame")
	}

	// START(2) + LEN(1) + LCS(1) + DATA(frameLen) + DCS(1) + POSTAMBLE(1)
	total := 4 + frameLen + 2
	if len(data) < total {
		return nil, 0, errIncompleteFrame
	}

	body := data[4 : 4+frameLen]
	sum := data[4+frameLen]
	for _, b := range body {
		sum += b
	}
	if sum != 0 {
		return nil, 0, errors.New("data checksum error")
	}
	if body[0] != tfiHostToPN532 {
		return nil, 0, fmt.Errorf("invalid TFI: expected 0x%02X, got 0x%02X", tfiHostToPN532, body[0])
	}

	return append([]byte(nil), body...), total, nil
}

// processCommand handles a parsed command frame: TFI(1) + Command(1) + Params(n)
func (v *VirtualPN532) processCommand(frameData []byte) {
	if len(frameData) < 2 {
		v.txBuffer.Write(ACKFrame)
		v.sendErrorFrame()
		return
	}

	cmd := frameData[1]
	params := frameData[2:]
	entry := CommandLogEntry{Cmd: cmd, Params: append([]byte(nil), params...)}

	if (v.requireWakeup && !v.state.Awake) || v.dropFrames > 0 {
		if v.dropFrames > 0 {
			v.dropFrames--
		}
		v.log = append(v.log, entry)
		return
	}

	entry.Acked = true
	v.log = append(v.log, entry)
	v.txBuffer.Write(ACKFrame)
	if v.duplicateACK {
		v.txBuffer.Write(ACKFrame)
	}

	if v.ackOnly > 0 {
		v.ackOnly--
		return
	}

	if queue := v.queued[cmd]; len(queue) > 0 {
		next := queue[0]
		v.queued[cmd] = queue[1:]
		if next.raw != nil {
			v.txBuffer.Write(next.raw)
			return
		}
		v.sendResponse(cmd, next.params)
		return
	}

	var response []byte
	var ok bool

	switch cmd {
	case CmdGetFirmwareVersion:
		response, ok = v.firmware[:], true
	case CmdSAMConfiguration:
		response, ok = v.handleSAMConfiguration(params)
	case CmdInListPassiveTarget:
		response, ok = v.handleInListPassiveTarget(params)
	case CmdInDataExchange:
		response, ok = v.handleInDataExchange(params)
	default:
		v.sendErrorFrame()
		return
	}

	if ok {
		v.sendResponse(cmd, response)
	}
}

// sendResponse builds and sends a response frame with code cmd+1.
func (v *VirtualPN532) sendResponse(cmd byte, params []byte) {
	frameData := append([]byte{tfiPN532ToHost, cmd + 1}, params...)
	frame := BuildFrame(frameData)

	if v.injectChecksumError {
		v.injectChecksumError = false
		frame[len(frame)-2] ^= 0xFF
	}

	v.txBuffer.Write(frame)
}

// sendErrorFrame sends the fixed syntax error frame (§6.2.1.5).
func (v *VirtualPN532) sendErrorFrame() {
	v.txBuffer.Write([]byte{
		pn532Preamble,
		pn532StartCode1, pn532StartCode2,
		0x01, 0xFF, // LEN, LCS
		tfiError,
		0x81, // DCS
		pn532Postamble,
	})
}

// BuildFrame wraps TFI + data in a normal information frame.
func BuildFrame(frameData []byte) []byte {
	dataLen := len(frameData)
	lcs := byte(0 - dataLen)

	dcs := byte(0)
	for _, b := range frameData {
		dcs += b
	}
	dcs = 0 - dcs

	frame := make([]byte, 0, dataLen+7)
	frame = append(frame, pn532Preamble, pn532StartCode1, pn532StartCode2, byte(dataLen), lcs)
	frame = append(frame, frameData...)
	frame = append(frame, dcs, pn532Postamble)
	return frame
}

// handleSAMConfiguration configures the SAM (§7.2.10). Input: Mode [Timeout] [IRQ]
func (v *VirtualPN532) handleSAMConfiguration(params []byte) ([]byte, bool) {
	if len(params) < 1 || params[0] < 0x01 || params[0] > 0x04 {
		v.sendErrorFrame()
		return nil, false
	}
	v.state.SAMConfigured = true
	return []byte{}, true
}

// handleInListPassiveTarget detects passive targets (§7.3.5).
// Input: MaxTg + BrTy. Response: NbTg + TargetData...
// With no card in the field the chip keeps waiting, so only the ACK is sent.
func (v *VirtualPN532) handleInListPassiveTarget(params []byte) ([]byte, bool) {
	if len(params) < 2 || params[0] == 0 || params[0] > 2 || params[1] > 0x04 {
		v.sendErrorFrame()
		return nil, false
	}
	maxTg := params[0]
	brTy := params[1]

	var targetData []byte
	nbTg := byte(0)
	v.state.SelectedTarget = -1

	for i, card := range v.cards {
		if !card.Present || brTy != 0x00 {
			continue
		}
		if nbTg >= maxTg {
			break
		}
		nbTg++
		targetData = append(targetData, BuildTargetData(nbTg, card)...)
		if nbTg == 1 {
			v.state.SelectedTarget = i
			card.Select()
		}
	}

	if nbTg == 0 && !v.emptyListNoCard {
		return nil, false
	}
	return append([]byte{nbTg}, targetData...), true
}

// handleInDataExchange runs a MIFARE command on the selected card (§7.3.8).
// Input: Tg + DataOut. Response: Status + DataIn
func (v *VirtualPN532) handleInDataExchange(params []byte) ([]byte, bool) {
	if len(params) < 2 {
		v.sendErrorFrame()
		return nil, false
	}

	if params[0] != 0x01 || v.state.SelectedTarget < 0 || v.state.SelectedTarget >= len(v.cards) {
		return []byte{errInvalidParam}, true
	}

	card := v.cards[v.state.SelectedTarget]
	if !card.Present {
		return []byte{errCardDisappeared}, true
	}

	dataOut := params[1:]
	switch dataOut[0] {
	case mifareAuthA, mifareAuthB:
		// cmd, block, key(6), uid(4..7)
		if len(dataOut) < 2+keySize+4 {
			return []byte{errInvalidParam}, true
		}
		key := dataOut[2 : 2+keySize]
		uid := dataOut[2+keySize:]
		return []byte{card.Authenticate(dataOut[0], int(dataOut[1]), key, uid)}, true

	case mifareRead:
		if len(dataOut) < 2 {
			return []byte{errInvalidParam}, true
		}
		data, status := card.ReadBlock(int(dataOut[1]))
		return append([]byte{status}, data...), true

	case mifareWrite:
		if len(dataOut) < 2 {
			return []byte{errInvalidParam}, true
		}
		return []byte{card.WriteBlock(int(dataOut[1]), dataOut[2:])}, true

	default:
		return []byte{errTimeout}, true
	}
}
