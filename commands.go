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

import "github.com/ZaparooProject/go-pn532-mifare/internal/frame"

// Direction tags carried in the first payload byte.
const (
	HostToPN532 = frame.HostToPn532
	PN532ToHost = frame.Pn532ToHost
)

// PN532 command codes (PN532 User Manual, table 6-1).
const (
	CmdDiagnose              byte = 0x00
	CmdGetFirmwareVersion    byte = 0x02
	CmdGetGeneralStatus      byte = 0x04
	CmdReadRegister          byte = 0x06
	CmdWriteRegister         byte = 0x08
	CmdReadGPIO              byte = 0x0C
	CmdWriteGPIO             byte = 0x0E
	CmdSetSerialBaudRate     byte = 0x10
	CmdSetParameters         byte = 0x12
	CmdSAMConfiguration      byte = 0x14
	CmdPowerDown             byte = 0x16
	CmdRFConfiguration       byte = 0x32
	CmdRFRegulationTest      byte = 0x58
	CmdInJumpForDEP          byte = 0x56
	CmdInJumpForPSL          byte = 0x46
	CmdInListPassiveTarget   byte = 0x4A
	CmdInATR                 byte = 0x50
	CmdInPSL                 byte = 0x4E
	CmdInDataExchange        byte = 0x40
	CmdInCommunicateThru     byte = 0x42
	CmdInDeselect            byte = 0x44
	CmdInRelease             byte = 0x52
	CmdInSelect              byte = 0x54
	CmdInAutoPoll            byte = 0x60
	CmdTgInitAsTarget        byte = 0x8C
	CmdTgSetGeneralBytes     byte = 0x92
	CmdTgGetData             byte = 0x86
	CmdTgSetData             byte = 0x8E
	CmdTgSetMetaData         byte = 0x94
	CmdTgGetInitiatorCommand byte = 0x88
	CmdTgResponseToInitiator byte = 0x90
	CmdTgGetTargetStatus     byte = 0x8A
)

// ResponseCode returns the code the PN532 answers cmd with.
func ResponseCode(cmd byte) byte {
	return cmd + 1
}

// MIFARE commands sent through InDataExchange.
const (
	MifareCmdAuthA           byte = 0x60
	MifareCmdAuthB           byte = 0x61
	MifareCmdRead            byte = 0x30
	MifareCmdWrite           byte = 0xA0
	MifareCmdTransfer        byte = 0xB0
	MifareCmdDecrement       byte = 0xC0
	MifareCmdIncrement       byte = 0xC1
	MifareCmdStore           byte = 0xC2
	MifareUltralightCmdWrite byte = 0xA2
)

// KeyType selects which sector key authenticates a block.
type KeyType byte

const (
	// KeyA authenticates with the sector's key A.
	KeyA = KeyType(MifareCmdAuthA)
	// KeyB authenticates with the sector's key B.
	KeyB = KeyType(MifareCmdAuthB)
)

func (k KeyType) String() string {
	switch k {
	case KeyA:
		return "A"
	case KeyB:
		return "B"
	default:
		return "unknown"
	}
}

// BaudRate is the modulation/baud profile (BrTy) for InListPassiveTarget.
type BaudRate byte

const (
	BaudISO14443A BaudRate = 0x00 // 106 kbps type A (MIFARE)
	BaudFeliCa212 BaudRate = 0x01 // 212 kbps FeliCa
	BaudFeliCa424 BaudRate = 0x02 // 424 kbps FeliCa
	BaudISO14443B BaudRate = 0x03 // 106 kbps type B
	BaudJewel     BaudRate = 0x04 // 106 kbps Innovision Jewel
)
