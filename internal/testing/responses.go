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

package testing

// BuildTargetData encodes one ISO14443A entry of an InListPassiveTarget
// response: Tg, SENS_RES(2), SEL_RES, NFCIDLength, NFCID.
func BuildTargetData(tg byte, card *VirtualCard) []byte {
	atqa := card.ATQA()
	data := make([]byte, 0, 5+len(card.UID))
	data = append(data, tg, atqa[0], atqa[1], card.SAK(), byte(len(card.UID)))
	return append(data, card.UID...)
}

// BuildTargetResponse creates InListPassiveTarget response params for a
// single MIFARE Classic target with the given UID and SAK.
func BuildTargetResponse(uid []byte, sak byte) []byte {
	response := make([]byte, 0, 6+len(uid))
	// NbTg, Tg, SENS_RES, SEL_RES, NFCIDLength
	response = append(response, 0x01, 0x01, 0x00, 0x04, sak, byte(len(uid)))
	return append(response, uid...)
}

// BuildNoTargetResponse creates an empty InListPassiveTarget response
func BuildNoTargetResponse() []byte {
	return []byte{0x00}
}

// BuildDataExchangeResponse creates InDataExchange response params with
// a success status.
func BuildDataExchangeResponse(data []byte) []byte {
	response := make([]byte, 0, 1+len(data))
	response = append(response, statusOK)
	return append(response, data...)
}

// BuildStatusResponse creates InDataExchange response params carrying
// only a status byte.
func BuildStatusResponse(status byte) []byte {
	return []byte{status}
}

// BuildResponseFrame wraps params in a complete PN532-to-host frame for cmd.
func BuildResponseFrame(cmd byte, params []byte) []byte {
	return BuildFrame(append([]byte{tfiPN532ToHost, cmd + 1}, params...))
}

// Common UIDs for testing
var (
	// TestMIFARE1KUID is a sample MIFARE Classic 1K UID
	TestMIFARE1KUID = []byte{0x12, 0x34, 0x56, 0x78}

	// TestMIFARE4KUID is a sample MIFARE Classic 4K UID
	TestMIFARE4KUID = []byte{0xAB, 0xCD, 0xEF, 0x01}

	// TestSevenByteUID is a double-size ISO14443A UID
	TestSevenByteUID = []byte{0x04, 0xAB, 0xCD, 0xEF, 0x12, 0x34, 0x56}
)
