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

	"github.com/ZaparooProject/go-pn532-mifare/internal/frame"
)

// Call sends command cmd with params and returns the response parameters,
// the payload after the direction tag and response code.
//
// When the chip acknowledges the command but sends nothing else, Call
// returns ErrNoTarget. That is an outcome, not a failure: see IsNoTarget.
// Any other error carries a wire trace retrievable with GetTrace.
func (d *Device) Call(ctx context.Context, cmd byte, params ...Param) ([]byte, error) {
	args, err := Flatten(params...)
	if err != nil {
		return nil, fmt.Errorf("command 0x%02X: %w", cmd, err)
	}
	return d.call(ctx, cmd, args, false)
}

// call frames args behind cmd and runs one exchange. With secret set the
// request bytes are kept out of logs and traces, and every buffer that
// held them is zeroed before returning.
func (d *Device) call(ctx context.Context, cmd byte, args []byte, secret bool) ([]byte, error) {
	payload := make([]byte, 0, 2+len(args))
	payload = append(payload, HostToPN532, cmd)
	payload = append(payload, args...)
	defer clear(payload)

	raw, err := frame.Encode(payload)
	if err != nil {
		return nil, fmt.Errorf("command 0x%02X: %w", cmd, err)
	}
	defer clear(raw)

	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return nil, d.closedError("call")
	}

	trace := newTraceBuffer(d.name, defaultTraceEntries)
	resp, err := d.exchange(ctx, cmd, raw, trace, secret)
	if err != nil && !IsNoTarget(err) {
		return nil, trace.wrap(err)
	}
	return resp, err
}

func (d *Device) exchange(ctx context.Context, cmd byte, raw []byte, trace *traceBuffer, secret bool) ([]byte, error) {
	pending, err := d.sendAndAwaitAck(ctx, raw, trace, secret)
	if err != nil {
		return nil, err
	}

	body, err := frame.Decode(pending)
	if errors.Is(err, frame.ErrAck) {
		return nil, ErrNoTarget
	}
	if err != nil {
		return nil, fmt.Errorf("response to command 0x%02X: %w", cmd, err)
	}

	if len(body) < 2 || body[0] != PN532ToHost || body[1] != ResponseCode(cmd) {
		return nil, fmt.Errorf("%w: command 0x%02X answered with %s",
			ErrUnexpectedResponse, cmd, formatHexBytes(body))
	}

	return body[2:], nil
}
