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
	"io"
	"time"

	"github.com/ZaparooProject/go-pn532-mifare/internal/frame"
)

// sendAndAwaitAck writes raw and waits for the PN532 to acknowledge it,
// re-sending after RetryInterval whenever an attempt's ACK window closes
// empty. It returns the bytes that arrived besides the ACK, or the ACK
// itself when nothing else did. The caller must hold d.mu.
func (d *Device) sendAndAwaitAck(ctx context.Context, raw []byte, trace *traceBuffer, secret bool) ([]byte, error) {
	if err := d.transport.ResetInputBuffer(); err != nil {
		return nil, NewTransportReadError("flush input", d.name, err)
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("handshake cancelled: %w", err)
		}

		if secret {
			Debugf("%s: TX frame (attempt %d): %d bytes, redacted", d.name, attempt, len(raw))
			trace.recordTX(nil, fmt.Sprintf("attempt %d, %d bytes redacted", attempt, len(raw)))
		} else {
			Debugf("%s: TX frame (attempt %d): %s", d.name, attempt, formatHexBytes(raw))
			trace.recordTX(raw, fmt.Sprintf("attempt %d", attempt))
		}
		if err := d.writeAll("write frame", raw); err != nil {
			return nil, err
		}

		pending, acked, err := d.awaitAck(ctx, trace)
		if err != nil {
			return nil, err
		}
		if acked {
			return pending, nil
		}

		if limit := d.config.MaxHandshakeAttempts; limit > 0 && attempt >= limit {
			Debugf("%s: giving up after %d unacknowledged attempts", d.name, attempt)
			return nil, NewHandshakeTimeoutError("await ACK", d.name, attempt)
		}

		Debugf("%s: no ACK within %v, re-sending in %v", d.name, d.config.AckTimeout, d.config.RetryInterval)
		if err := sleepCtx(ctx, d.config.RetryInterval); err != nil {
			return nil, fmt.Errorf("handshake cancelled: %w", err)
		}
	}
}

// awaitAck polls the transport for one ACK window. Once the ACK has been
// seen it keeps reading until the response frame that follows it is
// complete or the window closes.
func (d *Device) awaitAck(ctx context.Context, trace *traceBuffer) (pending []byte, acked bool, err error) {
	var rx []byte
	buf := make([]byte, readChunkSize)
	deadline := time.Now().Add(d.config.AckTimeout)

	for time.Now().Before(deadline) {
		if err := sleepCtx(ctx, d.config.PollInterval); err != nil {
			return nil, false, fmt.Errorf("handshake cancelled: %w", err)
		}

		chunk, err := d.readAvailable(buf)
		if err != nil {
			return nil, false, err
		}
		if len(chunk) > 0 {
			Debugf("%s: RX %s", d.name, formatHexBytes(chunk))
			trace.recordRX(chunk, "")
			rx = append(rx, chunk...)
		}

		if p, found := frame.StripAck(rx); found {
			pending, acked = p, true
			// A bare ACK may still be followed by the response.
			if !frame.IsAck(pending) && frame.Complete(pending) {
				break
			}
		}
	}

	if !acked {
		trace.recordTimeout(fmt.Sprintf("no ACK in %v", d.config.AckTimeout))
		return nil, false, nil
	}
	if frame.IsAck(pending) {
		Debugf("%s: ACK only, no response data", d.name)
	}
	return pending, true, nil
}

// readAvailable drains what the transport has buffered right now.
func (d *Device) readAvailable(buf []byte) ([]byte, error) {
	var out []byte
	for {
		n, err := d.transport.Read(buf)
		if n > 0 {
			out = append(out, buf[:n]...)
		}
		if err != nil {
			return out, NewTransportReadError("read", d.name, err)
		}
		if n < len(buf) {
			return out, nil
		}
	}
}

// writeAll writes data in full. The caller must hold d.mu.
func (d *Device) writeAll(op string, data []byte) error {
	n, err := d.transport.Write(data)
	if err != nil {
		return NewTransportWriteError(op, d.name, err)
	}
	if n != len(data) {
		return NewTransportWriteError(op, d.name,
			fmt.Errorf("%w: wrote %d of %d bytes", io.ErrShortWrite, n, len(data)))
	}
	return nil
}
