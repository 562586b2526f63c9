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
	"errors"
	"fmt"
	"time"
)

// Block retry schedule. Each attempt re-authenticates, which gives the RF
// field time to settle while a card is being slid into a reader slot.
const (
	BlockRetryAttempts      = 3
	BlockRetryInitialDelay  = 100 * time.Millisecond
	BlockRetryMaxDelay      = 250 * time.Millisecond
	blockRetryBackoffFactor = 1.5
)

// BlockRetryConfig returns the retry configuration for ReadBlockWithRetry
// and WriteBlockWithRetry: 100ms, 150ms then 250ms between attempts.
func BlockRetryConfig() *RetryConfig {
	return &RetryConfig{
		MaxAttempts:       BlockRetryAttempts,
		InitialBackoff:    BlockRetryInitialDelay,
		MaxBackoff:        BlockRetryMaxDelay,
		BackoffMultiplier: blockRetryBackoffFactor,
		RetryTimeout:      5 * time.Second,
	}
}

// ReadBlockWithRetry authenticates block and reads it, retrying the pair
// when the card rejects either step or the link hiccups. A nil config uses
// BlockRetryConfig.
func (d *Device) ReadBlockWithRetry(
	ctx context.Context, uid UID, block uint8, keyType KeyType, key Key, config *RetryConfig,
) ([]byte, error) {
	if config == nil {
		config = BlockRetryConfig()
	}

	var data []byte
	var halted bool
	err := RetryWithConfig(ctx, config, func() error {
		if err := d.wakeIfHalted(ctx, uid, &halted); err != nil {
			return err
		}
		if err := d.authenticateOrReject(ctx, uid, block, keyType, key); err != nil {
			halted = isCardRejection(err)
			return err
		}

		res, ok, err := d.ReadBlock(ctx, block)
		if err != nil {
			return err
		}
		if !ok {
			halted = true
			return fmt.Errorf("%w: read block %d", ErrBlockRejected, block)
		}
		data = res
		return nil
	})
	if err != nil {
		return nil, err
	}
	return data, nil
}

// WriteBlockWithRetry authenticates block and writes data to it, retrying
// the pair like ReadBlockWithRetry. Data that is not exactly 16 bytes is
// rejected before anything is sent.
func (d *Device) WriteBlockWithRetry(
	ctx context.Context, uid UID, block uint8, keyType KeyType, key Key, data []byte, config *RetryConfig,
) error {
	if len(data) != MifareBlockSize {
		return fmt.Errorf("%w: got %d bytes", ErrInvalidBlockSize, len(data))
	}
	if config == nil {
		config = BlockRetryConfig()
	}

	var halted bool
	return RetryWithConfig(ctx, config, func() error {
		if err := d.wakeIfHalted(ctx, uid, &halted); err != nil {
			return err
		}
		if err := d.authenticateOrReject(ctx, uid, block, keyType, key); err != nil {
			halted = isCardRejection(err)
			return err
		}

		ok, err := d.WriteBlock(ctx, block, data)
		if err != nil {
			return err
		}
		if !ok {
			halted = true
			return fmt.Errorf("%w: write block %d", ErrBlockRejected, block)
		}
		return nil
	})
}

// wakeIfHalted selects the card again after it rejected a command. A MIFARE
// Classic card halts on rejection and ignores everything until the next
// anticollision round. A missing or different card ends the retries.
func (d *Device) wakeIfHalted(ctx context.Context, uid UID, halted *bool) error {
	if !*halted {
		return nil
	}

	found, ok, err := d.DiscoverTarget(ctx, BaudISO14443A)
	if err != nil {
		return err
	}
	if !ok || !bytes.Equal(found, uid) {
		return fmt.Errorf("%w: card %s left the field", ErrNoTarget, uid)
	}
	*halted = false
	return nil
}

func isCardRejection(err error) bool {
	return errors.Is(err, ErrAuthenticationFailed)
}

func (d *Device) authenticateOrReject(ctx context.Context, uid UID, block uint8, keyType KeyType, key Key) error {
	ok, err := d.AuthenticateBlock(ctx, uid, block, keyType, key)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: block %d, key %s", ErrAuthenticationFailed, block, keyType)
	}
	return nil
}
