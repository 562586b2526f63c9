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

// Command writemifare writes up to 16 bytes of text to one data block of a
// MIFARE Classic card placed on a PN532 connected over UART.
package main

import (
	"bufio"
	"bytes"
	"context"
	"encoding/hex"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"os/signal"
	"strings"
	"syscall"

	pn532 "github.com/ZaparooProject/go-pn532-mifare"
	"github.com/ZaparooProject/go-pn532-mifare/transport/uart"
)

// Only the data blocks of sectors 1 to 3 may be written.
const (
	minWritableBlock = 4
	maxWritableBlock = 15
)

var (
	errUsage    = errors.New("usage error")
	errAborted  = errors.New("write aborted")
	errReadBack = errors.New("read-back mismatch")
)

type config struct {
	retry    *pn532.RetryConfig
	portName string
	data     []byte
	key      pn532.Key
	baudRate int
	block    uint8
	keyType  pn532.KeyType
	yes      bool
	debug    bool
}

func parseConfig(args []string, stderr io.Writer) (*config, error) {
	fs := flag.NewFlagSet("writemifare", flag.ContinueOnError)
	fs.SetOutput(stderr)

	portName := fs.String("port", "", "Serial port the PN532 is attached to (required)")
	block := fs.Int("block", -1, fmt.Sprintf("Block to write, %d to %d (required)", minWritableBlock, maxWritableBlock))
	text := fs.String("data", "", "Text to write, at most 16 bytes, zero padded (required)")
	keyHex := fs.String("key", "FFFFFFFFFFFF", "Authentication key as 12 hex digits")
	useKeyA := fs.Bool("a", false, "Authenticate with key A instead of key B")
	baudRate := fs.Int("baud", uart.DefaultBaudRate, "Serial baud rate")
	yes := fs.Bool("yes", false, "Do not ask for confirmation")
	debug := fs.Bool("debug", false, "Enable debug output")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	if *portName == "" {
		return nil, fmt.Errorf("%w: -port is required", errUsage)
	}
	if *block < minWritableBlock || *block > maxWritableBlock {
		return nil, fmt.Errorf("%w: -block must be between %d and %d", errUsage, minWritableBlock, maxWritableBlock)
	}
	if pn532.IsSectorTrailer(uint8(*block)) {
		return nil, fmt.Errorf("%w: block %d is a sector trailer; writing it can lock the sector", errUsage, *block)
	}
	if *text == "" || len(*text) > pn532.MifareBlockSize {
		return nil, fmt.Errorf("%w: -data must be 1 to %d bytes", errUsage, pn532.MifareBlockSize)
	}

	key, err := pn532.ParseKey(*keyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}

	data := make([]byte, pn532.MifareBlockSize)
	copy(data, *text)

	cfg := &config{
		retry:    pn532.BlockRetryConfig(),
		portName: *portName,
		block:    uint8(*block),
		data:     data,
		key:      key,
		keyType:  pn532.KeyB,
		baudRate: *baudRate,
		yes:      *yes,
		debug:    *debug,
	}
	if *useKeyA {
		cfg.keyType = pn532.KeyA
	}
	return cfg, nil
}

func openUART(baudRate int) pn532.TransportFactory {
	return func(path string) (pn532.Transport, error) {
		transport, err := uart.Open(path, uart.WithBaudRate(baudRate))
		if err != nil {
			return nil, fmt.Errorf("failed to create UART transport for %s: %w", path, err)
		}
		return transport, nil
	}
}

// confirm asks a yes/no question on out and reads the answer from in.
func confirm(in io.Reader, out io.Writer, question string) bool {
	_, _ = fmt.Fprintf(out, "%s [y/N]: ", question)
	scanner := bufio.NewScanner(in)
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}

// writeCard waits for a card, writes cfg.data to cfg.block and reads it
// back to verify. The key is not re-sent for the read-back: the sector
// stays authenticated after the write.
func writeCard(ctx context.Context, device *pn532.Device, cfg *config, in io.Reader, out io.Writer) error {
	_, _ = fmt.Fprintln(out, "Waiting for a MIFARE Classic card...")
	uid, err := device.WaitForTarget(ctx, pn532.BaudISO14443A)
	if err != nil {
		return fmt.Errorf("waiting for card: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Card UID: %s\n", uid)

	question := fmt.Sprintf("Write %s to block %d", strings.ToUpper(hex.EncodeToString(cfg.data)), cfg.block)
	if !cfg.yes && !confirm(in, out, question) {
		return errAborted
	}

	err = device.WriteBlockWithRetry(ctx, uid, cfg.block, cfg.keyType, cfg.key, cfg.data, cfg.retry)
	if err != nil {
		return fmt.Errorf("writing block %d: %w", cfg.block, err)
	}

	got, ok, err := device.ReadBlock(ctx, cfg.block)
	if err != nil {
		return fmt.Errorf("reading back block %d: %w", cfg.block, err)
	}
	if !ok || !bytes.Equal(got, cfg.data) {
		return fmt.Errorf("%w: block %d", errReadBack, cfg.block)
	}

	_, _ = fmt.Fprintf(out, "Block %d written and verified\n", cfg.block)
	return nil
}

func run(ctx context.Context, cfg *config) error {
	if cfg.debug {
		pn532.SetDebugEnabled(true)
	}

	device, err := pn532.ConnectDevice(ctx, cfg.portName, pn532.WithTransportFactory(openUART(cfg.baudRate)))
	if err != nil {
		return fmt.Errorf("failed to connect to PN532 device: %w", err)
	}
	defer func() {
		if err := device.Close(); err != nil {
			_, _ = fmt.Fprintf(os.Stderr, "Failed to close device: %v\n", err)
		}
	}()

	return writeCard(ctx, device, cfg, os.Stdin, os.Stdout)
}

func main() {
	os.Exit(mainWithExitCode(os.Args[1:]))
}

func mainWithExitCode(args []string) int {
	cfg, err := parseConfig(args, os.Stderr)
	if err != nil {
		if errors.Is(err, flag.ErrHelp) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 2
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, errAborted) {
			_, _ = fmt.Println("Nothing written.")
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
