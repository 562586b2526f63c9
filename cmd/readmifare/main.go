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

// Command readmifare dumps the first blocks of a MIFARE Classic card placed
// on a PN532 connected over UART.
package main

import (
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

const maxBlocks = 64

type config struct {
	portName string
	key      pn532.Key
	blocks   int
	baudRate int
	keyType  pn532.KeyType
	debug    bool
	log      bool
}

var (
	errUsage       = errors.New("usage error")
	errCardLost    = errors.New("card left the field")
	errCardChanged = errors.New("a different card was presented")
)

func parseConfig(args []string, stderr io.Writer) (*config, error) {
	fs := flag.NewFlagSet("readmifare", flag.ContinueOnError)
	fs.SetOutput(stderr)

	portName := fs.String("port", "", "Serial port the PN532 is attached to (required)")
	blocks := fs.Int("blocks", 16, "Number of blocks to read, starting at block 0")
	keyHex := fs.String("key", "FFFFFFFFFFFF", "Authentication key as 12 hex digits")
	useKeyA := fs.Bool("a", false, "Authenticate with key A instead of key B")
	baudRate := fs.Int("baud", uart.DefaultBaudRate, "Serial baud rate")
	debug := fs.Bool("debug", false, "Enable debug output")
	logFile := fs.Bool("log", false, "Write a session log file in the current directory")

	if err := fs.Parse(args); err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}
	if *portName == "" {
		return nil, fmt.Errorf("%w: -port is required", errUsage)
	}
	if *blocks < 1 || *blocks > maxBlocks {
		return nil, fmt.Errorf("%w: -blocks must be between 1 and %d", errUsage, maxBlocks)
	}

	key, err := pn532.ParseKey(*keyHex)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", errUsage, err)
	}

	cfg := &config{
		portName: *portName,
		blocks:   *blocks,
		key:      key,
		keyType:  pn532.KeyB,
		baudRate: *baudRate,
		debug:    *debug,
		log:      *logFile,
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

// readCard waits for a card and prints each requested block as a hex dump.
// Blocks that fail authentication or reading are reported and skipped.
func readCard(ctx context.Context, device *pn532.Device, cfg *config, out io.Writer) error {
	if fw := device.FirmwareVersion(); fw != nil {
		_, _ = fmt.Fprintf(out, "Found PN5%02X, firmware %s\n", fw.IC, fw.String())
	}

	_, _ = fmt.Fprintln(out, "Waiting for a MIFARE Classic card...")
	uid, err := device.WaitForTarget(ctx, pn532.BaudISO14443A)
	if err != nil {
		return fmt.Errorf("waiting for card: %w", err)
	}
	_, _ = fmt.Fprintf(out, "Card UID: %s\n", uid)

	for block := range cfg.blocks {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, halted, err := readBlockLine(ctx, device, uid, uint8(block), cfg) //nolint:gosec // block < maxBlocks
		if err != nil {
			return err
		}
		_, _ = fmt.Fprintln(out, line)

		if halted {
			if err := reselect(ctx, device, uid); err != nil {
				return err
			}
		}
	}
	return nil
}

// reselect wakes a card that halted after a rejected command. The same
// card must answer, otherwise the dump would mix two cards.
func reselect(ctx context.Context, device *pn532.Device, uid pn532.UID) error {
	again, found, err := device.DiscoverTarget(ctx, pn532.BaudISO14443A)
	if err != nil {
		return fmt.Errorf("reselecting card: %w", err)
	}
	if !found {
		return errCardLost
	}
	if !bytes.Equal(again, uid) {
		return fmt.Errorf("%w: now %s", errCardChanged, again)
	}
	return nil
}

// readBlockLine formats one block. halted reports that the card rejected a
// command and stopped answering until it is selected again.
func readBlockLine(
	ctx context.Context, device *pn532.Device, uid pn532.UID, block uint8, cfg *config,
) (line string, halted bool, err error) {
	ok, err := device.AuthenticateBlock(ctx, uid, block, cfg.keyType, cfg.key)
	if err != nil {
		return "", false, fmt.Errorf("authenticating block %d: %w", block, err)
	}
	if !ok {
		return fmt.Sprintf("Block %2d: authentication failed", block), true, nil
	}

	data, ok, err := device.ReadBlock(ctx, block)
	if err != nil {
		return "", false, fmt.Errorf("reading block %d: %w", block, err)
	}
	if !ok {
		return fmt.Sprintf("Block %2d: read failed", block), true, nil
	}

	suffix := ""
	if pn532.IsSectorTrailer(block) {
		suffix = "  (sector trailer)"
	}
	return fmt.Sprintf("Block %2d: %s |%s|%s", block,
		strings.ToUpper(hex.EncodeToString(data)), printable(data), suffix), false, nil
}

func printable(data []byte) string {
	var sb strings.Builder
	for _, b := range data {
		if b >= 0x20 && b < 0x7F {
			sb.WriteByte(b)
		} else {
			sb.WriteByte('.')
		}
	}
	return sb.String()
}

func run(ctx context.Context, cfg *config, out io.Writer) error {
	if cfg.debug {
		pn532.SetDebugEnabled(true)
	}
	if cfg.log {
		path, err := pn532.InitSessionLog()
		if err != nil {
			return fmt.Errorf("failed to create session log: %w", err)
		}
		defer func() { _ = pn532.CloseSessionLog() }()
		_, _ = fmt.Fprintf(out, "Logging to %s\n", path)
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

	return readCard(ctx, device, cfg, out)
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

	if err := run(ctx, cfg, os.Stdout); err != nil {
		if errors.Is(err, context.Canceled) {
			return 0
		}
		_, _ = fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		return 1
	}
	return 0
}
