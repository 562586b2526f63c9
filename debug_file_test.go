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

//nolint:paralleltest // Tests swap package-level log writers, cannot run in parallel
package pn532

import (
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Session log tests share package state with debug_test.go and are not
// parallel either.

// resetSessionLog returns a scratch directory that outlives the open log.
func resetSessionLog(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	origEnabled := debugEnabled
	debugEnabled = false
	t.Cleanup(func() {
		_ = CloseSessionLog()
		debugEnabled = origEnabled
	})
	return dir
}

func readLog(t *testing.T, path string) string {
	t.Helper()
	content, err := os.ReadFile(path) //nolint:gosec // path comes from InitSessionLogIn
	require.NoError(t, err)
	return string(content)
}

func TestInitSessionLogIn_CreatesNamedFile(t *testing.T) {
	dir := resetSessionLog(t)

	path, err := InitSessionLogIn(dir)
	require.NoError(t, err)

	assert.Equal(t, dir, filepath.Dir(path))
	assert.Regexp(t, regexp.MustCompile(`^pn532_\d{8}_\d{6}\.log$`), filepath.Base(path))
	assert.FileExists(t, path)
	assert.Equal(t, path, GetSessionLogPath())
}

func TestSessionLog_HeaderMessagesFooter(t *testing.T) {
	dir := resetSessionLog(t)

	path, err := InitSessionLogIn(dir)
	require.NoError(t, err)

	Debugf("RX: %s", formatHexBytes([]byte{0xD5, 0x03}))
	require.NoError(t, CloseSessionLog())

	content := readLog(t, path)
	assert.True(t, strings.HasPrefix(content, "=== PN532 MIFARE Debug Session Log ===\n"))
	for _, field := range []string{"Started:", "PID:", "OS:", "Go Version:", "Command Line:"} {
		assert.Contains(t, content, field)
	}
	assert.Contains(t, content, "DEBUG: RX: D5 03")

	header := strings.Index(content, "Started:")
	message := strings.Index(content, "RX: D5 03")
	footer := strings.Index(content, "=== Session ended ===")
	assert.Less(t, header, message)
	assert.Less(t, message, footer)
}

func TestCloseSessionLog_ResetsState(t *testing.T) {
	dir := resetSessionLog(t)

	_, err := InitSessionLogIn(dir)
	require.NoError(t, err)
	require.NoError(t, CloseSessionLog())

	assert.Empty(t, GetSessionLogPath())
	assert.Nil(t, sessionLogFile)
	assert.Nil(t, sessionLogWriter)

	// Closing again is a no-op.
	require.NoError(t, CloseSessionLog())
}

func TestInitSessionLogIn_ReplacesOpenLog(t *testing.T) {
	dir := resetSessionLog(t)
	for _, sub := range []string{"first", "second"} {
		require.NoError(t, os.Mkdir(filepath.Join(dir, sub), 0o750))
	}

	first, err := InitSessionLogIn(filepath.Join(dir, "first"))
	require.NoError(t, err)
	second, err := InitSessionLogIn(filepath.Join(dir, "second"))
	require.NoError(t, err)

	assert.NotEqual(t, first, second)
	assert.Equal(t, second, GetSessionLogPath())
	assert.Contains(t, readLog(t, first), "=== Session ended ===")
}

func TestInitSessionLogIn_MissingDirectory(t *testing.T) {
	dir := resetSessionLog(t)

	_, err := InitSessionLogIn(filepath.Join(dir, "does", "not", "exist"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to create session log")
	assert.Empty(t, GetSessionLogPath())
}

func TestInitSessionLog_UsesWorkingDirectory(t *testing.T) {
	dir := resetSessionLog(t)
	origDir, err := os.Getwd()
	require.NoError(t, err)
	require.NoError(t, os.Chdir(dir))
	t.Cleanup(func() { _ = os.Chdir(origDir) })

	path, err := InitSessionLog()
	require.NoError(t, err)
	assert.Equal(t, ".", filepath.Dir(path))
	assert.FileExists(t, path)
}

func TestWriteSessionHeader_Format(t *testing.T) {
	var buf strings.Builder
	writeSessionHeader(&buf)

	content := buf.String()
	assert.True(t, strings.HasPrefix(content, "=== PN532 MIFARE Debug Session Log ==="))
	assert.True(t, strings.HasSuffix(content, "=======================================\n\n"))
}
