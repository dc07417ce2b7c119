// Copyright (c) 2026 Yomira. All rights reserved.
// Author: tai.buivan.jp@gmail.com

package logger_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taibuivan/happypanda/internal/platform/constants"
	"github.com/taibuivan/happypanda/internal/platform/logger"
)

/*
TestNew_DebugWritesFile verifies that debug mode mirrors records into the debug log.
*/
func TestNew_DebugWritesFile(t *testing.T) {
	dir := t.TempDir()
	var stdout bytes.Buffer

	log, closer, err := logger.New(logger.Options{Debug: true, LogDir: dir, Stdout: &stdout})
	require.NoError(t, err)

	log.Debug("scan_started", "path", "/library")
	require.NoError(t, closer.Close())

	// 1. Console receives the JSON record
	assert.Contains(t, stdout.String(), `"msg":"scan_started"`)

	// 2. Debug file receives the text record
	content, err := os.ReadFile(filepath.Join(dir, constants.DebugLogFile))
	require.NoError(t, err)
	assert.Contains(t, string(content), "scan_started")
}

/*
TestNew_DefaultSkipsDebug verifies the info threshold of the default mode.
*/
func TestNew_DefaultSkipsDebug(t *testing.T) {
	var stdout bytes.Buffer

	log, closer, err := logger.New(logger.Options{Stdout: &stdout})
	require.NoError(t, err)
	defer closer.Close()

	log.Debug("hidden")
	log.Info("visible")

	assert.NotContains(t, stdout.String(), "hidden")
	assert.Contains(t, stdout.String(), "visible")
}
