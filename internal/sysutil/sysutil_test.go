package sysutil

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInitLoggerWritesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "litedefender.log")
	require.NoError(t, InitLogger(LogOptions{Level: "info", File: path, MaxSizeMB: 1}))

	Log.Debug("hidden message")
	Log.Warn("Watch directory does not exist")
	require.NoError(t, CloseLogger())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "WARN")
	assert.Contains(t, string(data), "Watch directory does not exist")
	assert.NotContains(t, string(data), "hidden message")
}

func TestInitLoggerRejectsBadLevel(t *testing.T) {
	assert.Error(t, InitLogger(LogOptions{Level: "loud"}))
}

func TestHostIdentity(t *testing.T) {
	assert.NotEmpty(t, Hostname())
	assert.NotEmpty(t, Username())
	assert.NotEmpty(t, OSVersion())
}
