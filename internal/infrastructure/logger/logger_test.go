package logger

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want zapcore.Level
	}{
		{"debug", zapcore.DebugLevel},
		{"INFO", zapcore.InfoLevel},
		{"warn", zapcore.WarnLevel},
		{"warning", zapcore.WarnLevel},
		{"error", zapcore.ErrorLevel},
		{"", zapcore.InfoLevel},
		{"verbose", zapcore.InfoLevel},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNew(t *testing.T) {
	t.Run("nil config uses defaults", func(t *testing.T) {
		l, err := New(nil)
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("writes json to file output", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "ledger.log")
		l, err := New(&Config{Level: "debug", Format: "json", Output: path})
		require.NoError(t, err)

		l.Debug("Journal entry drafted")
		require.NoError(t, l.Sync())

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		line := strings.TrimSpace(string(data))

		var entry map[string]interface{}
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		assert.Equal(t, "debug", entry["level"])
		assert.Equal(t, "Journal entry drafted", entry["msg"])
		assert.Contains(t, entry, "time")
		assert.Contains(t, entry, "caller")
	})

	t.Run("fails when file output cannot be opened", func(t *testing.T) {
		_, err := New(&Config{Output: filepath.Join(t.TempDir(), "missing", "dir", "ledger.log")})
		assert.Error(t, err)
	})

	t.Run("extra cores receive entries at the configured level", func(t *testing.T) {
		extra, recorded := observer.New(zapcore.DebugLevel)
		l, err := New(&Config{Level: "warn", Format: "console", Output: "stderr"}, extra)
		require.NoError(t, err)

		l.Info("dropped")
		l.Warn("kept")

		entries := recorded.All()
		require.Len(t, entries, 1)
		assert.Equal(t, "kept", entries[0].Message)
	})
}
