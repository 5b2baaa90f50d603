package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/pscheid92/hashpulse/internal/platform/correlation"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("bogus"))
}

func TestNewLogger_JSONWithCorrelation(t *testing.T) {
	var buf bytes.Buffer
	logger := NewLogger(&buf, "info", "json")

	ctx := correlation.WithID(context.Background(), "deadbeef")
	logger.InfoContext(ctx, "refreshed", "namespace", "marketing")
	logger.DebugContext(ctx, "suppressed")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(bytes.TrimSpace(buf.Bytes()), &entry))
	assert.Equal(t, "refreshed", entry["msg"])
	assert.Equal(t, "deadbeef", entry["correlation_id"])
	assert.Equal(t, "marketing", entry["namespace"])
}
