package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/simonbarrel6/aakora/internal/config"
)

func TestWith_AttachesContextFields(t *testing.T) {
	var buf bytes.Buffer
	base := NewWithWriter(&buf, config.LogConfig{Level: "debug", Format: "json"}, false)

	ctx := WithTraceID(context.Background(), "trace-1")
	ctx = WithTgID(ctx, 42)
	ctx = WithFlow(ctx, "pstn")
	With(ctx, base).Info().Msg("hello")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "trace-1", line["trace_id"])
	assert.EqualValues(t, 42, line["tg_id"])
	assert.Equal(t, "pstn", line["flow"])
	assert.Equal(t, "trace-1", TraceID(ctx))
}

func TestNew_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	l := NewWithWriter(&buf, config.LogConfig{Level: "warn", Format: "json"}, false)
	l.Info().Msg("dropped")
	assert.Zero(t, buf.Len())
	l.Warn().Msg("kept")
	assert.Contains(t, buf.String(), "kept")
}

func TestRedact(t *testing.T) {
	assert.Equal(t, "***", Redact("secret", false))
	assert.Equal(t, "0123...89", Redact("0123456789", false))
	assert.Equal(t, "secret", Redact("secret", true))
}
