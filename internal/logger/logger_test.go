package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, zerolog.InfoLevel, ParseLevel(""))
	assert.Equal(t, zerolog.DebugLevel, ParseLevel(" DEBUG "))
	assert.Equal(t, zerolog.InfoLevel, ParseLevel("verbose"))
}

func TestContextFieldsAreCarried(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{ServiceName: "router", Output: &buf})

	ctx := log.WithRequestID(context.Background(), "req-1")
	ctx = log.WithFields(ctx, map[string]any{"dealer_id": "d-1"})
	log.Error(ctx, "allocation.failed", errors.New("boom"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "router", line["service"])
	assert.Equal(t, "req-1", line["request_id"])
	assert.Equal(t, "d-1", line["dealer_id"])
	assert.Equal(t, "boom", line["error"])
	assert.Equal(t, "allocation.failed", line["message"])
}

func TestLevelFiltersDebug(t *testing.T) {
	var buf bytes.Buffer
	log := New(Options{ServiceName: "router", Output: &buf, Level: zerolog.InfoLevel})

	log.Debug(context.Background(), "hidden")
	assert.Zero(t, buf.Len())
}
