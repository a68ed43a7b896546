package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestJSONLogger(t *testing.T) {
	var buf bytes.Buffer
	log, err := NewWithWriter(&buf, "info", false)
	require.NoError(t, err)

	log.Debug("hidden")
	log.Info("progress", zap.Int("iter", 7))
	require.NoError(t, log.Sync())

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "progress", entry["msg"])
	assert.Equal(t, float64(7), entry["iter"])
	assert.NotContains(t, buf.String(), "hidden")
}

func TestBadLevel(t *testing.T) {
	_, err := New("loud", true)
	assert.Error(t, err)
}
