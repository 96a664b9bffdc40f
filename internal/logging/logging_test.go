package logging

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/dyluth/lanes/internal/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewJSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LogConfig{Level: "info", Format: "json"}, "lanesd", &buf)
	require.NoError(t, err)

	logger.WithField("event_type", "card_moved").Info("card moved")
	logger.Debug("hidden")

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "lanesd", entry["component"])
	assert.Equal(t, "card_moved", entry["event_type"])
	assert.Equal(t, "card moved", entry["message"])
	assert.Contains(t, entry, "timestamp")
	assert.NotContains(t, buf.String(), "hidden")
}

func TestNewText(t *testing.T) {
	var buf bytes.Buffer
	logger, err := New(config.LogConfig{Level: "debug", Format: "text"}, "lanes", &buf)
	require.NoError(t, err)

	logger.Debug("visible")
	assert.Contains(t, buf.String(), "visible")
	assert.Contains(t, buf.String(), "component=lanes")
}

func TestNewErrors(t *testing.T) {
	_, err := New(config.LogConfig{Level: "loud"}, "lanes", &bytes.Buffer{})
	assert.Error(t, err)

	_, err = New(config.LogConfig{Level: "info", Format: "xml"}, "lanes", &bytes.Buffer{})
	assert.Error(t, err)
}
