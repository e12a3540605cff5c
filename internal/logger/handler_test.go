package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("DEBUG"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("warning"))
	assert.Equal(t, slog.LevelError, ParseLevel(" error "))
	assert.Equal(t, slog.LevelInfo, ParseLevel("nonsense"))
}

func TestNew_JSONFormat(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "json", "info")

	log.Debug("hidden")
	log.Info("user registered", "user_id", "u1")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "user registered", line["msg"])
	assert.Equal(t, "u1", line["user_id"])
}

func TestPrettyHandler_WritesAttrsAndGroups(t *testing.T) {
	var buf bytes.Buffer
	log := New(&buf, "pretty", "debug").With("request_id", "r1").WithGroup("chat")

	log.Warn("save failed", "chat_id", "c1", "error", errors.New("boom"))

	out := buf.String()
	assert.Contains(t, out, "save failed")
	assert.Contains(t, out, "request_id")
	assert.Contains(t, out, "chat.chat_id")
	assert.Contains(t, out, "boom")
	assert.Equal(t, 1, bytes.Count(buf.Bytes(), []byte("\n")))
}

func TestPrettyHandler_RespectsLevel(t *testing.T) {
	var buf bytes.Buffer
	log := slog.New(NewPrettyHandler(&buf, nil))

	log.Debug("quiet")
	assert.Empty(t, buf.String())

	log.Info("loud")
	assert.Contains(t, buf.String(), "loud")
}
