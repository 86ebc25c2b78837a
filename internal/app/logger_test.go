package app

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLoggerJSON(t *testing.T) {
	var buf bytes.Buffer
	logger := newLogger(&buf, &Config{LogFormat: "json", AppEnv: "production"}, "console")
	logger.Debug("hidden")
	logger.Info("guard denied", "state", "denied_no_permission")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "console", line["service"])
	assert.Equal(t, "denied_no_permission", line["state"])
}

func TestNewLoggerTextDefault(t *testing.T) {
	var buf bytes.Buffer
	newLogger(&buf, nil, "worker").Debug("visible")
	assert.Contains(t, buf.String(), "service=worker")
	assert.Contains(t, buf.String(), "msg=visible")
}
