package observability

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestNewLogger_JSON(t *testing.T) {
	var buf bytes.Buffer
	logger, err := NewLogger("info", "json", &buf)
	require.NoError(t, err)

	logger.Debug("hidden")
	logger.Info("Emitted job graph", zap.Int("emitted", 3))
	require.NoError(t, logger.Sync())

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "Emitted job graph", line["msg"])
	assert.Equal(t, float64(3), line["emitted"])
}

func TestNewLogger_Errors(t *testing.T) {
	_, err := NewLogger("loud", "json", &bytes.Buffer{})
	assert.Error(t, err)
	_, err = NewLogger("info", "xml", &bytes.Buffer{})
	assert.Error(t, err)
}

func TestInit_ReplacesCLILogger(t *testing.T) {
	orig := CLILogger
	defer func() { CLILogger = orig }()

	var buf bytes.Buffer
	require.NoError(t, Init("warn", "console", &buf))
	CLILogger.Info("quiet")
	CLILogger.Warn("loud")
	assert.NotContains(t, buf.String(), "quiet")
	assert.Contains(t, buf.String(), "WARN")
	assert.Contains(t, buf.String(), "loud")
}
