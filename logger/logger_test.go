package logger

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	lumberjack "gopkg.in/natefinch/lumberjack.v2"
)

func TestWithComponent_JSON(t *testing.T) {
	l := Logger()
	var buf bytes.Buffer
	l.SetOutput(&buf)
	l.SetLevel(logrus.DebugLevel)

	l.WithComponent("calibration").WithFields(Fields{"pillar": 3}).Debug("solved")

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "calibration", line["component"])
	assert.Equal(t, "solved", line["message"])
	assert.Equal(t, "debug", line["level"])
	assert.EqualValues(t, 3, line["pillar"])
	assert.Contains(t, line, "timestamp")
}

func TestConfigure(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	l := Logger()
	require.NoError(t, l.Configure("warn", "text", "stderr", 0))
	assert.Equal(t, logrus.WarnLevel, l.GetLevel())

	assert.Error(t, l.Configure("loud", "json", "stderr", 0))
	assert.Error(t, l.Configure("info", "xml", "stderr", 0))

	path := filepath.Join(t.TempDir(), "cds.log")
	require.NoError(t, l.Configure("info", "json", path, 0))
	l.WithComponent("test").Info("to file")
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "to file")
	require.NoError(t, l.Close())
}

func TestConfigure_ClosesLogFile(t *testing.T) {
	t.Setenv("LOG_LEVEL", "")

	dir := t.TempDir()
	l := Logger()
	require.NoError(t, l.Configure("info", "json", filepath.Join(dir, "first.log"), 0))
	first, ok := l.closer.(*os.File)
	require.True(t, ok)

	// Reconfiguring releases the previous file.
	second := filepath.Join(dir, "second.log")
	require.NoError(t, l.Configure("info", "json", second, 0))
	_, err := first.Write([]byte("x"))
	assert.ErrorIs(t, err, os.ErrClosed)

	l.Info("to second")
	require.NoError(t, l.Close())
	assert.Nil(t, l.closer)
	assert.Equal(t, os.Stderr, l.Out)
	require.NoError(t, l.Close())

	raw, err := os.ReadFile(second)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "to second")

	require.NoError(t, l.Configure("info", "json", filepath.Join(dir, "rotated.log"), 7))
	_, ok = l.closer.(*lumberjack.Logger)
	assert.True(t, ok)
	require.NoError(t, l.Close())
}

func TestConfigure_EnvOverridesLevel(t *testing.T) {
	t.Setenv("LOG_LEVEL", "error")

	l := Logger()
	require.NoError(t, l.Configure("debug", "json", "stderr", 0))
	assert.Equal(t, logrus.ErrorLevel, l.GetLevel())
}

func TestLogDuration(t *testing.T) {
	l := Logger()
	var buf bytes.Buffer
	l.SetOutput(&buf)
	l.SetLevel(logrus.InfoLevel)

	LogDuration(l.WithComponent("calibration"), "bootstrap", 1500*time.Microsecond, nil)

	var line map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "bootstrap", line["operation"])
	assert.InDelta(t, 1.5, line["duration_ms"], 1e-9)
}
