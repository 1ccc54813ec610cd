package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewLogger(t *testing.T) {
	logger := newLogger()

	formatter, ok := logger.Formatter.(*logrus.TextFormatter)
	require.True(t, ok)
	assert.Equal(t, time.RFC3339Nano, formatter.TimestampFormat)
	assert.True(t, formatter.FullTimestamp)
}

func TestGetLogger_WithoutContextLogger(t *testing.T) {
	retrieved := G(context.Background())
	assert.Equal(t, L.Logger, retrieved.Logger)
}

func TestGetLogger_NilContext(t *testing.T) {
	assert.Equal(t, L, G(nil))
}

func TestWithSkill(t *testing.T) {
	var buf bytes.Buffer
	l := logrus.New()
	l.SetOutput(&buf)
	l.Formatter = &logrus.JSONFormatter{
		FieldMap: logrus.FieldMap{
			logrus.FieldKeyLevel: "logLevel",
			logrus.FieldKeyMsg:   "message",
		},
	}

	ctx := WithLogger(context.Background(), logrus.NewEntry(l))
	ctx = WithSkill(ctx, "dashboard")
	ctx = WithField(ctx, "session_id", "abc")

	G(ctx).Info("merged suggestions")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "dashboard", entry["skill"])
	assert.Equal(t, "abc", entry["session_id"])
	assert.Equal(t, "merged suggestions", entry["message"])
	assert.Equal(t, "info", entry["logLevel"])
}

func TestSetLogFormat(t *testing.T) {
	original := L.Logger.Formatter
	defer func() { L.Logger.Formatter = original }()

	SetLogFormat("json")
	assert.IsType(t, &logrus.JSONFormatter{}, L.Logger.Formatter)

	SetLogFormat("text")
	assert.IsType(t, &logrus.TextFormatter{}, L.Logger.Formatter)
}

func TestSetLogLevel(t *testing.T) {
	original := L.Logger.GetLevel()
	defer L.Logger.SetLevel(original)

	require.NoError(t, SetLogLevel("debug"))
	assert.Equal(t, logrus.DebugLevel, L.Logger.GetLevel())

	assert.Error(t, SetLogLevel("verbose-ish"))
}
