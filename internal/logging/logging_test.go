package logging

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/require"
)

func TestFromContextReturnsAttachedEntry(t *testing.T) {
	var buf bytes.Buffer
	log := New("debug", "json", &buf)
	ctx := WithLogger(context.Background(), log.WithField("request_id", "r-1"))

	FromContext(ctx).WithField("dataset", "equipment").Info("row skipped")

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	require.Equal(t, "r-1", line["request_id"])
	require.Equal(t, "equipment", line["dataset"])
	require.Equal(t, "row skipped", line["msg"])
}

func TestFromContextFallsBackToStandardLogger(t *testing.T) {
	entry := FromContext(context.Background())
	require.Same(t, logrus.StandardLogger(), entry.Logger)
}

func TestParseLevel(t *testing.T) {
	require.Equal(t, logrus.WarnLevel, ParseLevel("WARN"))
	require.Equal(t, logrus.InfoLevel, ParseLevel("chatty"))
	require.Equal(t, logrus.PanicLevel, ParseLevel("silent"))
}
