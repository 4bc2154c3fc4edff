package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"pointflow/pkg/tracing"
)

func decodeLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	return entry
}

func TestLogger_WritesFields(t *testing.T) {
	var buf bytes.Buffer
	log := New(InfoLevel, &buf)

	log.Info("point charged", map[string]interface{}{"user_id": 7, "amount": 500})

	entry := decodeLine(t, &buf)
	assert.Equal(t, "point charged", entry["message"])
	assert.Equal(t, "info", entry["level"])
	assert.Equal(t, float64(7), entry["user_id"])
	assert.Equal(t, float64(500), entry["amount"])
	assert.Equal(t, "pointflow", entry["service"])
}

func TestLogger_LevelFilter(t *testing.T) {
	var buf bytes.Buffer
	log := New(WarnLevel, &buf)

	log.Info("dropped", nil)
	assert.Zero(t, buf.Len())

	log.Warn("kept", nil)
	assert.NotZero(t, buf.Len())
}

func TestLogger_WithFieldsDoesNotMutateParent(t *testing.T) {
	var buf bytes.Buffer
	parent := New(InfoLevel, &buf)
	child := parent.WithFields(map[string]interface{}{"component": "lock"})

	parent.Info("parent", nil)
	entry := decodeLine(t, &buf)
	assert.NotContains(t, entry, "component")

	buf.Reset()
	child.Info("child", nil)
	entry = decodeLine(t, &buf)
	assert.Equal(t, "lock", entry["component"])
}

func TestLogger_WithContextAddsRequestID(t *testing.T) {
	var buf bytes.Buffer
	log := New(InfoLevel, &buf)

	ctx := tracing.WithRequestID(context.Background(), "abc")
	log.InfoContext(ctx, "handled", nil)

	entry := decodeLine(t, &buf)
	assert.Equal(t, "abc", entry["request_id"])
}
