package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLogError_Fields(t *testing.T) {
	var buf bytes.Buffer
	log := newWithOutput("debug", "json", &buf)

	LogError(log, "invoices", "CancelInvoice", "reverse stock", map[string]int{"invoiceId": 7}, errors.New("boom"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "boom", entry["msg"])
	assert.Equal(t, "error", entry["level"])
	assert.Equal(t, "invoices", entry["module"])
	assert.Equal(t, "CancelInvoice", entry["funcName"])
	assert.Equal(t, "reverse stock", entry["context"])
	assert.NotNil(t, entry["data"])
}

func TestLogError_OmitsNilData(t *testing.T) {
	var buf bytes.Buffer
	LogError(newWithOutput("info", "json", &buf), "sessions", "OpenSession", "lock", nil, errors.New("x"))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	_, ok := entry["data"]
	assert.False(t, ok)
}

func TestNew_LevelFallback(t *testing.T) {
	assert.Equal(t, logrus.InfoLevel, New("loud", "json").GetLevel())
	assert.Equal(t, logrus.WarnLevel, New("warn", "text").GetLevel())
}

func TestFromContext_RequestID(t *testing.T) {
	var buf bytes.Buffer
	log := newWithOutput("info", "json", &buf)

	ctx := WithRequestID(context.Background(), "req-9")
	assert.Equal(t, "req-9", RequestID(ctx))
	assert.Equal(t, "", RequestID(context.Background()))

	FromContext(ctx, log).Info("hello")
	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	assert.Equal(t, "req-9", entry["request_id"])

	assert.Same(t, log, FromContext(context.Background(), log))
}
