package zaplogger

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/Zhima-Mochi/kitchenledger/internal/observability"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestLoggerFields(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	log := Wrap(zap.New(core))

	log.With(observability.F("component", "ledger")).
		Warn("inventory_conflict", observability.F("error", errors.New("short")), observability.F("item_id", "inv-1"))

	entries := logs.All()
	require.Len(t, entries, 1)
	ctx := entries[0].ContextMap()
	assert.Equal(t, "inventory_conflict", entries[0].Message)
	assert.Equal(t, "ledger", ctx["component"])
	assert.Equal(t, "inv-1", ctx["item_id"])
	assert.Equal(t, "short", ctx["error"])
}

func TestSystemLogger(t *testing.T) {
	core, logs := observer.New(zapcore.InfoLevel)
	Wrap(zap.New(core)).System().Info("http_server_start")

	ctx := logs.All()[0].ContextMap()
	assert.Equal(t, SystemTraceID, ctx["trace_id"])
	assert.Equal(t, SystemSpanID, ctx["span_id"])
}

func TestNewRejectsUnknownLevel(t *testing.T) {
	_, err := New(Options{Level: "loud"})
	assert.Error(t, err)
}

func TestNewWritesToFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "logs", "app.log")
	log, err := New(Options{Output: "stderr", File: path, Fixed: []observability.Field{observability.F("service", "kitchenledger")}})
	require.NoError(t, err)

	log.Info("http_server_start")
	_ = log.Sync()

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"msg":"http_server_start"`)
	assert.Contains(t, string(raw), `"service":"kitchenledger"`)
}
