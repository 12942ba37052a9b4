package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

func captureLog(t *testing.T) *bytes.Buffer {
	t.Helper()
	buffer := &bytes.Buffer{}

	encoderConfig := zap.NewProductionEncoderConfig()
	encoderConfig.EncodeTime = zapcore.ISO8601TimeEncoder
	encoderConfig.MessageKey = "msg"

	core := zapcore.NewCore(
		zapcore.NewJSONEncoder(encoderConfig),
		zapcore.AddSync(buffer),
		zap.InfoLevel,
	)
	prev := Log
	Log = zap.New(core)
	t.Cleanup(func() { Log = prev })
	return buffer
}

func TestLogger_Info_WithTraceID(t *testing.T) {
	buffer := captureLog(t)

	traceVal := "test-trace-12345"
	ctx := context.WithValue(context.Background(), TraceIdKey, traceVal)

	Info(ctx, "transfer detected", zap.String("wallet", "0xabc"), zap.String("amount_raw", "2000000000000000000"))

	var logEntry map[string]interface{}
	err := json.Unmarshal(buffer.Bytes(), &logEntry)
	require.NoError(t, err, "log output must be valid JSON")

	assert.Equal(t, "info", logEntry["level"])
	assert.Equal(t, "transfer detected", logEntry["msg"])
	assert.Equal(t, "0xabc", logEntry["wallet"])
	assert.Equal(t, "2000000000000000000", logEntry["amount_raw"])
	assert.Equal(t, traceVal, logEntry["trace_id"], "trace_id must be injected from ctx")
}

func TestLogger_Warn_WithRequestID(t *testing.T) {
	buffer := captureLog(t)

	ctx := context.WithValue(context.Background(), RequestIdKey, "req-1")
	Warn(ctx, "webhook log skipped")

	var logEntry map[string]interface{}
	require.NoError(t, json.Unmarshal(buffer.Bytes(), &logEntry))
	assert.Equal(t, "req-1", logEntry["request_id"])
	_, exists := logEntry["trace_id"]
	assert.False(t, exists)
}

func TestLogger_Error_NoTraceID(t *testing.T) {
	buffer := captureLog(t)

	Error(context.Background(), "database unavailable", zap.String("db", "postgres"))

	var logEntry map[string]interface{}
	_ = json.Unmarshal(buffer.Bytes(), &logEntry)

	_, exists := logEntry["trace_id"]
	assert.False(t, exists, "a ctx without trace must not emit trace_id")
	assert.Equal(t, "error", logEntry["level"])
}

func TestLogger_NilContext(t *testing.T) {
	buffer := captureLog(t)

	//nolint:staticcheck
	Info(nil, "boot")
	assert.Contains(t, buffer.String(), "boot")
}
