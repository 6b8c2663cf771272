package logger

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func lastLine(t *testing.T, buf *bytes.Buffer) map[string]interface{} {
	t.Helper()
	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	require.NotEmpty(t, lines)

	var entry map[string]interface{}
	require.NoError(t, json.Unmarshal([]byte(lines[len(lines)-1]), &entry))
	return entry
}

func TestContextLoggerCarriesRequestID(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "debug")

	ctx := WithRequestID(context.Background(), "req-1")
	ctx = WithTraceID(ctx, "trace-9")
	Get(ctx).Info().Msg("hello")

	entry := lastLine(t, &buf)
	assert.Equal(t, "req-1", entry["request_id"])
	assert.Equal(t, "trace-9", entry["trace_id"])
	assert.Equal(t, ServiceName, entry["service"])

	assert.Equal(t, map[string]string{
		"request_id":   "req-1",
		"operation_id": "",
		"trace_id":     "trace-9",
	}, TraceContext(ctx))
}

func TestGetFallsBackToGlobal(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "info")

	Get(nil).Info().Msg("global")
	Get(context.Background()).Debug().Msg("filtered")

	entry := lastLine(t, &buf)
	assert.Equal(t, "global", entry["message"])
	assert.Equal(t, "", GetRequestID(context.Background()))
}

func TestAuditAllocation(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "info")

	ctx := WithRequestID(context.Background(), "req-2")
	AuditAllocation(ctx, AuditActionAllocationReject, "", errors.New("total_minutes is smaller than the sum of minimums"), map[string]interface{}{
		"tasks": 3,
	})

	entry := lastLine(t, &buf)
	assert.Equal(t, "audit", entry["log_type"])
	assert.Equal(t, "warn", entry["level"])
	assert.Equal(t, string(AuditActionAllocationReject), entry["action"])
	assert.Equal(t, "req-2", entry["request_id"])
	assert.Equal(t, false, entry["success"])
	assert.Equal(t, "total_minutes is smaller than the sum of minimums", entry["error"])
}

func TestAuditRequestMarksErrors(t *testing.T) {
	var buf bytes.Buffer
	InitWithWriter(&buf, "info")

	AuditRequest(context.Background(), "POST", "/api/v1/allocations", 422, 12, "10.0.0.1")

	entry := lastLine(t, &buf)
	assert.Equal(t, string(AuditActionAPIError), entry["action"])
	assert.Equal(t, float64(422), entry["status_code"])
	assert.Equal(t, float64(12), entry["duration_ms"])
}
