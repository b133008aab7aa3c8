package logging

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestRequestIDIsAttached(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	l := FromZap(zap.New(core))

	ctx := WithRequestID(context.Background(), "req-1")
	l.Info(ctx, "submitted", zap.String("order_id", "O1"))
	l.Debug(context.Background(), "no id")

	entries := logs.All()
	assert.Len(t, entries, 2)
	assert.Equal(t, "req-1", entries[0].ContextMap()["request_id"])
	assert.Equal(t, "O1", entries[0].ContextMap()["order_id"])
	assert.NotContains(t, entries[1].ContextMap(), "request_id")
}

func TestGetLoggerReusesContextLogger(t *testing.T) {
	l := NewNop()
	ctx := IntoContext(context.Background(), l)

	got, ctx2 := GetLogger(ctx)
	assert.Same(t, l, got)
	assert.Equal(t, ctx, ctx2)

	fresh, ctx3 := GetLogger(context.Background())
	again, _ := GetLogger(ctx3)
	assert.Same(t, fresh, again)
}

func TestParseLevel(t *testing.T) {
	assert.Equal(t, DEBUG, ParseLevel("DEBUG"))
	assert.Equal(t, WARN, ParseLevel("warning"))
	assert.Equal(t, ERROR, ParseLevel("error"))
	assert.Equal(t, INFO, ParseLevel(""))
}
