package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
)

func TestFromContext(t *testing.T) {
	core, logs := observer.New(zap.InfoLevel)
	l := zap.New(core).Sugar().With("tick", 7)

	ctx := WithContext(context.Background(), l)
	FromContext(ctx).Infow("Scheduler: tick started")

	require.Equal(t, 1, logs.Len())
	entry := logs.All()[0]
	require.Equal(t, "Scheduler: tick started", entry.Message)
	require.EqualValues(t, 7, entry.ContextMap()["tick"])
}

func TestFromContextFallsBackToGlobal(t *testing.T) {
	require.NotNil(t, FromContext(context.Background()))
	require.NotNil(t, OrNop(nil))
}
