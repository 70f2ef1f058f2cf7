package state

import (
	"context"
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vladimiradmaev/pill-reminder/internal/config"
	"github.com/vladimiradmaev/pill-reminder/internal/logger"
)

func exerciseManager(t *testing.T, m StateManager) {
	t.Helper()
	ctx := context.Background()

	assert.Equal(t, None, m.GetUserState(ctx, 1))

	require.NoError(t, m.SetUserState(ctx, 1, WaitingForDoseCount))
	require.NoError(t, m.SetTempData(ctx, 1, KeyMedicine, "aspirin"))
	assert.Equal(t, WaitingForDoseCount, m.GetUserState(ctx, 1))
	assert.Equal(t, None, m.GetUserState(ctx, 2))

	v, ok := m.GetTempData(ctx, 1, KeyMedicine)
	assert.True(t, ok)
	assert.Equal(t, "aspirin", v)
	_, ok = m.GetTempData(ctx, 1, KeyTimes)
	assert.False(t, ok)

	require.NoError(t, m.Reset(ctx, 1))
	assert.Equal(t, None, m.GetUserState(ctx, 1))
	_, ok = m.GetTempData(ctx, 1, KeyMedicine)
	assert.False(t, ok)
}

func TestManager(t *testing.T) {
	exerciseManager(t, NewManager())
}

func TestRedisManager(t *testing.T) {
	addr := os.Getenv("REDIS_ADDR")
	if addr == "" {
		t.Skip("REDIS_ADDR not set")
	}
	m, err := NewRedisManager(context.Background(), config.RedisConfig{Addr: addr, DB: 15}, logger.Discard())
	require.NoError(t, err)
	t.Cleanup(func() {
		_ = m.Reset(context.Background(), 1)
		_ = m.Close()
	})

	exerciseManager(t, m)
}
