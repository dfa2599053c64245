package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadDefaults(t *testing.T) {
	cfg := Load()

	assert.Equal(t, "8080", cfg.Port)
	assert.Equal(t, 10, cfg.SlotCapacity)
	require.Len(t, cfg.SlotGrid, 25)
	assert.Equal(t, "8:00 am", cfg.SlotGrid[0])
	assert.Equal(t, "8:00 pm", cfg.SlotGrid[len(cfg.SlotGrid)-1])
	assert.Equal(t, 30*time.Second, cfg.DoctorCacheTTL)
}

func TestLoadOverrides(t *testing.T) {
	t.Setenv("SLOT_CAPACITY", "4")
	t.Setenv("SLOT_GRID", "9:00 am, 9:30 am ,10:00 am")
	t.Setenv("OUTBOX_POLL_INTERVAL", "5s")
	t.Setenv("REDIS_TLS", "true")

	cfg := Load()

	assert.Equal(t, 4, cfg.SlotCapacity)
	require.Len(t, cfg.SlotGrid, 3)
	assert.Equal(t, "9:30 am", cfg.SlotGrid[1])
	assert.Equal(t, 5*time.Second, cfg.OutboxPollInterval)
	assert.True(t, cfg.RedisTLS)
}

func TestInvalidValuesFallBack(t *testing.T) {
	t.Setenv("SLOT_CAPACITY", "lots")
	t.Setenv("DOCTOR_CACHE_TTL", "soon")

	cfg := Load()

	assert.Equal(t, 10, cfg.SlotCapacity)
	assert.Equal(t, 30*time.Second, cfg.DoctorCacheTTL)
}
