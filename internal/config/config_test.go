package config

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDefaultConfig_HasSensibleDefaults(t *testing.T) {
	cfg := DefaultConfig()

	assert.Equal(t, 5432, cfg.Connection.Port)
	assert.Equal(t, "public", cfg.Connection.Schema)
	assert.Equal(t, "prefer", cfg.Connection.SSLMode)
	assert.Equal(t, "strict", cfg.Mode)
	assert.Equal(t, 1000, cfg.BatchSize)
	assert.True(t, cfg.Safety.RequireReadOnly)
	assert.True(t, cfg.Cache.Enabled)
	assert.Equal(t, 24, cfg.Cache.TTLHours)
	assert.Equal(t, "info", cfg.Logging.Level)
}
