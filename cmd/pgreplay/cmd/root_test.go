package cmd

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dbsmedya/pgreplay/internal/config"
)

func TestConnectionOverrides_Apply_OnlySetsNonZeroFields(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Connection.Host = "original-host"
	cfg.Connection.Port = 5432

	o := ConnectionOverrides{Database: "shop"}
	o.Apply(cfg)

	assert.Equal(t, "original-host", cfg.Connection.Host, "unset override must not clobber the existing value")
	assert.Equal(t, 5432, cfg.Connection.Port)
	assert.Equal(t, "shop", cfg.Connection.Database)
}

func TestConnectionOverrides_Apply_CacheAndSafetyFlags(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.Cache.Enabled = true

	o := ConnectionOverrides{NoCache: true, ClearCache: true, RequireReadOnly: true}
	o.Apply(cfg)

	assert.False(t, cfg.Cache.Enabled)
	assert.True(t, cfg.Cache.Clear)
	assert.True(t, cfg.Safety.RequireReadOnly)
}

func TestConnectionOverrides_Apply_AllowWriteConnection(t *testing.T) {
	cfg := config.DefaultConfig()

	o := ConnectionOverrides{AllowWriteConnection: true}
	o.Apply(cfg)

	assert.True(t, cfg.Safety.AllowWriteConnection)
}
