package config

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validConfig() *Config {
	cfg := DefaultConfig()
	cfg.Connection.Host = "db.internal"
	cfg.Connection.User = "reader"
	cfg.Connection.Database = "shop"
	cfg.Seed.Table = "users"
	cfg.Seed.PKs = []string{"3"}
	return cfg
}

func TestValidate_AcceptsWellFormedConfig(t *testing.T) {
	assert.NoError(t, validConfig().Validate())
}

func TestValidate_RejectsMissingConnectionFields(t *testing.T) {
	cfg := validConfig()
	cfg.Connection.Host = ""
	cfg.Connection.Database = ""

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "connection.host"))
	assert.True(t, strings.Contains(err.Error(), "connection.database"))
}

func TestValidate_SeedSelectionIsMutuallyExclusive(t *testing.T) {
	cfg := validConfig()
	cfg.Seed.TimeframeColumn = "created_at"
	cfg.Seed.TimeframeLower = "2024-01-01"
	cfg.Seed.TimeframeUpper = "2024-12-31"

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "mutually exclusive"))
}

func TestValidate_RequiresOneSeedSelectionMethod(t *testing.T) {
	cfg := validConfig()
	cfg.Seed.PKs = nil

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "either pks or a timeframe"))
}

func TestValidate_RejectsTruncateFilterOnSeedTable(t *testing.T) {
	cfg := validConfig()
	cfg.Truncate = []TruncateFilter{{Table: "users", Column: "created_at", Lower: "a", Upper: "b"}}

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "seed table"))
}

func TestValidate_RejectsConflictingSafetyFlags(t *testing.T) {
	cfg := validConfig()
	cfg.Safety.RequireReadOnly = true
	cfg.Safety.AllowWriteConnection = true

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "mutually exclusive"))
}

func TestValidate_RejectsUnknownMode(t *testing.T) {
	cfg := validConfig()
	cfg.Mode = "loose"

	err := cfg.Validate()
	require.Error(t, err)
	assert.True(t, strings.Contains(err.Error(), "mode"))
}
