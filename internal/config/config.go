// Package config provides configuration structures and loading for pgreplay.
package config

// Config represents one run's complete configuration: how to connect, what
// to seed from, how to scope and traverse, and where the replay stream
// goes.
type Config struct {
	Connection ConnectionConfig `yaml:"connection" mapstructure:"connection"`
	Seed       SeedConfig       `yaml:"seed" mapstructure:"seed"`
	Truncate   []TruncateFilter `yaml:"truncate" mapstructure:"truncate"`
	Mode       string           `yaml:"mode" mapstructure:"mode"` // "strict" or "wide"
	Remap      bool             `yaml:"remap" mapstructure:"remap"`
	DDL        bool             `yaml:"ddl" mapstructure:"ddl"`
	DepthLimit int              `yaml:"depth_limit" mapstructure:"depth_limit"`
	BatchSize  int              `yaml:"batch_size" mapstructure:"batch_size"`
	Output     OutputConfig     `yaml:"output" mapstructure:"output"`
	Safety     SafetyConfig     `yaml:"safety" mapstructure:"safety"`
	Cache      CacheConfig      `yaml:"cache" mapstructure:"cache"`
	Logging    LoggingConfig    `yaml:"logging" mapstructure:"logging"`
}

// ConnectionConfig names the single PostgreSQL-compatible source this run
// reads from. pgreplay only ever opens one connection; there is no
// destination side to configure.
type ConnectionConfig struct {
	Host                 string `yaml:"host" mapstructure:"host"`
	Port                 int    `yaml:"port" mapstructure:"port"`
	User                 string `yaml:"user" mapstructure:"user"`
	Password             string `yaml:"password" mapstructure:"password"`
	Database             string `yaml:"database" mapstructure:"database"`
	Schema               string `yaml:"schema" mapstructure:"schema"`
	SSLMode              string `yaml:"ssl_mode" mapstructure:"ssl_mode"`
	ConnectionTTLMinutes int    `yaml:"connection_ttl_minutes" mapstructure:"connection_ttl_minutes"`
}

// SeedConfig selects the starting record set for traversal. Exactly one
// of PKs or the Timeframe* fields must be set: the first seeds
// by explicit primary keys, the second seeds by selecting every row of
// Table within [TimeframeLower, TimeframeUpper].
type SeedConfig struct {
	Table           string   `yaml:"table" mapstructure:"table"`
	PKs             []string `yaml:"pks" mapstructure:"pks"`
	TimeframeColumn string   `yaml:"timeframe_column" mapstructure:"timeframe_column"`
	TimeframeLower  string   `yaml:"timeframe_lower" mapstructure:"timeframe_lower"`
	TimeframeUpper  string   `yaml:"timeframe_upper" mapstructure:"timeframe_upper"`
}

// TruncateFilter scopes one related (non-seed) table to a column range
// during traversal, repeatable on the CLI as --truncate table:col:lo:hi.
type TruncateFilter struct {
	Table  string `yaml:"table" mapstructure:"table"`
	Column string `yaml:"column" mapstructure:"column"`
	Lower  string `yaml:"lower" mapstructure:"lower"`
	Upper  string `yaml:"upper" mapstructure:"upper"`
}

// OutputConfig names the replay stream's sink. An empty Path means stdout.
type OutputConfig struct {
	Path string `yaml:"path" mapstructure:"path"`
}

// SafetyConfig governs the read-only enforcement and dangling-reference
// handling policies.
type SafetyConfig struct {
	RequireReadOnly      bool `yaml:"require_read_only" mapstructure:"require_read_only"`
	AllowWriteConnection bool `yaml:"allow_write_connection" mapstructure:"allow_write_connection"`
	StrictDangling       bool `yaml:"strict_dangling" mapstructure:"strict_dangling"`
}

// CacheConfig controls the durable schema-introspection cache.
type CacheConfig struct {
	Enabled  bool   `yaml:"enabled" mapstructure:"enabled"`
	TTLHours int    `yaml:"ttl_hours" mapstructure:"ttl_hours"`
	Clear    bool   `yaml:"clear" mapstructure:"clear"`
	Path     string `yaml:"path" mapstructure:"path"`
}

// LoggingConfig represents logging settings.
type LoggingConfig struct {
	Level  string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format string `yaml:"format" mapstructure:"format"` // json or text
	Output string `yaml:"output" mapstructure:"output"` // stdout, stderr, or file path
}

// DefaultConfig returns a Config with sensible default values.
func DefaultConfig() *Config {
	return &Config{
		Connection: ConnectionConfig{
			Port:                 5432,
			Schema:               "public",
			SSLMode:              "prefer",
			ConnectionTTLMinutes: 30,
		},
		Mode:       "strict",
		DepthLimit: 0,
		BatchSize:  1000,
		Safety: SafetyConfig{
			RequireReadOnly: true,
		},
		Cache: CacheConfig{
			Enabled:  true,
			TTLHours: 24,
			Path:     "pgreplay_schema_cache.db",
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "text",
			Output: "stdout",
		},
	}
}
