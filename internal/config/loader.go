package config

import (
	"fmt"
	"os"
	"regexp"
	"strings"

	"github.com/spf13/viper"
)

// Load reads configuration from the specified file path, applies
// environment variable layering, and expands ${VAR}/$VAR references.
func Load(configPath string) (*Config, error) {
	v := viper.New()
	applyEnvBindings(v)

	cfg := DefaultConfig()

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyEnvOverrides(cfg)

	if err := substituteEnvVars(cfg); err != nil {
		return nil, fmt.Errorf("failed to substitute environment variables: %w", err)
	}

	return cfg, nil
}

// applyEnvBindings wires viper's automatic env lookup for keys that have
// no file-based default, matching the layering order the loader
// enforces: CLI flags override env vars, which override the config
// file, which overrides DefaultConfig.
func applyEnvBindings(v *viper.Viper) {
	v.SetEnvPrefix("")
	v.AutomaticEnv()
}

// applyEnvOverrides applies the documented DB_*/PGPASSWORD/CACHE_*/LOG_LEVEL
// environment variables on top of whatever the config file set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("DB_HOST"); v != "" {
		cfg.Connection.Host = v
	}
	if v := os.Getenv("DB_PORT"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Connection.Port)
	}
	if v := os.Getenv("DB_NAME"); v != "" {
		cfg.Connection.Database = v
	}
	if v := os.Getenv("DB_USER"); v != "" {
		cfg.Connection.User = v
	}
	if v := os.Getenv("DB_SCHEMA"); v != "" {
		cfg.Connection.Schema = v
	}
	if v := os.Getenv("PGPASSWORD"); v != "" {
		cfg.Connection.Password = v
	}
	if v := os.Getenv("CACHE_ENABLED"); v != "" {
		cfg.Cache.Enabled = v == "true" || v == "1"
	}
	if v := os.Getenv("CACHE_TTL_HOURS"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Cache.TTLHours)
	}
	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CONNECTION_TTL_MINUTES"); v != "" {
		fmt.Sscanf(v, "%d", &cfg.Connection.ConnectionTTLMinutes)
	}
}

// envVarPattern matches ${VAR_NAME} or $VAR_NAME patterns.
var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}|\$([A-Za-z_][A-Za-z0-9_]*)`)

// substituteEnvVars replaces ${VAR_NAME} patterns with environment
// variable values across the connection and output settings.
func substituteEnvVars(cfg *Config) error {
	cfg.Connection.Host = expandEnvVar(cfg.Connection.Host)
	cfg.Connection.User = expandEnvVar(cfg.Connection.User)
	cfg.Connection.Password = expandEnvVar(cfg.Connection.Password)
	cfg.Connection.Database = expandEnvVar(cfg.Connection.Database)
	cfg.Output.Path = expandEnvVar(cfg.Output.Path)
	cfg.Logging.Output = expandEnvVar(cfg.Logging.Output)
	return nil
}

// expandEnvVar expands environment variables in the format ${VAR} or $VAR.
func expandEnvVar(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		var varName string
		if strings.HasPrefix(match, "${") {
			varName = match[2 : len(match)-1]
		} else {
			varName = match[1:]
		}
		if value, exists := os.LookupEnv(varName); exists {
			return value
		}
		return match
	})
}

// ApplyOverrides applies CLI flag overrides to the configuration. Only
// non-zero/non-empty values are applied, so an unset flag never clobbers
// a value the config file or environment already supplied.
func (c *Config) ApplyOverrides(logLevel, logFormat, outputPath string, mode string, depthLimit, batchSize int, remap, ddl bool) {
	if logLevel != "" {
		c.Logging.Level = logLevel
	}
	if logFormat != "" {
		c.Logging.Format = logFormat
	}
	if outputPath != "" {
		c.Output.Path = outputPath
	}
	if mode != "" {
		c.Mode = mode
	}
	if depthLimit > 0 {
		c.DepthLimit = depthLimit
	}
	if batchSize > 0 {
		c.BatchSize = batchSize
	}
	if remap {
		c.Remap = true
	}
	if ddl {
		c.DDL = true
	}
}
