package config

import (
	"fmt"
	"strings"
)

// ValidationError represents a configuration validation error.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// ValidationErrors is a collection of validation errors.
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}
	var msgs []string
	for _, err := range e {
		msgs = append(msgs, err.Error())
	}
	return fmt.Sprintf("validation failed:\n  - %s", strings.Join(msgs, "\n  - "))
}

// Validate checks the configuration for required fields and valid
// values, including the mutual exclusivity between the seed-by-PK and
// seed-by-timeframe modes.
func (c *Config) Validate() error {
	var errors ValidationErrors

	errors = append(errors, c.validateConnection()...)
	errors = append(errors, c.validateSeed()...)
	errors = append(errors, c.validateTruncate()...)
	errors = append(errors, c.validateMode()...)
	errors = append(errors, c.validateProcessing()...)
	errors = append(errors, c.validateLogging()...)

	if len(errors) > 0 {
		return errors
	}
	return nil
}

func (c *Config) validateConnection() ValidationErrors {
	var errors ValidationErrors
	conn := c.Connection

	if conn.Host == "" {
		errors = append(errors, ValidationError{Field: "connection.host", Message: "host is required"})
	}
	if conn.Port <= 0 || conn.Port > 65535 {
		errors = append(errors, ValidationError{Field: "connection.port", Message: "port must be between 1 and 65535"})
	}
	if conn.User == "" {
		errors = append(errors, ValidationError{Field: "connection.user", Message: "user is required"})
	}
	if conn.Database == "" {
		errors = append(errors, ValidationError{Field: "connection.database", Message: "database name is required"})
	}

	validSSL := map[string]bool{"disable": true, "prefer": true, "require": true, "verify-ca": true, "verify-full": true, "": true}
	if !validSSL[conn.SSLMode] {
		errors = append(errors, ValidationError{Field: "connection.ssl_mode", Message: "ssl_mode must be a recognized libpq sslmode value"})
	}
	if conn.ConnectionTTLMinutes < 0 {
		errors = append(errors, ValidationError{Field: "connection.connection_ttl_minutes", Message: "cannot be negative"})
	}

	return errors
}

func (c *Config) validateSeed() ValidationErrors {
	var errors ValidationErrors
	seed := c.Seed

	if seed.Table == "" {
		errors = append(errors, ValidationError{Field: "seed.table", Message: "a seed table is required"})
		return errors
	}

	byPK := len(seed.PKs) > 0
	byTimeframe := seed.TimeframeColumn != ""

	switch {
	case byPK && byTimeframe:
		errors = append(errors, ValidationError{
			Field:   "seed",
			Message: "pks and timeframe seed selection are mutually exclusive",
		})
	case !byPK && !byTimeframe:
		errors = append(errors, ValidationError{
			Field:   "seed",
			Message: "either pks or a timeframe must select the seed records",
		})
	case byTimeframe:
		if seed.TimeframeLower == "" || seed.TimeframeUpper == "" {
			errors = append(errors, ValidationError{
				Field:   "seed.timeframe",
				Message: "both lower and upper bounds are required",
			})
		}
	}

	return errors
}

func (c *Config) validateTruncate() ValidationErrors {
	var errors ValidationErrors
	for i, f := range c.Truncate {
		prefix := fmt.Sprintf("truncate[%d]", i)
		if f.Table == "" || f.Column == "" {
			errors = append(errors, ValidationError{Field: prefix, Message: "table and column are required"})
		}
		if f.Lower == "" || f.Upper == "" {
			errors = append(errors, ValidationError{Field: prefix, Message: "lower and upper bounds are required"})
		}
		if f.Table == c.Seed.Table {
			errors = append(errors, ValidationError{
				Field:   prefix,
				Message: "a truncate filter cannot target the seed table; use seed.timeframe instead",
			})
		}
	}
	return errors
}

func (c *Config) validateMode() ValidationErrors {
	var errors ValidationErrors
	if c.Mode != "strict" && c.Mode != "wide" {
		errors = append(errors, ValidationError{Field: "mode", Message: "mode must be 'strict' or 'wide'"})
	}
	return errors
}

func (c *Config) validateProcessing() ValidationErrors {
	var errors ValidationErrors
	if c.BatchSize <= 0 {
		errors = append(errors, ValidationError{Field: "batch_size", Message: "batch_size must be positive"})
	}
	if c.DepthLimit < 0 {
		errors = append(errors, ValidationError{Field: "depth_limit", Message: "depth_limit cannot be negative"})
	}
	if c.Safety.AllowWriteConnection && c.Safety.RequireReadOnly {
		errors = append(errors, ValidationError{
			Field:   "safety",
			Message: "require_read_only and allow_write_connection are mutually exclusive",
		})
	}
	return errors
}

func (c *Config) validateLogging() ValidationErrors {
	var errors ValidationErrors

	validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true, "": true}
	if !validLevels[c.Logging.Level] {
		errors = append(errors, ValidationError{Field: "logging.level", Message: "level must be 'debug', 'info', 'warn', or 'error'"})
	}

	validFormats := map[string]bool{"json": true, "text": true, "": true}
	if !validFormats[c.Logging.Format] {
		errors = append(errors, ValidationError{Field: "logging.format", Message: "format must be 'json' or 'text'"})
	}

	return errors
}
