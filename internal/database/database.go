// Package database manages the single PostgreSQL connection a pgreplay
// run reads from, including read-only session enforcement.
package database

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"time"

	_ "github.com/lib/pq" // PostgreSQL driver

	"github.com/dbsmedya/pgreplay/internal/config"
)

// ReadOnlyEnforcementError is returned when the session could not be
// switched to read-only and the caller required it strictly.
type ReadOnlyEnforcementError struct {
	Err error
}

func (e *ReadOnlyEnforcementError) Error() string {
	return fmt.Sprintf("could not enforce a read-only session: %v", e.Err)
}
func (e *ReadOnlyEnforcementError) Unwrap() error { return e.Err }

// Manager owns the single source connection a run uses. pgreplay only
// ever reads — there is nothing to write to; the connection is owned
// exclusively by the traversal engine for the lifetime of a run, with
// no other concurrent user of it.
type Manager struct {
	DB     *sql.DB
	config *config.ConnectionConfig
}

// NewManager creates a Manager from connection configuration.
func NewManager(cfg *config.ConnectionConfig) *Manager {
	return &Manager{config: cfg}
}

// Connect opens the source connection with retry/backoff and, unless
// disabled, enforces a read-only posture: strict mode fails the run if
// the session cannot be made read-only, advisory mode warns and
// proceeds.
func (m *Manager) Connect(ctx context.Context, safety config.SafetyConfig) error {
	db, err := m.connectWithRetry(ctx)
	if err != nil {
		return fmt.Errorf("failed to connect to source database: %w", err)
	}
	m.DB = db

	if safety.AllowWriteConnection {
		return nil
	}

	if err := m.enforceReadOnly(ctx); err != nil {
		if safety.RequireReadOnly {
			db.Close()
			m.DB = nil
			return &ReadOnlyEnforcementError{Err: err}
		}
		fmt.Fprintf(os.Stderr, "warning: could not make the session read-only; continuing: %v\n", err)
	}
	return nil
}

// enforceReadOnly sets the session's default_transaction_read_only flag.
// Called once per connection, before any catalog or data query runs.
func (m *Manager) enforceReadOnly(ctx context.Context) error {
	_, err := m.DB.ExecContext(ctx, "SET SESSION CHARACTERISTICS AS TRANSACTION READ ONLY")
	return err
}

// connectWithRetry attempts to connect with exponential backoff.
func (m *Manager) connectWithRetry(ctx context.Context) (*sql.DB, error) {
	var db *sql.DB
	var err error

	const maxRetries = 3
	backoff := time.Second

	for i := 0; i < maxRetries; i++ {
		db, err = m.connect()
		if err == nil {
			if pingErr := db.PingContext(ctx); pingErr == nil {
				return db, nil
			} else {
				db.Close()
				err = pingErr
			}
		}

		if i < maxRetries-1 {
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(backoff):
				backoff *= 2
			}
		}
	}

	return nil, fmt.Errorf("failed after %d retries: %w", maxRetries, err)
}

func (m *Manager) connect() (*sql.DB, error) {
	dsn := BuildDSN(m.config)

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, err
	}

	db.SetMaxOpenConns(1) // single-threaded by contract
	if m.config.ConnectionTTLMinutes > 0 {
		db.SetConnMaxLifetime(time.Duration(m.config.ConnectionTTLMinutes) * time.Minute)
	}

	return db, nil
}

// BuildDSN constructs a libpq-style DSN from connection configuration.
func BuildDSN(cfg *config.ConnectionConfig) string {
	dsn := fmt.Sprintf("host=%s port=%d user=%s dbname=%s",
		cfg.Host, cfg.Port, cfg.User, cfg.Database)

	if cfg.Password != "" {
		dsn += fmt.Sprintf(" password=%s", cfg.Password)
	}

	sslMode := cfg.SSLMode
	if sslMode == "" {
		sslMode = "prefer"
	}
	dsn += fmt.Sprintf(" sslmode=%s", sslMode)

	return dsn
}

// Close closes the source connection.
func (m *Manager) Close() error {
	if m.DB == nil {
		return nil
	}
	return m.DB.Close()
}

// Ping verifies the connection is alive.
func (m *Manager) Ping(ctx context.Context) error {
	if m.DB == nil {
		return fmt.Errorf("not connected")
	}
	return m.DB.PingContext(ctx)
}
