package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/pgreplay/internal/config"
)

// Version information (set via ldflags at build time).
var (
	Version = "0.0.1-dev"
	Commit  = "unknown"
)

// Persistent flags shared by every subcommand: connection parameters and
// the ambient cache/logging/safety knobs.
var (
	cfgFile             string
	flagHost            string
	flagPort            int
	flagUser            string
	flagDatabase        string
	flagSchema          string
	flagLogLevel        string
	flagNoCache         bool
	flagClearCache      bool
	flagRequireReadOnly bool
	flagAllowWriteConn  bool
)

var rootCmd = &cobra.Command{
	Use:   "pgreplay",
	Short: "Extract a closed, dependency-ordered subset of a PostgreSQL database",
	Long: `pgreplay walks the foreign-key graph outward from a seed set of rows,
collects everything reachable under strict or wide traversal semantics,
and emits a dependency-ordered, optionally primary-key-remapped SQL
replay stream that recreates that subset on another PostgreSQL-compatible
database.`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
}

// Execute runs the root command and maps its terminal error, if any, to
// the exit code taxonomy exitCode defines.
func Execute() {
	err := rootCmd.Execute()
	if err != nil {
		fmt.Fprintln(os.Stderr, "pgreplay:", err)
	}
	os.Exit(exitCode(err))
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"Path to a YAML configuration file")

	rootCmd.PersistentFlags().StringVar(&flagHost, "host", "", "Database host")
	rootCmd.PersistentFlags().IntVar(&flagPort, "port", 0, "Database port")
	rootCmd.PersistentFlags().StringVar(&flagUser, "user", "", "Database user")
	rootCmd.PersistentFlags().StringVar(&flagDatabase, "database", "", "Database name")
	rootCmd.PersistentFlags().StringVar(&flagSchema, "schema", "", "Schema to introspect (default \"public\")")

	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "",
		"Override log level (debug, info, warn, error)")

	rootCmd.PersistentFlags().BoolVar(&flagNoCache, "no-cache", false,
		"Bypass the schema cache for this run")
	rootCmd.PersistentFlags().BoolVar(&flagClearCache, "clear-cache", false,
		"Delete this database's schema cache entry before running")

	rootCmd.PersistentFlags().BoolVar(&flagRequireReadOnly, "require-read-only", false,
		"Fail the run unless the connection is enforced read-only")
	rootCmd.PersistentFlags().BoolVar(&flagAllowWriteConn, "allow-write-connection", false,
		"Permit a writable connection (mutually exclusive with --require-read-only)")
}

// GetConfigFile returns the config file path given on the command line.
func GetConfigFile() string {
	return cfgFile
}

// ConnectionOverrides carries the persistent connection/cache/logging
// flag values that every subcommand layers on top of the loaded config.
type ConnectionOverrides struct {
	Host                 string
	Port                 int
	User                 string
	Database             string
	Schema               string
	LogLevel             string
	NoCache              bool
	ClearCache           bool
	RequireReadOnly      bool
	AllowWriteConnection bool
}

// GetConnectionOverrides returns the persistent flag values as set on the
// command line.
func GetConnectionOverrides() ConnectionOverrides {
	return ConnectionOverrides{
		Host:                 flagHost,
		Port:                 flagPort,
		User:                 flagUser,
		Database:             flagDatabase,
		Schema:               flagSchema,
		LogLevel:             flagLogLevel,
		NoCache:              flagNoCache,
		ClearCache:           flagClearCache,
		RequireReadOnly:      flagRequireReadOnly,
		AllowWriteConnection: flagAllowWriteConn,
	}
}

// Apply layers the connection overrides onto a loaded Config. Only flags
// explicitly set on the command line take effect, so an unset flag never
// clobbers a value the config file or environment already supplied.
func (o ConnectionOverrides) Apply(cfg *config.Config) {
	if o.Host != "" {
		cfg.Connection.Host = o.Host
	}
	if o.Port > 0 {
		cfg.Connection.Port = o.Port
	}
	if o.User != "" {
		cfg.Connection.User = o.User
	}
	if o.Database != "" {
		cfg.Connection.Database = o.Database
	}
	if o.Schema != "" {
		cfg.Connection.Schema = o.Schema
	}
	if o.LogLevel != "" {
		cfg.Logging.Level = o.LogLevel
	}
	if o.NoCache {
		cfg.Cache.Enabled = false
	}
	if o.ClearCache {
		cfg.Cache.Clear = true
	}
	if o.RequireReadOnly {
		cfg.Safety.RequireReadOnly = true
	}
	if o.AllowWriteConnection {
		cfg.Safety.AllowWriteConnection = true
	}
}
