package cmd

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/pgreplay/internal/config"
	"github.com/dbsmedya/pgreplay/internal/database"
	"github.com/dbsmedya/pgreplay/internal/pgcatalog"
)

// outputWriter is where inspection subcommands print their results; tests
// override it to capture output instead of writing to stdout.
var outputWriter io.Writer = os.Stdout

func setOutputWriter(w io.Writer) {
	outputWriter = w
}

func resetOutputWriter() {
	outputWriter = os.Stdout
}

var tablesCmd = &cobra.Command{
	Use:   "tables",
	Short: "List the base tables in the configured schema",
	RunE:  runTables,
}

func init() {
	rootCmd.AddCommand(tablesCmd)
}

func runTables(cmd *cobra.Command, args []string) error {
	cfg, err := loadInspectionConfig()
	if err != nil {
		return err
	}

	ctx := database.SetupSignalHandler()
	mgr := database.NewManager(&cfg.Connection)
	if err := mgr.Connect(ctx, cfg.Safety); err != nil {
		return err
	}
	defer mgr.Close()

	introspector := pgcatalog.New(mgr.DB, cfg.Connection.Schema)
	refs, err := introspector.ListTables(ctx, cfg.Connection.Schema)
	if err != nil {
		return err
	}

	for _, ref := range refs {
		fmt.Fprintln(outputWriter, ref.String())
	}
	return nil
}

// loadInspectionConfig loads config and layers the persistent connection
// overrides, without any dump-specific seed/truncate validation — the
// inspection subcommands (tables, describe, graph, validate, cache) only
// need a usable connection.
func loadInspectionConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, err
	}
	GetConnectionOverrides().Apply(cfg)
	return cfg, nil
}
