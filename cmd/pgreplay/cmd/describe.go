package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/pgreplay/internal/database"
	"github.com/dbsmedya/pgreplay/internal/pgcatalog"
	"github.com/dbsmedya/pgreplay/internal/record"
)

var describeCmd = &cobra.Command{
	Use:   "describe <table>",
	Short: "Show one table's columns, keys, and foreign keys",
	Args:  cobra.ExactArgs(1),
	RunE:  runDescribe,
}

func init() {
	rootCmd.AddCommand(describeCmd)
}

func runDescribe(cmd *cobra.Command, args []string) error {
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
	ref := record.TableRef{Schema: cfg.Connection.Schema, Name: args[0]}
	table, err := introspector.GetTable(ctx, ref)
	if err != nil {
		return err
	}

	printTable(table)
	return nil
}

func printTable(t *pgcatalog.Table) {
	fmt.Fprintf(outputWriter, "%s\n", t.Ref)

	fmt.Fprintln(outputWriter, "  columns:")
	for _, c := range t.Columns {
		flags := ""
		if !c.Nullable {
			flags += " not null"
		}
		if c.IsIdentity {
			flags += " identity"
		}
		fmt.Fprintf(outputWriter, "    %-24s %s%s\n", c.Name, c.DataType, flags)
	}

	if len(t.PrimaryKeyColumns) > 0 {
		fmt.Fprintf(outputWriter, "  primary key: %v\n", t.PrimaryKeyColumns)
	}

	for _, u := range t.UniqueConstraintSets {
		fmt.Fprintf(outputWriter, "  unique (%s): %v\n", u.Name, u.Columns)
	}

	if len(t.OutgoingFKs) > 0 {
		fmt.Fprintln(outputWriter, "  outgoing foreign keys:")
		for _, fk := range t.OutgoingFKs {
			fmt.Fprintf(outputWriter, "    %s: %v -> %s %v\n", fk.Name, fk.FromColumns, fk.ToTable, fk.ToColumns)
		}
	}

	if len(t.IncomingFKs) > 0 {
		fmt.Fprintln(outputWriter, "  incoming foreign keys:")
		for _, fk := range t.IncomingFKs {
			fmt.Fprintf(outputWriter, "    %s: %s %v -> %v\n", fk.Name, fk.FromTable, fk.FromColumns, fk.ToColumns)
		}
	}
}
