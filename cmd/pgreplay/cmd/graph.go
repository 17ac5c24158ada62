package cmd

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/pgreplay/internal/database"
	"github.com/dbsmedya/pgreplay/internal/mermaidascii"
	"github.com/dbsmedya/pgreplay/internal/pgcatalog"
	"github.com/dbsmedya/pgreplay/internal/record"
)

var graphCmd = &cobra.Command{
	Use:   "graph",
	Short: "Render the schema's foreign-key relationships as an ASCII diagram",
	RunE:  runGraph,
}

func init() {
	rootCmd.AddCommand(graphCmd)
}

func runGraph(cmd *cobra.Command, args []string) error {
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
	syntax, err := buildSchemaMermaid(ctx, introspector, cfg.Connection.Schema)
	if err != nil {
		return err
	}

	diagram, err := mermaidascii.RenderDiagram(syntax, nil)
	if err != nil {
		return &OutputError{Err: err}
	}

	fmt.Fprintln(outputWriter, diagram)
	return nil
}

// buildSchemaMermaid renders every table in schema and its outgoing
// foreign keys as mermaid graph syntax, sourced from the introspected
// catalog.
func buildSchemaMermaid(ctx context.Context, introspector *pgcatalog.Introspector, schema string) (string, error) {
	refs, err := introspector.ListTables(ctx, schema)
	if err != nil {
		return "", err
	}

	var sb strings.Builder
	sb.WriteString("graph TD\n")

	seenEdge := make(map[string]bool)
	for _, ref := range refs {
		nodeID := sanitizeGraphNodeID(ref)
		sb.WriteString(fmt.Sprintf("    %s\n", nodeID))

		table, err := introspector.GetTable(ctx, ref)
		if err != nil {
			return "", err
		}
		for _, fk := range table.OutgoingFKs {
			edgeKey := fk.FromTable.String() + "->" + fk.ToTable.String() + ":" + fk.Name
			if seenEdge[edgeKey] {
				continue
			}
			seenEdge[edgeKey] = true
			sb.WriteString(fmt.Sprintf("    %s -->|%s| %s\n",
				sanitizeGraphNodeID(fk.FromTable), fk.Name, sanitizeGraphNodeID(fk.ToTable)))
		}
	}

	return sb.String(), nil
}

func sanitizeGraphNodeID(ref record.TableRef) string {
	return strings.NewReplacer(".", "_", "-", "_", " ", "_").Replace(ref.String())
}
