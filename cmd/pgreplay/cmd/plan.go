package cmd

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/pgreplay/internal/database"
	"github.com/dbsmedya/pgreplay/internal/depgraph"
	"github.com/dbsmedya/pgreplay/internal/logger"
	"github.com/dbsmedya/pgreplay/internal/pgcatalog"
	"github.com/dbsmedya/pgreplay/internal/record"
	"github.com/dbsmedya/pgreplay/internal/traversal"
)

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Run discovery and sorting without writing a replay stream",
	Long: `Plan runs the same seed resolution, traversal, and dependency sort as
dump, then prints a summary of what dump would emit — row counts per
table, any dependency cycles found, and traversal stats — without
writing a replay stream or touching the output sink.`,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&dumpTable, "table", "", "Seed table name")
	planCmd.Flags().StringSliceVar(&dumpPKs, "pks", nil, "Seed by explicit primary key values (single-column PKs only)")
	planCmd.Flags().StringVar(&dumpTimeframe, "timeframe", "", "Seed by column range: col:lower:upper")
	planCmd.Flags().StringArrayVar(&dumpTruncates, "truncate", nil, "Scope a related table to a column range: table:col:lower:upper (repeatable)")
	planCmd.Flags().BoolVar(&dumpWide, "wide", false, "Follow self-referencing foreign keys (default strict)")

	rootCmd.AddCommand(planCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	cfg, err := buildDumpConfig()
	if err != nil {
		return err
	}

	log, err := logger.New(&cfg.Logging)
	if err != nil {
		return fmt.Errorf("failed to initialize logger: %w", err)
	}
	defer log.Sync()

	ctx := database.SetupSignalHandler()

	mgr := database.NewManager(&cfg.Connection)
	if err := mgr.Connect(ctx, cfg.Safety); err != nil {
		return err
	}
	defer mgr.Close()

	introspector := pgcatalog.New(mgr.DB, cfg.Connection.Schema)

	seedTable := record.TableRef{Schema: cfg.Connection.Schema, Name: cfg.Seed.Table}
	seedMeta, err := introspector.GetTable(ctx, seedTable)
	if err != nil {
		return err
	}

	seeds, err := resolveSeeds(ctx, mgr.DB, seedMeta, cfg.Seed)
	if err != nil {
		return err
	}

	engine := traversal.New(mgr.DB, introspector, traversal.Config{
		Mode:           modeFromString(cfg.Mode),
		Filters:        filterSetFromTruncates(cfg.Truncate, cfg.Connection.Schema),
		DepthLimit:     cfg.DepthLimit,
		BatchSize:      cfg.BatchSize,
		StrictDangling: cfg.Safety.StrictDangling,
	}, log)

	result, err := engine.Traverse(ctx, seeds)
	if err != nil {
		return err
	}

	sorted := depgraph.FromRecords(result.Records).TopologicalSort()

	printPlanSummary(cfg.Seed.Table, result, sorted)
	return nil
}

func printPlanSummary(seedTable string, result *traversal.Result, sorted *depgraph.SortResult) {
	counts := make(map[record.TableRef]int)
	for id := range result.Records {
		counts[id.Table]++
	}

	tables := make([]record.TableRef, 0, len(counts))
	for t := range counts {
		tables = append(tables, t)
	}
	sort.Slice(tables, func(i, j int) bool { return tables[i].String() < tables[j].String() })

	cyclicTables := make(map[record.TableRef]bool)
	for id, cyclic := range sorted.Cyclic {
		if cyclic {
			cyclicTables[id.Table] = true
		}
	}

	fmt.Fprintf(outputWriter, "=== Plan for seed table %s ===\n", seedTable)
	for _, t := range tables {
		marker := ""
		if cyclicTables[t] {
			marker = " (cyclic)"
		}
		fmt.Fprintf(outputWriter, "  %-40s %8d rows%s\n", t, counts[t], marker)
	}
	fmt.Fprintf(outputWriter, "tables visited:   %d\n", result.Stats.TablesVisited)
	fmt.Fprintf(outputWriter, "records found:    %d\n", result.Stats.RecordsFound)
	fmt.Fprintf(outputWriter, "fetches issued:   %d\n", result.Stats.FetchCount)
	fmt.Fprintf(outputWriter, "max depth:        %d\n", result.Stats.MaxDepth)
	fmt.Fprintf(outputWriter, "cyclic tables:    %d\n", len(cyclicTables))
	fmt.Fprintf(outputWriter, "duration:         %s\n", result.Stats.Duration)
	for _, w := range result.Stats.Warnings {
		fmt.Fprintf(outputWriter, "warning:          %s\n", w)
	}
	fmt.Fprintln(outputWriter, "=== No data written; this is a dry run ===")
}
