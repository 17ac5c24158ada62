package cmd

import (
	"context"
	"database/sql"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/dbsmedya/pgreplay/internal/config"
	"github.com/dbsmedya/pgreplay/internal/database"
	"github.com/dbsmedya/pgreplay/internal/ddlgen"
	"github.com/dbsmedya/pgreplay/internal/depgraph"
	"github.com/dbsmedya/pgreplay/internal/logger"
	"github.com/dbsmedya/pgreplay/internal/pgcatalog"
	"github.com/dbsmedya/pgreplay/internal/record"
	"github.com/dbsmedya/pgreplay/internal/remap"
	"github.com/dbsmedya/pgreplay/internal/replay"
	"github.com/dbsmedya/pgreplay/internal/schemacache"
	"github.com/dbsmedya/pgreplay/internal/traversal"
)

var (
	dumpTable        string
	dumpPKs          []string
	dumpTimeframe    string
	dumpTruncates    []string
	dumpWide         bool
	dumpKeepPKs      bool
	dumpCreateSchema bool
	dumpOutput       string
)

var dumpCmd = &cobra.Command{
	Use:   "dump",
	Short: "Extract a seeded subset and emit a replayable SQL stream",
	RunE:  runDump,
}

func init() {
	dumpCmd.Flags().StringVar(&dumpTable, "table", "", "Seed table name")
	dumpCmd.Flags().StringSliceVar(&dumpPKs, "pks", nil, "Seed by explicit primary key values (single-column PKs only)")
	dumpCmd.Flags().StringVar(&dumpTimeframe, "timeframe", "", "Seed by column range: col:lower:upper")
	dumpCmd.Flags().StringArrayVar(&dumpTruncates, "truncate", nil, "Scope a related table to a column range: table:col:lower:upper (repeatable)")
	dumpCmd.Flags().BoolVar(&dumpWide, "wide", false, "Follow self-referencing foreign keys (default strict)")
	dumpCmd.Flags().BoolVar(&dumpKeepPKs, "keep-pks", false, "Keep literal primary key values instead of remapping identity PKs")
	dumpCmd.Flags().BoolVar(&dumpCreateSchema, "create-schema", false, "Prepend a CREATE TABLE/SCHEMA DDL block to the output")
	dumpCmd.Flags().StringVar(&dumpOutput, "output", "", "Output file path (default stdout)")

	rootCmd.AddCommand(dumpCmd)
}

func runDump(cmd *cobra.Command, args []string) error {
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

	cache := schemacache.Open(cfg.Cache.Path)
	if cfg.Cache.Clear {
		if err := cache.Invalidate(cfg.Connection.Host, cfg.Connection.Database); err != nil {
			log.Warnw("failed to clear schema cache entry", "error", err)
		}
	}

	var cachedSchema *pgcatalog.Graph
	cacheHit := false
	if cfg.Cache.Enabled {
		ttl := time.Duration(cfg.Cache.TTLHours) * time.Hour
		graph, ok, err := cache.Load(cfg.Connection.Host, cfg.Connection.Database, ttl)
		if err != nil {
			log.Warnw("failed to load schema cache", "error", err)
		} else if ok {
			cachedSchema = graph
			cacheHit = true
		}
	}

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
		Schema:         cachedSchema,
	}, log)

	result, err := engine.Traverse(ctx, seeds)
	if err != nil {
		return err
	}
	log.Infow("traversal complete",
		"tables", result.Stats.TablesVisited,
		"records", result.Stats.RecordsFound,
		"fetches", result.Stats.FetchCount,
		"max_depth", result.Stats.MaxDepth,
		"duration", result.Stats.Duration)

	if cfg.Cache.Enabled && !cacheHit {
		if err := cache.Store(cfg.Connection.Host, cfg.Connection.Database, engine.Schema()); err != nil {
			log.Warnw("failed to store schema cache", "error", err)
		}
	}

	sortGraph := depgraph.FromRecords(result.Records)
	sorted := sortGraph.TopologicalSort()

	var pkMap *remap.PKMap
	if cfg.Remap {
		pkMap, err = remap.Build(sorted, result.Records, engine.Schema().Tables())
		if err != nil {
			return err
		}
	}

	return writeOutput(cfg.Output.Path, func(w io.Writer) error {
		if cfg.DDL {
			tableOrder, cyclic := ddlgen.TableOrder(sorted)
			if err := ddlgen.New(engine.Schema().Tables()).Write(w, cfg.Connection.Database, tableOrder, cyclic); err != nil {
				return &OutputError{Err: err}
			}
		}

		writer := replay.New(engine.Schema().Tables(), replay.Config{PKMap: pkMap, Cyclic: sorted.Cyclic})
		if err := writer.Write(w, sorted.Order, result.Records); err != nil {
			return &OutputError{Err: err}
		}
		return nil
	})
}

// buildDumpConfig loads the config file, layers the persistent connection
// overrides and this command's seed/truncate/mode/ddl/remap flags on top,
// and validates the result.
func buildDumpConfig() (*config.Config, error) {
	cfg, err := config.Load(GetConfigFile())
	if err != nil {
		return nil, err
	}

	GetConnectionOverrides().Apply(cfg)

	mode := ""
	if dumpWide {
		mode = "wide"
	}
	cfg.ApplyOverrides("", "", dumpOutput, mode, 0, 0, false, dumpCreateSchema)
	// Remapping defaults on; --keep-pks is the only way to turn it off, so
	// it is set directly rather than through ApplyOverrides' additive-only
	// flag semantics.
	cfg.Remap = !dumpKeepPKs

	if dumpTable != "" {
		cfg.Seed.Table = dumpTable
	}
	if len(dumpPKs) > 0 {
		cfg.Seed.PKs = dumpPKs
	}
	if dumpTimeframe != "" {
		col, lo, hi, err := parseTimeframe(dumpTimeframe)
		if err != nil {
			return nil, &UsageError{Reason: err.Error()}
		}
		cfg.Seed.TimeframeColumn = col
		cfg.Seed.TimeframeLower = lo
		cfg.Seed.TimeframeUpper = hi
	}
	for _, raw := range dumpTruncates {
		f, err := parseTruncate(raw)
		if err != nil {
			return nil, &UsageError{Reason: err.Error()}
		}
		cfg.Truncate = append(cfg.Truncate, f)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func parseTimeframe(s string) (col, lower, upper string, err error) {
	parts := strings.SplitN(s, ":", 3)
	if len(parts) != 3 || parts[0] == "" || parts[1] == "" || parts[2] == "" {
		return "", "", "", fmt.Errorf("--timeframe must be col:lower:upper, got %q", s)
	}
	return parts[0], parts[1], parts[2], nil
}

func parseTruncate(s string) (config.TruncateFilter, error) {
	parts := strings.SplitN(s, ":", 4)
	if len(parts) != 4 || parts[0] == "" || parts[1] == "" || parts[2] == "" || parts[3] == "" {
		return config.TruncateFilter{}, fmt.Errorf("--truncate must be table:col:lower:upper, got %q", s)
	}
	return config.TruncateFilter{Table: parts[0], Column: parts[1], Lower: parts[2], Upper: parts[3]}, nil
}

func modeFromString(mode string) record.Mode {
	if mode == "wide" {
		return record.Wide
	}
	return record.Strict
}

func filterSetFromTruncates(filters []config.TruncateFilter, schema string) *record.FilterSet {
	out := make([]record.TimeframeFilter, 0, len(filters))
	for _, f := range filters {
		out = append(out, record.TimeframeFilter{
			Table:  record.TableRef{Schema: schema, Name: f.Table},
			Column: f.Column,
			Lower:  f.Lower,
			Upper:  f.Upper,
		})
	}
	return record.NewFilterSet(out)
}

// resolveSeeds builds the initial seed identifier set, either from
// explicit primary key values or by querying the seed table for every row
// within a timeframe. Timeframe seeding is a CLI-layer
// concern, separate from the traversal engine's per-table filters: it
// selects the seed rows themselves rather than scoping a related table.
func resolveSeeds(ctx context.Context, db *sql.DB, meta *pgcatalog.Table, seed config.SeedConfig) ([]record.Identifier, error) {
	if len(seed.PKs) > 0 {
		if len(meta.PrimaryKeyColumns) != 1 {
			return nil, &UsageError{Reason: fmt.Sprintf(
				"seed table %s has a composite primary key; --pks only supports single-column primary keys, use --timeframe instead",
				meta.Ref)}
		}
		ids := make([]record.Identifier, len(seed.PKs))
		for i, v := range seed.PKs {
			ids[i] = record.NewIdentifier(meta.Ref, []any{v})
		}
		return ids, nil
	}

	col := quoteSeedIdent(seed.TimeframeColumn)
	pkCols := make([]string, len(meta.PrimaryKeyColumns))
	for i, c := range meta.PrimaryKeyColumns {
		pkCols[i] = quoteSeedIdent(c)
	}
	query := fmt.Sprintf("SELECT %s FROM %s WHERE %s BETWEEN $1 AND $2",
		strings.Join(pkCols, ", "), quoteSeedTable(meta.Ref), col)

	rows, err := db.QueryContext(ctx, query, seed.TimeframeLower, seed.TimeframeUpper)
	if err != nil {
		return nil, &traversal.FetchError{Table: meta.Ref.String(), Err: err}
	}
	defer rows.Close()

	var ids []record.Identifier
	for rows.Next() {
		dest := make([]any, len(pkCols))
		ptrs := make([]any, len(pkCols))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, &traversal.FetchError{Table: meta.Ref.String(), Err: err}
		}
		ids = append(ids, record.NewIdentifier(meta.Ref, dest))
	}
	if err := rows.Err(); err != nil {
		return nil, &traversal.FetchError{Table: meta.Ref.String(), Err: err}
	}
	return ids, nil
}

func quoteSeedIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteSeedTable(ref record.TableRef) string {
	if ref.Schema == "" {
		return quoteSeedIdent(ref.Name)
	}
	return quoteSeedIdent(ref.Schema) + "." + quoteSeedIdent(ref.Name)
}

// writeOutput runs fn against the configured sink. A real file path is
// written atomically via a temp file in the same directory followed by a
// rename, so a crash mid-write never leaves a partial replay script at
// the final path. An empty path writes straight to stdout, where
// atomicity has no meaning.
func writeOutput(path string, fn func(io.Writer) error) error {
	if path == "" {
		return fn(os.Stdout)
	}

	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, ".pgreplay-*.tmp")
	if err != nil {
		return &OutputError{Err: err}
	}
	tmpPath := tmp.Name()
	defer os.Remove(tmpPath)

	if err := fn(tmp); err != nil {
		tmp.Close()
		return err
	}
	if err := tmp.Close(); err != nil {
		return &OutputError{Err: err}
	}
	if err := os.Rename(tmpPath, path); err != nil {
		return &OutputError{Err: err}
	}
	return nil
}
