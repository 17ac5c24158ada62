// Package traversal implements the core BFS discovery engine: starting
// from a set of seed identifiers, it walks outgoing and incoming foreign
// keys to collect the transitive closure of related records.
// Each visited row becomes one record.Data keyed by its primary key.
package traversal

import (
	"context"
	"time"

	"github.com/dbsmedya/pgreplay/internal/logger"
	"github.com/dbsmedya/pgreplay/internal/pgcatalog"
	"github.com/dbsmedya/pgreplay/internal/record"
)

const defaultBatchSize = 1000

// Config controls how an Engine walks the schema graph.
type Config struct {
	Mode           record.Mode
	Filters        *record.FilterSet
	DepthLimit     int // 0 = unlimited
	BatchSize      int // IN-clause chunk size, 0 = defaultBatchSize
	StrictDangling bool
	// Schema, if non-nil, seeds the Engine's table-metadata cache (e.g.
	// from internal/schemacache) so a warm run skips re-introspecting
	// tables it already knows about. The Engine still populates it with
	// anything it introspects fresh, so callers can persist it back.
	Schema *pgcatalog.Graph
}

// Engine performs one traversal run against a live catalog connection.
type Engine struct {
	fetcher      rowFetcher
	introspector *pgcatalog.Introspector
	schema       *pgcatalog.Graph
	cfg          Config
	log          *logger.Logger
}

// Result is the outcome of a traversal: every collected record, keyed by
// identity, plus run statistics.
type Result struct {
	Records map[record.Identifier]*record.Data
	Stats   record.Stats
}

// New creates an Engine bound to a database connection and an
// introspector used to look up table metadata on demand.
func New(fetcher rowFetcher, introspector *pgcatalog.Introspector, cfg Config, log *logger.Logger) *Engine {
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = defaultBatchSize
	}
	schema := cfg.Schema
	if schema == nil {
		schema = pgcatalog.NewGraph()
	}
	return &Engine{
		fetcher:      fetcher,
		introspector: introspector,
		schema:       schema,
		cfg:          cfg,
		log:          log,
	}
}

// Schema returns the Engine's table-metadata cache as it stands after a
// run, so the caller can persist newly introspected tables.
func (e *Engine) Schema() *pgcatalog.Graph {
	return e.schema
}

type frontierItem struct {
	id    record.Identifier
	depth int
}

// engineState is the mutable working set for a single Traverse call.
type engineState struct {
	visited    map[record.Identifier]bool
	isSeed     map[record.Identifier]bool
	depthOf    map[record.Identifier]int
	records    map[record.Identifier]*record.Data
	pending    map[record.TableRef][]record.Identifier
	pendingSet map[record.Identifier]bool
	tableOrder []record.TableRef
	inQueue    map[record.TableRef]bool
	stats      record.Stats
}

func newEngineState() *engineState {
	return &engineState{
		visited:    make(map[record.Identifier]bool),
		isSeed:     make(map[record.Identifier]bool),
		depthOf:    make(map[record.Identifier]int),
		records:    make(map[record.Identifier]*record.Data),
		pending:    make(map[record.TableRef][]record.Identifier),
		pendingSet: make(map[record.Identifier]bool),
		inQueue:    make(map[record.TableRef]bool),
	}
}

func (s *engineState) enqueue(id record.Identifier, depth int) {
	if s.visited[id] || s.pendingSet[id] {
		return
	}
	s.pendingSet[id] = true
	s.depthOf[id] = depth
	s.pending[id.Table] = append(s.pending[id.Table], id)
	if !s.inQueue[id.Table] {
		s.inQueue[id.Table] = true
		s.tableOrder = append(s.tableOrder, id.Table)
	}
}

func (s *engineState) popTableBatch() (record.TableRef, []record.Identifier, bool) {
	if len(s.tableOrder) == 0 {
		return record.TableRef{}, nil, false
	}
	table := s.tableOrder[0]
	s.tableOrder = s.tableOrder[1:]
	batch := s.pending[table]
	delete(s.pending, table)
	delete(s.inQueue, table)
	for _, id := range batch {
		s.pendingSet[id] = false
	}
	return table, batch, true
}

// Traverse walks the schema graph starting from seeds and returns every
// record reachable under the engine's configured mode, filters, and depth
// limit.
func (e *Engine) Traverse(ctx context.Context, seeds []record.Identifier) (*Result, error) {
	start := time.Now()
	if err := e.validateFilters(ctx); err != nil {
		return nil, err
	}
	state := newEngineState()

	for _, s := range seeds {
		state.isSeed[s] = true
		state.enqueue(s, 0)
	}

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		default:
		}

		table, batch, ok := state.popTableBatch()
		if !ok {
			break
		}
		if len(batch) == 0 {
			continue
		}

		meta, err := e.getTable(ctx, table)
		if err != nil {
			return nil, err
		}

		rows, err := e.fetchByPK(ctx, meta, batch)
		if err != nil {
			return nil, &FetchError{Table: table.String(), Err: err}
		}
		state.stats.FetchCount++

		var freshIDs []record.Identifier
		for _, id := range batch {
			row, found := rows[id]
			if !found {
				// A seed or FK-target row that no longer exists. Recorded
				// as a warning by default; it simply never
				// becomes a Data value, so nothing downstream depends
				// on it.
				msg := "missing row for " + id.String()
				state.stats.Warnings = append(state.stats.Warnings, msg)
				e.log.Warnw("dangling reference", "identifier", id.String())
				if e.cfg.StrictDangling {
					return nil, &DanglingReferenceError{To: id}
				}
				continue
			}
			depth := state.depthOf[id]
			data := record.NewData(id, row, depth)
			state.records[id] = data
			state.visited[id] = true
			state.stats.RecordsFound++
			if depth > state.stats.MaxDepth {
				state.stats.MaxDepth = depth
			}
			freshIDs = append(freshIDs, id)
		}
		if len(freshIDs) > 0 {
			state.stats.TablesVisited++
		}

		for _, id := range freshIDs {
			depth := state.depthOf[id]
			if e.cfg.DepthLimit > 0 && depth >= e.cfg.DepthLimit {
				continue
			}
			e.expandOutgoing(state, meta, id, depth)
		}

		if err := e.expandIncoming(ctx, state, meta, freshIDs); err != nil {
			return nil, err
		}
	}

	state.stats.Duration = time.Since(start)
	return &Result{Records: state.records, Stats: state.stats}, nil
}

func (e *Engine) getTable(ctx context.Context, ref record.TableRef) (*pgcatalog.Table, error) {
	if t, ok := e.schema.Get(ref); ok {
		return t, nil
	}
	t, err := e.introspector.GetTable(ctx, ref)
	if err != nil {
		return nil, err
	}
	e.schema.Put(t)
	return t, nil
}

// expandOutgoing resolves every non-null outgoing FK of a just-fetched row
// into a dependency and, unless it falls under the strict self-reference
// carve-out, enqueues its target for collection.
func (e *Engine) expandOutgoing(state *engineState, meta *pgcatalog.Table, id record.Identifier, depth int) {
	data := state.records[id]
	for _, fk := range meta.OutgoingFKs {
		if e.cfg.Mode.SkipSelfReference(fk.FromTable, fk.ToTable) && !state.isSeed[id] {
			continue
		}
		values, ok := fkValues(data.ColumnValues, fk.FromColumns)
		if !ok {
			continue
		}
		target := record.NewIdentifier(fk.ToTable, values)
		data.AddDependency(target)
		if !state.visited[target] {
			state.enqueue(target, depth+1)
		}
	}
}

// expandIncoming discovers rows in referencing tables that point at the
// batch of records just fetched, batching one query per incoming FK
// definition across the whole batch.
func (e *Engine) expandIncoming(ctx context.Context, state *engineState, meta *pgcatalog.Table, freshIDs []record.Identifier) error {
	if len(freshIDs) == 0 {
		return nil
	}
	for _, fk := range meta.IncomingFKs {
		selfRef := fk.FromTable == fk.ToTable
		var driving []record.Identifier
		for _, id := range freshIDs {
			if e.cfg.Mode == record.Strict && selfRef && !state.isSeed[id] {
				continue
			}
			driving = append(driving, id)
		}
		if len(driving) == 0 {
			continue
		}

		childMeta, err := e.getTable(ctx, fk.FromTable)
		if err != nil {
			return err
		}

		rows, err := e.fetchReferencing(ctx, childMeta, fk, driving, e.cfg.Filters.For(fk.FromTable))
		if err != nil {
			return &FetchError{Table: fk.FromTable.String(), Err: err}
		}
		depth := 0
		if len(driving) > 0 {
			depth = state.depthOf[driving[0]]
		}
		for _, row := range rows {
			pkValues, ok := fkValues(row, childMeta.PrimaryKeyColumns)
			if !ok {
				continue
			}
			childID := record.NewIdentifier(fk.FromTable, pkValues)
			if !state.visited[childID] {
				state.enqueue(childID, depth+1)
			}
		}
	}
	return nil
}

func fkValues(row map[string]any, columns []string) ([]any, bool) {
	values := make([]any, len(columns))
	for i, col := range columns {
		v, ok := row[col]
		if !ok || v == nil {
			return nil, false
		}
		values[i] = v
	}
	return values, true
}
