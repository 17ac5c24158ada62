// Package remap implements the PK Remapper: for tables whose primary key
// is composed entirely of identity columns, it allocates a placeholder
// token per record and propagates that token to every FK column that
// points at the remapped row, so the Replay Writer can emit a procedural
// insert-then-capture block instead of a literal PK value.
package remap

import (
	"fmt"

	"github.com/dbsmedya/pgreplay/internal/depgraph"
	"github.com/dbsmedya/pgreplay/internal/pgcatalog"
	"github.com/dbsmedya/pgreplay/internal/record"
)

// CycleDetected is returned when remapping is enabled but the record
// graph contains a true value cycle: row A's placeholder would depend
// on row B's identity and vice versa, which no procedural capture order
// can resolve. Unlike a table-level FK cycle, which the sorter and
// replay writer can defer around, this is fatal.
type CycleDetected struct {
	Sample record.Identifier
}

func (e *CycleDetected) Error() string {
	return fmt.Sprintf("remapping requires an acyclic record graph; %s participates in a cycle", e.Sample)
}

// PKMap is the immutable-once-built RecordIdentifier -> placeholder token
// mapping produced by a remapping run. Only identifiers whose table has an
// identity-only primary key appear here; every other identifier passes
// through the replay writer with its literal PK value.
type PKMap struct {
	tokens map[record.Identifier]string
}

// Token returns the placeholder token for id, if it was remapped.
func (m *PKMap) Token(id record.Identifier) (string, bool) {
	if m == nil {
		return "", false
	}
	t, ok := m.tokens[id]
	return t, ok
}

// Len reports how many records were remapped.
func (m *PKMap) Len() int {
	if m == nil {
		return 0
	}
	return len(m.tokens)
}

// tokenFor builds a deterministic, SQL-identifier-safe placeholder name
// for a record, scoped to the replay script's procedural block. Using the
// table name and an ordinal (rather than the PK value itself) keeps the
// token stable in shape regardless of the underlying PK type.
func tokenFor(id record.Identifier, ordinal int) string {
	return fmt.Sprintf("pk_%s_%d", sanitize(id.Table.Name), ordinal)
}

func sanitize(name string) string {
	out := make([]byte, len(name))
	for i := 0; i < len(name); i++ {
		c := name[i]
		switch {
		case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
			out[i] = c
		default:
			out[i] = '_'
		}
	}
	return string(out)
}

// Build walks every collected record in topological order (sorted.Order)
// and allocates a placeholder token for each one whose table has an
// identity-only primary key, per meta. It returns CycleDetected if any
// record the sorter force-emitted to break a cycle (sorted.Cyclic) belongs
// to such a remappable table — remapping's capture-then-reference order
// cannot survive a true record-value cycle.
func Build(sorted *depgraph.SortResult, records map[record.Identifier]*record.Data, tables map[record.TableRef]*pgcatalog.Table) (*PKMap, error) {
	m := &PKMap{tokens: make(map[record.Identifier]string)}

	ordinals := make(map[record.TableRef]int)
	for _, id := range sorted.Order {
		meta, ok := tables[id.Table]
		if !ok || !meta.IdentityOnlyPrimaryKey() {
			continue
		}
		if sorted.Cyclic[id] {
			return nil, &CycleDetected{Sample: id}
		}
		ordinals[id.Table]++
		m.tokens[id] = tokenFor(id, ordinals[id.Table])
	}

	return m, nil
}
