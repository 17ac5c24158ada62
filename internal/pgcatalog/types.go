// Package pgcatalog introspects a PostgreSQL-compatible catalog and
// materializes the schema graph the rest of the module walks: columns,
// primary keys, unique constraints, and both directions of every foreign
// key.
package pgcatalog

import (
	"bytes"
	"encoding/gob"

	"github.com/dbsmedya/pgreplay/internal/record"
)

// Column describes one table column as catalogued.
type Column struct {
	Name              string
	Ordinal           int
	DataType          string
	UDTName           string // element type for ARRAY columns, base type name for USER-DEFINED columns
	Nullable          bool
	DefaultExpression string
	IsIdentity        bool
}

// ForeignKey describes one foreign key constraint, stored on both the
// constrained ("from") table and the referenced ("to") table so either
// side's Table value carries the edge.
type ForeignKey struct {
	Name         string
	FromTable    record.TableRef
	FromColumns  []string
	ToTable      record.TableRef
	ToColumns    []string
	OnDeleteRule string
}

// UniqueSet is one unique constraint's column list.
type UniqueSet struct {
	Name    string
	Columns []string
}

// Table is a fully populated catalog table: its columns, primary key,
// unique constraints, and both outgoing and incoming foreign keys.
// IncomingFKs spans the entire reachable schema graph, not only edges
// discovered while building this particular table.
type Table struct {
	Ref                  record.TableRef
	Columns              []Column
	PrimaryKeyColumns    []string
	UniqueConstraintSets []UniqueSet
	OutgoingFKs          []ForeignKey
	IncomingFKs          []ForeignKey
}

// ColumnByName looks up a column by name, returning ok=false if absent.
func (t *Table) ColumnByName(name string) (Column, bool) {
	for _, c := range t.Columns {
		if c.Name == name {
			return c, true
		}
	}
	return Column{}, false
}

// IdentityOnlyPrimaryKey reports whether every primary-key column of this
// table is an identity column. Remapping only ever applies to such
// tables — any non-identity component disqualifies it.
func (t *Table) IdentityOnlyPrimaryKey() bool {
	if len(t.PrimaryKeyColumns) == 0 {
		return false
	}
	for _, pkCol := range t.PrimaryKeyColumns {
		col, ok := t.ColumnByName(pkCol)
		if !ok || !col.IsIdentity {
			return false
		}
	}
	return true
}

// Graph is the lazily populated (schema, name) -> Table map the
// introspector builds up over the course of a run.
type Graph struct {
	tables map[record.TableRef]*Table
}

// NewGraph creates an empty schema graph.
func NewGraph() *Graph {
	return &Graph{tables: make(map[record.TableRef]*Table)}
}

// Get returns a previously materialized table, or ok=false.
func (g *Graph) Get(ref record.TableRef) (*Table, bool) {
	t, ok := g.tables[ref]
	return t, ok
}

// Put stores a materialized table.
func (g *Graph) Put(t *Table) {
	g.tables[t.Ref] = t
}

// Tables returns every table currently materialized in the graph.
func (g *Graph) Tables() map[record.TableRef]*Table {
	return g.tables
}

// GobEncode/GobDecode let the Schema Cache persist a Graph
// via gob without exporting the backing map directly.
func (g *Graph) GobEncode() ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(g.tables); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (g *Graph) GobDecode(data []byte) error {
	g.tables = make(map[record.TableRef]*Table)
	return gob.NewDecoder(bytes.NewReader(data)).Decode(&g.tables)
}
