// Package record defines the row-level data model shared across the
// introspection, traversal, sorting, remapping, and replay stages: table
// references, record identifiers, raw column data, and the scoping
// predicates that can be applied during traversal.
package record

import (
	"fmt"
	"sort"
	"strings"
)

// TableRef names a table within a schema. It is comparable and usable as
// a map key.
type TableRef struct {
	Schema string
	Name   string
}

func (t TableRef) String() string {
	if t.Schema == "" {
		return t.Name
	}
	return t.Schema + "." + t.Name
}

// Less orders table references by schema then name, for deterministic
// tie-breaking in the dependency sorter.
func (t TableRef) Less(other TableRef) bool {
	if t.Schema != other.Schema {
		return t.Schema < other.Schema
	}
	return t.Name < other.Name
}

// Identifier names a single row by table and primary-key tuple. Two
// identifiers are equal iff both components are equal element-wise.
// PK values are stored as their formatted string representation so the
// identifier is hashable regardless of the underlying column type.
type Identifier struct {
	Table TableRef
	PK    []string
}

// NewIdentifier builds an Identifier from raw primary-key values, formatting
// each to a stable string form.
func NewIdentifier(table TableRef, pkValues []any) Identifier {
	pk := make([]string, len(pkValues))
	for i, v := range pkValues {
		pk[i] = formatPKValue(v)
	}
	return Identifier{Table: table, PK: pk}
}

func formatPKValue(v any) string {
	if v == nil {
		return "\x00NULL"
	}
	if b, ok := v.([]byte); ok {
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}

// Key returns a string uniquely identifying this record, suitable for use
// as a map key where a struct key is inconvenient (e.g. in generated code
// paths that must avoid importing this package's struct directly).
func (id Identifier) Key() string {
	return id.Table.String() + "|" + strings.Join(id.PK, "\x1f")
}

// Less provides the deterministic ordering the dependency sorter uses to
// break ties: table name ascending, then PK tuple lexicographic.
func (id Identifier) Less(other Identifier) bool {
	if id.Table != other.Table {
		return id.Table.Less(other.Table)
	}
	n := len(id.PK)
	if len(other.PK) < n {
		n = len(other.PK)
	}
	for i := 0; i < n; i++ {
		if id.PK[i] != other.PK[i] {
			return id.PK[i] < other.PK[i]
		}
	}
	return len(id.PK) < len(other.PK)
}

func (id Identifier) String() string {
	return id.Table.String() + "(" + strings.Join(id.PK, ",") + ")"
}

// SortIdentifiers sorts a slice of identifiers using the deterministic
// ordering defined by Less, giving a reproducible iteration order over a
// set of identifiers; Data.DependencyList uses it.
func SortIdentifiers(ids []Identifier) {
	sort.Slice(ids, func(i, j int) bool { return ids[i].Less(ids[j]) })
}
