package record

// Data holds one collected row: its identity, its raw column values keyed
// by column name, and the set of other records it depends on through
// resolved outgoing foreign keys.
//
// A Data value is created when the row is first fetched and is mutated
// only to add newly discovered dependencies until traversal closes; the
// caller is responsible for treating it as frozen afterward.
type Data struct {
	Identifier   Identifier
	ColumnValues map[string]any
	Dependencies map[Identifier]struct{}

	// Depth is the BFS depth at which this record was first visited,
	// preserved for diagnostics and for enforcing an optional depth limit.
	Depth int
}

// NewData creates a Data value for the given identity and column values,
// with an empty dependency set.
func NewData(id Identifier, columnValues map[string]any, depth int) *Data {
	return &Data{
		Identifier:   id,
		ColumnValues: columnValues,
		Dependencies: make(map[Identifier]struct{}),
		Depth:        depth,
	}
}

// AddDependency records that this record depends on target via a resolved
// outgoing foreign key.
func (d *Data) AddDependency(target Identifier) {
	d.Dependencies[target] = struct{}{}
}

// DependencyList returns the dependency set as a deterministically ordered
// slice.
func (d *Data) DependencyList() []Identifier {
	out := make([]Identifier, 0, len(d.Dependencies))
	for dep := range d.Dependencies {
		out = append(out, dep)
	}
	SortIdentifiers(out)
	return out
}
