package record

// Mode selects how the traversal engine treats self-referencing foreign
// key edges.
type Mode int

const (
	// Strict does not follow self-referencing FK edges after the seed.
	// This is the default: the user typically wants "this record and its
	// dependencies", not "this record and its siblings".
	Strict Mode = iota
	// Wide follows all FK edges uniformly, including self-references.
	Wide
)

func (m Mode) String() string {
	if m == Wide {
		return "wide"
	}
	return "strict"
}

// SkipSelfReference reports whether an edge from a table to itself should
// be skipped for enqueue purposes under this mode.
func (m Mode) SkipSelfReference(fromTable, toTable TableRef) bool {
	return m == Strict && fromTable == toTable
}
