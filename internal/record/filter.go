package record

// TimeframeFilter scopes which rows of a table are admitted to the
// traversal, by column and inclusive [Lower, Upper] bound.
// Bounds are carried as their literal string form (already validated and
// formatted by the caller against the column's declared type) so this
// package has no dependency on any particular time representation.
type TimeframeFilter struct {
	Table  TableRef
	Column string
	Lower  string
	Upper  string
}

// FilterSet indexes filters by table for fast lookup during traversal.
type FilterSet struct {
	byTable map[TableRef][]TimeframeFilter
}

// NewFilterSet builds a FilterSet from a list of filters.
func NewFilterSet(filters []TimeframeFilter) *FilterSet {
	fs := &FilterSet{byTable: make(map[TableRef][]TimeframeFilter)}
	for _, f := range filters {
		fs.byTable[f.Table] = append(fs.byTable[f.Table], f)
	}
	return fs
}

// For returns the filters that apply to a given table, or nil if none.
// A filter on a table the traversal never reaches is simply never looked
// up, and is therefore inert.
func (fs *FilterSet) For(table TableRef) []TimeframeFilter {
	if fs == nil {
		return nil
	}
	return fs.byTable[table]
}

// Tables returns every table that has at least one filter, for upfront
// validation before traversal begins.
func (fs *FilterSet) Tables() []TableRef {
	if fs == nil {
		return nil
	}
	out := make([]TableRef, 0, len(fs.byTable))
	for t := range fs.byTable {
		out = append(out, t)
	}
	return out
}
