package traversal

import (
	"context"
	"strings"
)

// validateFilters checks every configured timeframe filter's column
// against the live catalog before traversal starts, so a typo'd column
// name fails fast with InvalidFilterError rather than surfacing as a
// confusing SQL error mid-run.
func (e *Engine) validateFilters(ctx context.Context) error {
	if e.cfg.Filters == nil {
		return nil
	}
	for _, table := range e.cfg.Filters.Tables() {
		meta, err := e.getTable(ctx, table)
		if err != nil {
			return err
		}
		for _, f := range e.cfg.Filters.For(table) {
			col, ok := meta.ColumnByName(f.Column)
			if !ok {
				return &InvalidFilterError{Table: table.String(), Column: f.Column, Reason: "column not found"}
			}
			if !isTemporalType(col.DataType) {
				return &InvalidFilterError{Table: table.String(), Column: f.Column, Reason: "column is not a date/time type: " + col.DataType}
			}
		}
	}
	return nil
}

func isTemporalType(dataType string) bool {
	t := strings.ToLower(dataType)
	return strings.Contains(t, "timestamp") || strings.Contains(t, "date") || strings.Contains(t, "time")
}
