// Package replay implements the Replay Writer: given the dependency
// sorter's emission order, the collected records, and (when remapping is
// enabled) a PKMap, it renders a single idempotent SQL script that
// recreates the extracted subset in a target database.
package replay

import (
	"strings"

	"github.com/dbsmedya/pgreplay/internal/record"
)

// QuoteIdentifier double-quotes a Postgres identifier, doubling any
// embedded double quote.
func QuoteIdentifier(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

// QuoteTable renders a schema-qualified, quoted table reference.
func QuoteTable(ref record.TableRef) string {
	if ref.Schema == "" {
		return QuoteIdentifier(ref.Name)
	}
	return QuoteIdentifier(ref.Schema) + "." + QuoteIdentifier(ref.Name)
}

// QuoteColumns quotes and comma-joins a column list, preserving order.
func QuoteColumns(columns []string) string {
	quoted := make([]string, len(columns))
	for i, c := range columns {
		quoted[i] = QuoteIdentifier(c)
	}
	return strings.Join(quoted, ", ")
}
