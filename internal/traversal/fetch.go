package traversal

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/dbsmedya/pgreplay/internal/pgcatalog"
	"github.com/dbsmedya/pgreplay/internal/record"
)

// rowFetcher is the subset of *sql.DB the engine needs, so tests can
// substitute sqlmock's *sql.DB directly without any adapter.
type rowFetcher interface {
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
}

// fetchByPK loads full rows for a batch of identifiers of the same table,
// batching scalar primary keys into one IN(...) query per chunk and
// falling back to per-row lookups for composite keys.
func (e *Engine) fetchByPK(ctx context.Context, meta *pgcatalog.Table, ids []record.Identifier) (map[record.Identifier]map[string]any, error) {
	out := make(map[record.Identifier]map[string]any, len(ids))
	columns := columnNames(meta)

	if len(meta.PrimaryKeyColumns) == 1 {
		pkCol := meta.PrimaryKeyColumns[0]
		for start := 0; start < len(ids); start += e.cfg.BatchSize {
			end := start + e.cfg.BatchSize
			if end > len(ids) {
				end = len(ids)
			}
			chunk := ids[start:end]
			args := make([]any, len(chunk))
			placeholders := make([]string, len(chunk))
			for i, id := range chunk {
				args[i] = id.PK[0]
				placeholders[i] = fmt.Sprintf("$%d", i+1)
			}
			query := fmt.Sprintf("SELECT %s FROM %s WHERE %s IN (%s)",
				strings.Join(quoteAll(columns), ", "),
				quoteTable(meta.Ref),
				quoteIdent(pkCol),
				strings.Join(placeholders, ", "))

			rows, err := e.fetcher.QueryContext(ctx, query, args...)
			if err != nil {
				return nil, err
			}
			if err := scanInto(rows, columns, meta, out); err != nil {
				return nil, err
			}
		}
		return out, nil
	}

	for _, id := range ids {
		clauses := make([]string, len(meta.PrimaryKeyColumns))
		args := make([]any, len(meta.PrimaryKeyColumns))
		for i, col := range meta.PrimaryKeyColumns {
			clauses[i] = fmt.Sprintf("%s = $%d", quoteIdent(col), i+1)
			args[i] = id.PK[i]
		}
		query := fmt.Sprintf("SELECT %s FROM %s WHERE %s",
			strings.Join(quoteAll(columns), ", "),
			quoteTable(meta.Ref),
			strings.Join(clauses, " AND "))

		rows, err := e.fetcher.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		if err := scanInto(rows, columns, meta, out); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// fetchReferencing loads every row of a referencing table whose foreign
// key columns match one of the driving identifiers' target columns,
// with an optional timeframe filter applied to the referencing table.
func (e *Engine) fetchReferencing(ctx context.Context, meta *pgcatalog.Table, fk pgcatalog.ForeignKey, driving []record.Identifier, filters []record.TimeframeFilter) ([]map[string]any, error) {
	columns := columnNames(meta)
	var results []map[string]any

	for start := 0; start < len(driving); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(driving) {
			end = len(driving)
		}
		chunk := driving[start:end]

		var whereClause string
		var args []any
		if len(fk.FromColumns) == 1 {
			placeholders := make([]string, len(chunk))
			for i, id := range chunk {
				args = append(args, id.PK[0])
				placeholders[i] = fmt.Sprintf("$%d", len(args))
			}
			whereClause = fmt.Sprintf("%s IN (%s)", quoteIdent(fk.FromColumns[0]), strings.Join(placeholders, ", "))
		} else {
			tuples := make([]string, len(chunk))
			for i, id := range chunk {
				parts := make([]string, len(fk.FromColumns))
				for j := range fk.FromColumns {
					args = append(args, id.PK[j])
					parts[j] = fmt.Sprintf("$%d", len(args))
				}
				tuples[i] = "(" + strings.Join(parts, ", ") + ")"
			}
			whereClause = fmt.Sprintf("(%s) IN (%s)", strings.Join(quoteAll(fk.FromColumns), ", "), strings.Join(tuples, ", "))
		}

		for _, f := range filters {
			args = append(args, f.Lower, f.Upper)
			whereClause += fmt.Sprintf(" AND %s BETWEEN $%d AND $%d", quoteIdent(f.Column), len(args)-1, len(args))
		}

		query := fmt.Sprintf("SELECT %s FROM %s WHERE %s",
			strings.Join(quoteAll(columns), ", "),
			quoteTable(meta.Ref),
			whereClause)

		rows, err := e.fetcher.QueryContext(ctx, query, args...)
		if err != nil {
			return nil, err
		}
		chunkRows, err := scanRows(rows, columns)
		if err != nil {
			return nil, err
		}
		results = append(results, chunkRows...)
	}
	return results, nil
}

func columnNames(meta *pgcatalog.Table) []string {
	names := make([]string, len(meta.Columns))
	for i, c := range meta.Columns {
		names[i] = c.Name
	}
	return names
}

// scanInto reads rows and indexes them by the table's primary key into out.
func scanInto(rows *sql.Rows, columns []string, meta *pgcatalog.Table, out map[record.Identifier]map[string]any) error {
	values, err := scanRows(rows, columns)
	if err != nil {
		return err
	}
	for _, row := range values {
		pkValues, ok := fkValues(row, meta.PrimaryKeyColumns)
		if !ok {
			continue
		}
		id := record.NewIdentifier(meta.Ref, pkValues)
		out[id] = row
	}
	return nil
}

func scanRows(rows *sql.Rows, columns []string) ([]map[string]any, error) {
	defer rows.Close()
	var out []map[string]any
	for rows.Next() {
		dest := make([]any, len(columns))
		ptrs := make([]any, len(columns))
		for i := range dest {
			ptrs[i] = &dest[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		row := make(map[string]any, len(columns))
		for i, col := range columns {
			row[col] = dest[i]
		}
		out = append(out, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return out, nil
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}

func quoteAll(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = quoteIdent(n)
	}
	return out
}

func quoteTable(ref record.TableRef) string {
	if ref.Schema == "" {
		return quoteIdent(ref.Name)
	}
	return quoteIdent(ref.Schema) + "." + quoteIdent(ref.Name)
}
