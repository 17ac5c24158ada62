// Package ddlgen generates the optional DDL prelude a replay script can
// carry ahead of its data: CREATE SCHEMA and CREATE TABLE statements in
// dependency order, with cyclic constraints deferred to trailing ALTER
// TABLE statements. It builds on the topological order internal/depgraph
// already produces and reuses internal/replay's identifier quoting rather
// than inventing a second quoting convention.
package ddlgen

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dbsmedya/pgreplay/internal/depgraph"
	"github.com/dbsmedya/pgreplay/internal/pgcatalog"
	"github.com/dbsmedya/pgreplay/internal/record"
	"github.com/dbsmedya/pgreplay/internal/replay"
)

// TableOrder derives a table-level creation order and cycle set from the
// Dependency Sorter's record-level result: each table's position is its
// first occurrence in sorted.Order, and a table is cyclic if any of its
// records were force-emitted to break a cycle. This reuses
// internal/depgraph's output directly rather than re-running a second
// topological sort at table granularity — record-level order already
// respects every table-level FK edge that produced it.
func TableOrder(sorted *depgraph.SortResult) ([]record.TableRef, map[record.TableRef]bool) {
	seen := make(map[record.TableRef]bool)
	cyclic := make(map[record.TableRef]bool)
	var order []record.TableRef
	for _, id := range sorted.Order {
		if !seen[id.Table] {
			seen[id.Table] = true
			order = append(order, id.Table)
		}
		if sorted.Cyclic[id] {
			cyclic[id.Table] = true
		}
	}
	return order, cyclic
}

// Generator renders CREATE statements for the subset of tables a
// traversal run touched.
type Generator struct {
	tables map[record.TableRef]*pgcatalog.Table
}

// New creates a Generator over the schema graph a run collected.
func New(tables map[record.TableRef]*pgcatalog.Table) *Generator {
	return &Generator{tables: tables}
}

// Write renders the DDL prelude: CREATE DATABASE (unconditional — Postgres
// rejects IF NOT EXISTS on it, so this statement is emitted best-effort
// and a failure here is expected when the database already exists),
// CREATE SCHEMA IF NOT EXISTS per referenced schema, then CREATE TABLE IF
// NOT EXISTS per table in tableOrder (as derived by TableOrder from the
// Dependency Sorter's record-level order: each table at the position of
// its first emitted record). Constraints
// belonging to any table in cyclic are deferred to trailing ALTER TABLE
// statements emitted after every table exists.
func (g *Generator) Write(out io.Writer, database string, tableOrder []record.TableRef, cyclic map[record.TableRef]bool) error {
	bw := &lineWriter{out: out}

	if database != "" {
		bw.writeLine(fmt.Sprintf("CREATE DATABASE %s;", replay.QuoteIdentifier(database)))
	}

	for _, schema := range g.schemas(tableOrder) {
		bw.writeLine(fmt.Sprintf("CREATE SCHEMA IF NOT EXISTS %s;", replay.QuoteIdentifier(schema)))
	}

	var deferred []string
	for _, ref := range tableOrder {
		meta, ok := g.tables[ref]
		if !ok {
			continue
		}
		stmt, alters := g.createTable(meta, cyclic[ref])
		bw.writeLine(stmt)
		deferred = append(deferred, alters...)
	}

	for _, stmt := range deferred {
		bw.writeLine(stmt)
	}

	return bw.err
}

func (g *Generator) schemas(tableOrder []record.TableRef) []string {
	seen := make(map[string]bool)
	var out []string
	for _, ref := range tableOrder {
		if ref.Schema == "" || seen[ref.Schema] {
			continue
		}
		seen[ref.Schema] = true
		out = append(out, ref.Schema)
	}
	sort.Strings(out)
	return out
}

// createTable renders one CREATE TABLE IF NOT EXISTS statement. FK
// constraints on a table participating in a cycle are omitted from the
// CREATE TABLE body and returned instead as separate ALTER TABLE
// statements, since a cyclic pair of tables cannot each reference the
// other inline at creation time.
func (g *Generator) createTable(meta *pgcatalog.Table, cyclic bool) (string, []string) {
	var cols []string
	for _, c := range meta.Columns {
		cols = append(cols, columnDefinition(c))
	}
	if len(meta.PrimaryKeyColumns) > 0 {
		cols = append(cols, fmt.Sprintf("PRIMARY KEY (%s)", replay.QuoteColumns(meta.PrimaryKeyColumns)))
	}

	var alters []string
	if !cyclic {
		for _, fk := range meta.OutgoingFKs {
			cols = append(cols, foreignKeyClause(fk))
		}
	} else {
		for _, fk := range meta.OutgoingFKs {
			alters = append(alters, fmt.Sprintf(
				"ALTER TABLE %s ADD CONSTRAINT %s %s;",
				replay.QuoteTable(meta.Ref), replay.QuoteIdentifier(fk.Name), foreignKeyClause(fk)))
		}
	}

	stmt := fmt.Sprintf("CREATE TABLE IF NOT EXISTS %s (\n  %s\n);",
		replay.QuoteTable(meta.Ref), strings.Join(cols, ",\n  "))
	return stmt, alters
}

func columnDefinition(c pgcatalog.Column) string {
	def := fmt.Sprintf("%s %s", replay.QuoteIdentifier(c.Name), sqlType(c))
	if c.IsIdentity {
		def += " GENERATED BY DEFAULT AS IDENTITY"
	}
	if !c.Nullable {
		def += " NOT NULL"
	}
	return def
}

func sqlType(c pgcatalog.Column) string {
	if c.DataType == "ARRAY" {
		return strings.TrimPrefix(c.UDTName, "_") + "[]"
	}
	return c.DataType
}

func foreignKeyClause(fk pgcatalog.ForeignKey) string {
	clause := fmt.Sprintf("FOREIGN KEY (%s) REFERENCES %s (%s)",
		replay.QuoteColumns(fk.FromColumns), replay.QuoteTable(fk.ToTable), replay.QuoteColumns(fk.ToColumns))
	if fk.OnDeleteRule != "" && fk.OnDeleteRule != "NO ACTION" {
		clause += " ON DELETE " + fk.OnDeleteRule
	}
	return clause
}

type lineWriter struct {
	out io.Writer
	err error
}

func (w *lineWriter) writeLine(s string) {
	if w.err != nil {
		return
	}
	_, w.err = io.WriteString(w.out, s+"\n")
}
