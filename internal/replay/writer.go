package replay

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"github.com/dbsmedya/pgreplay/internal/pgcatalog"
	"github.com/dbsmedya/pgreplay/internal/record"
	"github.com/dbsmedya/pgreplay/internal/remap"
)

// Config controls how a Writer renders the replay stream.
type Config struct {
	// PKMap is non-nil when PK remapping is enabled. A nil or
	// empty PKMap means every insert carries its literal PK value.
	PKMap *remap.PKMap
	// Cyclic marks the identifiers the sorter could only emit by forcing
	// a dependency cycle. Only meaningful when PKMap is nil: those rows'
	// constraints are deferred rather than remapped away.
	Cyclic map[record.Identifier]bool
}

// Writer renders a topologically ordered record set as a single SQL
// replay script. It borrows records and schema metadata for
// the duration of one Write call and retains nothing afterward.
type Writer struct {
	tables map[record.TableRef]*pgcatalog.Table
	cfg    Config
}

// New creates a Writer bound to the schema metadata gathered during
// traversal (one Table per table the run touched).
func New(tables map[record.TableRef]*pgcatalog.Table, cfg Config) *Writer {
	return &Writer{tables: tables, cfg: cfg}
}

// Write renders order (the Dependency Sorter's emission order) against
// records into out as one BEGIN…COMMIT script.
func (w *Writer) Write(out io.Writer, order []record.Identifier, records map[record.Identifier]*record.Data) error {
	bw := &bufWriter{out: out}

	bw.writeLine("BEGIN;")
	if w.cfg.PKMap == nil || w.cfg.PKMap.Len() == 0 {
		if hasAny(w.cfg.Cyclic) {
			bw.writeLine("SET CONSTRAINTS ALL DEFERRED;")
		}
		for _, id := range order {
			if err := w.writePlainInsert(bw, id, records); err != nil {
				return err
			}
		}
	} else {
		if err := w.writeRemappedBlock(bw, order, records); err != nil {
			return err
		}
	}
	bw.writeLine("COMMIT;")

	return bw.err
}

func hasAny(m map[record.Identifier]bool) bool {
	for _, v := range m {
		if v {
			return true
		}
	}
	return false
}

// writePlainInsert emits one literal-valued INSERT with an on-conflict-
// do-nothing clause keyed on the table's primary key — the default
// conflict semantics when remapping is disabled.
func (w *Writer) writePlainInsert(bw *bufWriter, id record.Identifier, records map[record.Identifier]*record.Data) error {
	data, ok := records[id]
	if !ok {
		return nil
	}
	meta, ok := w.tables[id.Table]
	if !ok {
		return fmt.Errorf("replay: no schema metadata for %s", id.Table)
	}

	cols, vals := w.renderColumns(meta, data, nil)
	stmt := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		QuoteTable(id.Table), QuoteColumns(cols), strings.Join(vals, ", "))
	if len(meta.PrimaryKeyColumns) > 0 {
		stmt += fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", QuoteColumns(meta.PrimaryKeyColumns))
	}
	bw.writeLine(stmt + ";")
	return nil
}

// writeRemappedBlock wraps the whole ordered set in one PL/pgSQL DO
// block: a local variable per remapped record captures its
// target-assigned PK via RETURNING, and any FK column pointing at a
// remapped identifier is rendered as that variable name rather than a
// literal. Non-remapped rows are inserted the same way as writePlainInsert
// but from inside the block, since they may still be referenced by a
// remapped row's non-identity FK (natural-keyed dependents).
func (w *Writer) writeRemappedBlock(bw *bufWriter, order []record.Identifier, records map[record.Identifier]*record.Data) error {
	bw.writeLine("DO $$")
	bw.writeLine("DECLARE")
	for _, decl := range w.declarations(order, records) {
		bw.writeLine("  " + decl)
	}
	bw.writeLine("BEGIN")

	for _, id := range order {
		data, ok := records[id]
		if !ok {
			continue
		}
		meta, ok := w.tables[id.Table]
		if !ok {
			return fmt.Errorf("replay: no schema metadata for %s", id.Table)
		}

		token, remapped := w.cfg.PKMap.Token(id)
		if !remapped {
			cols, vals := w.renderColumns(meta, data, nil)
			stmt := fmt.Sprintf("  INSERT INTO %s (%s) VALUES (%s)",
				QuoteTable(id.Table), QuoteColumns(cols), strings.Join(vals, ", "))
			if len(meta.PrimaryKeyColumns) > 0 {
				stmt += fmt.Sprintf(" ON CONFLICT (%s) DO NOTHING", QuoteColumns(meta.PrimaryKeyColumns))
			}
			bw.writeLine(stmt + ";")
			continue
		}

		w.writeRemappedInsert(bw, id, meta, data, token)
	}

	bw.writeLine("END $$;")
	return nil
}

// writeRemappedInsert emits one remapped record's insert: the PK columns
// are omitted so the target sequence assigns a fresh value, captured via
// RETURNING into the record's placeholder variable. If the table has a
// unique constraint besides its PK, a conflict on that constraint falls
// back to looking the existing row up by it: the procedural block
// handles conflicts via RETURNING and the fallback SELECT.
func (w *Writer) writeRemappedInsert(bw *bufWriter, id record.Identifier, meta *pgcatalog.Table, data *record.Data, token string) {
	pkSet := make(map[string]bool, len(meta.PrimaryKeyColumns))
	for _, c := range meta.PrimaryKeyColumns {
		pkSet[c] = true
	}
	cols, vals := w.renderColumns(meta, data, pkSet)

	insert := fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s) RETURNING %s INTO %s",
		QuoteTable(id.Table), QuoteColumns(cols), strings.Join(vals, ", "),
		QuoteColumns(meta.PrimaryKeyColumns), token)

	fallback, ok := w.fallbackSelect(meta, data, token)
	if !ok {
		bw.writeLine("  " + insert + ";")
		return
	}

	bw.writeLine("  BEGIN")
	bw.writeLine("    " + insert + ";")
	bw.writeLine("  EXCEPTION WHEN unique_violation THEN")
	bw.writeLine("    " + fallback + ";")
	bw.writeLine("  END;")
}

// fallbackSelect builds the "row already exists" lookup used when a
// remapped insert's RETURNING path hits a unique-constraint conflict. It
// prefers the table's first non-PK unique constraint; lacking one, it
// falls back to matching every non-null column value the record carries,
// which is sound but potentially over-selective for wide tables.
func (w *Writer) fallbackSelect(meta *pgcatalog.Table, data *record.Data, token string) (string, bool) {
	var keyCols []string
	for _, u := range meta.UniqueConstraintSets {
		if !sameColumns(u.Columns, meta.PrimaryKeyColumns) {
			keyCols = u.Columns
			break
		}
	}
	if keyCols == nil {
		for _, c := range meta.Columns {
			if pkContains(meta.PrimaryKeyColumns, c.Name) {
				continue
			}
			if v, ok := data.ColumnValues[c.Name]; ok && v != nil {
				keyCols = append(keyCols, c.Name)
			}
		}
	}
	if len(keyCols) == 0 {
		return "", false
	}

	var preds []string
	for _, c := range keyCols {
		col, _ := meta.ColumnByName(c)
		preds = append(preds, fmt.Sprintf("%s = %s", QuoteIdentifier(c), FormatLiteral(data.ColumnValues[c], col.DataType, col.UDTName)))
	}
	pk := meta.PrimaryKeyColumns[0]
	return fmt.Sprintf("SELECT %s INTO %s FROM %s WHERE %s",
		QuoteIdentifier(pk), token, QuoteTable(meta.Ref), strings.Join(preds, " AND ")), true
}

func sameColumns(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func pkContains(pk []string, col string) bool {
	for _, c := range pk {
		if c == col {
			return true
		}
	}
	return false
}

// renderColumns builds the explicit column list and literal (or token)
// values for one record, in the table's declared ordinal order, skipping
// any column in skip (used to omit PK columns from a remapped insert).
func (w *Writer) renderColumns(meta *pgcatalog.Table, data *record.Data, skip map[string]bool) ([]string, []string) {
	fkByColumn := w.singleColumnFKs(meta)

	var cols, vals []string
	for _, col := range meta.Columns {
		if skip[col.Name] {
			continue
		}
		cols = append(cols, col.Name)

		if fk, ok := fkByColumn[col.Name]; ok {
			target := record.NewIdentifier(fk.ToTable, []any{data.ColumnValues[col.Name]})
			if token, ok := w.cfg.PKMap.Token(target); ok {
				vals = append(vals, token)
				continue
			}
		}
		vals = append(vals, FormatLiteral(data.ColumnValues[col.Name], col.DataType, col.UDTName))
	}
	return cols, vals
}

// singleColumnFKs indexes this table's single-column outgoing foreign
// keys by their column name. Composite FKs are excluded: a placeholder
// substitution for one column of a multi-column FK would leave the
// others as stale literals, so those are always rendered literally.
func (w *Writer) singleColumnFKs(meta *pgcatalog.Table) map[string]pgcatalog.ForeignKey {
	out := make(map[string]pgcatalog.ForeignKey)
	for _, fk := range meta.OutgoingFKs {
		if len(fk.FromColumns) == 1 {
			out[fk.FromColumns[0]] = fk
		}
	}
	return out
}

// declarations builds one %TYPE-anchored variable declaration per
// remapped record, sorted by variable name for a deterministic script.
func (w *Writer) declarations(order []record.Identifier, records map[record.Identifier]*record.Data) []string {
	var decls []string
	for _, id := range order {
		if _, ok := records[id]; !ok {
			continue
		}
		token, ok := w.cfg.PKMap.Token(id)
		if !ok {
			continue
		}
		meta, ok := w.tables[id.Table]
		if !ok || len(meta.PrimaryKeyColumns) == 0 {
			continue
		}
		decls = append(decls, fmt.Sprintf("%s %s.%s%%TYPE;", token, QuoteTable(id.Table), QuoteIdentifier(meta.PrimaryKeyColumns[0])))
	}
	sort.Strings(decls)
	return decls
}

// bufWriter accumulates the first write error so callers can chain
// writeLine calls without checking after every line, mirroring the
// teacher's own straight-line SQL builder style.
type bufWriter struct {
	out io.Writer
	err error
}

func (b *bufWriter) writeLine(s string) {
	if b.err != nil {
		return
	}
	_, b.err = io.WriteString(b.out, s+"\n")
}
