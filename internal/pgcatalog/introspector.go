package pgcatalog

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"github.com/elliotchance/orderedmap/v2"

	"github.com/dbsmedya/pgreplay/internal/record"
)

// Introspector queries a PostgreSQL-compatible catalog and materializes
// Table values on demand.
type Introspector struct {
	db     *sql.DB
	schema string
}

// New creates an Introspector bound to a connection and a default schema
// (used when a TableRef is constructed without one).
func New(db *sql.DB, defaultSchema string) *Introspector {
	if defaultSchema == "" {
		defaultSchema = "public"
	}
	return &Introspector{db: db, schema: defaultSchema}
}

// ListTables returns every base table in the given schema.
func (in *Introspector) ListTables(ctx context.Context, schema string) ([]record.TableRef, error) {
	if schema == "" {
		schema = in.schema
	}
	const q = `
		SELECT table_name
		FROM information_schema.tables
		WHERE table_schema = $1 AND table_type = 'BASE TABLE'
		ORDER BY table_name`

	rows, err := in.db.QueryContext(ctx, q, schema)
	if err != nil {
		return nil, &IntrospectionError{Stage: "list_tables", Err: err}
	}
	defer rows.Close()

	var refs []record.TableRef
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			return nil, &IntrospectionError{Stage: "list_tables scan", Err: err}
		}
		refs = append(refs, record.TableRef{Schema: schema, Name: name})
	}
	if err := rows.Err(); err != nil {
		return nil, &IntrospectionError{Stage: "list_tables iterate", Err: err}
	}
	return refs, nil
}

// GetTable returns a fully populated Table, including incoming foreign
// keys discovered by scanning every foreign-key constraint in the
// schema. It never returns a partially populated Table: any catalog
// query failure aborts with IntrospectionError, and a missing table
// fails with NotFoundError.
func (in *Introspector) GetTable(ctx context.Context, ref record.TableRef) (*Table, error) {
	schema := ref.Schema
	if schema == "" {
		schema = in.schema
		ref.Schema = schema
	}

	exists, err := in.tableExists(ctx, ref)
	if err != nil {
		return nil, err
	}
	if !exists {
		return nil, &NotFoundError{Ref: ref.String()}
	}

	columns, err := in.columns(ctx, ref)
	if err != nil {
		return nil, err
	}
	pk, err := in.primaryKeyColumns(ctx, ref)
	if err != nil {
		return nil, err
	}
	unique, err := in.uniqueConstraints(ctx, ref)
	if err != nil {
		return nil, err
	}
	outgoing, err := in.foreignKeys(ctx, schema, "tc.table_name = $2", ref.Name)
	if err != nil {
		return nil, err
	}
	incoming, err := in.foreignKeys(ctx, schema, "ccu.table_name = $2", ref.Name)
	if err != nil {
		return nil, err
	}

	return &Table{
		Ref:                  ref,
		Columns:              columns,
		PrimaryKeyColumns:    pk,
		UniqueConstraintSets: unique,
		OutgoingFKs:          outgoing,
		IncomingFKs:          incoming,
	}, nil
}

func (in *Introspector) tableExists(ctx context.Context, ref record.TableRef) (bool, error) {
	const q = `
		SELECT 1 FROM information_schema.tables
		WHERE table_schema = $1 AND table_name = $2 AND table_type = 'BASE TABLE'`
	var one int
	err := in.db.QueryRowContext(ctx, q, ref.Schema, ref.Name).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, &IntrospectionError{Stage: "table_exists", Err: err}
	}
	return true, nil
}

func (in *Introspector) columns(ctx context.Context, ref record.TableRef) ([]Column, error) {
	const q = `
		SELECT column_name, ordinal_position, data_type, udt_name, is_nullable = 'YES',
		       COALESCE(column_default, ''), is_identity = 'YES'
		FROM information_schema.columns
		WHERE table_schema = $1 AND table_name = $2
		ORDER BY ordinal_position`

	rows, err := in.db.QueryContext(ctx, q, ref.Schema, ref.Name)
	if err != nil {
		return nil, &IntrospectionError{Stage: "columns", Err: err}
	}
	defer rows.Close()

	// Kept in an ordered map so callers that need name-keyed lookups still
	// see catalog ordinal order when they range over it; several
	// downstream components depend on column order following the
	// declared ordinal.
	ordered := orderedmap.NewOrderedMap[string, Column]()
	for rows.Next() {
		var c Column
		var isIdentity bool
		if err := rows.Scan(&c.Name, &c.Ordinal, &c.DataType, &c.UDTName, &c.Nullable, &c.DefaultExpression, &isIdentity); err != nil {
			return nil, &IntrospectionError{Stage: "columns scan", Err: err}
		}
		c.IsIdentity = isIdentity || isSequenceDefault(c.DefaultExpression)
		ordered.Set(c.Name, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &IntrospectionError{Stage: "columns iterate", Err: err}
	}

	out := make([]Column, 0, ordered.Len())
	for el := ordered.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value)
	}
	return out, nil
}

// isSequenceDefault recognizes the classic serial/bigserial shape
// (nextval('seq'::regclass)) for catalogs whose is_identity flag predates
// GENERATED ... AS IDENTITY columns.
func isSequenceDefault(defaultExpr string) bool {
	return strings.HasPrefix(defaultExpr, "nextval(")
}

func (in *Introspector) primaryKeyColumns(ctx context.Context, ref record.TableRef) ([]string, error) {
	const q = `
		SELECT kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = $1 AND tc.table_name = $2 AND tc.constraint_type = 'PRIMARY KEY'
		ORDER BY kcu.ordinal_position`

	rows, err := in.db.QueryContext(ctx, q, ref.Schema, ref.Name)
	if err != nil {
		return nil, &IntrospectionError{Stage: "primary_key", Err: err}
	}
	defer rows.Close()

	var cols []string
	for rows.Next() {
		var c string
		if err := rows.Scan(&c); err != nil {
			return nil, &IntrospectionError{Stage: "primary_key scan", Err: err}
		}
		cols = append(cols, c)
	}
	if err := rows.Err(); err != nil {
		return nil, &IntrospectionError{Stage: "primary_key iterate", Err: err}
	}
	return cols, nil
}

func (in *Introspector) uniqueConstraints(ctx context.Context, ref record.TableRef) ([]UniqueSet, error) {
	const q = `
		SELECT tc.constraint_name, kcu.column_name
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		WHERE tc.table_schema = $1 AND tc.table_name = $2 AND tc.constraint_type = 'UNIQUE'
		ORDER BY tc.constraint_name, kcu.ordinal_position`

	rows, err := in.db.QueryContext(ctx, q, ref.Schema, ref.Name)
	if err != nil {
		return nil, &IntrospectionError{Stage: "unique_constraints", Err: err}
	}
	defer rows.Close()

	sets := orderedmap.NewOrderedMap[string, *UniqueSet]()
	for rows.Next() {
		var name, col string
		if err := rows.Scan(&name, &col); err != nil {
			return nil, &IntrospectionError{Stage: "unique_constraints scan", Err: err}
		}
		set, ok := sets.Get(name)
		if !ok {
			set = &UniqueSet{Name: name}
			sets.Set(name, set)
		}
		set.Columns = append(set.Columns, col)
	}
	if err := rows.Err(); err != nil {
		return nil, &IntrospectionError{Stage: "unique_constraints iterate", Err: err}
	}

	out := make([]UniqueSet, 0, sets.Len())
	for el := sets.Front(); el != nil; el = el.Next() {
		out = append(out, *el.Value)
	}
	return out, nil
}

// foreignKeys returns composite-key-aware FK constraints matching the
// given side predicate ("tc.table_name = $2" for outgoing, "ccu.table_name
// = $2" for incoming), grouping the key_column_usage rows by constraint
// name since a single composite FK produces one catalog row per column
// pair. The referencing side (kcu) is paired with the referenced side
// (ccu, a second key_column_usage aliased onto the unique/PK constraint
// rc points at) by position rather than by constraint name alone:
// kcu.position_in_unique_constraint is the ordinal of the referenced
// column within that unique constraint, so matching it against
// ccu.ordinal_position pairs column N of the FK with column N of the
// referenced key instead of joining every FROM column against every TO
// column.
func (in *Introspector) foreignKeys(ctx context.Context, schema, sidePredicate, tableName string) ([]ForeignKey, error) {
	q := fmt.Sprintf(`
		SELECT
			tc.constraint_name,
			tc.table_name      AS from_table,
			kcu.column_name    AS from_column,
			kcu.ordinal_position,
			ccu.table_name     AS to_table,
			ccu.column_name    AS to_column,
			rc.delete_rule
		FROM information_schema.table_constraints tc
		JOIN information_schema.key_column_usage kcu
		  ON tc.constraint_name = kcu.constraint_name AND tc.table_schema = kcu.table_schema
		JOIN information_schema.referential_constraints rc
		  ON tc.constraint_name = rc.constraint_name AND tc.table_schema = rc.constraint_schema
		JOIN information_schema.key_column_usage ccu
		  ON rc.unique_constraint_name = ccu.constraint_name
		 AND rc.unique_constraint_schema = ccu.constraint_schema
		 AND kcu.position_in_unique_constraint = ccu.ordinal_position
		WHERE tc.constraint_type = 'FOREIGN KEY' AND tc.table_schema = $1 AND %s
		ORDER BY tc.constraint_name, kcu.ordinal_position`, sidePredicate)

	rows, err := in.db.QueryContext(ctx, q, schema, tableName)
	if err != nil {
		return nil, &IntrospectionError{Stage: "foreign_keys", Err: err}
	}
	defer rows.Close()

	type accum struct {
		fk  ForeignKey
		ord []int
	}
	byName := orderedmap.NewOrderedMap[string, *accum]()

	for rows.Next() {
		var name, fromTable, fromCol, toTable, toCol, deleteRule string
		var ordinal int
		if err := rows.Scan(&name, &fromTable, &fromCol, &ordinal, &toTable, &toCol, &deleteRule); err != nil {
			return nil, &IntrospectionError{Stage: "foreign_keys scan", Err: err}
		}
		a, ok := byName.Get(name)
		if !ok {
			a = &accum{fk: ForeignKey{
				Name:         name,
				FromTable:    record.TableRef{Schema: schema, Name: fromTable},
				ToTable:      record.TableRef{Schema: schema, Name: toTable},
				OnDeleteRule: deleteRule,
			}}
			byName.Set(name, a)
		}
		a.fk.FromColumns = append(a.fk.FromColumns, fromCol)
		a.fk.ToColumns = append(a.fk.ToColumns, toCol)
		a.ord = append(a.ord, ordinal)
	}
	if err := rows.Err(); err != nil {
		return nil, &IntrospectionError{Stage: "foreign_keys iterate", Err: err}
	}

	out := make([]ForeignKey, 0, byName.Len())
	for el := byName.Front(); el != nil; el = el.Next() {
		out = append(out, el.Value.fk)
	}
	return out, nil
}
