package ddlgen

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/pgreplay/internal/depgraph"
	"github.com/dbsmedya/pgreplay/internal/pgcatalog"
	"github.com/dbsmedya/pgreplay/internal/record"
)

var (
	rolesTable = record.TableRef{Schema: "public", Name: "roles"}
	usersTable = record.TableRef{Schema: "public", Name: "users"}
	catTable   = record.TableRef{Schema: "public", Name: "categories"}
)

func TestWrite_EmitsSchemaAndTablesInOrder(t *testing.T) {
	tables := map[record.TableRef]*pgcatalog.Table{
		rolesTable: {
			Ref:               rolesTable,
			Columns:           []pgcatalog.Column{{Name: "id", DataType: "integer", IsIdentity: true, Nullable: false}},
			PrimaryKeyColumns: []string{"id"},
		},
		usersTable: {
			Ref: usersTable,
			Columns: []pgcatalog.Column{
				{Name: "id", DataType: "integer", IsIdentity: true},
				{Name: "role_id", DataType: "integer", Nullable: true},
			},
			PrimaryKeyColumns: []string{"id"},
			OutgoingFKs: []pgcatalog.ForeignKey{
				{Name: "users_role_id_fkey", FromTable: usersTable, FromColumns: []string{"role_id"}, ToTable: rolesTable, ToColumns: []string{"id"}},
			},
		},
	}

	g := New(tables)
	var buf bytes.Buffer
	require.NoError(t, g.Write(&buf, "shop", []record.TableRef{rolesTable, usersTable}, nil))

	out := buf.String()
	assert.Contains(t, out, `CREATE DATABASE "shop";`)
	assert.Contains(t, out, `CREATE SCHEMA IF NOT EXISTS "public";`)
	assert.Contains(t, out, `CREATE TABLE IF NOT EXISTS "public"."roles"`)
	assert.Contains(t, out, `CREATE TABLE IF NOT EXISTS "public"."users"`)
	assert.Contains(t, out, `FOREIGN KEY ("role_id") REFERENCES "public"."roles" ("id")`)
	assert.Less(t,
		indexOf(out, `CREATE TABLE IF NOT EXISTS "public"."roles"`),
		indexOf(out, `CREATE TABLE IF NOT EXISTS "public"."users"`),
		"dependency precedes dependent")
}

func TestWrite_CyclicTableDefersConstraint(t *testing.T) {
	cat := &pgcatalog.Table{
		Ref:               catTable,
		Columns:           []pgcatalog.Column{{Name: "id", DataType: "integer", IsIdentity: true}, {Name: "parent_id", DataType: "integer", Nullable: true}},
		PrimaryKeyColumns: []string{"id"},
		OutgoingFKs: []pgcatalog.ForeignKey{
			{Name: "categories_parent_id_fkey", FromTable: catTable, FromColumns: []string{"parent_id"}, ToTable: catTable, ToColumns: []string{"id"}},
		},
	}

	g := New(map[record.TableRef]*pgcatalog.Table{catTable: cat})
	var buf bytes.Buffer
	require.NoError(t, g.Write(&buf, "", []record.TableRef{catTable}, map[record.TableRef]bool{catTable: true}))

	out := buf.String()
	alterAt := indexOf(out, "ALTER TABLE")
	require.Positive(t, alterAt, "a cyclic table's FK must be emitted as a trailing ALTER TABLE")
	assert.NotContains(t, out[:alterAt], "FOREIGN KEY", "a cyclic table's FK must not be inlined in its CREATE TABLE body")
	assert.Contains(t, out, `ALTER TABLE "public"."categories" ADD CONSTRAINT "categories_parent_id_fkey" FOREIGN KEY ("parent_id") REFERENCES "public"."categories" ("id");`)
}

func TestTableOrder_CollapsesRecordOrderAndCycleFlags(t *testing.T) {
	cat10 := record.NewIdentifier(catTable, []any{10})
	cat11 := record.NewIdentifier(catTable, []any{11})
	r2 := record.NewIdentifier(rolesTable, []any{2})
	u3 := record.NewIdentifier(usersTable, []any{3})

	g := depgraph.New()
	g.AddEdge(r2, u3)
	g.AddEdge(cat10, cat11)
	g.AddEdge(cat11, cat10)

	sorted := g.TopologicalSort()
	order, cyclic := TableOrder(sorted)

	assert.Contains(t, order, rolesTable)
	assert.Contains(t, order, usersTable)
	assert.Contains(t, order, catTable)
	assert.True(t, cyclic[catTable])
	assert.False(t, cyclic[rolesTable])
	assert.False(t, cyclic[usersTable])
}

func indexOf(s, sub string) int {
	for i := 0; i+len(sub) <= len(s); i++ {
		if s[i:i+len(sub)] == sub {
			return i
		}
	}
	return -1
}
