package replay

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/pgreplay/internal/depgraph"
	"github.com/dbsmedya/pgreplay/internal/pgcatalog"
	"github.com/dbsmedya/pgreplay/internal/record"
	"github.com/dbsmedya/pgreplay/internal/remap"
)

var (
	rolesTable = record.TableRef{Schema: "public", Name: "roles"}
	usersTable = record.TableRef{Schema: "public", Name: "users"}
)

func fixtureTables() map[record.TableRef]*pgcatalog.Table {
	roles := &pgcatalog.Table{
		Ref:               rolesTable,
		Columns:           []pgcatalog.Column{{Name: "id", Ordinal: 1, DataType: "integer", IsIdentity: true}, {Name: "name", Ordinal: 2, DataType: "character varying"}},
		PrimaryKeyColumns: []string{"id"},
	}
	users := &pgcatalog.Table{
		Ref: usersTable,
		Columns: []pgcatalog.Column{
			{Name: "id", Ordinal: 1, DataType: "integer", IsIdentity: true},
			{Name: "role_id", Ordinal: 2, DataType: "integer"},
			{Name: "active", Ordinal: 3, DataType: "boolean"},
		},
		PrimaryKeyColumns: []string{"id"},
		OutgoingFKs: []pgcatalog.ForeignKey{
			{Name: "users_role_id_fkey", FromTable: usersTable, FromColumns: []string{"role_id"}, ToTable: rolesTable, ToColumns: []string{"id"}},
		},
	}
	return map[record.TableRef]*pgcatalog.Table{rolesTable: roles, usersTable: users}
}

func TestWrite_PlainInsertsUseOnConflictDoNothing(t *testing.T) {
	r2 := record.NewIdentifier(rolesTable, []any{2})
	u3 := record.NewIdentifier(usersTable, []any{3})

	records := map[record.Identifier]*record.Data{
		r2: record.NewData(r2, map[string]any{"id": 2, "name": "admin"}, 0),
		u3: record.NewData(u3, map[string]any{"id": 3, "role_id": 2, "active": true}, 0),
	}

	w := New(fixtureTables(), Config{})
	var buf bytes.Buffer
	require.NoError(t, w.Write(&buf, []record.Identifier{r2, u3}, records))

	out := buf.String()
	assert.Contains(t, out, "BEGIN;")
	assert.Contains(t, out, `INSERT INTO "public"."roles" ("id", "name") VALUES (2, 'admin') ON CONFLICT ("id") DO NOTHING;`)
	assert.Contains(t, out, `INSERT INTO "public"."users" ("id", "role_id", "active") VALUES (3, 2, TRUE) ON CONFLICT ("id") DO NOTHING;`)
	assert.Contains(t, out, "COMMIT;")
	assert.NotContains(t, out, "DO $$")
}

func TestWrite_DeferredConstraintsWrapCyclicRows(t *testing.T) {
	cat10 := record.NewIdentifier(record.TableRef{Schema: "public", Name: "categories"}, []any{10})
	tables := map[record.TableRef]*pgcatalog.Table{
		cat10.Table: {Ref: cat10.Table, Columns: []pgcatalog.Column{{Name: "id", DataType: "integer"}}, PrimaryKeyColumns: []string{"id"}},
	}
	records := map[record.Identifier]*record.Data{
		cat10: record.NewData(cat10, map[string]any{"id": 10}, 0),
	}

	w := New(tables, Config{Cyclic: map[record.Identifier]bool{cat10: true}})
	var buf bytes.Buffer
	require.NoError(t, w.Write(&buf, []record.Identifier{cat10}, records))

	assert.Contains(t, buf.String(), "SET CONSTRAINTS ALL DEFERRED;")
}

func TestWrite_RemappedInsertCapturesReturningAndSubstitutesFK(t *testing.T) {
	r2 := record.NewIdentifier(rolesTable, []any{2})
	u3 := record.NewIdentifier(usersTable, []any{3})

	records := map[record.Identifier]*record.Data{
		r2: record.NewData(r2, map[string]any{"id": 2, "name": "admin"}, 0),
		u3: record.NewData(u3, map[string]any{"id": 3, "role_id": 2, "active": true}, 0),
	}

	tables := fixtureTables()
	g := depgraph.New()
	g.AddEdge(r2, u3)
	sorted := g.TopologicalSort()
	pkMap, err := remap.Build(sorted, records, tables)
	require.NoError(t, err)
	require.Equal(t, 2, pkMap.Len())

	w := New(tables, Config{PKMap: pkMap})
	var buf bytes.Buffer
	require.NoError(t, w.Write(&buf, []record.Identifier{r2, u3}, records))

	out := buf.String()
	assert.Contains(t, out, "DO $$")
	assert.Contains(t, out, "DECLARE")
	roleTok, _ := pkMap.Token(r2)
	userTok, _ := pkMap.Token(u3)
	assert.Contains(t, out, roleTok+` "public"."roles"."id"%TYPE;`)
	assert.Contains(t, out, `INSERT INTO "public"."roles" ("name") VALUES ('admin') RETURNING "id" INTO `+roleTok+";")
	assert.Contains(t, out, `INSERT INTO "public"."users" ("role_id", "active") VALUES (`+roleTok+`, TRUE) RETURNING "id" INTO `+userTok+";",
		"the FK column referencing a remapped role must use the captured variable, not a literal")
}
