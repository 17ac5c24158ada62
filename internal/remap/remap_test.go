package remap

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/pgreplay/internal/depgraph"
	"github.com/dbsmedya/pgreplay/internal/pgcatalog"
	"github.com/dbsmedya/pgreplay/internal/record"
)

var (
	usersTable = record.TableRef{Schema: "public", Name: "users"}
	rolesTable = record.TableRef{Schema: "public", Name: "roles"}
)

func identityTable(ref record.TableRef, pkCol string) *pgcatalog.Table {
	return &pgcatalog.Table{
		Ref:               ref,
		Columns:           []pgcatalog.Column{{Name: pkCol, IsIdentity: true}},
		PrimaryKeyColumns: []string{pkCol},
	}
}

func naturalKeyTable(ref record.TableRef, pkCol string) *pgcatalog.Table {
	return &pgcatalog.Table{
		Ref:               ref,
		Columns:           []pgcatalog.Column{{Name: pkCol, IsIdentity: false}},
		PrimaryKeyColumns: []string{pkCol},
	}
}

func TestBuild_OnlyRemapsIdentityOnlyTables(t *testing.T) {
	r2 := record.NewIdentifier(rolesTable, []any{2})
	u3 := record.NewIdentifier(usersTable, []any{3})

	g := depgraph.New()
	g.AddEdge(r2, u3)
	sorted := g.TopologicalSort()

	tables := map[record.TableRef]*pgcatalog.Table{
		rolesTable: identityTable(rolesTable, "id"),
		usersTable: naturalKeyTable(usersTable, "email"),
	}

	m, err := Build(sorted, nil, tables)
	require.NoError(t, err)

	_, ok := m.Token(r2)
	assert.True(t, ok, "identity-only PK table must be remapped")

	_, ok = m.Token(u3)
	assert.False(t, ok, "non-identity PK table must pass through unchanged")
}

func TestBuild_TokensAreStableAndDistinctPerTable(t *testing.T) {
	r1 := record.NewIdentifier(rolesTable, []any{1})
	r2 := record.NewIdentifier(rolesTable, []any{2})

	g := depgraph.New()
	g.AddNode(r1)
	g.AddNode(r2)
	sorted := g.TopologicalSort()

	tables := map[record.TableRef]*pgcatalog.Table{
		rolesTable: identityTable(rolesTable, "id"),
	}

	m, err := Build(sorted, nil, tables)
	require.NoError(t, err)
	require.Equal(t, 2, m.Len())

	tok1, _ := m.Token(r1)
	tok2, _ := m.Token(r2)
	assert.NotEqual(t, tok1, tok2)
}

func TestBuild_FailsOnCyclicRemappableRecords(t *testing.T) {
	cat10 := record.NewIdentifier(record.TableRef{Schema: "public", Name: "categories"}, []any{10})
	cat11 := record.NewIdentifier(record.TableRef{Schema: "public", Name: "categories"}, []any{11})

	g := depgraph.New()
	g.AddEdge(cat10, cat11)
	g.AddEdge(cat11, cat10)
	sorted := g.TopologicalSort()
	require.NotEmpty(t, sorted.Cyclic)

	tables := map[record.TableRef]*pgcatalog.Table{
		{Schema: "public", Name: "categories"}: identityTable(record.TableRef{Schema: "public", Name: "categories"}, "id"),
	}

	_, err := Build(sorted, nil, tables)
	require.Error(t, err)
	var cycleErr *CycleDetected
	require.ErrorAs(t, err, &cycleErr)
}

func TestBuild_NonCyclicSelfReferenceStillRemaps(t *testing.T) {
	// A self-referencing FK that the sorter broke without needing to force
	// an emission (e.g. a nullable parent pointing backward only through
	// dependency edges that the traversal never materialized as a true
	// cycle) remains fully remappable.
	cat10 := record.NewIdentifier(record.TableRef{Schema: "public", Name: "categories"}, []any{10})
	cat11 := record.NewIdentifier(record.TableRef{Schema: "public", Name: "categories"}, []any{11})

	g := depgraph.New()
	g.AddEdge(cat10, cat11)
	sorted := g.TopologicalSort()
	require.Empty(t, sorted.Cyclic)

	tables := map[record.TableRef]*pgcatalog.Table{
		{Schema: "public", Name: "categories"}: identityTable(record.TableRef{Schema: "public", Name: "categories"}, "id"),
	}

	m, err := Build(sorted, nil, tables)
	require.NoError(t, err)
	assert.Equal(t, 2, m.Len())
}
