package depgraph

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dbsmedya/pgreplay/internal/record"
)

func id(table string, pk int) record.Identifier {
	return record.NewIdentifier(record.TableRef{Schema: "public", Name: table}, []any{pk})
}

func TestTopologicalSort_LinearChain(t *testing.T) {
	g := New()
	roles2 := id("roles", 2)
	users3 := id("users", 3)
	orders1 := id("orders", 1)

	g.AddEdge(roles2, users3)
	g.AddEdge(users3, orders1)

	result := g.TopologicalSort()

	require.Empty(t, result.Cyclic)
	require.Equal(t, []record.Identifier{roles2, users3, orders1}, result.Order)
}

func TestTopologicalSort_TieBreaksDeterministically(t *testing.T) {
	g := New()
	root := id("roles", 1)
	usersA := id("users", 3)
	usersB := id("users", 2)
	g.AddEdge(root, usersA)
	g.AddEdge(root, usersB)

	result := g.TopologicalSort()

	require.Equal(t, root, result.Order[0])
	assert.Equal(t, usersB, result.Order[1], "lower PK must be emitted before higher PK at the same readiness level")
	assert.Equal(t, usersA, result.Order[2])
}

func TestTopologicalSort_SelfCycleIsBrokenDeterministically(t *testing.T) {
	g := New()
	cat10 := id("categories", 10)
	cat11 := id("categories", 11)
	g.AddEdge(cat10, cat11)
	g.AddEdge(cat11, cat10)

	result := g.TopologicalSort()

	require.Len(t, result.Order, 2)
	assert.ElementsMatch(t, []record.Identifier{cat10, cat11}, result.Order)
	assert.NotEmpty(t, result.Cyclic, "at least one node in a cycle must be flagged")
	assert.Equal(t, cat10, result.Order[0], "the lexicographically smallest node in the cycle is forced first")
}

func TestTopologicalSort_IsolatedNodeIncluded(t *testing.T) {
	g := New()
	lone := id("banks", 1)
	g.AddNode(lone)

	result := g.TopologicalSort()

	assert.Equal(t, []record.Identifier{lone}, result.Order)
	assert.Empty(t, result.Cyclic)
}

func TestFromRecords_OnlyLinksCollectedDependencies(t *testing.T) {
	usersTable := record.TableRef{Schema: "public", Name: "users"}
	rolesTable := record.TableRef{Schema: "public", Name: "roles"}

	u3 := record.NewIdentifier(usersTable, []any{3})
	r2 := record.NewIdentifier(rolesTable, []any{2})
	external := record.NewIdentifier(rolesTable, []any{99})

	data := record.NewData(u3, nil, 0)
	data.AddDependency(r2)
	data.AddDependency(external) // never collected: must not appear as an edge

	records := map[record.Identifier]*record.Data{
		u3: data,
		r2: record.NewData(r2, nil, 0),
	}

	g := FromRecords(records)
	result := g.TopologicalSort()

	assert.Len(t, result.Order, 2)
	assert.Equal(t, r2, result.Order[0])
	assert.Equal(t, u3, result.Order[1])
}

func TestHasCycle(t *testing.T) {
	acyclic := New()
	acyclic.AddEdge(id("roles", 1), id("users", 1))
	assert.False(t, acyclic.HasCycle())

	cyclic := New()
	cyclic.AddEdge(id("categories", 10), id("categories", 11))
	cyclic.AddEdge(id("categories", 11), id("categories", 10))
	assert.True(t, cyclic.HasCycle())
}
