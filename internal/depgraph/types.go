// Package depgraph performs the topological ordering step of the pipeline:
// Kahn's algorithm over the record-level dependency graph the traversal
// engine produces, with deterministic tie-breaking and explicit cycle
// handling. One node per record.Identifier, rather than one node per
// table.
package depgraph

import (
	"github.com/dbsmedya/pgreplay/internal/record"
)

// Graph is a directed graph whose edges point from a dependency to its
// dependent (i.e. the reverse of record.Data.Dependencies): an edge
// Parent -> Child means Parent must be emitted before Child.
type Graph struct {
	nodes    map[record.Identifier]struct{}
	children map[record.Identifier][]record.Identifier
	parents  map[record.Identifier][]record.Identifier
}

// New creates an empty graph.
func New() *Graph {
	return &Graph{
		nodes:    make(map[record.Identifier]struct{}),
		children: make(map[record.Identifier][]record.Identifier),
		parents:  make(map[record.Identifier][]record.Identifier),
	}
}

// AddNode registers an identifier with no edges, so isolated records still
// appear in the sort output.
func (g *Graph) AddNode(id record.Identifier) {
	g.nodes[id] = struct{}{}
}

// AddEdge records that dependency must be emitted before dependent.
func (g *Graph) AddEdge(dependency, dependent record.Identifier) {
	g.AddNode(dependency)
	g.AddNode(dependent)
	g.children[dependency] = append(g.children[dependency], dependent)
	g.parents[dependent] = append(g.parents[dependent], dependency)
}

// FromRecords builds a Graph from a set of collected records, adding one
// edge per dependency. Nodes are record.Identifiers; edges run from
// dependency to dependent.
func FromRecords(records map[record.Identifier]*record.Data) *Graph {
	g := New()
	for id, data := range records {
		g.AddNode(id)
		for dep := range data.Dependencies {
			// Only add the edge if the dependency was itself collected;
			// a dependency pointing outside the collected set is not a
			// sort-graph edge (it is either a target that pre-exists in
			// the destination or a closure violation caught earlier).
			if _, ok := records[dep]; ok {
				g.AddEdge(dep, id)
			}
		}
	}
	return g
}

// NodeCount returns the number of nodes in the graph.
func (g *Graph) NodeCount() int {
	return len(g.nodes)
}

// Children returns the direct dependents of id.
func (g *Graph) Children(id record.Identifier) []record.Identifier {
	return g.children[id]
}
