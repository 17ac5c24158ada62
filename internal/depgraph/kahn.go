package depgraph

import (
	"container/heap"

	"github.com/dbsmedya/pgreplay/internal/record"
)

// identifierHeap is a min-heap over record.Identifier using the
// deterministic ordering defined by record.Identifier.Less, giving
// Kahn's algorithm a deterministic tie-break: table name ascending,
// then PK-tuple lexicographic.
type identifierHeap []record.Identifier

func (h identifierHeap) Len() int            { return len(h) }
func (h identifierHeap) Less(i, j int) bool  { return h[i].Less(h[j]) }
func (h identifierHeap) Swap(i, j int)       { h[i], h[j] = h[j], h[i] }
func (h *identifierHeap) Push(x interface{}) { *h = append(*h, x.(record.Identifier)) }
func (h *identifierHeap) Pop() interface{} {
	old := *h
	n := len(old)
	item := old[n-1]
	*h = old[:n-1]
	return item
}

// SortResult is the outcome of a topological sort: the emission order plus
// the subset of nodes that could only be emitted by breaking a cycle.
type SortResult struct {
	Order  []record.Identifier
	Cyclic map[record.Identifier]bool
}

// TopologicalSort runs Kahn's algorithm over the graph, breaking any
// detected cycle deterministically: when no node has in-degree zero, the
// lexicographically smallest remaining node is force-emitted and the
// algorithm continues. It therefore always returns a
// complete order; cycle participants are reported via SortResult.Cyclic
// rather than as an error, so the caller (the replay writer) can defer
// their constraints instead of failing the run.
func (g *Graph) TopologicalSort() *SortResult {
	inDegree := make(map[record.Identifier]int, len(g.nodes))
	for id := range g.nodes {
		inDegree[id] = 0
	}
	for _, children := range g.children {
		for _, c := range children {
			inDegree[c]++
		}
	}

	ready := &identifierHeap{}
	heap.Init(ready)
	for id, deg := range inDegree {
		if deg == 0 {
			heap.Push(ready, id)
		}
	}

	remaining := make(map[record.Identifier]bool, len(g.nodes))
	for id := range g.nodes {
		remaining[id] = true
	}

	result := &SortResult{
		Order:  make([]record.Identifier, 0, len(g.nodes)),
		Cyclic: make(map[record.Identifier]bool),
	}

	emit := func(id record.Identifier) {
		result.Order = append(result.Order, id)
		delete(remaining, id)
		for _, child := range g.children[id] {
			if !remaining[child] {
				continue
			}
			inDegree[child]--
			if inDegree[child] == 0 {
				heap.Push(ready, child)
			}
		}
	}

	for len(remaining) > 0 {
		if ready.Len() > 0 {
			emit(heap.Pop(ready).(record.Identifier))
			continue
		}

		// No zero in-degree node remains: the rest of the graph is one or
		// more cycles. Force-emit the lexicographically smallest
		// remaining node and flag it, then recompute readiness from the
		// forced emission.
		forced := smallestRemaining(remaining)
		result.Cyclic[forced] = true
		emit(forced)
	}

	return result
}

func smallestRemaining(remaining map[record.Identifier]bool) record.Identifier {
	var smallest record.Identifier
	first := true
	for id := range remaining {
		if first || id.Less(smallest) {
			smallest = id
			first = false
		}
	}
	return smallest
}

// HasCycle reports whether the graph contains at least one dependency
// cycle, without running the full deterministic break-and-continue sort.
func (g *Graph) HasCycle() bool {
	inDegree := make(map[record.Identifier]int, len(g.nodes))
	for id := range g.nodes {
		inDegree[id] = 0
	}
	for _, children := range g.children {
		for _, c := range children {
			inDegree[c]++
		}
	}

	queue := make([]record.Identifier, 0)
	for id, deg := range inDegree {
		if deg == 0 {
			queue = append(queue, id)
		}
	}

	processed := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		processed++
		for _, child := range g.children[id] {
			inDegree[child]--
			if inDegree[child] == 0 {
				queue = append(queue, child)
			}
		}
	}

	return processed != len(g.nodes)
}
