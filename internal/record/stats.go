package record

import "time"

// Stats summarizes one traversal run. It exists so an external progress
// renderer has something to report; the engine itself only accumulates
// it.
type Stats struct {
	TablesVisited int
	RecordsFound  int
	FetchCount    int
	MaxDepth      int
	Warnings      []string
	Duration      time.Duration
}
