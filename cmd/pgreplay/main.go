// Command pgreplay extracts a closed, dependency-ordered subset of a
// PostgreSQL-compatible database reachable from a seed set, and emits a
// replayable SQL stream that recreates it elsewhere.
package main

import "github.com/dbsmedya/pgreplay/cmd/pgreplay/cmd"

func main() {
	cmd.Execute()
}
