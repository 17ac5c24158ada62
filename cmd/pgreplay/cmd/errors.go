package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/dbsmedya/pgreplay/internal/config"
	"github.com/dbsmedya/pgreplay/internal/database"
	"github.com/dbsmedya/pgreplay/internal/remap"
	"github.com/dbsmedya/pgreplay/internal/traversal"
)

// UsageError marks an invalid CLI combination, unknown table, or
// malformed timeframe — exit code 2.
type UsageError struct {
	Reason string
}

func (e *UsageError) Error() string { return e.Reason }

// OutputError wraps a sink write failure — exit code 1, but
// kept as a distinct type so future callers can special-case it.
type OutputError struct {
	Err error
}

func (e *OutputError) Error() string { return fmt.Sprintf("failed to write replay stream: %v", e.Err) }
func (e *OutputError) Unwrap() error { return e.Err }

// exitCode maps a run's terminal error to its exit code: 0 success, 1
// runtime failure, 2 usage error, 3 integrity/constraint failure, 4
// cancelled.
func exitCode(err error) int {
	if err == nil {
		return 0
	}

	var usageErr *UsageError
	var validationErrs config.ValidationErrors
	if errors.As(err, &usageErr) || errors.As(err, &validationErrs) {
		return 2
	}

	var cycleErr *remap.CycleDetected
	if errors.As(err, &cycleErr) {
		return 3
	}

	if errors.Is(err, context.Canceled) {
		return 4
	}

	var roErr *database.ReadOnlyEnforcementError
	var danglingErr *traversal.DanglingReferenceError
	if errors.As(err, &roErr) || errors.As(err, &danglingErr) {
		return 3
	}

	return 1
}
