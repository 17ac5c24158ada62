package traversal

import (
	"fmt"

	"github.com/dbsmedya/pgreplay/internal/record"
)

// InvalidFilterError is returned when a timeframe filter names a column
// that does not exist, or that is not comparable to the bounds given.
type InvalidFilterError struct {
	Table  string
	Column string
	Reason string
}

func (e *InvalidFilterError) Error() string {
	return fmt.Sprintf("invalid filter on %s.%s: %s", e.Table, e.Column, e.Reason)
}

// FetchError wraps a query failure during traversal. A fetch error
// abandons the whole run.
type FetchError struct {
	Table string
	Err   error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetch failed for table %s: %v", e.Table, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// DanglingReferenceError represents a non-null foreign key whose target
// row could not be found. It is only ever returned by the
// engine when strict dangling-reference handling is requested; otherwise
// the same condition is logged as a warning and traversal proceeds.
type DanglingReferenceError struct {
	From record.Identifier
	To   record.Identifier
}

func (e *DanglingReferenceError) Error() string {
	return fmt.Sprintf("dangling reference: %s points to missing %s", e.From, e.To)
}
