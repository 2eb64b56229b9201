package order

import "fmt"

// ValidationError reports a malformed order spec. It is surfaced to the
// caller immediately and never retried.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid order: %s: %s", e.Field, e.Reason)
}

// InvalidStateError reports an operation attempted against an order
// whose status does not allow it (e.g. cancelling a FILLED order). The
// order is left unchanged.
type InvalidStateError struct {
	OrderID string
	Status  Status
	Op      string
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("order %s: cannot %s in state %s", e.OrderID, e.Op, e.Status)
}

// ConflictError reports a lost race between two state transitions on
// the same order, typically a fill attempt racing a cancel. The loser
// fails cleanly; the order reflects only the winner. Callers may retry.
type ConflictError struct {
	OrderID string
	Status  Status
	Op      string
}

func (e *ConflictError) Error() string {
	return fmt.Sprintf("order %s: %s lost race, order now %s", e.OrderID, e.Op, e.Status)
}
