package order

// Status is the order lifecycle state:
//
//	PENDING → SUBMITTED → {PARTIALLY_FILLED → FILLED | CANCELLED | REJECTED | EXPIRED}
//
// FILLED, CANCELLED, REJECTED and EXPIRED are terminal.
type Status string

const (
	StatusPending         Status = "PENDING"
	StatusSubmitted       Status = "SUBMITTED"
	StatusPartiallyFilled Status = "PARTIALLY_FILLED"
	StatusFilled          Status = "FILLED"
	StatusCancelled       Status = "CANCELLED"
	StatusRejected        Status = "REJECTED"
	StatusExpired         Status = "EXPIRED"
)

var transitions = map[Status][]Status{
	StatusPending:         {StatusSubmitted, StatusRejected, StatusCancelled},
	StatusSubmitted:       {StatusPartiallyFilled, StatusFilled, StatusCancelled, StatusRejected, StatusExpired},
	StatusPartiallyFilled: {StatusPartiallyFilled, StatusFilled, StatusCancelled, StatusExpired},
}

// Terminal reports whether no further transitions are allowed.
func (s Status) Terminal() bool {
	switch s {
	case StatusFilled, StatusCancelled, StatusRejected, StatusExpired:
		return true
	}
	return false
}

// CanTransition reports whether s → to is a legal lifecycle move.
func (s Status) CanTransition(to Status) bool {
	for _, t := range transitions[s] {
		if t == to {
			return true
		}
	}
	return false
}
