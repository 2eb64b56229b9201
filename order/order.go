package order

import (
	"fmt"
	"strings"
	"time"

	"github.com/quantfold/tradecore/pkg/id"
)

// Kind is the order type. The set is closed: execution logic switches
// exhaustively over it and rejects anything else instead of silently
// not filling.
type Kind string

const (
	Market    Kind = "MARKET"
	Limit     Kind = "LIMIT"
	StopLoss  Kind = "STOP_LOSS"
	StopLimit Kind = "STOP_LIMIT"
)

type Side string

const (
	Buy  Side = "BUY"
	Sell Side = "SELL"
)

// Mode separates simulated (paper) trading from live trading. Positions
// are keyed by (symbol, mode) so the two books never mix.
type Mode string

const (
	Simulated Mode = "SIMULATED"
	Live      Mode = "LIVE"
)

func ParseKind(s string) (Kind, error) {
	switch Kind(strings.ToUpper(strings.TrimSpace(s))) {
	case Market:
		return Market, nil
	case Limit:
		return Limit, nil
	case StopLoss:
		return StopLoss, nil
	case StopLimit:
		return StopLimit, nil
	}
	return "", fmt.Errorf("unknown order kind %q", s)
}

func ParseSide(s string) (Side, error) {
	switch Side(strings.ToUpper(strings.TrimSpace(s))) {
	case Buy:
		return Buy, nil
	case Sell:
		return Sell, nil
	}
	return "", fmt.Errorf("unknown order side %q", s)
}

func ParseMode(s string) (Mode, error) {
	switch Mode(strings.ToUpper(strings.TrimSpace(s))) {
	case Simulated:
		return Simulated, nil
	case Live:
		return Live, nil
	}
	return "", fmt.Errorf("unknown trading mode %q", s)
}

// Request is the caller-facing order spec.
type Request struct {
	Symbol     string
	Kind       Kind
	Side       Side
	Mode       Mode
	Quantity   float64
	LimitPrice *float64
	StopPrice  *float64
}

// Order is the lifecycle-managed entity. Invariant:
// FilledQuantity + RemainingQuantity == Quantity at all times, and
// RemainingQuantity == 0 exactly when the order reached FILLED.
type Order struct {
	ID     string
	Symbol string
	Kind   Kind
	Side   Side
	Mode   Mode

	Quantity   float64
	LimitPrice *float64
	StopPrice  *float64

	Status            Status
	FilledQuantity    float64
	RemainingQuantity float64
	AvgFillPrice      float64

	CreatedAt   time.Time
	FilledAt    time.Time
	CancelledAt time.Time
}

// New builds a PENDING order from a request. Validation is separate so
// the lifecycle manager can journal rejected requests too.
func New(req Request, now time.Time) *Order {
	return &Order{
		ID:                id.New(),
		Symbol:            req.Symbol,
		Kind:              req.Kind,
		Side:              req.Side,
		Mode:              req.Mode,
		Quantity:          req.Quantity,
		LimitPrice:        req.LimitPrice,
		StopPrice:         req.StopPrice,
		Status:            StatusPending,
		RemainingQuantity: req.Quantity,
		CreatedAt:         now,
	}
}

// Validate checks the structural requirements of the order spec.
func (o *Order) Validate() error {
	if o.Symbol == "" {
		return &ValidationError{Field: "symbol", Reason: "symbol is required"}
	}
	if o.Quantity <= 0 {
		return &ValidationError{Field: "quantity", Reason: "quantity must be positive"}
	}
	if _, err := ParseSide(string(o.Side)); err != nil {
		return &ValidationError{Field: "side", Reason: err.Error()}
	}

	switch o.Kind {
	case Market:
	case Limit:
		if o.LimitPrice == nil || *o.LimitPrice <= 0 {
			return &ValidationError{Field: "limit_price", Reason: "limit order requires a positive limit price"}
		}
	case StopLoss:
		if o.StopPrice == nil || *o.StopPrice <= 0 {
			return &ValidationError{Field: "stop_price", Reason: "stop order requires a positive stop price"}
		}
	case StopLimit:
		if o.StopPrice == nil || *o.StopPrice <= 0 {
			return &ValidationError{Field: "stop_price", Reason: "stop-limit order requires a positive stop price"}
		}
		if o.LimitPrice == nil || *o.LimitPrice <= 0 {
			return &ValidationError{Field: "limit_price", Reason: "stop-limit order requires a positive limit price"}
		}
	default:
		return &ValidationError{Field: "kind", Reason: fmt.Sprintf("unknown order kind %q", o.Kind)}
	}
	return nil
}

// Fillable reports whether the order can still receive executions:
// only states with a lifecycle move to FILLED qualify, so a PENDING
// order cannot fill before submission.
func (o *Order) Fillable() bool {
	return o.Status.CanTransition(StatusFilled)
}

// Cancellable reports whether the order can still be cancelled.
func (o *Order) Cancellable() bool {
	return o.Status.CanTransition(StatusCancelled)
}

// qtyEpsilon absorbs float dust left by partial-fill arithmetic;
// anything below it is not a real remainder.
const qtyEpsilon = 1e-9

// RecordFill applies one execution of qty at price, moving the order to
// PARTIALLY_FILLED or FILLED. A remainder within qtyEpsilon closes the
// order; the quantities are snapped so the conservation invariant holds
// exactly.
func (o *Order) RecordFill(qty, price float64, at time.Time) {
	prev := o.FilledQuantity
	o.FilledQuantity += qty
	o.RemainingQuantity = o.Quantity - o.FilledQuantity

	if o.FilledQuantity > 0 {
		o.AvgFillPrice = (o.AvgFillPrice*prev + price*qty) / o.FilledQuantity
	}

	if o.RemainingQuantity <= qtyEpsilon {
		o.FilledQuantity = o.Quantity
		o.RemainingQuantity = 0
		o.Status = StatusFilled
		o.FilledAt = at
	} else {
		o.Status = StatusPartiallyFilled
	}
}
