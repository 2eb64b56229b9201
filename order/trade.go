package order

import "time"

// Trade is an immutable execution record. Exactly one Trade is created
// per fill; a partially filled order accumulates several.
type Trade struct {
	ID         string
	OrderID    string
	Symbol     string
	Side       Side
	Mode       Mode
	Quantity   float64
	Price      float64
	Commission float64
	Tax        float64
	Time       time.Time
}

// SignedQuantity is positive for buys and negative for sells.
func (t Trade) SignedQuantity() float64 {
	if t.Side == Sell {
		return -t.Quantity
	}
	return t.Quantity
}

// Value is the gross notional of the execution.
func (t Trade) Value() float64 {
	return t.Price * t.Quantity
}

// Cost is the total cash impact of a buy: notional plus fees.
func (t Trade) Cost() float64 {
	return t.Value() + t.Commission + t.Tax
}
