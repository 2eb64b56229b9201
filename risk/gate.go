package risk

import (
	"fmt"
	"math"

	"go.uber.org/zap"

	"github.com/quantfold/tradecore/order"
	"github.com/quantfold/tradecore/position"
)

// Check names, stable identifiers carried on every denial.
const (
	CheckPositionSize  = "position_size"
	CheckConcentration = "concentration"
	CheckCorrelation   = "correlation"
	CheckDailyLoss     = "daily_loss"
)

// LimitError is a structured risk denial: which check failed, the
// configured limit, the value observed, and by how much it was
// exceeded.
type LimitError struct {
	Check  string
	Limit  float64
	Actual float64
	Excess float64
	Detail string
}

func (e *LimitError) Error() string {
	return fmt.Sprintf("risk: %s limit exceeded: %s (limit %.4f, actual %.4f, excess %.4f)",
		e.Check, e.Detail, e.Limit, e.Actual, e.Excess)
}

// Decision is the outcome of a gate evaluation.
type Decision struct {
	Allowed   bool
	Violation *LimitError
}

// Err returns the violation as an error, or nil when allowed.
func (d Decision) Err() error {
	if d.Allowed || d.Violation == nil {
		return nil
	}
	return d.Violation
}

// View is one consistent portfolio reading: value, holdings and day
// P&L all taken at the same instant.
type View struct {
	PortfolioValue float64
	Holdings       []position.Snapshot
	// DayPL is today's realized plus current unrealized P&L; losses
	// are negative.
	DayPL float64
}

// PortfolioSource supplies the portfolio view the checks evaluate
// against. A single call returns everything one evaluation needs, so
// no check mixes readings taken at different times.
type PortfolioSource interface {
	PortfolioView() View
}

// HistorySource supplies trailing return series for the correlation
// check.
type HistorySource interface {
	Returns(symbol string, window int) []float64
}

// Gate runs the pre-trade checks in a fixed order, short-circuiting on
// the first failure: position size, concentration, correlation, daily
// loss.
type Gate struct {
	limits    Limits
	portfolio PortfolioSource
	history   HistorySource
	logger    *zap.Logger
}

func NewGate(limits Limits, portfolio PortfolioSource, history HistorySource, logger *zap.Logger) *Gate {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Gate{
		limits:    limits,
		portfolio: portfolio,
		history:   history,
		logger:    logger,
	}
}

func (g *Gate) Limits() Limits { return g.limits }

// Check evaluates an order against the portfolio. refPrice is the
// price the order would execute around (current market, else its limit
// or stop price). A ratio exactly at a limit passes; anything over
// fails.
func (g *Gate) Check(o *order.Order, refPrice float64) Decision {
	view := g.portfolio.PortfolioView()
	pv := view.PortfolioValue
	holdings := view.Holdings
	orderValue := o.Quantity * refPrice

	if !g.reducesExposure(o, orderValue, holdings) {
		if d := g.checkPositionSize(o, orderValue, pv, holdings); !d.Allowed {
			return g.deny(o, d)
		}
		if d := g.checkConcentration(o, orderValue, pv, holdings); !d.Allowed {
			return g.deny(o, d)
		}
		if d := g.checkCorrelation(o, holdings); !d.Allowed {
			return g.deny(o, d)
		}
	}
	if d := g.checkDailyLoss(view.DayPL, pv); !d.Allowed {
		return g.deny(o, d)
	}
	return Decision{Allowed: true}
}

// reducesExposure reports whether the order shrinks the net exposure on
// its (symbol, mode). Risk-reducing orders bypass the sizing and
// correlation checks so an over-limit position can always be closed;
// the daily-loss circuit breaker still applies.
func (g *Gate) reducesExposure(o *order.Order, orderValue float64, holdings []position.Snapshot) bool {
	var net float64
	for _, h := range holdings {
		if h.Symbol == o.Symbol && h.Mode == o.Mode {
			net += h.Quantity * h.MarketPrice
		}
	}
	signed := orderValue
	if o.Side == order.Sell {
		signed = -orderValue
	}
	return math.Abs(net+signed) <= math.Abs(net)
}

// checkPositionSize caps the would-be position in the order's
// direction: (existing same-direction value + order value) / portfolio.
func (g *Gate) checkPositionSize(o *order.Order, orderValue, pv float64, holdings []position.Snapshot) Decision {
	if pv <= 0 {
		return Decision{Allowed: true}
	}

	var existing float64
	for _, h := range holdings {
		if h.Symbol != o.Symbol || h.Mode != o.Mode {
			continue
		}
		if (o.Side == order.Buy && h.Quantity > 0) || (o.Side == order.Sell && h.Quantity < 0) {
			existing = h.Value()
		}
	}

	ratio := (existing + orderValue) / pv
	if ratio > g.limits.MaxPositionPct {
		return Decision{Violation: &LimitError{
			Check:  CheckPositionSize,
			Limit:  g.limits.MaxPositionPct,
			Actual: ratio,
			Excess: ratio - g.limits.MaxPositionPct,
			Detail: fmt.Sprintf("%s position would be %.2f%% of portfolio", o.Symbol, ratio*100),
		}}
	}
	return Decision{Allowed: true}
}

// checkConcentration caps total exposure to the symbol independent of
// direction.
func (g *Gate) checkConcentration(o *order.Order, orderValue, pv float64, holdings []position.Snapshot) Decision {
	if pv <= 0 {
		return Decision{Allowed: true}
	}

	var existing float64
	for _, h := range holdings {
		if h.Symbol == o.Symbol {
			existing += h.Value()
		}
	}

	ratio := (existing + orderValue) / pv
	if ratio > g.limits.MaxPositionPct {
		return Decision{Violation: &LimitError{
			Check:  CheckConcentration,
			Limit:  g.limits.MaxPositionPct,
			Actual: ratio,
			Excess: ratio - g.limits.MaxPositionPct,
			Detail: fmt.Sprintf("total %s exposure would be %.2f%% of portfolio", o.Symbol, ratio*100),
		}}
	}
	return Decision{Allowed: true}
}

// checkCorrelation rejects symbols too correlated with an existing
// holding over the trailing window.
func (g *Gate) checkCorrelation(o *order.Order, holdings []position.Snapshot) Decision {
	if g.history == nil {
		return Decision{Allowed: true}
	}

	window := g.limits.CorrelationWindow
	mine := g.history.Returns(o.Symbol, window)

	for _, h := range holdings {
		if h.Symbol == o.Symbol || math.Abs(h.Quantity) <= 0 {
			continue
		}
		corr := Correlation(mine, g.history.Returns(h.Symbol, window))
		if math.Abs(corr) > g.limits.MaxCorrelation {
			return Decision{Violation: &LimitError{
				Check:  CheckCorrelation,
				Limit:  g.limits.MaxCorrelation,
				Actual: math.Abs(corr),
				Excess: math.Abs(corr) - g.limits.MaxCorrelation,
				Detail: fmt.Sprintf("%s correlates %.2f with held %s", o.Symbol, corr, h.Symbol),
			}}
		}
	}
	return Decision{Allowed: true}
}

// checkDailyLoss rejects new orders once today's loss already exceeds
// the budget.
func (g *Gate) checkDailyLoss(dayPL, pv float64) Decision {
	if pv <= 0 {
		return Decision{Allowed: true}
	}

	loss := -dayPL
	budget := g.limits.MaxDailyLossPct * pv
	if loss > budget {
		return Decision{Violation: &LimitError{
			Check:  CheckDailyLoss,
			Limit:  g.limits.MaxDailyLossPct,
			Actual: loss / pv,
			Excess: (loss - budget) / pv,
			Detail: fmt.Sprintf("today's loss %.2f exceeds budget %.2f", loss, budget),
		}}
	}
	return Decision{Allowed: true}
}

func (g *Gate) deny(o *order.Order, d Decision) Decision {
	g.logger.Info("risk gate denied order",
		zap.String("order_id", o.ID),
		zap.String("symbol", o.Symbol),
		zap.String("check", d.Violation.Check),
		zap.Float64("limit", d.Violation.Limit),
		zap.Float64("actual", d.Violation.Actual),
		zap.Float64("excess", d.Violation.Excess),
	)
	return d
}
