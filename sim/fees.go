package sim

// Default fee rates. These mirror the usual retail schedule (0.15%
// commission, 0.1% transaction tax) but are plain configuration, not
// contractual constants.
const (
	DefaultCommissionRate = 0.0015
	DefaultTaxRate        = 0.001
)

// FeeSchedule holds the proportional fee rates applied to every fill.
type FeeSchedule struct {
	CommissionRate float64
	TaxRate        float64
}

func DefaultFees() FeeSchedule {
	return FeeSchedule{
		CommissionRate: DefaultCommissionRate,
		TaxRate:        DefaultTaxRate,
	}
}

func (f FeeSchedule) Commission(price, qty float64) float64 {
	return price * qty * f.CommissionRate
}

func (f FeeSchedule) Tax(price, qty float64) float64 {
	return price * qty * f.TaxRate
}
