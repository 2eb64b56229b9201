package risk

import "fmt"

// Method selects a VaR estimator.
type Method string

const (
	Historical Method = "historical"
	Parametric Method = "parametric"
	MonteCarlo Method = "monte_carlo"
)

func ParseMethod(s string) (Method, error) {
	switch Method(s) {
	case Historical, Parametric, MonteCarlo:
		return Method(s), nil
	}
	return "", fmt.Errorf("unknown VaR method %q", s)
}

// VaR dispatches to the selected estimator. draws and seed only apply
// to Monte-Carlo.
func VaR(m Method, returns []float64, confidence float64, draws int, seed int64) (float64, error) {
	switch m {
	case Historical:
		return HistoricalVaR(returns, confidence), nil
	case Parametric:
		return ParametricVaR(returns, confidence), nil
	case MonteCarlo:
		return MonteCarloVaR(returns, confidence, draws, seed), nil
	}
	return 0, fmt.Errorf("unknown VaR method %q", m)
}
