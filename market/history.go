package market

import "sync"

// defaultHistoryDepth bounds the per-symbol close series. Risk checks
// look at trailing windows of ~30 observations, so a few hundred is
// plenty.
const defaultHistoryDepth = 512

// History keeps a rolling series of observed closes per symbol and
// derives simple returns from them. It feeds the VaR and correlation
// calculations.
type History struct {
	mu     sync.RWMutex
	depth  int
	closes map[string][]float64
}

func NewHistory() *History {
	return &History{
		depth:  defaultHistoryDepth,
		closes: make(map[string][]float64),
	}
}

// Record appends an observed price for symbol, trimming to depth.
func (h *History) Record(symbol string, price float64) {
	if price <= 0 {
		return
	}
	h.mu.Lock()
	defer h.mu.Unlock()

	s := append(h.closes[symbol], price)
	if len(s) > h.depth {
		s = s[len(s)-h.depth:]
	}
	h.closes[symbol] = s
}

// Closes returns a copy of the recorded close series for symbol.
func (h *History) Closes(symbol string) []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := h.closes[symbol]
	out := make([]float64, len(s))
	copy(out, s)
	return out
}

// Returns derives simple period-over-period returns from the last
// window+1 closes. Fewer than two closes yield an empty series.
func (h *History) Returns(symbol string, window int) []float64 {
	h.mu.RLock()
	defer h.mu.RUnlock()

	s := h.closes[symbol]
	if len(s) < 2 {
		return nil
	}
	if window > 0 && len(s) > window+1 {
		s = s[len(s)-(window+1):]
	}

	out := make([]float64, 0, len(s)-1)
	for i := 1; i < len(s); i++ {
		out = append(out, s[i]/s[i-1]-1)
	}
	return out
}
