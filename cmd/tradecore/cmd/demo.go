package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/quantfold/tradecore/engine"
	"github.com/quantfold/tradecore/journal"
	"github.com/quantfold/tradecore/market"
	"github.com/quantfold/tradecore/order"
	"github.com/quantfold/tradecore/position"
	"github.com/quantfold/tradecore/risk"
	"github.com/quantfold/tradecore/sim"
	"github.com/spf13/cobra"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run example sessions and demos",
	Long: `Run example trading sessions to learn how the engine works.

Available demos:
  basic - Buy, hold through a price move, then sell with FIFO lot accounting
  var   - Value-at-Risk estimation on a quote history

Examples:
  tradecore demo basic
  tradecore demo var`,
}

var demoBasicCmd = &cobra.Command{
	Use:   "basic",
	Short: "Run a basic buy/hold/sell demo",
	Long: `Demonstrates the basic order and position workflow:

  1. Setting up the engine with a simulated account
  2. Publishing bid/ask quotes
  3. Placing market orders that fill against the quotes
  4. FIFO lot consumption and realized P/L on the closing sell`,
	RunE: runDemoBasic,
}

var demoVaRCmd = &cobra.Command{
	Use:   "var",
	Short: "Run a Value-at-Risk demo",
	Long: `Demonstrates VaR estimation over a recorded close series.

Shows historical, parametric and Monte Carlo VaR side by side for the
same position, plus the expected shortfall in the tail.`,
	RunE: runDemoVaR,
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.AddCommand(demoBasicCmd)
	demoCmd.AddCommand(demoVaRCmd)
}

func runDemoBasic(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	fmt.Println("=== Basic Trade Demo ===")
	fmt.Println()

	mgr := engine.New(engine.Options{
		Cash:        1_000_000,
		Fees:        sim.DefaultFees(),
		Limits:      risk.DefaultLimits(),
		Journal:     journal.NewMemory(),
		AutoExecute: true,
	})

	mgr.OnQuote(ctx, market.Quote{Symbol: "ACME", Bid: 99.90, Ask: 100.10, Time: time.Now()})
	fmt.Println("Initial Quote - Bid: 99.90, Ask: 100.10")
	fmt.Printf("Starting Cash: $%.2f\n\n", mgr.Cash())

	o, err := mgr.Place(ctx, order.Request{
		Symbol:   "ACME",
		Kind:     order.Market,
		Side:     order.Buy,
		Mode:     order.Simulated,
		Quantity: 100,
	})
	if err != nil {
		return err
	}
	fmt.Printf("BUY 100 ACME: id=%s status=%s avg=%.2f\n", o.ID, o.Status, o.AvgFillPrice)

	pos, _ := mgr.Position("ACME", order.Simulated)
	fmt.Printf("Position: qty=%.0f avg=%.2f\n\n", pos.Quantity, pos.AvgPrice)

	fmt.Println("Simulating price movement...")
	mgr.OnQuote(ctx, market.Quote{Symbol: "ACME", Bid: 109.90, Ask: 110.10, Time: time.Now().Add(time.Hour)})
	pos, _ = mgr.Position("ACME", order.Simulated)
	fmt.Printf("Quote Updated - Bid: 109.90, Ask: 110.10 (unrealized: $%.2f)\n\n", pos.UnrealizedPL)

	o, err = mgr.Place(ctx, order.Request{
		Symbol:   "ACME",
		Kind:     order.Market,
		Side:     order.Sell,
		Mode:     order.Simulated,
		Quantity: 100,
	})
	if err != nil {
		return err
	}
	fmt.Printf("SELL 100 ACME: id=%s status=%s avg=%.2f\n", o.ID, o.Status, o.AvgFillPrice)

	pos, _ = mgr.Position("ACME", order.Simulated)
	fmt.Printf("\nFinal Results:\n")
	fmt.Printf("  Position: qty=%.0f\n", pos.Quantity)
	fmt.Printf("  Realized P/L: $%.2f\n", pos.RealizedPL)
	fmt.Printf("  Ending Cash: $%.2f\n", mgr.Cash())
	fmt.Printf("  Open lots remaining: %d\n", len(mgr.Lots("ACME", order.Simulated, position.Long)))

	return nil
}

func runDemoVaR(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	fmt.Println("=== Value-at-Risk Demo ===")
	fmt.Println()

	mgr := engine.New(engine.Options{
		Cash:        1_000_000,
		Fees:        sim.DefaultFees(),
		Limits:      risk.DefaultLimits(),
		Journal:     journal.NewMemory(),
		AutoExecute: true,
		Seed:        42,
	})

	// A jagged walk around 100 so the return series has both tails.
	closes := []float64{
		100.0, 101.2, 99.8, 100.5, 98.9, 99.4, 101.0, 102.3, 101.1, 99.7,
		98.2, 99.0, 100.4, 101.8, 100.9, 99.5, 100.2, 101.5, 100.1, 98.8,
		99.9, 101.3, 102.0, 100.6, 99.2, 100.8, 101.9, 100.3, 99.1, 100.0,
	}
	for i, c := range closes {
		mgr.OnQuote(ctx, market.Quote{
			Symbol: "ACME",
			Bid:    c - 0.05,
			Ask:    c + 0.05,
			Time:   time.Now().Add(time.Duration(i) * time.Minute),
		})
	}

	if _, err := mgr.Place(ctx, order.Request{
		Symbol:   "ACME",
		Kind:     order.Market,
		Side:     order.Buy,
		Mode:     order.Simulated,
		Quantity: 500,
	}); err != nil {
		return err
	}

	pos, _ := mgr.Position("ACME", order.Simulated)
	fmt.Printf("Position: 500 ACME at %.2f (exposure $%.2f)\n\n", pos.AvgPrice, pos.Quantity*pos.MarketPrice)

	for _, method := range []risk.Method{risk.Historical, risk.Parametric, risk.MonteCarlo} {
		v, err := mgr.ComputeVaR("ACME", method, 0.95)
		if err != nil {
			return err
		}
		fmt.Printf("  VaR 95%% (%s): $%.2f\n", method, v)
	}
	fmt.Printf("  Expected Shortfall 95%%: $%.2f\n", mgr.ExpectedShortfall("ACME", 0.95))

	return nil
}
