package cmd

import (
	"context"
	"fmt"
	"time"

	"github.com/quantfold/tradecore/config"
	"github.com/quantfold/tradecore/engine"
	"github.com/quantfold/tradecore/internal/logging"
	"github.com/quantfold/tradecore/journal"
	"github.com/quantfold/tradecore/market"
	"github.com/quantfold/tradecore/sched"
	"github.com/spf13/cobra"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run a trading session from a config file",
	Long: `Run a scripted trading session using settings from a configuration file.

The config file specifies the account, fee and risk parameters, the orders
to place, and the price steps to replay through the engine.

Example:
  tradecore run -f examples/configs/basic.yaml`,
	RunE: runRun,
}

var (
	runConfigPath string
	runDebug      bool
)

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().StringVarP(&runConfigPath, "file", "f", "", "path to config file (YAML or JSON) (required)")
	runCmd.Flags().BoolVar(&runDebug, "debug", false, "enable debug logging")
	runCmd.MarkFlagRequired("file")
}

func openJournal(cfg config.JournalConfig) (journal.Journal, error) {
	switch cfg.Type {
	case "csv":
		return journal.NewCSV(cfg.OrdersFile, cfg.TradesFile, cfg.PositionsFile)
	case "memory":
		return journal.NewMemory(), nil
	default:
		return journal.NewSQLite(cfg.DBPath)
	}
}

func runRun(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadFromFile(runConfigPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	logger, err := logging.New(runDebug)
	if err != nil {
		return fmt.Errorf("init logger: %w", err)
	}
	defer logger.Sync()

	fmt.Printf("Running session with config: %s\n", runConfigPath)
	fmt.Printf("  Account: %s (Cash: $%.2f %s)\n", cfg.Account.ID, cfg.Account.Cash, cfg.Account.Currency)
	fmt.Printf("  Risk: max position %.0f%%, max daily loss %.0f%%, max correlation %.2f\n",
		cfg.Risk.MaxPositionPct*100, cfg.Risk.MaxDailyLossPct*100, cfg.Risk.MaxCorrelation)
	fmt.Println()

	j, err := openJournal(cfg.Journal)
	if err != nil {
		return fmt.Errorf("create journal: %w", err)
	}
	defer j.Close()

	mode, err := cfg.Engine.ParseMode()
	if err != nil {
		return err
	}
	ttl, err := cfg.Engine.ParseOrderTTL()
	if err != nil {
		return err
	}
	scanEvery, err := cfg.Engine.ParseScanEvery()
	if err != nil {
		return err
	}

	mgr := engine.New(engine.Options{
		Cash:        cfg.Account.Cash,
		Fees:        cfg.Fees.Schedule(),
		Limits:      cfg.Risk.Limits(),
		Journal:     j,
		Logger:      logger,
		AutoExecute: cfg.Engine.AutoExecute,
		OrderTTL:    ttl,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	for _, q := range cfg.Simulation.Quotes {
		mgr.OnQuote(ctx, market.Quote{
			Symbol: q.Symbol,
			Bid:    q.Bid,
			Ask:    q.Ask,
			Time:   time.Now(),
		})
	}

	if scanEvery > 0 {
		go sched.Runner{Name: "rescan", Interval: scanEvery, Logger: logger}.Start(ctx, mgr.Rescan)
		if ttl > 0 {
			go sched.Runner{Name: "expire", Interval: scanEvery, Logger: logger}.Start(ctx, mgr.ExpireStale)
		}
	}

	for i, oc := range cfg.Simulation.Orders {
		req, err := oc.Request(mode)
		if err != nil {
			return fmt.Errorf("invalid order %d: %w", i, err)
		}
		o, err := mgr.Place(ctx, req)
		if err != nil {
			fmt.Printf("ORDER %s %s %.0f %s REJECTED: %v\n", oc.Side, oc.Symbol, oc.Quantity, oc.Kind, err)
			continue
		}
		fmt.Printf("ORDER %s %s %.0f %s id=%s status=%s\n", oc.Side, oc.Symbol, oc.Quantity, oc.Kind, o.ID, o.Status)
	}

	for i, step := range cfg.Simulation.Steps {
		delay, err := step.ParseDuration()
		if err != nil {
			return fmt.Errorf("invalid delay in step %d: %w", i, err)
		}

		fmt.Printf("QUOTE %s bid=%.4f ask=%.4f (after %s)\n", step.Symbol, step.Bid, step.Ask, delay)
		mgr.OnQuote(ctx, market.Quote{
			Symbol: step.Symbol,
			Bid:    step.Bid,
			Ask:    step.Ask,
			Time:   time.Now().Add(delay),
		})
	}

	if err := mgr.ExpireStale(ctx); err != nil {
		return fmt.Errorf("expire stale orders: %w", err)
	}

	fmt.Printf("\nFinal Results:\n")
	fmt.Printf("  Cash: $%.2f\n", mgr.Cash())
	for _, p := range mgr.Holdings() {
		fmt.Printf("  %s qty=%.2f avg=%.2f mkt=%.2f realized=%.2f unrealized=%.2f\n",
			p.Symbol, p.Quantity, p.AvgPrice, p.MarketPrice, p.RealizedPL, p.UnrealizedPL)
	}
	fmt.Printf("  Day P/L: $%.2f\n", mgr.DayPL())
	fmt.Printf("  Portfolio Value: $%.2f\n", mgr.PortfolioValue())

	switch cfg.Journal.Type {
	case "csv":
		fmt.Printf("\nResults saved to:\n  - %s\n  - %s\n  - %s\n",
			cfg.Journal.OrdersFile, cfg.Journal.TradesFile, cfg.Journal.PositionsFile)
	case "memory":
	default:
		fmt.Printf("\nResults saved to: %s\n", cfg.Journal.DBPath)
	}

	return nil
}
