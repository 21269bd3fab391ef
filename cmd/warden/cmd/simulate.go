package cmd

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/mkarls/tradewarden/ledger"
)

var simulateCmd = &cobra.Command{
	Use:   "simulate SYMBOL=CHANGE ...",
	Short: "Preview PnL under hypothetical price moves",
	Long: `Recompute unrealized PnL for open positions under hypothetical prices
without touching the venue or the ledger.

A change is either a percentage move or an absolute price:

  warden simulate BTC/USD=-10%
  warden simulate BTC/USD=+5% ETH/USD=@2650`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSimulate,
}

func init() {
	rootCmd.AddCommand(simulateCmd)
}

func runSimulate(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	var changes []ledger.PriceChange
	for _, arg := range args {
		symbol, change, ok := strings.Cut(arg, "=")
		if !ok || symbol == "" || change == "" {
			return fmt.Errorf("expected SYMBOL=CHANGE, got %q", arg)
		}
		changes = append(changes, ledger.PriceChange{Symbol: symbol, Change: change})
	}

	res := a.ledger.SimulatePriceChange(cmd.Context(), changes)
	if !res.Success {
		return fmt.Errorf("%s", res.Error)
	}

	for _, p := range res.Positions {
		fmt.Printf("%-10s %-5s %10.4f  %.2f -> %.2f  pnl %.2f -> %.2f\n",
			p.Symbol, p.Side, p.Size, p.CurrentPrice, p.SimulatedPrice, p.CurrentPnL, p.SimulatedPnL)
	}
	fmt.Printf("total pnl change: %+.2f\n", res.TotalPnLChange)
	fmt.Printf("worst case: %s\n", res.WorstCase)
	return nil
}
