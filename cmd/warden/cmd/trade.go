package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkarls/tradewarden/execution"
	"github.com/mkarls/tradewarden/ledger"
)

var tradeFlags struct {
	side       string
	orderType  string
	size       float64
	notional   float64
	price      float64
	leverage   float64
	reduceOnly bool
	message    string
	round      int
}

var tradeCmd = &cobra.Command{
	Use:   "trade SYMBOL",
	Short: "Stage, commit and push a single order",
	Long: `Stage one order, commit it and push it through the safety pipeline.

The order passes the circuit breaker, the guard chain and the leverage
ceiling before it reaches the venue. The outcome is recorded as a ledger
commit either way.

Examples:
  warden trade BTC/USD --side buy --notional 1000
  warden trade ETH/USD --side sell --size 0.5 --type limit --price 2900
  warden trade BTC/USD --side sell --size 0.1 --reduce-only`,
	Args: cobra.ExactArgs(1),
	RunE: runTrade,
}

func init() {
	rootCmd.AddCommand(tradeCmd)
	tradeCmd.Flags().StringVar(&tradeFlags.side, "side", "buy", "order side: buy or sell")
	tradeCmd.Flags().StringVar(&tradeFlags.orderType, "type", "market", "order type: market or limit")
	tradeCmd.Flags().Float64Var(&tradeFlags.size, "size", 0, "order size in base units")
	tradeCmd.Flags().Float64Var(&tradeFlags.notional, "notional", 0, "order value in quote currency (used when --size is 0)")
	tradeCmd.Flags().Float64Var(&tradeFlags.price, "price", 0, "limit price")
	tradeCmd.Flags().Float64Var(&tradeFlags.leverage, "leverage", 0, "set leverage before placing")
	tradeCmd.Flags().BoolVar(&tradeFlags.reduceOnly, "reduce-only", false, "only reduce an existing position")
	tradeCmd.Flags().StringVar(&tradeFlags.message, "message", "", "commit message (defaults to a description of the order)")
	tradeCmd.Flags().IntVar(&tradeFlags.round, "round", 0, "tag this and later commits with a session round number")
}

func runTrade(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	symbol := args[0]
	params := map[string]any{
		"symbol": symbol,
		"side":   tradeFlags.side,
		"type":   tradeFlags.orderType,
	}
	if tradeFlags.size > 0 {
		params["size"] = tradeFlags.size
	}
	if tradeFlags.notional > 0 {
		params["notional"] = tradeFlags.notional
	}
	if tradeFlags.price > 0 {
		params["price"] = tradeFlags.price
	}
	if tradeFlags.leverage > 0 {
		params["leverage"] = tradeFlags.leverage
	}
	if tradeFlags.reduceOnly {
		params["reduce_only"] = true
	}

	if tradeFlags.round > 0 {
		a.ledger.SetRound(tradeFlags.round)
	}
	a.ledger.Add(ledger.Operation{Action: execution.ActionPlaceOrder, Params: params})

	message := tradeFlags.message
	if message == "" {
		message = fmt.Sprintf("%s %s %s", tradeFlags.side, tradeFlags.orderType, symbol)
	}
	if _, err := a.ledger.Commit(message); err != nil {
		return err
	}

	res, err := a.ledger.Push(cmd.Context())
	if err != nil {
		return err
	}
	printPushResult(res)
	return nil
}

func printPushResult(res ledger.PushResult) {
	fmt.Printf("commit %s: %d operation(s)\n", res.Hash, res.OperationCount)
	for _, r := range res.Filled {
		fmt.Printf("  filled   %-10s %s\n", r.Symbol, r.OrderID)
	}
	for _, r := range res.Pending {
		fmt.Printf("  pending  %-10s %s\n", r.Symbol, r.OrderID)
	}
	for _, r := range res.Rejected {
		fmt.Printf("  rejected %-10s %s\n", r.Symbol, r.Error)
	}
}
