package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkarls/tradewarden/broker/paper"
	"github.com/mkarls/tradewarden/execution"
	"github.com/mkarls/tradewarden/ledger"
	"github.com/mkarls/tradewarden/market"
	"github.com/mkarls/tradewarden/risk"
)

var demoCmd = &cobra.Command{
	Use:   "demo",
	Short: "Run example scenarios against the paper venue",
	Long: `Run self-contained example scenarios to learn how the pipeline works.
Demos use an in-memory paper venue and never touch configured state.

Available demos:
  basic    - Open, partially close and reconcile a position
  breaker  - Trip the circuit breaker and watch it block orders

Examples:
  warden demo basic
  warden demo breaker`,
}

var demoBasicCmd = &cobra.Command{
	Use:   "basic",
	Short: "Run a basic order lifecycle demo",
	Long: `Demonstrates the full order lifecycle:

  1. Stage and commit a batch with a market buy
  2. Push it through the safety pipeline
  3. Rest a reduce-only take-profit limit
  4. Fill it on the venue and reconcile with sync`,
	RunE: runDemoBasic,
}

var demoBreakerCmd = &cobra.Command{
	Use:   "breaker",
	Short: "Run a circuit breaker demo",
	Long: `Demonstrates the rolling-window circuit breaker:

  - Record losses past the configured limit
  - Watch the next order get rejected
  - See the rejection recorded as a ledger commit`,
	RunE: runDemoBreaker,
}

func init() {
	rootCmd.AddCommand(demoCmd)
	demoCmd.AddCommand(demoBasicCmd)
	demoCmd.AddCommand(demoBreakerCmd)
}

// demoRig wires a throwaway venue, executor and ledger for one scenario.
type demoRig struct {
	venue    *paper.Venue
	executor *execution.Executor
	ledger   *ledger.Ledger[ledger.PerpWallet]
}

func newDemoRig(guards risk.Chain) *demoRig {
	venue := paper.New(10000)
	for sym, mark := range demoMarks {
		venue.SetMark(sym, mark)
	}
	mapper := market.NewMapper(defaultCatalog(), market.TypeSwap)
	breaker := risk.NewBreaker(0.05)
	exec := execution.NewExecutor(venue, mapper, breaker, guards)
	led := ledger.New(ledger.Deps[ledger.PerpWallet]{
		Execute: exec.ExecuteOperation,
		Wallet:  exec.Wallet,
	})
	return &demoRig{venue: venue, executor: exec, ledger: led}
}

func (r *demoRig) push(ctx context.Context, message string, ops ...ledger.Operation) (ledger.PushResult, error) {
	for _, op := range ops {
		r.ledger.Add(op)
	}
	if _, err := r.ledger.Commit(message); err != nil {
		return ledger.PushResult{}, err
	}
	return r.ledger.Push(ctx)
}

func placeOp(params map[string]any) ledger.Operation {
	return ledger.Operation{Action: execution.ActionPlaceOrder, Params: params}
}

func runDemoBasic(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	fmt.Println("=== Order Lifecycle Demo ===")
	fmt.Println()

	rig := newDemoRig(risk.Chain{
		risk.MaxPositionSizeGuard{MaxPercentOfEquity: 50},
		risk.MaxLeverageGuard{MaxLeverage: 10},
	})

	fmt.Println("1. Opening a 0.04 BTC long at market...")
	res, err := rig.push(ctx, "open btc long", placeOp(map[string]any{
		"symbol": "BTC/USD", "side": "buy", "size": 0.04,
	}))
	if err != nil {
		return err
	}
	printPushResult(res)

	fmt.Println("\n2. BTC rallies from 95000 to 99000.")
	rig.venue.SetMark("BTC/USDT:USDT", 99000)

	fmt.Println("\n3. Resting a reduce-only take profit at 100000...")
	res, err = rig.push(ctx, "take profit", placeOp(map[string]any{
		"symbol": "BTC/USD", "side": "sell", "type": "limit",
		"size": 0.04, "price": 100000.0, "reduce_only": true,
	}))
	if err != nil {
		return err
	}
	printPushResult(res)
	if len(res.Pending) != 1 {
		return fmt.Errorf("expected a resting order, got %+v", res)
	}

	fmt.Println("\n4. The market trades through the limit; reconciling...")
	if err := rig.venue.FillResting(res.Pending[0].OrderID); err != nil {
		return err
	}
	syncRes, err := rig.executor.SyncOrders(ctx, rig.ledger)
	if err != nil {
		return err
	}
	fmt.Printf("   reconciled %d order(s), commit %s\n", syncRes.UpdatedCount, syncRes.Hash)
	fmt.Printf("   realized rolling PnL: %+.2f\n", rig.executor.Breaker().RollingPnL())

	fmt.Println("\n5. Final history:")
	for _, c := range rig.ledger.Log(ledger.LogOptions{}) {
		printCommit(c)
	}
	return nil
}

func runDemoBreaker(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()

	fmt.Println("=== Circuit Breaker Demo ===")
	fmt.Println()

	rig := newDemoRig(nil)

	fmt.Println("1. A healthy order goes through...")
	res, err := rig.push(ctx, "warmup", placeOp(map[string]any{
		"symbol": "ETH/USD", "side": "buy", "notional": 500.0,
	}))
	if err != nil {
		return err
	}
	printPushResult(res)

	fmt.Println("\n2. Recording a 6% rolling loss (limit is 5%)...")
	rig.executor.Breaker().RecordPnL(-600)

	acct, err := rig.venue.GetAccount(ctx)
	if err != nil {
		return err
	}
	verdict := rig.executor.Breaker().Check(acct.Equity)
	fmt.Printf("   breaker verdict: allowed=%v reason=%q\n", verdict.Allowed, verdict.Reason)

	fmt.Println("\n3. The next order is rejected and the rejection is committed:")
	res, err = rig.push(ctx, "blocked attempt", placeOp(map[string]any{
		"symbol": "BTC/USD", "side": "buy", "notional": 500.0,
	}))
	if err != nil {
		return err
	}
	printPushResult(res)

	if got := rig.ledger.Status(); got.CommitCount != 2 {
		return fmt.Errorf("expected 2 commits, got %d", got.CommitCount)
	}
	fmt.Println("\nRejections are auditable history, not silent drops.")
	return nil
}
