package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkarls/tradewarden/execution"
	"github.com/mkarls/tradewarden/ledger"
)

var cancelSymbol string

var cancelCmd = &cobra.Command{
	Use:   "cancel ORDER_ID",
	Short: "Cancel a resting order",
	Long: `Cancel a pending order on the venue and record the cancellation as a
ledger commit.

Example:
  warden cancel tw-01J8X2 --symbol BTC/USD`,
	Args: cobra.ExactArgs(1),
	RunE: runCancel,
}

func init() {
	rootCmd.AddCommand(cancelCmd)
	cancelCmd.Flags().StringVar(&cancelSymbol, "symbol", "", "symbol the order belongs to")
}

func runCancel(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	orderID := args[0]
	a.ledger.Add(ledger.Operation{Action: execution.ActionCancelOrder, Params: map[string]any{
		"order_id": orderID,
		"symbol":   cancelSymbol,
	}})
	if _, err := a.ledger.Commit(fmt.Sprintf("cancel %s", orderID)); err != nil {
		return err
	}
	res, err := a.ledger.Push(cmd.Context())
	if err != nil {
		return err
	}
	printPushResult(res)
	return nil
}
