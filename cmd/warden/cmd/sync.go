package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Reconcile pending orders against the venue",
	Long: `Query the venue for every pending order, record status changes as a
sync commit, and settle any deferred reduce-only PnL.`,
	RunE: runSync,
}

func init() {
	rootCmd.AddCommand(syncCmd)
}

func runSync(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	res, err := a.executor.SyncOrders(cmd.Context(), a.ledger)
	if err != nil {
		return err
	}
	if res.UpdatedCount == 0 {
		fmt.Println("nothing to reconcile")
		return nil
	}
	fmt.Printf("reconciled %d order(s), commit %s\n", res.UpdatedCount, res.Hash)
	return nil
}
