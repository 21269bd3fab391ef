package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ledger and pipeline state",
	Long: `Display the current ledger head, staged operations, pending orders
and the circuit breaker state.`,
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	st := a.ledger.Status()
	head := st.Head
	if head == "" {
		head = "(empty)"
	}
	fmt.Printf("head:     %s\n", head)
	fmt.Printf("commits:  %d\n", st.CommitCount)
	fmt.Printf("staged:   %d\n", st.Staged)
	if st.PendingMessage != "" {
		fmt.Printf("prepared: %q\n", st.PendingMessage)
	}

	pending := a.ledger.PendingOrders()
	if len(pending) > 0 {
		fmt.Printf("pending orders:\n")
		for _, p := range pending {
			fmt.Printf("  %-10s %s\n", p.Symbol, p.OrderID)
		}
	}

	breaker := a.executor.Breaker()
	fmt.Printf("breaker:  ")
	if breaker.IsTripped() {
		fmt.Printf("TRIPPED, rolling PnL %.2f\n", breaker.RollingPnL())
	} else {
		fmt.Printf("armed, rolling PnL %.2f\n", breaker.RollingPnL())
	}
	return nil
}
