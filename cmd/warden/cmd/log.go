package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/mkarls/tradewarden/ledger"
)

var logFlags struct {
	limit  int
	symbol string
}

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the commit history",
	Long: `List ledger commits newest first, with per-operation summaries.

Examples:
  warden log
  warden log --limit 5
  warden log --symbol BTC/USD`,
	RunE: runLog,
}

func init() {
	rootCmd.AddCommand(logCmd)
	logCmd.Flags().IntVar(&logFlags.limit, "limit", 0, "show at most N commits (0 = all)")
	logCmd.Flags().StringVar(&logFlags.symbol, "symbol", "", "only commits touching this symbol")
}

func runLog(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	commits := a.ledger.Log(ledger.LogOptions{Limit: logFlags.limit, Symbol: logFlags.symbol})
	if len(commits) == 0 {
		fmt.Println("no commits")
		return nil
	}
	for _, c := range commits {
		printCommit(c)
	}
	return nil
}

func printCommit(c ledger.Commit) {
	fmt.Printf("commit %s", c.Hash)
	if c.Round > 0 {
		fmt.Printf(" (round %d)", c.Round)
	}
	fmt.Println()
	fmt.Printf("Date:   %s\n", c.Timestamp.Format("2006-01-02 15:04:05 MST"))
	fmt.Printf("\n    %s\n\n", c.Message)
	for _, s := range c.Summaries {
		fmt.Printf("    %-10s %-16s %-9s %s\n", s.Symbol, s.Action, s.Status, s.Change)
	}
	if len(c.Summaries) > 0 {
		fmt.Println()
	}
}
