package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var showCmd = &cobra.Command{
	Use:   "show HASH",
	Short: "Show one commit in detail",
	Long: `Display a single commit: its parent, message, operations and
per-operation outcomes.

Example:
  warden show 3f9a1c2e`,
	Args: cobra.ExactArgs(1),
	RunE: runShow,
}

func init() {
	rootCmd.AddCommand(showCmd)
}

func runShow(cmd *cobra.Command, args []string) error {
	a, err := buildApp()
	if err != nil {
		return err
	}
	defer a.Close()

	c := a.ledger.Show(args[0])
	if c == nil {
		return fmt.Errorf("no commit with hash %s", args[0])
	}

	parent := c.ParentHash
	if parent == "" {
		parent = "(root)"
	}
	printCommit(*c)
	fmt.Printf("parent: %s\n", parent)
	for i, op := range c.Operations {
		fmt.Printf("op %d: %s %v\n", i, op.Action, op.Params)
	}
	return nil
}
