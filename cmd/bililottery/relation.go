package main

import (
	"strconv"
	"strings"

	"github.com/spf13/cobra"
)

// relationCmd checks how an account relates to the logged-in user.
var relationCmd = &cobra.Command{
	Use:   "relation <mid>",
	Short: "Check whether an account follows the logged-in user",
	Long: `Query the relation between the given account and the logged-in user:
fan, mutual follow, blocked, or not following. Useful for lottery rules
that require participants to be followers.`,
	Example: `  bililottery relation 12345678`,
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		mid, err := strconv.ParseInt(strings.TrimSpace(args[0]), 10, 64)
		if err != nil {
			return err
		}
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		relation, err := a.harvester.CheckRelation(ctx, mid)
		if err != nil {
			return err
		}
		return emitJSON(relation)
	},
}

func init() {
	rootCmd.AddCommand(relationCmd)
}
