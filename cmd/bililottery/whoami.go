package main

import (
	"github.com/spf13/cobra"
)

// whoamiCmd prints the identity behind the configured session cookies.
var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Show the account the session cookies belong to",
	RunE: func(cmd *cobra.Command, args []string) error {
		a, err := newApp()
		if err != nil {
			return err
		}
		ctx, cancel := commandContext()
		defer cancel()

		user, err := a.client.FetchLoginUser(ctx)
		if err != nil {
			return err
		}
		return emitJSON(user)
	},
}

func init() {
	rootCmd.AddCommand(whoamiCmd)
}
