package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/workfeed/internal/model"
)

var accountsCmd = &cobra.Command{
	Use:   "accounts",
	Short: "List connected GitHub accounts",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		accounts, err := rt.creds.ListAccounts(model.ServiceGitHub)
		if err != nil {
			return err
		}
		if len(accounts) == 0 {
			fmt.Println("No GitHub accounts connected. Run: workfeed connect github")
			return nil
		}

		active := rt.settings.ActiveAccount()
		for _, login := range accounts {
			marker := " "
			if login == active {
				marker = "*"
			}
			fmt.Printf("%s %s\n", marker, login)
		}
		return nil
	},
}

var useAccountCmd = &cobra.Command{
	Use:   "use <login>",
	Short: "Set the active GitHub account",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		accounts, err := rt.creds.ListAccounts(model.ServiceGitHub)
		if err != nil {
			return err
		}
		for _, login := range accounts {
			if login == args[0] {
				if err := rt.settings.SetActiveAccount(ctx, login); err != nil {
					return err
				}
				fmt.Printf("Active GitHub account is now %s\n", login)
				return nil
			}
		}
		return fmt.Errorf("account %q is not connected", args[0])
	},
}

func init() {
	accountsCmd.AddCommand(useAccountCmd)
	rootCmd.AddCommand(accountsCmd)
}
