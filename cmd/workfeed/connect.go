package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/workfeed/internal/model"
)

var connectCmd = &cobra.Command{
	Use:   "connect <service>",
	Short: "Authorize a service and enable it in the feed",
	Long: `Runs the OAuth authorization flow for a service and stores the
resulting tokens in the system keyring. GitHub supports multiple
accounts; each connect adds one.

Services: github, teams, notion, gcal, syscal`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		svc, err := parseService(args[0])
		if err != nil {
			return err
		}

		rt, err := newRuntime(ctx)
		if err != nil {
			return err
		}
		defer rt.close()

		switch svc {
		case model.ServiceSystemCalendar:
			// No OAuth; the adapter requests OS permission on first fetch.
			if err := rt.settings.MarkAuthenticated(ctx, svc, true); err != nil {
				return err
			}
			fmt.Println("System calendar enabled; access is requested on the next refresh.")
			return nil

		case model.ServiceGitHub:
			cfg, ok := rt.env.ProviderFor(svc)
			if !ok {
				return fmt.Errorf("%s is not configured: set its client id and secret in .env", svc.DisplayName())
			}
			account, err := rt.engine.AuthorizeAccount(ctx, svc, cfg)
			if err != nil {
				return err
			}
			fmt.Printf("Connected GitHub account %s\n", account.Login)
			if rt.settings.ActiveAccount() == "" {
				if err := rt.settings.SetActiveAccount(ctx, account.Login); err != nil {
					return err
				}
			}

		default:
			cfg, ok := rt.env.ProviderFor(svc)
			if !ok {
				return fmt.Errorf("%s is not configured: set its client id and secret in .env", svc.DisplayName())
			}
			if _, err := rt.engine.Authorize(ctx, svc, cfg); err != nil {
				return err
			}
			fmt.Printf("Connected %s\n", svc.DisplayName())
		}

		return rt.settings.MarkAuthenticated(ctx, svc, true)
	},
}

func init() {
	rootCmd.AddCommand(connectCmd)
}

func parseService(name string) (model.ServiceType, error) {
	for _, svc := range model.AllServices {
		if string(svc) == name {
			return svc, nil
		}
	}
	return "", fmt.Errorf("unknown service %q (one of: github, teams, notion, syscal, gcal)", name)
}
