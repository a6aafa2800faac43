package main

import (
	"context"
	"fmt"
	"log"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/nhle/workfeed/internal/credential"
	"github.com/nhle/workfeed/internal/model"
)

var (
	disconnectAccount string
	disconnectAll     bool
)

var disconnectCmd = &cobra.Command{
	Use:   "disconnect <service>",
	Short: "Remove a service's stored credentials",
	Args:  cobra.ExactArgs(1),
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

		target := svc.DisplayName()
		if disconnectAccount != "" {
			target = fmt.Sprintf("%s account %s", target, disconnectAccount)
		}

		var confirmed bool
		form := huh.NewForm(huh.NewGroup(
			huh.NewConfirm().
				Title(fmt.Sprintf("Disconnect %s?", target)).
				Description("Stored tokens are deleted from the keyring.").
				Value(&confirmed),
		))
		if err := form.Run(); err != nil {
			return err
		}
		if !confirmed {
			return nil
		}

		if err := rt.disconnect(ctx, svc, disconnectAccount, disconnectAll); err != nil {
			return err
		}
		fmt.Printf("Disconnected %s\n", target)
		return nil
	},
}

func init() {
	disconnectCmd.Flags().StringVar(&disconnectAccount, "account", "", "Disconnect a single account (GitHub)")
	disconnectCmd.Flags().BoolVar(&disconnectAll, "all", false, "Disconnect every account and the legacy slot")
	rootCmd.AddCommand(disconnectCmd)
}

// disconnect removes stored credentials and reconciles dependent state.
// The active-account pointer must stay a member of the registry, so it
// is repointed or cleared as accounts disappear; a GitHub disconnect
// that leaves no accounts also drops the commit baseline so a later
// reconnect starts from a fresh first sight.
func (r *runtime) disconnect(ctx context.Context, svc model.ServiceType, account string, all bool) error {
	switch {
	case account != "":
		if err := r.engine.DisconnectAccount(svc, account); err != nil {
			return err
		}
	case all || svc == model.ServiceGitHub:
		// GitHub tokens live in per-account slots; a plain disconnect
		// means all of them.
		if err := r.engine.DisconnectAll(svc); err != nil {
			return err
		}
	default:
		if err := r.engine.Disconnect(svc); err != nil {
			return err
		}
	}

	if svc != model.ServiceGitHub {
		return r.settings.MarkAuthenticated(ctx, svc, false)
	}

	remaining, err := r.creds.ListAccounts(svc)
	if err != nil {
		return err
	}
	if len(remaining) > 0 {
		if r.settings.ActiveAccount() == credential.NormalizeAccount(account) {
			return r.settings.SetActiveAccount(ctx, remaining[0])
		}
		return nil
	}

	if err := r.settings.SetActiveAccount(ctx, ""); err != nil {
		return err
	}
	if err := r.store.ClearBaseline(ctx); err != nil {
		log.Printf("clearing commit baseline: %v", err)
	}
	return r.settings.MarkAuthenticated(ctx, svc, false)
}
