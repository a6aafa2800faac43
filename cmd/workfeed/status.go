package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nhle/workfeed/internal/model"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show per-service connection state and polling settings",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		rt, err := newRuntime(cmd.Context())
		if err != nil {
			return err
		}
		defer rt.close()

		for _, svc := range model.AllServices {
			state := "disconnected"
			switch {
			case rt.settings.IsAuthenticated(svc) && rt.settings.IsEnabled(svc):
				state = "connected"
			case rt.settings.IsAuthenticated(svc):
				state = "connected (hidden)"
			}
			fmt.Printf("%-17s %s\n", svc.DisplayName(), state)
		}

		fmt.Printf("\npoll interval      %s\n", rt.settings.PollInterval())
		fmt.Printf("calendar lookahead %dh\n", rt.settings.CalendarLookaheadHours())
		fmt.Printf("notification age   %dd\n", rt.settings.NotificationDays())
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
