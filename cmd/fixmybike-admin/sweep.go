package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func sweepCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Run a background sweep once",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reminders",
		Short: "Send due tomorrow and four-hour booking reminders",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			day, err := a.Notifications.SweepTomorrowReminders(cmd.Context())
			if err != nil {
				return err
			}
			soon, err := a.Notifications.SweepFourHourReminders(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("sent %d tomorrow and %d four-hour reminders\n", day, soon)
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "cleanup",
		Short: "Delete read notifications past the retention period",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			n, err := a.Notifications.CleanupOldNotifications(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("removed %d read notifications\n", n)
			return nil
		},
	})
	return cmd
}
