package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"
)

func bootstrapOwnerCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "bootstrap-owner",
		Short: "Create the workshop owner account when none exists",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			if err := a.Migrate(cmd.Context()); err != nil {
				return err
			}
			u, created, err := a.Users.BootstrapOwner(cmd.Context())
			if err != nil {
				return err
			}
			if created {
				fmt.Printf("created owner %s <%s>\n", u.Username, u.Email)
			} else {
				fmt.Printf("owner %s <%s> already exists\n", u.Username, u.Email)
			}
			return nil
		},
	}
}

func resetCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete all data and recreate the owner account",
		Long: `Delete every user, booking, notification and service record, then
recreate the owner account with the configured default password.

Examples:
  fixmybike-admin reset --yes`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return errors.New("refusing to wipe data without --yes")
			}
			a, err := open(cmd.Context())
			if err != nil {
				return err
			}
			defer a.Close()
			u, err := a.Users.AdminReset(cmd.Context(), a.Cfg.AdminResetSecret, a.Cfg.AdminResetSecret)
			if err != nil {
				return err
			}
			fmt.Printf("all data removed; owner %s recreated\n", u.Username)
			return nil
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "confirm the wipe")
	return cmd
}
