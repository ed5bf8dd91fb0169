package main

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

func newCreateAdminCommand(opts *globalOptions) *cobra.Command {
	var email, nom string

	cmd := &cobra.Command{
		Use:   "create-admin",
		Short: "Crée un compte administrateur",
		Long:  "Crée un compte administrateur. Le mot de passe est lu dans PEAGES_ADMIN_PASSWORD.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			password := os.Getenv("PEAGES_ADMIN_PASSWORD")
			if password == "" {
				return errors.New("PEAGES_ADMIN_PASSWORD is not set")
			}

			c, err := opts.container()
			if err != nil {
				return err
			}
			defer c.Close()

			u, err := c.UserSvc.CreateAdmin(context.Background(), email, password, nom)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "admin %s created (id %d)\n", u.Email, u.ID)
			return nil
		},
	}

	cmd.Flags().StringVar(&email, "email", "", "admin email (required)")
	_ = cmd.MarkFlagRequired("email")
	cmd.Flags().StringVar(&nom, "nom", "", "last name")
	return cmd
}

// newSeedCommand reports the built-in roles; opening the container seeds the missing ones
func newSeedCommand(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Crée les rôles intégrés manquants",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			c, err := opts.container()
			if err != nil {
				return err
			}
			defer c.Close()

			roles, err := c.RoleSvc.List(context.Background())
			if err != nil {
				return err
			}
			w := cmd.OutOrStdout()
			for _, r := range roles {
				fmt.Fprintf(w, "%-18s %2d permissions  %s\n", r.Name, len(r.Permissions), r.Libelle)
			}
			return nil
		},
	}
}
