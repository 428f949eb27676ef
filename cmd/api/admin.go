package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"dinidesk_backend/internal/identity"
	"dinidesk_backend/internal/model"
	"dinidesk_backend/pkg/database"
	"dinidesk_backend/pkg/seed"
)

func newMigrateCmd(c *cli) *cobra.Command {
	return &cobra.Command{
		Use:   "migrate",
		Short: "Create or update the database schema and default settings",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wire(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := database.Migrate(a.db); err != nil {
				return err
			}
			if err := a.deps.Settings.EnsureDefaults(cmd.Context()); err != nil {
				return err
			}
			log.Info().Msg("Database migrated")
			return nil
		},
	}
}

func newSeedCmd(c *cli) *cobra.Command {
	var demo bool
	cmd := &cobra.Command{
		Use:   "seed",
		Short: "Create the initial admin account, optionally with demo data",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wire(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			if err := seed.Admin(cmd.Context(), a.deps.Identity, c.cfg.Admin); err != nil {
				return err
			}
			if demo {
				if err := seed.Demo(cmd.Context(), a.db, time.Now()); err != nil {
					return err
				}
				log.Info().Msg("Demo data seeded")
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&demo, "demo", false, "also insert demo platforms, accounts, plans and products")
	return cmd
}

func newUserCmd(c *cli) *cobra.Command {
	userCmd := &cobra.Command{
		Use:   "user",
		Short: "Manage back-office users",
	}

	var in identity.NewUser
	var role string
	create := &cobra.Command{
		Use:   "create",
		Short: "Create a user with the given role",
		RunE: func(cmd *cobra.Command, _ []string) error {
			r := model.Role(role)
			if !r.Valid() {
				return fmt.Errorf("unknown role %q", role)
			}
			in.Role = r

			a, err := wire(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			user, err := a.deps.Identity.CreateUser(cmd.Context(), in)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "created user %d <%s> as %s\n", user.ID, user.Email, user.Role)
			return nil
		},
	}
	create.Flags().StringVar(&in.Email, "email", "", "email address")
	create.Flags().StringVar(&in.Password, "password", "", "initial password")
	create.Flags().StringVar(&in.FirstName, "first-name", "", "first name")
	create.Flags().StringVar(&in.LastName, "last-name", "", "last name")
	create.Flags().StringVar(&role, "role", string(model.RoleStaff), "admin, staff or customer")
	_ = create.MarkFlagRequired("email")
	_ = create.MarkFlagRequired("password")

	userCmd.AddCommand(create)
	return userCmd
}
