package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"dinidesk_backend/internal/identity"
)

const resolveTimeout = 10 * time.Second

func newLoginCmd(c *cli) *cobra.Command {
	var email, password string
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Sign in and print a session token",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wire(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			r := identity.NewResolver(a.deps.Identity, a.deps.Identity)
			defer r.Close()

			sess, err := r.SignIn(cmd.Context(), email, password)
			if err != nil {
				return err
			}
			return printJSON(cmd, sess)
		},
	}
	cmd.Flags().StringVar(&email, "email", "", "account email")
	cmd.Flags().StringVar(&password, "password", "", "account password")
	_ = cmd.MarkFlagRequired("email")
	_ = cmd.MarkFlagRequired("password")
	return cmd
}

func newWhoamiCmd(c *cli) *cobra.Command {
	var token string
	cmd := &cobra.Command{
		Use:   "whoami",
		Short: "Resolve a session token to its user",
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := wire(cmd.Context(), c.cfg)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(cmd.Context(), resolveTimeout)
			defer cancel()

			r := identity.NewResolver(a.deps.Identity, nil)
			defer r.Close()
			r.Init(ctx, token)

			for r.State().Loading {
				select {
				case <-r.Changes():
				case <-ctx.Done():
					return ctx.Err()
				}
			}
			st := r.State()
			if !st.Authenticated() {
				return errors.New("session is not valid")
			}
			return printJSON(cmd, st.Actor)
		},
	}
	cmd.Flags().StringVar(&token, "token", "", "session token")
	_ = cmd.MarkFlagRequired("token")
	return cmd
}

func printJSON(cmd *cobra.Command, v interface{}) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode output: %w", err)
	}
	return nil
}
