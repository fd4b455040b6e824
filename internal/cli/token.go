package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newTokenCommand(a *app) *cobra.Command {
	var user, email string

	cmd := &cobra.Command{
		Use:   "token",
		Short: "Sign a bearer token for a user (development only)",
		RunE: func(cmd *cobra.Command, _ []string) error {
			if user == "" {
				user = a.cfg.LocalUser
			}
			token, err := a.tokens().Issue(user, email)
			if err != nil {
				return fmt.Errorf("sign token: %w", err)
			}
			_, err = fmt.Fprintln(cmd.OutOrStdout(), token)
			return err
		},
	}
	cmd.Flags().StringVar(&user, "user", "", "user id placed in the token (default from config local_user)")
	cmd.Flags().StringVar(&email, "email", "", "optional email claim")
	return cmd
}
