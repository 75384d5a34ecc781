package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/locey/TaskAVS/base/stores/gdb/avs"
	"github.com/locey/TaskAVS/service/auth"
)

func NewAdminCommand(opts *RootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "admin",
		Short: "Identity moderation",
	}

	var reason string
	ban := &cobra.Command{
		Use:   "ban <address>",
		Short: "Ban a wallet from logging in and applying",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return moderate(cmd, opts, func(a *auth.Authenticator) (*avs.Identity, error) {
				return a.Ban(cmd.Context(), args[0], reason)
			})
		},
	}
	ban.Flags().StringVar(&reason, "reason", "", "reason shown to the user")

	unban := &cobra.Command{
		Use:   "unban <address>",
		Short: "Lift a ban",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return moderate(cmd, opts, func(a *auth.Authenticator) (*avs.Identity, error) {
				return a.Unban(cmd.Context(), args[0])
			})
		},
	}

	cmd.AddCommand(ban, unban)
	return cmd
}

func moderate(cmd *cobra.Command, opts *RootOptions, op func(a *auth.Authenticator) (*avs.Identity, error)) error {
	c, err := opts.load()
	if err != nil {
		return err
	}
	d, closeFn, err := openStore(c)
	if err != nil {
		return err
	}
	defer closeFn()

	a := auth.NewAuthenticator(d, auth.NewTokenIssuer(c.Auth.JwtSecret, c.Auth.TokenTTL))
	identity, err := op(a)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s banned=%t %s\n", identity.Address, identity.IsBanned, identity.BanReason)
	return nil
}
