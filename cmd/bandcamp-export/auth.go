package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newAuthCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "auth",
		Short: "Check that a cookie signs in to Bandcamp",
		Long: `Resolves the cookie to a fan account and prints the account name and the
collection size Bandcamp reports, without fetching any purchases.`,
		Example: `  bandcamp-export auth --cookie 'identity=7%09...'
  pbpaste | bandcamp-export auth --cookie -`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cookie, err := a.cookieValue(cmd.InOrStdin())
			if err != nil {
				return err
			}

			session, err := a.openSession(cmd.Context(), cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer session.Close()

			identity, err := session.Authenticate(cmd.Context(), cookie)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Name:       %s\n", identity.DisplayName)
			if identity.UsernameSlug != "" {
				fmt.Fprintf(out, "Profile:    %s/%s\n", a.settings.BaseURL, identity.UsernameSlug)
			}
			fmt.Fprintf(out, "Fan ID:     %s\n", identity.FanID)
			fmt.Fprintf(out, "Collection: %d items\n", identity.ReportedCollectionCount)
			return nil
		},
	}
}
