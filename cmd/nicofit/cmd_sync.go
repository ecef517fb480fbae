package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nicoschmidtj/nicofit2/internal/syncstore"
)

func newSyncCmd(configPath *string) *cobra.Command {
	return &cobra.Command{
		Use:   "sync",
		Short: "Merge the local state with the remote mirror",
		Long: `sync saves the local state unchanged, which merges it with the remote
mirror and writes the result to both slots. A conflict phase means the
mirror held newer data that is now local too.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			a, err := loadApp(ctx, *configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			res := syncNow(ctx, a.store)
			if res.Err != nil {
				return fmt.Errorf("sync failed: %w", res.Err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: %d sessions\n", res.Phase, len(res.State.Sessions))
			if res.Phase == syncstore.PhaseConflict {
				fmt.Fprintln(cmd.OutOrStdout(), "remote changes were merged into the local state")
			}
			return nil
		},
	}
}

func newLoginCmd(configPath *string) *cobra.Command {
	var logout bool

	cmd := &cobra.Command{
		Use:   "login [user]",
		Short: "Select the user whose mirror slot is synced",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !logout && len(args) == 0 {
				return fmt.Errorf("login needs a user id, or --logout")
			}
			ctx := cmd.Context()
			a, err := loadApp(ctx, *configPath, cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer a.Close()

			user := ""
			if !logout {
				user = args[0]
			}
			if err := a.store.SetUser(ctx, user); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "signed in as %s\n", a.store.UserID(ctx))
			return nil
		},
	}
	cmd.Flags().BoolVar(&logout, "logout", false, "sign out and fall back to the guest user")
	return cmd
}
