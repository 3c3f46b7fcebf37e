package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bcnelson/facepoke-broker/internal/service"
	"github.com/bcnelson/facepoke-broker/internal/validation"
)

func newRevokeCmd() *cobra.Command {
	var owner, key, prefix string

	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke access by owner, raw key or short hash",
		Long: `Revokes access in one of three ways:

  --owner   clears every key bound to a user ID
  --key     clears the key with the given raw secret
  --prefix  deactivates an owned key, or deletes a never-used one, by short hash`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openKeys(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer env.close()

			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			var changed bool
			switch {
			case owner != "":
				if err := validation.ValidateOwnerID(owner); err != nil {
					return err
				}
				changed, err = env.keys.RevokeByOwner(ctx, owner)
			case key != "":
				if err := validation.ValidateActivationKey(key); err != nil {
					return err
				}
				changed, err = env.keys.RevokeBySecret(ctx, key)
			default:
				var action service.RevokeAction
				action, err = env.keys.RevokeByPrefix(ctx, prefix)
				if err == nil && action != service.RevokeNone {
					fmt.Fprintf(out, "key %s %s\n", prefix, action)
					return nil
				}
			}
			if err != nil {
				return err
			}
			if !changed {
				fmt.Fprintln(out, "nothing to revoke")
				return nil
			}
			fmt.Fprintln(out, "access revoked")
			return nil
		},
	}

	cmd.Flags().StringVar(&owner, "owner", "", "User ID whose keys to revoke")
	cmd.Flags().StringVar(&key, "key", "", "Raw activation key to revoke")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Short hash of the key to revoke")
	cmd.MarkFlagsMutuallyExclusive("owner", "key", "prefix")
	cmd.MarkFlagsOneRequired("owner", "key", "prefix")
	return cmd
}
