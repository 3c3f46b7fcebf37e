package cmd

import (
	"encoding/json"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/bcnelson/facepoke-broker/internal/domain"
)

func newListCmd() *cobra.Command {
	var jsonOutput bool

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List activation keys, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			env, err := openKeys(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer env.close()

			keys, err := env.keys.ListAll(cmd.Context())
			if err != nil {
				return err
			}
			views := make([]domain.KeyView, 0, len(keys))
			for _, k := range keys {
				views = append(views, k.View())
			}

			if jsonOutput {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(views)
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "SHORT HASH\tSTATUS\tOWNER\tNAME\tCREATED")
			for _, v := range views {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
					v.ShortHash, v.Status, dash(v.OwnerID), dash(v.OwnerName), v.CreatedAt.UTC().Format(time.DateTime))
			}
			return tw.Flush()
		},
	}

	cmd.Flags().BoolVar(&jsonOutput, "json", false, "Output keys as JSON")
	return cmd
}

func dash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}
