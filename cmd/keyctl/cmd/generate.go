package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/bcnelson/facepoke-broker/internal/domain"
)

func newGenerateCmd() *cobra.Command {
	var count int

	cmd := &cobra.Command{
		Use:   "generate",
		Short: "Generate new activation keys",
		Long: `Generates activation keys and prints each raw key once.
Only the hash is stored, so the printed key cannot be recovered later.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if count < 1 {
				return fmt.Errorf("--count must be at least 1")
			}
			env, err := openKeys(cmd.ErrOrStderr())
			if err != nil {
				return err
			}
			defer env.close()

			out := cmd.OutOrStdout()
			for i := 0; i < count; i++ {
				key, err := env.keys.Generate(cmd.Context())
				if err != nil {
					return err
				}
				if link := domain.ActivationLink(env.botUsername, key); link != "" {
					fmt.Fprintf(out, "%s\t%s\n", key, link)
				} else {
					fmt.Fprintln(out, key)
				}
			}
			return nil
		},
	}

	cmd.Flags().IntVarP(&count, "count", "n", 1, "Number of keys to generate")
	return cmd
}
