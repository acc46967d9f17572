package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/knowledge-sync/internal/config"
)

func newCategoriesCmd(root *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "Prints the canonical category set and the fallback label",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			// Credentials are not needed to inspect the taxonomy, so skip Validate.
			cfg, err := config.Read(root.cfgFile)
			if err != nil {
				return err
			}
			set, err := cfg.CategorySet()
			if err != nil {
				return fmt.Errorf("categories: %w", err)
			}
			out := cmd.OutOrStdout()
			for _, label := range set.Labels() {
				fmt.Fprintln(out, label)
			}
			fmt.Fprintf(out, "\nfallback: %s\n", set.Fallback())
			return nil
		},
	}
}
