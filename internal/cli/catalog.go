package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/gmpsched/internal/wire"
)

// CatalogCmd returns the catalog command.
func CatalogCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "catalog",
		Short: "Show materials, catalog machines and the sample order batch",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := wire.CatalogAdapter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = adapter.Show(cmd.Context())
			return err
		},
	}
}
