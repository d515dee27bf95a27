package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	cliadapter "github.com/example/gmpsched/internal/adapters/cli"
	"github.com/example/gmpsched/internal/core/production"
)

// CardCmd returns the card command. It reads an exported plan document and
// needs neither the database nor a provider.
func CardCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "card <plan.json> [order-id]",
		Short: "Print the schedule or one order's production card from an exported plan",
		Long: `Print a confirmed plan exported by the file dispatcher.

Without an order id the whole schedule is printed. With one, the production
card for that order lists its stages, the extended-drying marker and the
equipment lock notice for toxic materials.

Examples:
  gmpsched card ~/.gmpsched/exports/3f2a-plan-a.json
  gmpsched card ~/.gmpsched/exports/3f2a-plan-a.json ord-102`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read plan: %w", err)
			}
			doc, err := production.DecodePlanDocument(data)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if len(args) == 1 {
				cliadapter.PrintSchedule(out, doc)
				return nil
			}
			return cliadapter.PrintCard(out, doc, args[1])
		},
	}
}
