package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/gmpsched/internal/ports/secondary"
	"github.com/example/gmpsched/internal/wire"
)

// EquipmentCmd returns the equipment command.
func EquipmentCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "equipment",
		Short: "Manage shop equipment",
		Long:  "List registered machines, register catalog machines and change machine status.",
	}
	cmd.AddCommand(equipmentListCmd())
	cmd.AddCommand(equipmentRegisterCmd())
	cmd.AddCommand(equipmentSetStatusCmd())
	return cmd
}

func equipmentListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List registered machines with their status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := wire.EquipmentAdapter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = adapter.List(cmd.Context())
			return err
		},
	}
}

func equipmentRegisterCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "register",
		Short: "Register catalog machines that are not yet known",
		Long: `Register every catalog machine missing from the database.
Machines already registered keep their current status.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := wire.EquipmentAdapter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = adapter.Register(cmd.Context())
			return err
		},
	}
}

func equipmentSetStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "set-status <equipment-id> <status>",
		Short: "Change a machine's status",
		Long: `Change a machine's status (idle, running, cleaning, maintenance).

A machine with future reservations cannot be taken into maintenance.

Examples:
  gmpsched equipment set-status eq3 idle
  gmpsched equipment set-status eq2 maintenance`,
		Args: cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := wire.EquipmentAdapter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			return adapter.SetStatus(cmd.Context(), args[0], args[1])
		},
	}
}

// BookingsCmd returns the bookings command.
func BookingsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "bookings",
		Short: "Inspect and release equipment reservations",
	}
	cmd.AddCommand(bookingsListCmd())
	cmd.AddCommand(bookingsReleaseCmd())
	return cmd
}

func bookingsListCmd() *cobra.Command {
	var filters secondary.BookingFilters
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List reservations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := wire.EquipmentAdapter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = adapter.Bookings(cmd.Context(), filters)
			return err
		},
	}
	cmd.Flags().StringVar(&filters.EquipmentID, "equipment", "", "Only reservations on this machine")
	cmd.Flags().StringVar(&filters.SessionID, "session", "", "Only reservations made by this session")
	cmd.Flags().IntVar(&filters.Limit, "limit", 0, "Maximum rows (0 for all)")
	return cmd
}

func bookingsReleaseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "release <session-id>",
		Short: "Release every reservation made by a session",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			adapter, err := wire.EquipmentAdapter(cmd.OutOrStdout())
			if err != nil {
				return err
			}
			_, err = adapter.Release(cmd.Context(), args[0])
			return err
		},
	}
}
