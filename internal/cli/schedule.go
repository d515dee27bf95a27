package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/gmpsched/internal/adapters/catalog"
	cliadapter "github.com/example/gmpsched/internal/adapters/cli"
	"github.com/example/gmpsched/internal/apperr"
	"github.com/example/gmpsched/internal/core/workflow"
	"github.com/example/gmpsched/internal/ports/primary"
	"github.com/example/gmpsched/internal/wire"
)

// StartLayout is the format of --start.
const StartLayout = "2006-01-02 15:04"

// sessionFlags are shared by validate and schedule.
type sessionFlags struct {
	ordersPath  string
	timeout     time.Duration
	concurrency int
	retries     int
}

func (f *sessionFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.ordersPath, "orders", "", "YAML order batch (default: catalog sample orders)")
	cmd.Flags().DurationVar(&f.timeout, "perception-timeout", 0, "Per-sample perception timeout (default from config)")
	cmd.Flags().IntVar(&f.concurrency, "concurrency", 0, "Samples inspected in parallel (default from config)")
	cmd.Flags().IntVar(&f.retries, "perception-retries", 1, "Extra perception passes over samples whose provider call failed")
}

// orders returns the batch named by --orders, or the catalog sample batch.
func (f *sessionFlags) orders(ctx context.Context, c *wire.Container) ([]primary.OrderInput, error) {
	if f.ordersPath == "" {
		return c.Catalog.SampleOrders(ctx)
	}
	specs, err := catalog.LoadOrders(f.ordersPath)
	if err != nil {
		return nil, err
	}
	orders := make([]primary.OrderInput, 0, len(specs))
	for _, s := range specs {
		orders = append(orders, primary.OrderInput{
			ID:         s.ID,
			MaterialID: s.MaterialID,
			QuantityKg: s.QuantityKg,
			Deadline:   s.Deadline,
			Priority:   s.Priority,
		})
	}
	return orders, nil
}

// openSession starts a session and runs perception, retrying failed provider
// calls. The session is cancelled when it cannot leave perception.
func openSession(ctx context.Context, c *wire.Container, a *cliadapter.SchedulingAdapter, f *sessionFlags) (string, error) {
	orders, err := f.orders(ctx, c)
	if err != nil {
		return "", err
	}
	resp, err := a.Start(ctx, primary.StartSessionRequest{Orders: orders})
	if err != nil {
		return "", err
	}
	sessionID := resp.SessionID

	opts := primary.PerceptionOptions{Timeout: f.timeout, Concurrency: f.concurrency, Retries: f.retries}
	res, err := a.Perceive(ctx, sessionID, opts)
	if err != nil {
		_ = a.Cancel(context.WithoutCancel(ctx), sessionID)
		return "", err
	}
	if res.State == workflow.StatePerception {
		_ = a.Cancel(context.WithoutCancel(ctx), sessionID)
		return "", apperr.New(apperr.CodeProviderUnavailable, "perception left %d sample(s) without a check", res.Unresolved).
			WithDetail("session", sessionID)
	}
	return sessionID, nil
}

// ValidateCmd returns the validate command.
func ValidateCmd() *cobra.Command {
	var flags sessionFlags
	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Inspect samples and check the batch against GMP constraints",
		Long: `Run perception on every order sample and validate the batch against the
registered equipment. Nothing is reserved. Exits non-zero when a blocking
finding is reported.

Examples:
  gmpsched validate
  gmpsched validate --orders batch.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			c, err := wire.Get()
			if err != nil {
				return err
			}
			stop, err := serveMetrics(cmd)
			if err != nil {
				return err
			}
			defer stop()

			a := cliadapter.NewSchedulingAdapter(c.Scheduling, cmd.OutOrStdout())
			sessionID, err := openSession(ctx, c, a, &flags)
			if err != nil {
				return err
			}
			defer a.Cancel(context.WithoutCancel(ctx), sessionID)

			report, err := a.Validate(ctx, sessionID)
			if err != nil {
				return err
			}
			return report.Err()
		},
	}
	flags.register(cmd)
	return cmd
}

// ScheduleCmd returns the schedule command.
func ScheduleCmd() *cobra.Command {
	var (
		flags    sessionFlags
		start    string
		planID   string
		targets  []string
		dryRun   bool
		withCard bool
	)
	cmd := &cobra.Command{
		Use:   "schedule",
		Short: "Generate, confirm and dispatch a production schedule",
		Long: `Run the full scheduling workflow for an order batch:

1. Inspect every sample (perception)
2. Validate the batch against GMP constraints
3. Generate candidate plans and rank them
4. Confirm a plan and reserve its equipment windows
5. Dispatch the confirmed plan

The best-ranked candidate is confirmed unless --select names another.
Reservations outlive the run; release them with "gmpsched bookings release".

Examples:
  gmpsched schedule
  gmpsched schedule --orders batch.yaml --start "2023-10-30 08:00"
  gmpsched schedule --select plan-gmp-strict --dispatch file --dispatch kafka
  gmpsched schedule --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			genOpts := primary.GenerationOptions{}
			if start != "" {
				t, err := time.Parse(StartLayout, start)
				if err != nil {
					return apperr.New(apperr.CodeInvalidInput, "invalid --start %q (want %q)", start, StartLayout)
				}
				genOpts.Start = t
			}

			c, err := wire.Get()
			if err != nil {
				return err
			}
			stop, err := serveMetrics(cmd)
			if err != nil {
				return err
			}
			defer stop()

			a := cliadapter.NewSchedulingAdapter(c.Scheduling, out)
			sessionID, err := openSession(ctx, c, a, &flags)
			if err != nil {
				return err
			}

			confirmed, err := schedule(ctx, a, sessionID, genOpts, planID, dryRun)
			if err != nil || confirmed == nil {
				_ = a.Cancel(context.WithoutCancel(ctx), sessionID)
				return err
			}

			if err := a.Dispatch(ctx, sessionID, targets...); err != nil {
				return err
			}

			doc := confirmed.Document()
			fmt.Fprintln(out)
			cliadapter.PrintSchedule(out, doc)
			if withCard {
				for _, o := range doc.Orders {
					fmt.Fprintln(out)
					if err := cliadapter.PrintCard(out, doc, o.ID); err != nil {
						return err
					}
				}
			}
			fmt.Fprintf(out, "\nSession %s holds %d reservation window(s).\n", sessionID, len(doc.Plan.Items()))
			return nil
		},
	}
	flags.register(cmd)
	cmd.Flags().StringVar(&start, "start", "", "Planning start in UTC ("+StartLayout+")")
	cmd.Flags().StringVar(&planID, "select", "", "Candidate to confirm (default: best ranked)")
	cmd.Flags().StringSliceVar(&targets, "dispatch", []string{wire.ExporterFile}, "Dispatch targets (file, kafka)")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Stop after listing candidates; reserve nothing")
	cmd.Flags().BoolVar(&withCard, "cards", false, "Print a production card for every order")
	return cmd
}

// schedule drives an open session from validation to a confirmed plan.
// A dry run returns a nil plan once the candidates are printed.
func schedule(ctx context.Context, a *cliadapter.SchedulingAdapter, sessionID string, opts primary.GenerationOptions, planID string, dryRun bool) (*primary.ConfirmedPlan, error) {
	if err := a.Advance(ctx, sessionID); err != nil {
		return nil, err
	}
	if _, err := a.Generate(ctx, sessionID, opts); err != nil {
		return nil, err
	}
	if dryRun {
		return nil, nil
	}
	return a.Select(ctx, sessionID, planID)
}
