// Package cli implements the gmpsched command tree.
package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/example/gmpsched/internal/config"
	"github.com/example/gmpsched/internal/ctxutil"
	"github.com/example/gmpsched/internal/version"
	"github.com/example/gmpsched/internal/wire"
)

// RootCmd returns the gmpsched root command with every subcommand attached.
func RootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:     "gmpsched",
		Short:   "GMP shop-floor scheduling for herbal medicine production",
		Version: version.String(),
		Long: `gmpsched turns a batch of processing orders into a confirmed production
schedule. Each run inspects the order samples, checks the batch against GMP
constraints, generates candidate plans, and reserves equipment for the
selected plan.`,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: setup,
	}

	flags := root.PersistentFlags()
	flags.String("config-dir", ".", "Directory holding .gmpsched/config.json")
	flags.String("log-level", "", "Log level override (debug, info, warn, error)")
	flags.String("operator", "", "Operator recorded on reservations (default $USER)")
	flags.String("metrics-addr", "", "Serve Prometheus metrics on host:port while a run is active")

	root.AddCommand(CatalogCmd())
	root.AddCommand(ValidateCmd())
	root.AddCommand(ScheduleCmd())
	root.AddCommand(EquipmentCmd())
	root.AddCommand(BookingsCmd())
	root.AddCommand(CardCmd())
	root.AddCommand(ConfigCmd())
	root.AddCommand(VersionCmd())
	return root
}

// setup loads the configuration, applies flag overrides and hands the result
// to the wire package. The operator is attached to the command context.
func setup(cmd *cobra.Command, args []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}
	wire.Configure(cfg, cmd.ErrOrStderr())

	operator := cfg.Operator
	if operator == "" {
		operator = os.Getenv("USER")
	}
	cmd.SetContext(ctxutil.WithOperator(cmd.Context(), operator))
	return nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	dir, _ := cmd.Flags().GetString("config-dir")
	cfg, err := config.LoadOrDefault(dir)
	if err != nil {
		return nil, err
	}
	if v, _ := cmd.Flags().GetString("log-level"); v != "" {
		cfg.LogLevel = v
	}
	if v, _ := cmd.Flags().GetString("operator"); v != "" {
		cfg.Operator = v
	}
	if v, _ := cmd.Flags().GetString("metrics-addr"); v != "" {
		cfg.MetricsAddr = v
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// serveMetrics exposes the registry on the configured address until the
// returned stop function is called. Without an address it does nothing.
func serveMetrics(cmd *cobra.Command) (stop func(), err error) {
	c, err := wire.Get()
	if err != nil {
		return nil, err
	}
	addr := c.Config.MetricsAddr
	if addr == "" {
		return func() {}, nil
	}

	srv := &http.Server{Addr: addr, Handler: c.Metrics.Handler(), ReadHeaderTimeout: 5 * time.Second}
	go func() {
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			c.Logger.Error("metrics server stopped", "addr", addr, "error", err)
		}
	}()
	fmt.Fprintf(cmd.ErrOrStderr(), "metrics on http://%s/metrics\n", addr)

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = srv.Shutdown(ctx)
	}, nil
}
