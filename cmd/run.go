// -- cmd/run.go --
package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/xkilldash9x/checkride/api/schemas"
	"github.com/xkilldash9x/checkride/internal/coordinator"
	"github.com/xkilldash9x/checkride/internal/driver/cdp"
	"github.com/xkilldash9x/checkride/internal/history"
	"github.com/xkilldash9x/checkride/internal/observability"
	"github.com/xkilldash9x/checkride/internal/remote"
	"github.com/xkilldash9x/checkride/internal/reporting"
	"github.com/xkilldash9x/checkride/internal/session"
	"github.com/xkilldash9x/checkride/internal/suite"
)

var (
	runSeed       int64
	runUnits      []string
	runReportPath string
	runBaseURL    string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the registered test units as one execution plan.",
	Long: `Run builds an execution plan from the registered test units (or the
--units subset), shuffles it with the ordering seed, and dispatches the
units concurrently. A failing run prints the seed needed to replay the
exact start order.`,
	RunE: runPlan,
}

func init() {
	runCmd.Flags().String("mode", "", "execution mode: LOCAL or REMOTE")
	runCmd.Flags().Int("concurrency", 0, "max test units running at once")
	runCmd.Flags().Duration("wait-budget", 0, "explicit-wait budget per element resolution")
	runCmd.Flags().Int64Var(&runSeed, "seed", 0, "ordering seed for reproducible runs")
	runCmd.Flags().StringSliceVar(&runUnits, "units", nil, "subset of unit ids to run (default: all)")
	runCmd.Flags().StringVar(&runReportPath, "report", "", "write a JSON run report to this path")
	runCmd.Flags().StringVar(&runBaseURL, "base-url", "", "base URL the example units run against")

	viper.BindPFlag("harness.mode", runCmd.Flags().Lookup("mode"))
	viper.BindPFlag("runner.concurrency", runCmd.Flags().Lookup("concurrency"))
	viper.BindPFlag("facade.wait_budget", runCmd.Flags().Lookup("wait-budget"))

	rootCmd.AddCommand(runCmd)
}

func runPlan(cmd *cobra.Command, args []string) error {
	logger := observability.GetLogger()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	registry := suite.NewRegistry()
	suite.RegisterExampleUnits(registry, runBaseURL)

	units := runUnits
	if len(units) == 0 {
		units = registry.IDs()
	}

	mode, err := cfg.Harness.ParsedMode()
	if err != nil {
		return err
	}

	var provider schemas.Provider
	if mode == schemas.ModeRemote {
		provider = remote.NewClient(cfg.Remote, logger)
	}
	localFactory := func(ctx context.Context, caps schemas.Capabilities) (schemas.Driver, error) {
		return cdp.New(ctx, caps, logger)
	}

	manager, err := session.NewManager(cfg.Harness, provider, localFactory, logger)
	if err != nil {
		return err
	}

	coord, err := coordinator.New(cfg, logger, manager, registry)
	if err != nil {
		return err
	}

	plan := schemas.ExecutionPlan{
		Units:       units,
		Concurrency: cfg.Runner.Concurrency,
		Seed:        runSeed,
		SeedSet:     cmd.Flags().Changed("seed"),
	}

	result, err := coord.RunPlan(ctx, plan)
	if err != nil {
		// A coordinator fatal is distinct from individual test failures.
		return fmt.Errorf("run aborted: %w", err)
	}

	if err := reporting.WriteText(os.Stdout, result); err != nil {
		logger.Error("Failed to write run summary", zap.Error(err))
	}
	if runReportPath != "" {
		if err := reporting.WriteJSONFile(runReportPath, result); err != nil {
			logger.Error("Failed to write JSON report", zap.Error(err))
		}
	}

	if cfg.History.Enabled {
		if err := recordHistory(ctx, result); err != nil {
			logger.Error("Failed to record run history", zap.Error(err))
		}
	}

	if !result.Success() {
		observability.Sync()
		os.Exit(1)
	}
	return nil
}

// recordHistory persists the result to the configured Postgres database.
func recordHistory(ctx context.Context, result *schemas.AggregateResult) error {
	dbCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	pool, err := pgxpool.New(dbCtx, cfg.History.DSN)
	if err != nil {
		return fmt.Errorf("connect history database: %w", err)
	}
	defer pool.Close()

	store, err := history.New(dbCtx, pool, observability.GetLogger())
	if err != nil {
		return err
	}
	if err := store.EnsureSchema(dbCtx); err != nil {
		return err
	}
	return store.RecordRun(dbCtx, result)
}
