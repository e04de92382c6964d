package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hosaammohammed1999-ai/radmeter1/common/database"
	commonlog "github.com/hosaammohammed1999-ai/radmeter1/common/logger"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/config"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/models"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/report"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/repository"
	"github.com/hosaammohammed1999-ai/radmeter1/internal/service"
)

const serviceName = "radmeter"

var (
	cfg    *config.Config
	logger *zap.Logger

	purgeTarget  string
	purgeConfirm bool
	employeeID   string
	tailCount    int64
	exportPath   string
	exportAlerts int

	rootCmd = &cobra.Command{
		Use:           "radmeter",
		Short:         "Radiation exposure accounting service",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			var err error
			if cfg, err = config.Load(); err != nil {
				return fmt.Errorf("failed to load config: %w", err)
			}
			if logger, err = commonlog.NewLogger(cfg.Log.Level, cfg.Log.Format, serviceName); err != nil {
				return fmt.Errorf("failed to initialize logger: %w", err)
			}
			return nil
		},
		PersistentPostRun: func(*cobra.Command, []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	serveCmd = &cobra.Command{
		Use:   "serve",
		Short: "Run ingestion, the write-behind loop, the scheduler and the HTTP API",
		RunE:  runServe,
	}

	migrateCmd = &cobra.Command{
		Use:   "migrate",
		Short: "Apply pending database migrations",
		RunE:  runMigrate,
	}

	purgeCmd = &cobra.Command{
		Use:   "purge",
		Short: "Delete stored data (readings, sessions, alerts, summaries, attendance or all)",
		RunE:  runPurge,
	}

	recomputeCmd = &cobra.Command{
		Use:   "recompute",
		Short: "Force a cumulative summary pass for one employee or everyone",
		RunE:  runRecompute,
	}

	alertsCmd = &cobra.Command{
		Use:   "alerts",
		Short: "Inspect safety alerts",
	}
	alertsTailCmd = &cobra.Command{
		Use:   "tail",
		Short: "Print the oldest events retained on the alert stream",
		RunE:  runAlertsTail,
	}

	exportCmd = &cobra.Command{
		Use:   "export",
		Short: "Write the cumulative exposure workbook to a file",
		RunE:  runExport,
	}
)

func init() {
	purgeCmd.Flags().StringVar(&purgeTarget, "target", "", "what to delete: readings|sessions|alerts|summaries|attendance|all")
	purgeCmd.Flags().BoolVar(&purgeConfirm, "yes", false, "confirm the deletion")
	_ = purgeCmd.MarkFlagRequired("target")

	recomputeCmd.Flags().StringVar(&employeeID, "employee", "", "employee id (default: all employees)")
	alertsTailCmd.Flags().Int64Var(&tailCount, "count", 20, "number of events to print")
	exportCmd.Flags().StringVarP(&exportPath, "out", "o", "cumulative_exposure.xlsx", "output file")
	exportCmd.Flags().IntVar(&exportAlerts, "alerts", repository.MaxAlertLimit, "number of recent alerts to include")

	alertsCmd.AddCommand(alertsTailCmd)
	rootCmd.AddCommand(serveCmd, migrateCmd, purgeCmd, recomputeCmd, alertsCmd, exportCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	logger.Info("Starting radmeter service",
		zap.String("addr", cfg.HTTP.Addr),
		zap.Bool("db", cfg.DBEnabled),
		zap.Bool("redis", cfg.RedisEnabled),
		zap.Bool("mqtt", cfg.MQTTEnabled),
		zap.String("timezone", cfg.Timezone),
	)

	svc, err := service.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer svc.Close()

	return svc.Run(ctx)
}

func runMigrate(cmd *cobra.Command, _ []string) error {
	if !cfg.DBEnabled {
		return errors.New("migrate requires DB_ENABLED=true")
	}
	db, err := database.NewPostgresDB(cmd.Context(), &cfg.Database)
	if err != nil {
		return err
	}
	defer database.Close(db)

	applied, err := repository.Migrate(cmd.Context(), db, logger)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "applied %d migration(s) %v\n", len(applied), applied)
	return nil
}

// openOffline opens the service backends without the MQTT subscription.
func openOffline(ctx context.Context) (*service.Service, error) {
	offline := *cfg
	offline.MQTTEnabled = false
	return service.Open(ctx, &offline, logger)
}

func runPurge(cmd *cobra.Command, _ []string) error {
	target, err := repository.ParsePurgeTarget(purgeTarget)
	if err != nil {
		return err
	}
	if !purgeConfirm {
		return fmt.Errorf("refusing to purge %s without --yes", target)
	}
	svc, err := openOffline(cmd.Context())
	if err != nil {
		return err
	}
	defer svc.Close()

	n, err := svc.Store.Purge(cmd.Context(), target)
	if err != nil {
		return err
	}
	logger.Warn("Purged stored data", zap.String("target", string(target)), zap.Int64("rows", n))
	fmt.Fprintf(cmd.OutOrStdout(), "purged %d row(s) from %s\n", n, target)
	return nil
}

func runRecompute(cmd *cobra.Command, _ []string) error {
	svc, err := openOffline(cmd.Context())
	if err != nil {
		return err
	}
	defer svc.Close()

	res, err := svc.Scheduler.ForceUpdate(cmd.Context(), employeeID)
	if err != nil {
		return err
	}
	return printJSON(cmd, res)
}

func runAlertsTail(cmd *cobra.Command, _ []string) error {
	if !cfg.RedisEnabled {
		return errors.New("alerts tail requires REDIS_ENABLED=true")
	}
	svc, err := openOffline(cmd.Context())
	if err != nil {
		return err
	}
	defer svc.Close()

	events, err := svc.Stream.Recent(cmd.Context(), tailCount)
	if err != nil {
		return err
	}
	return printJSON(cmd, events)
}

func runExport(cmd *cobra.Command, _ []string) error {
	svc, err := openOffline(cmd.Context())
	if err != nil {
		return err
	}
	defer svc.Close()

	ctx := cmd.Context()
	summaries, err := svc.Store.ListSummaries(ctx)
	if err != nil {
		return err
	}
	alerts, err := svc.Store.ListAlerts(ctx, models.AlertFilter{Limit: repository.ClampAlertLimit(exportAlerts)})
	if err != nil {
		return err
	}
	data, err := report.CumulativeWorkbook(summaries, alerts)
	if err != nil {
		return err
	}
	if err := os.WriteFile(exportPath, data, 0o644); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "wrote %s (%d employees, %d alerts)\n", exportPath, len(summaries), len(alerts))
	return nil
}

func printJSON(cmd *cobra.Command, v any) error {
	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
