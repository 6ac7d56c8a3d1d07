package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/evfleet/fleetplan/app"
	"github.com/evfleet/fleetplan/config"
	"github.com/evfleet/fleetplan/infra/logger"
)

var scheduleID int64

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Compute the charging profile for a scenario",
	RunE:  runSchedule,
}

func init() {
	scheduleCmd.Flags().Int64Var(&scheduleID, "scenario", 0, "scenario id")
	_ = scheduleCmd.MarkFlagRequired("scenario")
	rootCmd.AddCommand(scheduleCmd)
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("schedule").Errorf("service close: %v", err)
		}
	}()
	svc.StartMetrics(ctx)

	sum, err := svc.Schedule(ctx, scheduleID)
	if err != nil {
		return err
	}
	cmd.Printf("scenario %d: %.1f kWh scheduled, %d breach days, %d magic days, %d timeouts\n",
		scheduleID, sum.OutputKWh, sum.BreachDays, sum.MagicDays, sum.TimeoutDays)
	return nil
}
