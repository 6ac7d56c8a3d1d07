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

var allocateID int64

var allocateCmd = &cobra.Command{
	Use:   "allocate",
	Short: "Assign routes to vehicle slots for an allocation",
	RunE:  runAllocate,
}

func init() {
	allocateCmd.Flags().Int64Var(&allocateID, "allocation", 0, "allocation id")
	_ = allocateCmd.MarkFlagRequired("allocation")
	rootCmd.AddCommand(allocateCmd)
}

func runAllocate(cmd *cobra.Command, args []string) error {
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
			logger.New("allocate").Errorf("service close: %v", err)
		}
	}()
	svc.StartMetrics(ctx)

	fleet, err := svc.Allocate(ctx, allocateID)
	if err != nil {
		return err
	}
	cmd.Printf("allocation %d settled on %d vehicles\n", allocateID, fleet)
	return nil
}
