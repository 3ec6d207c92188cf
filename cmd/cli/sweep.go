package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cspulse/internal/services"

	"github.com/spf13/cobra"
)

var sweepCmd = &cobra.Command{
	Use:       "sweep <alerts|sla|surveys|reminders|all>",
	Short:     "Run a sweep once and print the summary as JSON",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{services.SweepAlerts, services.SweepSLA, services.SweepSurveys, services.SweepReminders, services.SweepAll},
	RunE:      runSweep,
}

func init() {
	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	res, err := a.sweeps.Run(ctx, args[0])
	if err != nil {
		return err
	}

	enc := json.NewEncoder(cmd.OutOrStdout())
	enc.SetIndent("", "  ")
	if err := enc.Encode(res); err != nil {
		return err
	}
	if res.Aborted {
		return fmt.Errorf("sweep %s aborted", res.Sweep)
	}
	return nil
}
