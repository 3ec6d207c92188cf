package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"cspulse/internal/services"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"
)

var scheduleCmd = &cobra.Command{
	Use:   "schedule",
	Short: "Run sweeps on the cron specs from the scheduler config section",
	RunE:  runSchedule,
}

func init() {
	rootCmd.AddCommand(scheduleCmd)
}

// newScheduler 按配置注册各批处理，空表达式跳过
func newScheduler(a *app) (*cron.Cron, error) {
	loc, err := a.cfg.Engine.Location()
	if err != nil {
		return nil, err
	}
	c := cron.New(
		cron.WithLocation(loc),
		cron.WithLogger(cron.VerbosePrintfLogger(a.logger)),
		cron.WithChain(cron.Recover(cron.VerbosePrintfLogger(a.logger)), cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	jobs := []struct {
		sweep string
		spec  string
	}{
		{services.SweepSLA, a.cfg.Scheduler.SLA},
		{services.SweepAlerts, a.cfg.Scheduler.Alerts},
		{services.SweepSurveys, a.cfg.Scheduler.Surveys},
		{services.SweepReminders, a.cfg.Scheduler.Reminders},
	}
	registered := 0
	for _, job := range jobs {
		if job.spec == "" {
			continue
		}
		sweep := job.sweep
		if _, err := c.AddFunc(job.spec, func() {
			if _, err := a.sweeps.Run(context.Background(), sweep); err != nil {
				a.logger.Errorf("Scheduled sweep %s failed: %v", sweep, err)
			}
		}); err != nil {
			return nil, fmt.Errorf("invalid cron spec %q for sweep %s: %w", job.spec, sweep, err)
		}
		a.logger.Infof("Scheduled sweep %s at %q", sweep, job.spec)
		registered++
	}
	if registered == 0 {
		a.logger.Warn("No sweeps scheduled; every scheduler spec is empty")
	}
	return c, nil
}

func runSchedule(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	c, err := newScheduler(a)
	if err != nil {
		return err
	}
	c.Start()
	a.logger.Info("Scheduler started")

	<-ctx.Done()
	a.logger.Info("Stopping scheduler, waiting for running sweeps...")
	<-c.Stop().Done()
	return nil
}
