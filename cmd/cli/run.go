package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"cspulse/internal/handlers"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
)

var (
	runMigrate       bool
	runWithScheduler bool
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the HTTP API server",
	Long:  `Serve the staff API, the public survey endpoints, sweep triggers, health checks and metrics.`,
	RunE:  run,
}

func init() {
	runCmd.Flags().BoolVar(&runMigrate, "migrate", false, "run database migrations before serving")
	runCmd.Flags().BoolVar(&runWithScheduler, "schedule", false, "also run the cron sweep scheduler in this process")
	rootCmd.AddCommand(runCmd)
}

func run(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := newApp(ctx)
	if err != nil {
		return err
	}
	defer a.Close(context.Background())

	if runMigrate {
		if err := migrate(a.db); err != nil {
			return err
		}
	}

	if runWithScheduler {
		sched, err := newScheduler(a)
		if err != nil {
			return err
		}
		sched.Start()
		defer func() { <-sched.Stop().Done() }()
	}

	if a.logger.IsLevelEnabled(logrus.DebugLevel) {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	router := setupRouter(a)
	server := &http.Server{
		Addr:    fmt.Sprintf("%s:%d", a.cfg.Server.Host, a.cfg.Server.Port),
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Infof("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server failed: %w", err)
		}
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), a.cfg.Server.ShutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		a.logger.Errorf("Server forced to shutdown: %v", err)
	}
	a.logger.Info("Server exited")
	return nil
}

func setupRouter(a *app) *gin.Engine {
	var pinger handlers.RedisPinger
	for _, d := range a.cfg.Notifier.Drivers {
		if strings.EqualFold(d, "redis") {
			pinger = a.redisClient()
		}
	}

	opts := handlers.RouterOptions{
		MetricsEnabled: a.cfg.Monitoring.Enabled,
		MetricsPath:    a.cfg.Monitoring.MetricsPath,
		AccessLog:      true,
	}
	if a.cfg.Monitoring.Tracing.Enabled {
		opts.ServiceName = a.cfg.Monitoring.Tracing.ServiceName
	}

	return handlers.NewRouter(handlers.Handlers{
		Health:  handlers.NewHealthHandler(a.db, pinger, Version, a.logger),
		Tickets: handlers.NewTicketHandler(a.tickets, a.sla, a.logger),
		Alerts:  handlers.NewAlertHandler(a.alerts, a.logger),
		Surveys: handlers.NewSurveyHandler(a.surveys, a.logger),
		Sweeps:  handlers.NewSweepHandler(a.sweeps, a.logger),
	}, opts)
}
