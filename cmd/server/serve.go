package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"gpu-renter/api/rest/handlers"
	"gpu-renter/api/rest/routes"
	"gpu-renter/core/monitoring"
	"gpu-renter/core/scheduler"
	"gpu-renter/observability"

	"github.com/gorilla/mux"
	"github.com/spf13/cobra"
)

const shutdownTimeout = 10 * time.Second

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the HTTP API and the tick scheduler",
	RunE:  runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, _ []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := newApp()
	if err != nil {
		return err
	}
	defer a.Close()

	shutdownTracing, err := observability.InitTracing(ctx, a.log, observability.TracingConfig{
		ServiceName: "gpu-renter",
		Exporter:    a.cfg.TracingExporter,
	})
	if err != nil {
		return err
	}
	defer func() {
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := shutdownTracing(sctx); err != nil {
			a.log.Warn("tracing shutdown failed", "error", err)
		}
	}()

	if err := a.prepareStore(ctx); err != nil {
		return err
	}
	svc, err := a.newService(ctx)
	if err != nil {
		return err
	}

	if a.cfg.SchedulerInterval > 0 {
		sched := scheduler.NewScheduler(svc, scheduler.Config{
			Interval:    a.cfg.SchedulerInterval,
			Concurrency: a.cfg.SchedulerConcurrency,
		}, a.log)
		go sched.Start(ctx)
		// runs before a.Close, so no pass is left writing to a closed store
		defer sched.Stop()
	} else {
		a.log.Info("scheduler disabled; runs advance only on explicit ticks")
	}

	costs := monitoring.NewCostTracker(a.ledger.Runs)
	r := mux.NewRouter()
	routes.SetupRoutes(r,
		handlers.NewRunHandler(svc, a.log),
		handlers.NewDashboardHandler(costs, monitoring.NewMetricsExporter(costs, svc), a.log),
		a.log,
	)

	server := &http.Server{
		Addr:              ":" + a.cfg.ServerPort,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		a.log.Info("starting server", "port", a.cfg.ServerPort)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	a.log.Info("shutting down server")
	sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(sctx); err != nil {
		return err
	}
	a.log.Info("server exited")
	return nil
}
