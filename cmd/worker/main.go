package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/m-ovchinnikov/export-compliance/internal/bootstrap"
	"github.com/m-ovchinnikov/export-compliance/internal/config"
	"github.com/m-ovchinnikov/export-compliance/internal/observability/logging"
	"github.com/m-ovchinnikov/export-compliance/internal/observability/metrics"
)

const serviceName = "compliance-worker"

const reconcileTimeout = 30 * time.Second

func main() {
	cfg := config.Load()
	logging.Setup(serviceName, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := bootstrap.New(ctx, cfg)
	if err != nil {
		slog.Error("bootstrap failed", "error", err)
		os.Exit(1)
	}
	defer app.Close()

	workerMetrics := metrics.NewWorkerMetrics(serviceName)

	metricsServer := &http.Server{
		Addr:              ":" + cfg.WorkerMetricsPort,
		Handler:           metricsHandler(workerMetrics),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("metrics server failed", "error", err)
		}
	}()

	handler := func(msgCtx context.Context, shipmentID string) error {
		opCtx, cancel := context.WithTimeout(msgCtx, reconcileTimeout)
		defer cancel()

		workerMetrics.StartReconcile()
		start := time.Now()
		records, created, err := app.Reconciler.ReconcileByID(opCtx, shipmentID)
		workerMetrics.FinishReconcile(serviceName, time.Since(start), created, err)

		if err != nil {
			slog.Error("reconcile failed", "shipment_id", shipmentID, "error", err)
			return err
		}
		slog.Info("reconcile done",
			"shipment_id", shipmentID,
			"records", len(records),
			"created", created,
		)
		return nil
	}

	slog.Info("worker listening", "metrics_addr", metricsServer.Addr)

	// Blocks until the context is cancelled, then drains the subscription.
	if err := app.Events.SubscribeShipmentChanged(ctx, handler); err != nil && !errors.Is(err, context.Canceled) {
		slog.Error("subscription terminated", "error", err)
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := metricsServer.Shutdown(shutdownCtx); err != nil {
		slog.Error("metrics server shutdown failed", "error", err)
	}
}

func metricsHandler(m *metrics.WorkerMetrics) http.Handler {
	mux := http.NewServeMux()
	mux.Handle("GET /metrics", m.Handler())
	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	return mux
}
