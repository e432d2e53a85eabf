package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/miradorstack/mirador-risk/internal/api"
	"github.com/miradorstack/mirador-risk/internal/metrics"
	"github.com/miradorstack/mirador-risk/internal/riskmodel"
	"github.com/miradorstack/mirador-risk/internal/services"
)

func serveCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve fleet risk over gRPC",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, logger, err := loadConfig(cmd, flags)
			if err != nil {
				return err
			}
			logger.Info("starting mirador-risk", slog.String("address", cfg.Server.Address))

			if err := metrics.Register(prometheus.DefaultRegisterer); err != nil {
				return err
			}

			ctx, stop := context.WithCancel(cmd.Context())
			defer stop()

			a, err := newApp(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer a.Close()

			var watchDone <-chan struct{}
			if cfg.Model.WatchArtifact {
				watchDone, err = riskmodel.Watch(ctx, logger, a.store.Path(), a.scorer.MarkStale)
				if err != nil {
					return err
				}
			}

			server, err := api.NewServer(cfg.Server, services.NewRiskService(logger, a.scorer))
			if err != nil {
				return err
			}

			var metricsServer *http.Server
			if cfg.Server.MetricsAddress != "" {
				mux := http.NewServeMux()
				mux.Handle("/metrics", promhttp.Handler())
				metricsServer = &http.Server{
					Addr:         cfg.Server.MetricsAddress,
					Handler:      mux,
					ReadTimeout:  5 * time.Second,
					WriteTimeout: 15 * time.Second,
				}
				go func() {
					logger.Info("metrics server listening", slog.String("address", cfg.Server.MetricsAddress))
					if err := metricsServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("metrics server exited", slog.Any("error", err))
						stop()
					}
				}()
			}

			go func() {
				if serveErr := server.Start(); serveErr != nil {
					logger.Error("gRPC server exited", slog.Any("error", serveErr))
					stop()
				}
			}()

			<-ctx.Done()
			logger.Info("shutdown signal received")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), server.GracefulTimeout())
			defer cancel()
			server.Shutdown(shutdownCtx)

			if metricsServer != nil {
				metricsCtx, cancelMetrics := context.WithTimeout(context.Background(), 5*time.Second)
				if err := metricsServer.Shutdown(metricsCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
					logger.Warn("metrics server shutdown", slog.Any("error", err))
				}
				cancelMetrics()
			}
			if watchDone != nil {
				<-watchDone
			}
			logger.Info("mirador-risk stopped")
			return nil
		},
	}
}
