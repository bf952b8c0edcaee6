package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/spf13/cobra"

	"github.com/matthewjhunter/veille/internal/ai"
	"github.com/matthewjhunter/veille/internal/metrics"
)

func daemonCmd() *cobra.Command {
	var interval time.Duration
	var metricsAddr string

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Scan every topic in a loop with configurable interval",
		Long: `Continuously scan all topics on a timer, exposing Prometheus metrics.
Designed for running inside a Docker container or as a background service.
Handles SIGINT/SIGTERM for graceful shutdown (finishes the current article).`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			reg := prometheus.NewRegistry()
			reg.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

			engine, err := openEngine(reg)
			if err != nil {
				return err
			}
			defer engine.Close()

			if metricsAddr != "" {
				srv := &http.Server{Addr: metricsAddr, Handler: metrics.Handler(reg), ReadHeaderTimeout: 10 * time.Second}
				go func() {
					if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
						logger.Error("metrics server failed", "addr", metricsAddr, "error", err)
					}
				}()
				defer srv.Close()
				logger.Info("serving metrics", "addr", metricsAddr)
			}

			logger.Info("daemon starting", "interval", interval)

			cycle := 1
			for {
				start := time.Now()
				logger.Info("cycle starting", "cycle", cycle)

				results, err := engine.ScanAll(ctx)
				created := 0
				for _, r := range results {
					created += r.CardsCreated
				}
				switch {
				case errors.Is(err, ai.ErrMissingCredential):
					return err
				case ctx.Err() != nil:
					logger.Info("received shutdown signal, exiting")
					return nil
				case err != nil:
					logger.Error("cycle failed", "cycle", cycle, "error", err)
				default:
					logger.Info("cycle completed", "cycle", cycle, "cards", created,
						"elapsed", time.Since(start).Round(time.Millisecond))
				}

				cycle++

				// Wait for the next tick or a shutdown signal.
				timer := time.NewTimer(interval)
				select {
				case <-ctx.Done():
					timer.Stop()
					logger.Info("received shutdown signal, exiting")
					return nil
				case <-timer.C:
				}
			}
		},
	}

	cmd.Flags().DurationVarP(&interval, "interval", "i", time.Hour, "duration between scan cycles (e.g. 30m, 1h)")
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", ":9090", "address serving /metrics (empty disables)")
	return cmd
}
