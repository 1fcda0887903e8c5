package main

import (
	"context"
	"errors"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"ledger/internal/cli"
	"ledger/internal/config"
	apphttp "ledger/internal/http"
	"ledger/internal/ledger"
	ledgerlog "ledger/internal/log"
	"ledger/internal/metrics"
	"ledger/internal/ui"
)

func main() {
	cli.LoadEnvFile()
	logger := cli.SetupLogger(ledgerlog.ComponentApp)
	cfg := cli.LoadAndValidateConfig(logger)

	if err := run(logger, cfg); err != nil {
		logger.Error("Server error", "error", err, "port", cfg.Port)
		os.Exit(1)
	}
	logger.Info("Server stopped gracefully")
}

func run(logger *slog.Logger, cfg *config.Config) error {
	ctx, stop := cli.ShutdownContext(logger)
	defer stop()

	res := cli.InitBackend(ctx, logger, cfg)
	defer func() {
		if err := res.Cleanup(); err != nil {
			logger.Error("Backend cleanup failed", "error", err)
		}
	}()

	opts := []ledger.Option{
		ledger.WithRecorder(metrics.New(prometheus.DefaultRegisterer)),
		ledger.WithQueueSize(cfg.WriteQueueSize),
	}
	if res.Publisher != nil {
		opts = append(opts, ledger.WithPublisher(res.Publisher))
	}
	engine := ledger.New(res.Store, opts...)
	// The writer outlives the signal so in-flight requests can finish; it is
	// stopped after the server below.
	engine.Start(context.WithoutCancel(ctx))
	defer engine.Stop()

	srv := apphttp.NewServer(":"+cfg.Port, engine, ui.NewController(engine), apphttp.Options{
		Ready: func(ctx context.Context) error {
			_, err := res.Store.PeriodCount(ctx)
			return err
		},
	})

	// Event streams end with the process context, otherwise Shutdown would
	// wait on them until its timeout.
	srv.BaseContext = func(net.Listener) context.Context { return ctx }

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		logger.Info("Starting ledger server", "port", cfg.Port, "backend", cfg.DataBackend, "amqp", res.Publisher != nil)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	})

	return g.Wait()
}
