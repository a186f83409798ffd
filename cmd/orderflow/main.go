package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	nethttp "net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/btorressz/idxflow-orderflow/config"
	"github.com/btorressz/idxflow-orderflow/internal/app"
	"github.com/btorressz/idxflow-orderflow/internal/handlers/http"
	"github.com/btorressz/idxflow-orderflow/internal/lib/logger/handlers/slogpretty"
	"github.com/btorressz/idxflow-orderflow/internal/lib/logger/sl"
	"github.com/btorressz/idxflow-orderflow/pkg/utils"
)

const (
	envLocal = "local"
	envDev   = "dev"
	envProd  = "prod"
)

func main() {
	cfg := config.LoadConfig()
	log := setupLogger(cfg.Env)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	log.Info("initializing app", slog.String("env", cfg.Env))
	application, err := app.NewApp(ctx, log, cfg)
	if err != nil {
		log.Error("failed to initialize app", sl.Err(err))
		os.Exit(1)
	}

	httpAddr := fmt.Sprintf(":%s", cfg.HTTPPort)
	httpServer := http.NewServer(log, httpAddr, application.Staking, application.History, application.Broadcaster, application.Metrics.Handler())

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		log.Info("starting event processor")
		if err := application.EventProcessor.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("event processor: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		log.Info("http server listening", slog.String("addr", httpAddr))
		if err := httpServer.Start(); err != nil && !errors.Is(err, nethttp.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
		return nil
	})

	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		log.Info("shutting down http server")
		return httpServer.Shutdown(shutdownCtx)
	})

	// DEMO ONLY: feeds random swaps into the volume feed
	if cfg.DemoSwaps {
		g.Go(func() error {
			runDemoSwaps(gctx, log, application)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		log.Error("service stopped with error", sl.Err(err))
	}

	application.Cleanup(context.Background())
	log.Info("service stopped")
}

func runDemoSwaps(ctx context.Context, log *slog.Logger, application *app.AppContext) {
	log.Info("starting swap generator")
	generator := utils.NewSwapGenerator(10)
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info("swap generator stopped")
			return
		case <-ticker.C:
			if err := application.Feed(ctx, generator.GenerateRandomSwap(100)); err != nil && ctx.Err() == nil {
				log.Warn("failed to feed demo swaps", sl.Err(err))
			}
		}
	}
}

func setupLogger(env string) *slog.Logger {
	var log *slog.Logger

	switch env {
	case envLocal:
		log = setupPrettySlog()
	case envDev:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelDebug}),
		)
	case envProd:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	default:
		log = slog.New(
			slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}),
		)
	}

	return log
}

func setupPrettySlog() *slog.Logger {
	opts := slogpretty.PrettyHandlerOptions{
		SlogOpts: &slog.HandlerOptions{
			Level: slog.LevelDebug,
		},
	}

	handler := opts.NewPrettyHandler(os.Stdout)

	return slog.New(handler)
}
