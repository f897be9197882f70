package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	log "github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"gymBuddyFunctions/internal/app"
	"gymBuddyFunctions/internal/config"
	"gymBuddyFunctions/internal/consumer"
	"gymBuddyFunctions/internal/logging"
	"gymBuddyFunctions/internal/workers"
	"gymBuddyFunctions/middleware"
)

func main() {
	if err := newRootCommand().Execute(); err != nil {
		log.WithError(err).Error("Command failed")
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:           "gymbuddy",
		Short:         "Gym Buddy backend event handlers",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	cmd.AddCommand(newServeCommand(), newSweepCommand())
	return cmd
}

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Serve the event ingress, run the hourly sweep and the optional Kafka consumer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx)
		},
	}
}

func newSweepCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "sweep",
		Short: "Resolve every record claim past its deadline once and exit",
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			cfg, a, err := bootstrap(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			ctx, cancel := context.WithTimeout(ctx, cfg.SweepTimeout)
			defer cancel()
			report, err := a.Claims.SweepExpiredClaims(ctx, time.Now().UTC())
			if err != nil {
				return err
			}
			if report.Failed > 0 {
				return fmt.Errorf("%d record claims failed to resolve", report.Failed)
			}
			return nil
		},
	}
}

func bootstrap(ctx context.Context) (*config.Config, *app.App, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, err
	}
	logging.Setup(logging.Options{Level: cfg.LogLevel, Format: cfg.LogFormat, File: cfg.LogFile})

	a, err := app.New(ctx, cfg)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise: %w", err)
	}
	return cfg, a, nil
}

func serve(ctx context.Context) error {
	cfg, a, err := bootstrap(ctx)
	if err != nil {
		return err
	}
	defer func() {
		log.Info("Closing store...")
		if err := a.Close(); err != nil {
			log.WithError(err).Error("Failed to close store")
		}
	}()

	middleware.InitPrometheus()
	limiter := middleware.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	handler, err := a.Handler(limiter)
	if err != nil {
		return err
	}

	scheduler := workers.NewScheduler(ctx, cfg.SweepTimeout)
	if err := scheduler.Add("record-claim-sweep", cfg.SweepSchedule, func(ctx context.Context) error {
		_, err := a.Claims.SweepExpiredClaims(ctx, time.Now().UTC())
		return err
	}); err != nil {
		return err
	}
	scheduler.Start()
	defer scheduler.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.Port,
		Handler:      handler,
		ReadTimeout:  5 * time.Second,
		WriteTimeout: cfg.SweepTimeout + 10*time.Second,
		IdleTimeout:  120 * time.Second,
		BaseContext:  func(net.Listener) context.Context { return ctx },
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		limiter.Cleanup(gctx)
		return nil
	})
	g.Go(func() error {
		log.WithField("port", cfg.Port).Info("Starting server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("error starting server: %w", err)
		}
		return nil
	})
	if cfg.KafkaEnabled() {
		reader := consumer.NewReader(cfg.KafkaBrokers, cfg.KafkaTopic, cfg.KafkaGroupID)
		g.Go(func() error {
			defer reader.Close()
			log.WithFields(log.Fields{"topic": cfg.KafkaTopic, "group": cfg.KafkaGroupID}).Info("Starting Kafka consumer")
			err := consumer.NewProcessor(reader, a.Router).Run(gctx)
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		})
	}
	g.Go(func() error {
		<-gctx.Done()
		log.Info("Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	})

	if err := g.Wait(); err != nil {
		return err
	}
	log.Info("Server shutdown complete")
	return nil
}
