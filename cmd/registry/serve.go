// cmd/registry/serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"lendingregistry/internal/circulation"
	"lendingregistry/internal/config"
	"lendingregistry/internal/journal"
	"lendingregistry/internal/logger"
	"lendingregistry/internal/notify"
	"lendingregistry/internal/seed"
	"lendingregistry/internal/telemetry"
)

func newServeCmd() *cobra.Command {
	var (
		port     string
		seedFile string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the registry over HTTP",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := config.Load()
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("port") {
				cfg.Port = port
			}
			if cmd.Flags().Changed("seed") {
				cfg.SeedFile = seedFile
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg)
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port (overrides PORT)")
	cmd.Flags().StringVar(&seedFile, "seed", "", "TOML file of items and members to register at startup (overrides SEED_FILE)")
	return cmd
}

func serve(ctx context.Context, cfg config.Config) error {
	level, err := logger.ParseLevel(cfg.LogLevel)
	if err != nil {
		return err
	}
	log := logger.New(
		logger.WithLevel(level),
		logger.WithFormat(logger.Format(cfg.LogFormat)),
		logger.WithService(cfg.ServiceName),
		logger.WithAttr(slog.String("env", cfg.Environment)),
	)
	slog.SetDefault(log)

	providers, err := telemetry.Setup(ctx, telemetry.Options{
		ServiceName:  cfg.ServiceName,
		OTLPEndpoint: cfg.OTLPEndpoint,
	})
	if err != nil {
		return err
	}
	defer func() {
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
		defer cancel()
		if err := providers.Shutdown(shutdownCtx); err != nil {
			log.Warn("telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}()

	registry := circulation.NewRegistry(notificationChannel(cfg.Notify, log),
		circulation.WithLogger(log),
		circulation.WithTracerProvider(providers.TracerProvider),
		circulation.WithMeterProvider(providers.MeterProvider),
		circulation.WithJournal(journal.New(journal.WithTracerProvider(providers.TracerProvider))),
		circulation.WithDefaultMaxItems(cfg.DefaultMaxItems),
	)

	if cfg.SeedFile != "" {
		f, err := seed.LoadFile(cfg.SeedFile)
		if err != nil {
			return err
		}
		if err := f.Apply(ctx, registry); err != nil {
			return err
		}
		log.Info("registry seeded",
			slog.String("file", cfg.SeedFile),
			slog.Int("items", len(f.Items)),
			slog.Int("members", len(f.Members)),
		)
	}

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: circulation.NewHandler(registry, circulation.WithHandlerLogger(log)).Routes(),
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("registry listening", slog.String("port", cfg.Port))
		errCh <- srv.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("listen: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), cfg.ShutdownTimeout)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}

// notificationChannel always logs, posts to the webhook when one is configured,
// and throttles the whole chain when a rate is set.
func notificationChannel(cfg config.NotifyConfig, log *slog.Logger) notify.Channel {
	channels := notify.Fanout{notify.NewLogChannel(log)}
	if cfg.WebhookURL != "" {
		channels = append(channels, notify.NewWebhookChannel(cfg.WebhookURL,
			notify.WithWebhookTimeout(cfg.WebhookTimeout),
			notify.WithWebhookLogger(log),
		))
	}

	var ch notify.Channel = channels
	if cfg.Rate > 0 {
		ch = notify.NewThrottled(ch, cfg.Rate, cfg.Burst, log)
	}
	return ch
}
