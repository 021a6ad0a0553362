package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/solstat/webhook-relay/internal/config"
	"github.com/solstat/webhook-relay/internal/gateway"
	"github.com/solstat/webhook-relay/internal/notify"
	"github.com/solstat/webhook-relay/internal/version"
)

func main() {
	configPath := flag.String("config", "configs/relay.yaml", "path to config file")
	envPath := flag.String("env", ".env", "path to optional .env file")
	logLevel := flag.String("log-level", "info", "log level (debug, info, warn, error)")
	flag.Parse()

	var level slog.Level
	if err := level.UnmarshalText([]byte(*logLevel)); err != nil {
		fmt.Fprintf(os.Stderr, "invalid -log-level %q: %v\n", *logLevel, err)
		os.Exit(2)
	}

	// Set up structured logging
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
	slog.SetDefault(logger)

	logger.Info("starting relay",
		"version", version.Version,
		"commit", version.Commit,
		"config", *configPath,
	)

	if err := config.LoadDotEnv(*envPath); err != nil {
		logger.Error("failed to load env file", "path", *envPath, "error", err)
		os.Exit(1)
	}

	cfg, err := config.LoadAndValidate(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// Create context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle shutdown signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logger.Info("received shutdown signal", "signal", sig)
		cancel()
	}()

	if err := run(ctx, cfg, logger); err != nil {
		logger.Error("relay stopped", "error", err)
		os.Exit(1)
	}

	logger.Info("relay stopped")
}

// run wires the forwarder, the connection manager and the health server and
// blocks until ctx is done or one of them fails.
func run(ctx context.Context, cfg *config.RelayConfig, logger *slog.Logger) error {
	sink := notify.NewWebhookClient(
		cfg.Sink.WebhookURL,
		notify.WithTimeout(cfg.Sink.Timeout),
		notify.WithLogger(logger),
	)
	forwarder := notify.NewForwarder(sink, forwarderConfig(cfg), logger)
	manager := gateway.NewManager(managerConfig(cfg), forwarder, logger)

	logger.Info("configuration loaded",
		"gateway_url", cfg.Gateway.URL,
		"webhook", sink.Endpoint(),
		"max_reconnect_interval", cfg.Gateway.MaxReconnectInterval,
	)

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		err := manager.Run(gctx)

		var termErr *gateway.TerminalError
		switch {
		case errors.As(err, &termErr):
			logger.Error("gateway refused the connection, not reconnecting",
				"kind", termErr.Kind,
				"code", termErr.Code,
				"reason", termErr.Reason,
			)
			if cfg.Policy.ExitOnTerminal {
				return err
			}
			// Stay up so the health endpoint reports the stopped state
			<-gctx.Done()
			return nil
		case errors.Is(err, context.Canceled):
			return nil
		default:
			return err
		}
	})

	if !cfg.Health.Disabled {
		healthServer := &http.Server{
			Addr:              fmt.Sprintf(":%d", cfg.Health.Port),
			Handler:           createHealthHandler(manager),
			ReadHeaderTimeout: 5 * time.Second,
		}

		g.Go(func() error {
			logger.Info("starting health server", "port", cfg.Health.Port)
			if err := healthServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("health server: %w", err)
			}
			return nil
		})

		g.Go(func() error {
			<-gctx.Done()

			shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer shutdownCancel()
			return healthServer.Shutdown(shutdownCtx)
		})
	}

	logger.Info("relay running")

	return g.Wait()
}

func managerConfig(cfg *config.RelayConfig) gateway.ManagerConfig {
	mc := gateway.DefaultManagerConfig()
	mc.Client.URL = cfg.Gateway.URL
	mc.Client.Token = cfg.Gateway.Token
	mc.Client.HandshakeTimeout = cfg.Gateway.HandshakeTimeout
	mc.Client.PingInterval = cfg.Gateway.PingInterval
	mc.Client.PingTimeout = cfg.Gateway.PingTimeout
	mc.ReconnectMaxWait = cfg.Gateway.MaxReconnectInterval
	mc.ConnectedNotifyDelay = cfg.Gateway.ConnectedNotifyDelay
	return mc
}

func forwarderConfig(cfg *config.RelayConfig) notify.ForwarderConfig {
	return notify.ForwarderConfig{
		Theme: notify.Theme{
			ServiceName:  cfg.Theme.ServiceName,
			SuccessColor: *cfg.Theme.Colors.Success,
			ErrorColor:   *cfg.Theme.Colors.Error,
			NoneColor:    *cfg.Theme.Colors.None,
			SuccessEmoji: cfg.Theme.Emojis.Success,
			ErrorEmoji:   cfg.Theme.Emojis.Error,
			NoneEmoji:    cfg.Theme.Emojis.None,
		},
		Overrides: notify.Overrides{
			Username:  cfg.Sink.OverrideUsername,
			AvatarURL: cfg.Sink.OverrideAvatarURL,
		},
		Timeout:    cfg.Sink.Timeout,
		RatePerSec: cfg.Sink.RatePerSec,
	}
}
