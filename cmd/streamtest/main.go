// streamtest connects to the gateway and prints decoded frames together with
// the webhook body the relay would send for them. Nothing is posted.
// Usage: go run ./cmd/streamtest --config configs/relay.yaml
//
// Required environment variables (unless set in the config):
//
//	TOKEN - gateway API token
package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/solstat/webhook-relay/internal/config"
	"github.com/solstat/webhook-relay/internal/gateway"
	"github.com/solstat/webhook-relay/internal/notify"
)

func main() {
	configPath := flag.String("config", "configs/relay.yaml", "path to config file")
	envPath := flag.String("env", ".env", "path to optional .env file")
	verbose := flag.Bool("verbose", false, "print full rendered JSON")
	flag.Parse()

	// Setup logger
	logger := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: slog.LevelDebug,
	}))

	if err := config.LoadDotEnv(*envPath); err != nil {
		logger.Error("failed to load env file", "error", err)
		os.Exit(1)
	}

	// Sink settings are not needed here, so the config is not validated
	cfg, err := config.LoadWithDefaults(*configPath)
	if err != nil {
		logger.Error("failed to load config", "error", err)
		os.Exit(1)
	}
	if cfg.Gateway.URL == "" || cfg.Gateway.Token == "" {
		logger.Error("gateway url and token are required",
			"url_set", cfg.Gateway.URL != "",
			"token_set", cfg.Gateway.Token != "",
		)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("received shutdown signal")
		cancel()
	}()

	client := gateway.NewClient(gateway.ClientConfig{
		URL:              cfg.Gateway.URL,
		Token:            cfg.Gateway.Token,
		HandshakeTimeout: cfg.Gateway.HandshakeTimeout,
		PingInterval:     cfg.Gateway.PingInterval,
		PingTimeout:      cfg.Gateway.PingTimeout,
	}, logger)

	logger.Info("connecting to gateway", "url", cfg.Gateway.URL)
	if err := client.Connect(ctx); err != nil {
		logger.Error("failed to connect", "error", err)
		os.Exit(1)
	}
	defer client.Close()

	// Only Prepare and Render are used, so no sink is attached
	preview := notify.NewForwarder(nil, notify.ForwarderConfig{
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
	}, logger)

	counts := make(map[string]int)
	ticker := time.NewTicker(10 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return

		case <-ticker.C:
			logger.Info("stats", "frames", counts)

		case msg := <-client.Messages():
			in, err := gateway.DecodeFrame(msg.Data)
			if err != nil {
				counts["invalid"]++
				logger.Warn("undecodable frame", "error", err, "raw", string(msg.Data))
				continue
			}
			counts[in.Action.String()]++
			printFrame(preview, in, msg.ReceivedAt, *verbose)

		case ev := <-client.Closed():
			kind := gateway.ClassifyClose(ev.Code, ev.Reason)
			logger.Warn("gateway closed the connection",
				"code", ev.Code,
				"reason", ev.Reason,
				"kind", kind,
				"terminal", kind.Terminal(),
			)
			return
		}
	}
}

func printFrame(preview *notify.Forwarder, in gateway.Inbound, at time.Time, verbose bool) {
	ts := at.Format("15:04:05.000")

	var out notify.Message
	switch in.Action {
	case gateway.ActionEnabled:
		out = preview.Render(notify.StatusEnabled)
	case gateway.ActionDisabled:
		out = preview.Render(notify.StatusDisabled)
	case gateway.ActionExecuteWebhook:
		msg, err := preview.Prepare(in.Data)
		if err != nil {
			fmt.Printf("[%s] %-15s ERROR %v\n", ts, in.Name, err)
			return
		}
		out = msg
	case gateway.ActionUnknown:
		fmt.Printf("[%s] %-15s unknown action\n", ts, in.Name)
		return
	}

	if !verbose {
		body, _ := json.Marshal(out)
		fmt.Printf("[%s] %-15s content=%q thread=%q body=%dB\n",
			ts, in.Name, out.Content, out.ThreadID, len(body))
		return
	}

	body, _ := json.MarshalIndent(out, "", "  ")
	fmt.Printf("[%s] %s\n%s\n", ts, in.Name, body)
}
