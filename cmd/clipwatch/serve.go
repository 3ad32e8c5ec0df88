package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/time/rate"

	"github.com/jpalmerr/clipwatch"
	"github.com/jpalmerr/clipwatch/config"
	"github.com/jpalmerr/clipwatch/formguard"
	"github.com/jpalmerr/clipwatch/internal/metrics"
	"github.com/jpalmerr/clipwatch/internal/server"
	"github.com/jpalmerr/clipwatch/page"
	"github.com/jpalmerr/clipwatch/web"
)

const (
	shutdownTimeout = 10 * time.Second
)

// newLogger creates a JSON logger for CLI use.
func newLogger(level slog.Level) *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{
		Level: level,
	}))
}

// serveCmd starts the companion page server.
var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the progress page server",
	Long: `Start the clipwatch progress page server.

The server will:
  - Load configuration from the specified YAML file
  - Serve the progress page on the configured port
  - Poll job status for every open page session
  - Validate form submissions and proxy everything else upstream

The server runs until interrupted (Ctrl+C) or receives SIGTERM.

Example:
  clipwatch serve -c config.yaml
  clipwatch serve --config /etc/clipwatch/config.yaml`,
	RunE: runServe,
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().StringP("config", "c", "", "path to config file (required)")
	_ = serveCmd.MarkFlagRequired("config")
}

// pollerOptions translates the config into SDK options.
func pollerOptions(cfg *config.Config, logger *slog.Logger) []clipwatch.Option {
	opts := []clipwatch.Option{
		clipwatch.WithInterval(cfg.PollInterval.Duration()),
		clipwatch.WithRequestTimeout(cfg.RequestTimeout.Duration()),
		clipwatch.WithLogger(logger),
	}
	if cfg.RateLimit.Enabled() {
		opts = append(opts, clipwatch.WithRateLimit(rate.Limit(cfg.RateLimit.RequestsPerSecond), cfg.RateLimit.Burst))
	}
	return opts
}

// recordPoll feeds poll results into the metrics.
func recordPoll(m *metrics.Metrics) func(clipwatch.PollResult) {
	return func(r clipwatch.PollResult) {
		outcome := metrics.OutcomeProcessing
		switch {
		case r.Error != nil:
			outcome = metrics.OutcomeError
		case r.State == clipwatch.StateCompleted:
			outcome = metrics.OutcomeCompleted
		}
		m.ObservePoll(outcome, r.Latency.Seconds())
	}
}

// startSession returns the server's StartFunc backed by p.
func startSession(p *clipwatch.Poller) server.StartFunc {
	return func(ctx context.Context, sessionID string, doc *page.Document) (server.Watch, error) {
		h, err := p.PollInto(ctx, sessionID, clipwatch.DocumentView(doc))
		if err != nil {
			return nil, err
		}
		return h, nil
	}
}

func runServe(cmd *cobra.Command, args []string) error {
	configFile, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(configFile)
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	level, _ := config.ParseLevel(cfg.LogLevel)
	logger := newLogger(level)

	logger.Info("config loaded",
		"upstream", cfg.Upstream,
		"rate_limit", cfg.RateLimit.RequestsPerSecond,
	)
	logger.Info("starting server",
		"port", cfg.Port,
		"poll_interval", cfg.PollInterval.Duration().String(),
	)

	m := metrics.New()

	opts := append(pollerOptions(cfg, logger), clipwatch.WithStatusCallback(recordPoll(m)))
	p, err := clipwatch.New(cfg.Upstream, opts...)
	if err != nil {
		return fmt.Errorf("failed to create poller: %w", err)
	}
	defer p.Close()

	// set up context with signal handling - cancel on SIGINT/SIGTERM
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := server.NewServer(ctx, server.Options{
		Port:     cfg.Port,
		Title:    cfg.Title,
		Upstream: cfg.UpstreamURL(),
		Guard: formguard.Guard{
			Field:   cfg.Guard.Field,
			Message: cfg.Guard.Message,
			Logger:  logger,
		},
		Start:   startSession(p),
		Metrics: m,
		Assets:  web.Assets,
		Logger:  logger,
	})

	if err := srv.Start(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}

	<-ctx.Done()

	// signal received, wait for graceful shutdown with timeout
	select {
	case <-srv.Done():
		logger.Info("shutdown complete")
	case <-time.After(shutdownTimeout):
		logger.Warn("shutdown timed out",
			"timeout", shutdownTimeout.String(),
			"action", "forcing exit",
		)
	}
	return nil
}
