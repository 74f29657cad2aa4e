// cmd/helios-watch/serve.go
package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vedantsgith/Helios-Watch/internal/alerting"
	"github.com/vedantsgith/Helios-Watch/internal/anomaly"
	"github.com/vedantsgith/Helios-Watch/internal/api"
	"github.com/vedantsgith/Helios-Watch/internal/auth"
	"github.com/vedantsgith/Helios-Watch/internal/backend"
	"github.com/vedantsgith/Helios-Watch/internal/config"
	"github.com/vedantsgith/Helios-Watch/internal/ingest"
	"github.com/vedantsgith/Helios-Watch/internal/logging"
	"github.com/vedantsgith/Helios-Watch/internal/metrics"
	"github.com/vedantsgith/Helios-Watch/internal/simulator"
	"github.com/vedantsgith/Helios-Watch/internal/store"
	"github.com/vedantsgith/Helios-Watch/internal/telemetry"
	"github.com/vedantsgith/Helios-Watch/internal/websocket"
)

const (
	originFeed       = "feed"
	defaultJWTSecret = "change-me"
)

func newServeCommand(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the data and dashboard servers",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configDir)
			if err != nil {
				return err
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()
			return serve(ctx, cfg, logging.New(os.Stderr, cfg.Log.Level, cfg.Log.Format))
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	// --- Initialize Components ---
	m := metrics.New()
	st := store.New(
		store.WithRetention(cfg.Store.Retention),
		store.WithOverlayTimeout(cfg.Store.OverlayTimeout),
	)
	disp := ingest.NewDispatcher(st, m, logger, cfg.Feed.QueueSize)
	hub := websocket.NewHub(m, logger)

	sinks := []alerting.Sink{alerting.HubSink{Hub: hub}}
	if cfg.Alerting.Kafka.Enabled {
		ks := alerting.NewKafkaSink(cfg.Alerting.Kafka.Brokers, cfg.Alerting.Kafka.Topic)
		defer ks.Close()
		sinks = append(sinks, ks)
	}
	if cfg.Alerting.MQTT.Enabled {
		ms, err := alerting.DialMQTT(cfg.Alerting.MQTT.Broker, cfg.Alerting.MQTT.ClientID, cfg.Alerting.MQTT.Topic)
		if err != nil {
			logger.Error("mqtt alert sink disabled", slog.Any("error", err))
		} else {
			defer ms.Close()
			sinks = append(sinks, ms)
		}
	}
	alerter := alerting.NewAlerter(anomaly.NewDetector(logger), m, logger, sinks...)

	be, err := backend.New(cfg.Backend.AuthURL, cfg.Backend.SimulationURL, cfg.Backend.Timeout)
	if err != nil {
		return err
	}
	if cfg.Auth.JWTSecret == defaultJWTSecret {
		logger.Warn("auth.jwt_secret is the shipped default; set HELIOS_AUTH_JWT_SECRET before exposing the UI port")
	}
	am := auth.NewAuthManager(auth.Config{
		JWTSecret:     cfg.Auth.JWTSecret,
		JWTExpiration: cfg.Auth.JWTExpiration,
		CookieName:    cfg.Auth.CookieName,
		APIKeys:       cfg.Auth.APIKeys,
		JudgeKeys:     cfg.Auth.JudgeKeys,
		SecureCookie:  cfg.Auth.SecureCookie,
	})

	deps := api.Deps{
		Store:           st,
		Ingest:          disp,
		Hub:             hub,
		Backend:         be,
		Auth:            am,
		Metrics:         m.Handler(),
		Log:             logger,
		DefaultDuration: cfg.Simulation.Duration,
		StateLimit:      cfg.Server.StateSamples,
	}
	var runner *simulator.Runner
	if cfg.Simulation.Mode == "local" {
		runner = simulator.NewRunner(disp, cfg.Simulation.Interval, logger)
		deps.Simulator = runner
	}
	apiHandler, err := api.NewAPIHandler(deps)
	if err != nil {
		return fmt.Errorf("api handler: %w", err)
	}

	st.Subscribe(func(snap store.Snapshot) {
		m.StoreCommitted(snap.Version, snap.Overlay.Active)
		hub.BroadcastState(snap.Version, apiHandler.State(snap))
	})
	st.Subscribe(alerter.Observe)

	// --- Start background loops ---
	var wg sync.WaitGroup
	run := func(name string, fn func(context.Context) error) {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := fn(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logger.Error("loop exited", slog.String("loop", name), slog.Any("error", err))
			}
		}()
	}
	run("dispatcher", disp.Run)
	run("hub", func(ctx context.Context) error { hub.Run(ctx); return nil })
	run("alerter", func(ctx context.Context) error { alerter.Run(ctx); return nil })
	if cfg.Feed.Enabled {
		feed := &websocket.Feed{
			URL:        cfg.Feed.URL,
			MinBackoff: cfg.Feed.ReconnectMin,
			MaxBackoff: cfg.Feed.ReconnectMax,
			Log:        logger,
			OnFrame: func(ctx context.Context, raw []byte) {
				// rejects are already counted and logged by the dispatcher
				_ = disp.Submit(ctx, raw, originFeed)
			},
			OnStatus: func(ctx context.Context, s telemetry.ConnectionStatus) {
				m.FeedStatus(string(s))
				if err := disp.Enqueue(ctx, telemetry.ConnectionChange{Status: s}, originFeed); err != nil && ctx.Err() == nil {
					logger.Warn("enqueue connection status", slog.Any("error", err))
				}
			},
		}
		run("feed", feed.Run)
	}

	// --- Setup HTTP Servers ---
	dataServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.DataPort),
		Handler:           api.SetupDataRouter(apiHandler),
		ReadHeaderTimeout: 10 * time.Second,
	}
	uiServer := &http.Server{
		Addr:              fmt.Sprintf(":%d", cfg.Server.UIPort),
		Handler:           api.SetupUIRouter(apiHandler, cfg.Server.AllowedOrigins),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 2)
	for name, srv := range map[string]*http.Server{"data": dataServer, "ui": uiServer} {
		name, srv := name, srv
		go func() {
			logger.Info("starting server", slog.String("server", name), slog.String("addr", srv.Addr))
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				errCh <- fmt.Errorf("%s server: %w", name, err)
			}
		}()
	}

	// --- Graceful Shutdown ---
	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutting down servers")
	case serveErr = <-errCh:
		logger.Error("server failed", slog.Any("error", serveErr))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	for _, srv := range []*http.Server{dataServer, uiServer} {
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Warn("server shutdown", slog.String("addr", srv.Addr), slog.Any("error", err))
		}
	}
	if runner != nil {
		runner.Stop()
	}
	if serveErr != nil {
		// background loops only stop with ctx
		return serveErr
	}
	wg.Wait()
	logger.Info("servers gracefully stopped")
	return nil
}
