package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/boardsync/boardsync/internal/api"
	"github.com/boardsync/boardsync/internal/channel"
	"github.com/boardsync/boardsync/internal/config"
	"github.com/boardsync/boardsync/internal/event"
	"github.com/boardsync/boardsync/internal/logging"
	"github.com/boardsync/boardsync/internal/metrics"
	"github.com/boardsync/boardsync/internal/reconcile"
)

func main() {
	cfgFile := flag.String("config", "", "Path to config file")
	poll := flag.Duration("poll-interval", 0, "Override notification poll interval")
	runOnce := flag.Bool("run-once", false, "run one notification refresh and exit")
	flag.Parse()

	cfg := config.DefaultConfig()
	// load from file if provided (overrides defaults)
	if *cfgFile != "" {
		c, err := config.LoadConfigFromFile(*cfgFile)
		if err != nil {
			log.Fatalf("failed loading config: %v", err)
		}
		cfg = c
	}

	// apply env var overrides (overrides file/defaults)
	if err := config.ApplyEnvOverrides(cfg); err != nil {
		log.Fatalf("invalid environment configuration: %v", err)
	}

	// CLI flags have highest precedence
	if *poll > 0 {
		cfg.PollInterval = *poll
	}

	cleanup := initLogging(cfg)
	defer cleanup()

	for _, w := range cfg.Validate() {
		logging.Get().Warn().Msg(w)
	}

	// the session credential is never part of the config file
	token := os.Getenv("BOARDSYNC_TOKEN")
	if token == "" {
		logging.Get().Fatal().Msg("BOARDSYNC_TOKEN is not set; the sync core cannot authenticate")
	}

	initMetricsAndInflux(cfg)

	bus := event.NewBus()
	mgr := channel.NewManager(channel.Options{
		URL:                  cfg.ChannelURL,
		Bus:                  bus,
		ReconnectDelay:       cfg.ReconnectDelay,
		MaxReconnectAttempts: cfg.MaxReconnectAttempts,
		HandshakeTimeout:     cfg.HandshakeTimeout,
		SendTimeout:          cfg.SendTimeout,
	})

	rec := reconcile.New(reconcile.Options{
		Backend:      api.NewClient(cfg.APIBaseURL, token),
		Bus:          bus,
		PollInterval: cfg.PollInterval,
		FetchLimit:   cfg.FetchLimit,
	})

	if *runOnce {
		logging.Get().Info().Msg("run-once: performing a single notification refresh")
		rec.Refresh(context.Background())
		snap := rec.Snapshot()
		logging.Get().Info().Int("count", len(snap.Notifications)).Int("unread", snap.Unread).Msg("refresh complete")
		return
	}

	ctx := context.Background()
	if err := mgr.Connect(ctx, token); err != nil {
		// the reconciler still runs on polling alone; push is best effort
		logging.Get().Warn().Err(err).Msg("push channel unavailable, continuing with polling only")
	}

	go rec.Start()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig

	logging.Get().Info().Msg("shutdown signal received, waiting for active operations to complete")
	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	mgr.Disconnect()
	rec.Stop(shutdownCtx)
}

// initLogging initializes the log subsystem and returns a cleanup func
func initLogging(cfg *config.Config) func() {
	cleanup, err := logging.Init(cfg.LogFile, cfg.LogLevel)
	if err != nil {
		log.Fatalf("failed to initialize logger: %v", err)
	}
	return cleanup
}

// initMetricsAndInflux starts the optional metrics server and Influx pusher
func initMetricsAndInflux(cfg *config.Config) {
	if cfg.MetricsEnabled {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.PromHandler())
			mux.Handle("/status", metrics.JSONHandler())
			addr := fmt.Sprintf(":%d", cfg.MetricsPort)
			logging.Get().Info().Str("addr", addr).Msg("starting metrics server")
			_ = http.ListenAndServe(addr, mux)
		}()
	}
	if cfg.InfluxURL != "" {
		go metrics.StartInfluxPusher(context.Background(), cfg.InfluxURL, cfg.InfluxToken, cfg.InfluxOrg, cfg.InfluxBucket, cfg.InfluxInterval)
	}
}
