package main

import (
	"context"
	"encoding/json"
	"flag"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"

	"famcal/internal/aggregate"
	"famcal/internal/config"
	"famcal/internal/ics"
	appLog "famcal/internal/log"
	"famcal/internal/web"
)

type flagConfig struct {
	configPath string
	listen     string
	once       bool
	debug      bool
}

func main() {
	flags := parseFlags()
	if flags.debug {
		appLog.SetLevel(appLog.LevelDebug)
	}

	conf, err := config.Load(flags.configPath)
	if err != nil {
		appLog.Error("failed to load config", err, "config_path", flags.configPath)
		os.Exit(1)
	}
	if flags.listen != "" {
		conf.Listen = flags.listen
	}

	fetcher := ics.NewFetcher(conf.CacheDir)
	agg := aggregate.New(conf, fetcher)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		appLog.Info("signal received, shutting down", "signal", sig.String())
		cancel()
	}()

	if flags.once {
		if err := runOnce(ctx, agg); err != nil {
			appLog.Error("one-shot schedule failed", err)
			os.Exit(1)
		}
		return
	}

	appLog.Info("famcal starting",
		"listen", conf.Listen,
		"calendars", len(conf.Calendars),
		"refresh", conf.RefreshCron,
		"window_days", conf.PastDays+conf.FutureDays,
	)

	// Background refresh keeps the per-source fetch cache warm so client
	// polls stay fast even right after cache expiry.
	c := cron.New()
	if _, err := c.AddFunc(conf.RefreshCron, func() { refresh(ctx, agg) }); err != nil {
		appLog.Error("invalid refresh schedule", err, "refresh", conf.RefreshCron)
		os.Exit(1)
	}
	c.Start()
	defer c.Stop()

	server := &http.Server{
		Addr:    conf.Listen,
		Handler: web.NewServer(conf, agg).Handler(),
	}

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if err != nil && err != http.ErrServerClosed {
			appLog.Error("HTTP server failed", err)
			os.Exit(1)
		}
	case <-ctx.Done():
		shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer shutdownCancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			appLog.Error("HTTP shutdown failed", err)
		}
	}

	appLog.Info("famcal exiting")
}

// runOnce builds one schedule over the default window and prints it as JSON.
func runOnce(ctx context.Context, agg *aggregate.Aggregator) error {
	schedule, err := agg.Schedule(ctx, agg.DefaultWindow(time.Now()))
	if err != nil {
		return err
	}
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(schedule)
}

func refresh(ctx context.Context, agg *aggregate.Aggregator) {
	started := time.Now()
	schedule, err := agg.Schedule(ctx, agg.DefaultWindow(started))
	if err != nil {
		appLog.Error("background refresh failed", err)
		return
	}
	appLog.Info("background refresh completed",
		"events", len(schedule.Events),
		"calendars", len(schedule.Calendars),
		"elapsed", time.Since(started).Round(time.Millisecond),
	)
}

func parseFlags() flagConfig {
	var cfg flagConfig

	flag.StringVar(&cfg.configPath, "config", "/etc/famcal/config.yaml", "Path to config file")
	flag.StringVar(&cfg.listen, "listen", "", "HTTP listen address (overrides config if set)")
	flag.BoolVar(&cfg.once, "once", false, "Build one schedule, print it as JSON, and exit")
	flag.BoolVar(&cfg.debug, "debug", false, "Enable debug logging")

	flag.Parse()

	return cfg
}
