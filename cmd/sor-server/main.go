package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"

	"github.com/smartsor/sor/internal/monitor"
	"github.com/smartsor/sor/internal/router"
	"github.com/smartsor/sor/internal/venue"
	"github.com/smartsor/sor/pkg/events"
)

func main() {
	loadConfig()

	if viper.GetBool("log.json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	}
	if level, err := logrus.ParseLevel(viper.GetString("log.level")); err == nil {
		logrus.SetLevel(level)
	}

	logger := logrus.WithField("component", "sor-server")
	logger.Info("Starting SOR server...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		logger.Info("Shutdown signal received")
		cancel()
	}()

	registry := venue.NewRegistry()
	for _, name := range viper.GetStringSlice("venues.simulated") {
		prefix := "venues." + name
		sim := venue.NewSimulatedVenue(
			name,
			viper.GetFloat64(prefix+".bid"),
			viper.GetFloat64(prefix+".ask"),
			viper.GetFloat64(prefix+".liquidity"),
		)
		if err := registry.Add(sim); err != nil {
			logger.WithError(err).Fatalf("Failed to register venue %s", name)
		}
	}

	config := routerConfig()
	sor := router.NewSmartOrderRouter(config, registry)
	defer sor.Close()

	promRegistry := prometheus.NewRegistry()
	sor.SetMetrics(monitor.NewRouterMetrics(promRegistry))

	if natsURL := viper.GetString("nats.url"); natsURL != "" {
		publisher, err := events.NewPublisher(events.Config{
			URL:      natsURL,
			ClientID: viper.GetString("nats.client_id"),
		})
		if err != nil {
			logger.WithError(err).Fatal("Failed to connect to NATS")
		}
		defer publisher.Close()

		sor.Subscribe(func(event router.Event) {
			if err := publisher.PublishRoutingEvent(string(event.Type), event.Venue, event); err != nil {
				logger.WithError(err).Warn("Failed to publish routing event")
			}
		})
	}

	go registry.MonitorHealth(ctx, viper.GetDuration("venues.health_interval"))

	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(promRegistry, promhttp.HandlerOpts{}))
	mux.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	})

	server := &http.Server{
		Addr:    viper.GetString("server.listen"),
		Handler: mux,
	}

	go func() {
		logger.Infof("HTTP server listening on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.WithError(err).Fatal("HTTP server failed")
		}
	}()

	<-ctx.Done()

	logger.Info("Shutting down...")
	registry.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		logger.WithError(err).Warn("HTTP server shutdown error")
	}

	logger.Info("Server stopped")
}

func loadConfig() {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath(".")
	viper.AddConfigPath("./config")
	viper.SetEnvPrefix("SOR")
	viper.AutomaticEnv()

	viper.SetDefault("log.level", "info")
	viper.SetDefault("log.json", false)
	viper.SetDefault("server.listen", ":9090")
	viper.SetDefault("venues.health_interval", 30*time.Second)

	if err := viper.ReadInConfig(); err != nil {
		logrus.WithError(err).Warn("No config file found, using defaults")
	}
}

func routerConfig() router.Config {
	config := router.DefaultConfig()

	if viper.IsSet("router.default_strategy") {
		config.DefaultStrategy = viper.GetString("router.default_strategy")
	}
	if viper.IsSet("router.split_order_enabled") {
		config.SplitOrderEnabled = viper.GetBool("router.split_order_enabled")
	}
	if viper.IsSet("router.max_splits") {
		config.MaxSplits = viper.GetInt("router.max_splits")
	}
	if viper.IsSet("router.min_quality_score") {
		config.MinQualityScore = viper.GetFloat64("router.min_quality_score")
	}
	if viper.IsSet("router.cost_weight") {
		config.CostWeight = viper.GetFloat64("router.cost_weight")
	}
	if viper.IsSet("router.reliability_weight") {
		config.ReliabilityWeight = viper.GetFloat64("router.reliability_weight")
	}
	if viper.IsSet("router.target_savings_pct") {
		config.TargetSavingsPct = viper.GetFloat64("router.target_savings_pct")
	}
	if viper.IsSet("router.cache_ttl") {
		config.CacheTTL = viper.GetDuration("router.cache_ttl")
	}
	if viper.IsSet("router.fallback_strategy") {
		config.FallbackStrategy = viper.GetString("router.fallback_strategy")
	}
	if viper.IsSet("router.max_execution_latency") {
		config.MaxExecutionLatency = viper.GetDuration("router.max_execution_latency")
	}
	if viper.IsSet("router.retry_attempts") {
		config.RetryAttempts = viper.GetInt("router.retry_attempts")
	}

	return config
}
