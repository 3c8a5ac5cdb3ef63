// Command browserworker drains the browser task stream: schema-driven
// headless-Chrome navigation via a bounded session pool.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/99souls/harvester/internal/bus"
	"github.com/99souls/harvester/internal/config"
	"github.com/99souls/harvester/internal/extract"
	"github.com/99souls/harvester/internal/fetch"
	"github.com/99souls/harvester/internal/ratelimit"
	"github.com/99souls/harvester/internal/schemacache"
	"github.com/99souls/harvester/internal/schemaclient"
	"github.com/99souls/harvester/internal/storage"
	"github.com/99souls/harvester/internal/telemetry/logging"
	"github.com/99souls/harvester/internal/worker"
)

func main() {
	var (
		configPath  string
		workerID    string
		metricsAddr string
		sessions    int
		headless    bool
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML configuration file")
	flag.StringVar(&workerID, "worker-id", "", "Worker identity reported on result envelopes (defaults to hostname)")
	flag.StringVar(&metricsAddr, "metrics", "", "Expose Prometheus metrics on address (e.g. :9090)")
	flag.IntVar(&sessions, "sessions", 0, "Override fetch.browser_sessions from the config file")
	flag.BoolVar(&headless, "headless", true, "Run Chrome headless")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if sessions > 0 {
		cfg.Fetch.BrowserSessions = sessions
	}
	if workerID == "" {
		workerID, _ = os.Hostname()
	}

	logger, err := logging.New(cfg.Global.LogLevel)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 2)
	signal.Notify(sigCh, os.Interrupt)
	go func() {
		<-sigCh
		logger.Info("signal received; initiating graceful shutdown")
		cancel()
		<-sigCh
		logger.Warn("second signal received; forcing exit")
		os.Exit(1)
	}()

	busClient, err := bus.NewClient(ctx, bus.Config{
		Addr: cfg.Bus.RedisAddr, TaskStreamHTTP: cfg.Bus.TaskStreamHTTP, TaskStreamBrowser: cfg.Bus.TaskStreamBrowser,
		ResultStream: cfg.Bus.ResultStream, DLQStream: cfg.Bus.DLQStream, ConsumerGroup: cfg.Bus.ConsumerGroup,
		ConsumerName: workerID, DLQRetention: cfg.Bus.DLQRetention,
	}, logger)
	if err != nil {
		log.Fatalf("connect bus: %v", err)
	}
	defer busClient.Close()

	fetcher, err := fetch.NewBrowserFetcher(fetch.BrowserPolicy{
		MaxSessions: cfg.Fetch.BrowserSessions, Headless: headless, DefaultTimeout: cfg.Fetch.DefaultTimeout,
	})
	if err != nil {
		log.Fatalf("build browser fetcher: %v", err)
	}
	defer func() { _ = fetcher.Close() }()

	w := worker.New(worker.Config{
		WorkerID:    workerID,
		UseBrowser:  true,
		Bus:         busClient,
		Fetcher:     fetcher,
		Core:        extract.NewCore(),
		Schemas:     schemacache.New(schemaclient.New(cfg.Global.SchemaServiceURL)),
		Limiter:     ratelimit.NewAdaptiveRateLimiter(ratelimit.Config{Enabled: true, Shards: 64}),
		Bronze:      storage.NewBronzeWriter(cfg.Storage.BronzeRoot),
		Trash:       storage.NewTrashWriter(cfg.Storage.TrashRoot),
		Logger:      logger,
		Concurrency: cfg.Fetch.BrowserSessions,
	})

	if metricsAddr != "" {
		reg := prometheus.NewRegistry()
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
		srv := &http.Server{Addr: metricsAddr, Handler: mux}
		go func() {
			<-ctx.Done()
			_ = srv.Shutdown(context.Background())
		}()
		go func() {
			logger.Info("metrics listening", zap.String("addr", metricsAddr))
			if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				logger.Error("metrics server failed", zap.Error(err))
			}
		}()
	}

	logger.Info("browserworker starting", zap.String("worker_id", workerID), zap.Int("sessions", cfg.Fetch.BrowserSessions))
	if err := w.Run(ctx); err != nil && ctx.Err() == nil {
		fmt.Fprintf(os.Stderr, "worker exited: %v\n", err)
		os.Exit(1)
	}
	logger.Info("browserworker stopped")
}
