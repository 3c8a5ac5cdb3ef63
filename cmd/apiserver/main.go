// Command apiserver runs the Task Coordinator's durable Postgres store, its
// read/operator HTTP API, and the ResultConsumer bridging the bus's result
// stream into the coordinator.
package main

import (
	"context"
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"time"

	"go.uber.org/zap"

	"github.com/99souls/harvester/internal/api"
	"github.com/99souls/harvester/internal/bus"
	"github.com/99souls/harvester/internal/config"
	"github.com/99souls/harvester/internal/coordinator"
	"github.com/99souls/harvester/internal/coordinator/migrations"
	"github.com/99souls/harvester/internal/pgpool"
	"github.com/99souls/harvester/internal/telemetry/logging"
	"github.com/99souls/harvester/internal/worker"
)

func main() {
	var (
		configPath string
		apiAddr    string
		migrate    bool
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML configuration file")
	flag.StringVar(&apiAddr, "addr", "", "Override global.api_addr from the config file")
	flag.BoolVar(&migrate, "migrate", true, "Apply pending schema migrations on startup")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if apiAddr != "" {
		cfg.Global.APIAddr = apiAddr
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

	if migrate {
		if err := migrations.RunUp("pgx5://"+stripScheme(cfg.Global.PostgresDSN), logger); err != nil {
			log.Fatalf("apply migrations: %v", err)
		}
	}

	pool, err := pgpool.New(ctx, cfg.Global.PostgresDSN, logger)
	if err != nil {
		log.Fatalf("connect postgres: %v", err)
	}
	defer pool.Close()

	store := coordinator.NewPGStore(pool)
	coord := coordinator.New(store, logger)

	busClient, err := bus.NewClient(ctx, bus.Config{
		Addr: cfg.Bus.RedisAddr, TaskStreamHTTP: cfg.Bus.TaskStreamHTTP, TaskStreamBrowser: cfg.Bus.TaskStreamBrowser,
		ResultStream: cfg.Bus.ResultStream, DLQStream: cfg.Bus.DLQStream, ConsumerGroup: cfg.Bus.ConsumerGroup,
		ConsumerName: "apiserver", DLQRetention: cfg.Bus.DLQRetention,
	}, logger)
	if err != nil {
		log.Fatalf("connect bus: %v", err)
	}
	defer busClient.Close()

	consumer := worker.NewResultConsumer(busClient, coord, logger)
	go func() {
		if err := consumer.Run(ctx); err != nil && ctx.Err() == nil {
			logger.Error("result consumer exited", zap.Error(err))
		}
	}()

	handler := api.NewHandler(coord, logger)
	srv := &http.Server{Addr: cfg.Global.APIAddr, Handler: handler.Routes()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("apiserver starting", zap.String("addr", cfg.Global.APIAddr))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("serve: %v", err)
	}
	logger.Info("apiserver stopped")
}

// stripScheme drops a postgres:// or postgresql:// prefix so the DSN can be
// re-prefixed with golang-migrate's pgx5:// scheme, which it resolves to
// the jackc/pgx/v5 driver registered in the migrations package.
func stripScheme(dsn string) string {
	for _, prefix := range []string{"postgres://", "postgresql://"} {
		if len(dsn) > len(prefix) && dsn[:len(prefix)] == prefix {
			return dsn[len(prefix):]
		}
	}
	return dsn
}
