// Command schemaservice serves the minimal schema read API: schemas are
// loaded from YAML files under -schemas-dir at startup and served
// read-only, the transport schemacache.Loader implementations read
// through to on a cache miss. Schema authoring (CRUD, LLM-assisted
// drafting) is out of scope for this binary.
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
	"github.com/99souls/harvester/internal/config"
	"github.com/99souls/harvester/internal/schemaregistry"
	"github.com/99souls/harvester/internal/telemetry/logging"
)

func main() {
	var (
		configPath string
		schemasDir string
		addr       string
	)
	flag.StringVar(&configPath, "config", "", "Path to YAML configuration file")
	flag.StringVar(&schemasDir, "schemas-dir", "./schemas", "Directory of *.yaml parsing schema files to load")
	flag.StringVar(&addr, "addr", "", "Override global.api_addr from the config file")
	flag.Parse()

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("load config: %v", err)
	}
	if addr != "" {
		cfg.Global.APIAddr = addr
	}

	logger, err := logging.New(cfg.Global.LogLevel)
	if err != nil {
		log.Fatalf("build logger: %v", err)
	}
	defer func() { _ = logger.Sync() }()

	registry, err := schemaregistry.Load(schemasDir)
	if err != nil {
		log.Fatalf("load schemas from %s: %v", schemasDir, err)
	}

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

	handler := api.NewSchemaHandler(registry, logger)
	srv := &http.Server{Addr: cfg.Global.APIAddr, Handler: handler.Routes()}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancelShutdown()
		_ = srv.Shutdown(shutdownCtx)
	}()

	logger.Info("schemaservice starting", zap.String("addr", cfg.Global.APIAddr), zap.String("schemas_dir", schemasDir))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("serve: %v", err)
	}
	logger.Info("schemaservice stopped")
}
