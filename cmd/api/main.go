package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/mcclellann/lomap/pkg/config"
	"github.com/mcclellann/lomap/pkg/logger"
	"github.com/mcclellann/lomap/pkg/store"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load(config.GetEnvOrDefaultAsString("LOMAP_CONFIG", "config.yaml"))
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	zl, err := logger.New(cfg.Logging.Level, cfg.Logging.Format)
	if err != nil {
		log.Fatalf("Failed to build logger: %v", err)
	}
	defer zl.Sync()

	// Initialize CSV Store
	csvStore, err := store.NewCSVStore(cfg.Storage.DataDir)
	if err != nil {
		zl.Fatal("failed to initialize CSV store", zap.String("dir", cfg.Storage.DataDir), zap.Error(err))
	}
	defer csvStore.Close()

	server := NewServer(csvStore, zl)
	if err := server.ledger.Rebuild(); err != nil {
		zl.Fatal("failed to rebuild ledger", zap.Error(err))
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           server.Router(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	go func() {
		zl.Info("server starting", zap.String("addr", cfg.Server.Addr), zap.String("data_dir", cfg.Storage.DataDir))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			zl.Error("server stopped", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	shutdown, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdown); err != nil {
		zl.Error("graceful shutdown failed", zap.Error(err))
	}
	zl.Info("server stopped")
}
