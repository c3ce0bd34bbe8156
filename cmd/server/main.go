package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/trainbox/trainbox/internal/api"
	"github.com/trainbox/trainbox/internal/config"
	"github.com/trainbox/trainbox/internal/executor"
	"github.com/trainbox/trainbox/internal/history"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	for _, dir := range []string{cfg.LogsDir, cfg.ModelsDir, cfg.DataDir} {
		if err := os.MkdirAll(dir, 0755); err != nil {
			log.Fatalf("failed to create %s: %v", dir, err)
		}
	}

	store, err := history.Open(cfg.DataDir)
	if err != nil {
		log.Fatalf("failed to open run history: %v", err)
	}
	defer store.Close()

	registry := executor.NewRegistry()
	defer registry.CloseAll()

	pipelineLog := executor.NewPipelineLog(filepath.Join(cfg.LogsDir, "pipeline.log"))

	srv := api.NewServer(api.Opts{
		Registry:           registry,
		PipelineLog:        pipelineLog,
		History:            store,
		PythonBin:          cfg.PythonBin,
		ModelsDir:          cfg.ModelsDir,
		PipelineConfigPath: cfg.PipelineConfigPath,
	})

	go func() {
		addr := fmt.Sprintf(":%d", cfg.Port)
		log.Printf("trainbox: server listening on %s", addr)
		if err := srv.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("server error: %v", err)
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	log.Printf("trainbox: received %v, shutting down", sig)

	if err := srv.Close(); err != nil {
		log.Printf("trainbox: server close: %v", err)
	}
	// Deferred registry.CloseAll reaps any child still running.
}
