package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"

	"dataflowd/internal/api"
	"dataflowd/internal/audit"
	"dataflowd/internal/config"
	"dataflowd/internal/dataflow"
	"dataflowd/internal/results"
)

func main() {
	cfgPath := os.Getenv("DATAFLOWD_CONFIG")
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	log.Println("Initializing dataflowd...")
	log.Printf("Workers: %d", cfg.NumWorkers)
	log.Printf("Listen address: %s", cfg.ListenAddr)

	resultsMux := results.NewMux()

	var handler dataflow.PeekResultsHandler = resultsMux
	if cfg.RemoteSinkURL != "" {
		log.Printf("Remote peek sink: %s", cfg.RemoteSinkURL)
		handler = results.NewRemote(cfg.RemoteSinkURL)
	}

	if cfg.AuditDatabaseURL != "" {
		auditLog, err := audit.NewLog(cfg.AuditDatabaseURL)
		if err != nil {
			log.Fatalf("Failed to connect to audit database: %v", err)
		}
		defer auditLog.Close()
		handler = &results.AuditingHandler{Next: handler, Log: auditLog}
		log.Println("Audit logging enabled")
	}

	chans := make([]chan dataflow.Command, cfg.NumWorkers)
	receivers := make([]<-chan dataflow.Command, cfg.NumWorkers)
	senders := make([]chan<- dataflow.Command, cfg.NumWorkers)
	for i := range chans {
		chans[i] = make(chan dataflow.Command, 64)
		receivers[i] = chans[i]
		senders[i] = chans[i]
	}

	apiServer := api.NewServer(cfg.ListenAddr, senders, resultsMux)

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- dataflow.Serve(receivers, handler, cfg.NumWorkers)
	}()

	go func() {
		log.Printf("Starting API server on %s", cfg.ListenAddr)
		if err := apiServer.Start(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("API server failed: %v", err)
		}
	}()

	select {
	case <-sigChan:
		log.Println("Shutting down...")
		for _, ch := range chans {
			ch <- dataflow.Shutdown(uuid.Nil)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		apiServer.Shutdown(ctx)
		if err := <-serveErr; err != nil {
			log.Printf("dataflow pool exited with error: %v", err)
		}
	case err := <-serveErr:
		if err != nil {
			log.Printf("dataflow pool exited with error: %v", err)
		}
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		apiServer.Shutdown(ctx)
	}
}
