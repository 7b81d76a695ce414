/*
main.go - Application entry point

PURPOSE:
  Initializes and starts the enrollment billing engine server. Handles
  configuration, dependency injection, and graceful shutdown.

STARTUP SEQUENCE:
  1. Load .env and environment configuration
  2. Parse command-line flags (flags win over environment)
  3. Initialize SQLite store
  4. Start the websocket hub
  5. Optionally wire the export pipeline (Redis + S3)
  6. Start the overdue scheduler
  7. Start server with graceful shutdown

COMMAND-LINE FLAGS:
  -port    HTTP server port (default: SERVER_PORT or 8080)
  -db      SQLite database path (default: DB_PATH or enrollment.db)
           Use ":memory:" for an in-memory database

GRACEFUL SHUTDOWN:
  On SIGINT/SIGTERM:
  1. Stop accepting new connections
  2. Wait for active requests to complete (30s timeout)
  3. Stop the scheduler and hub, close the database
  4. Exit

EXAMPLES:
  # Run with file database
  ./server -db="./data/enrollment.db"

  # Run with exports enabled
  EXPORT_ENABLED=true REDIS_ADDR=localhost:6379 ./server

SEE ALSO:
  - api/server.go: Router configuration
  - config/config.go: Environment configuration
  - store/sqlite/sqlite.go: Database implementation
*/
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

	"github.com/joho/godotenv"
	goredis "github.com/redis/go-redis/v9"

	"github.com/campora/enrollment-engine/api"
	"github.com/campora/enrollment-engine/config"
	"github.com/campora/enrollment-engine/enrollment"
	"github.com/campora/enrollment-engine/export"
	"github.com/campora/enrollment-engine/store/sqlite"
	"github.com/campora/enrollment-engine/ws"
)

func main() {
	// .env is optional; real deployments set the environment directly.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	// Flags override environment for local convenience.
	port := flag.String("port", cfg.Server.Port, "HTTP server port")
	dbPath := flag.String("db", cfg.DB.Path, "SQLite database path")
	flag.Parse()

	// Initialize store
	store, err := sqlite.New(*dbPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer store.Close()

	// Websocket hub for saga and export progress
	hub := ws.NewHub()
	hubCtx, stopHub := context.WithCancel(context.Background())
	go hub.Run(hubCtx)
	defer stopHub()

	// Domain services
	orchestrator := enrollment.NewOrchestrator(store, hub)
	downPayments := enrollment.NewDownPaymentRecorder(store)

	handler := api.NewHandler(store, store, orchestrator, downPayments)
	handler.Hub = hub

	// Export pipeline is opt-in: it needs Redis and an S3 bucket.
	if cfg.Export.Enabled {
		rdb := goredis.NewClient(&goredis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		if err := rdb.Ping(context.Background()).Err(); err != nil {
			log.Fatalf("Failed to connect to redis: %v", err)
		}
		defer rdb.Close()

		uploader, err := export.NewUploader(export.S3Config{
			Endpoint:        cfg.S3.Endpoint,
			AccessKeyID:     cfg.S3.AccessKeyID,
			SecretAccessKey: cfg.S3.SecretAccessKey,
			Bucket:          cfg.S3.Bucket,
			Region:          cfg.S3.Region,
			UseSSL:          cfg.S3.UseSSL,
		})
		if err != nil {
			log.Fatalf("Failed to initialize s3 uploader: %v", err)
		}

		statuses := export.NewStatusStore(rdb, "")
		handler.Exports = export.NewService(store, statuses, uploader, hub, cfg.Export.URLExpiry)
		log.Println("Export pipeline enabled")
	}

	// Background overdue transitions
	scheduler := api.NewOverdueScheduler(store)
	scheduler.Start()
	defer scheduler.Stop()

	// Create router
	router := api.NewRouter(handler)

	// Create server
	server := &http.Server{
		Addr:         fmt.Sprintf(":%s", *port),
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  60 * time.Second,
	}

	// Start server in goroutine
	go func() {
		log.Printf("Server starting on http://localhost:%s", *port)
		log.Printf("API available at http://localhost:%s/api", *port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed: %v", err)
		}
	}()

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	log.Println("Server stopped")
}
