package main

import (
	"context"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib"

	"github.com/habitflow/sync-engine/internal/adapters/auth"
	"github.com/habitflow/sync-engine/internal/adapters/cache"
	adapterHTTP "github.com/habitflow/sync-engine/internal/adapters/handler/http"
	"github.com/habitflow/sync-engine/internal/adapters/localstore"
	"github.com/habitflow/sync-engine/internal/adapters/remote"
	"github.com/habitflow/sync-engine/internal/core/services"
	"github.com/habitflow/sync-engine/internal/core/workers"
)

func main() {
	startTime := time.Now()

	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment defaults")
	}

	if logFile := os.Getenv("LOG_FILE"); logFile != "" {
		log.SetOutput(io.MultiWriter(os.Stderr, &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     30, // days
		}))
	}

	dataDir := getEnv("DATA_DIR", defaultDataDir())
	store, err := localstore.NewSQLiteStore(filepath.Join(dataDir, "habitflow.db"))
	if err != nil {
		log.Fatalf("Critical: Failed to open local store: %v", err)
	}
	defer store.Close()
	log.Printf("[agent] local store ready at %s", dataDir)

	// Remote backends open lazily so the agent comes up offline.
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=disable",
		getEnv("DB_USER", "habitflow_user"),
		getEnv("DB_PASSWORD", "secret"),
		getEnv("DB_HOST", "localhost"),
		getEnv("DB_PORT", "5432"),
		getEnv("DB_NAME", "habitflow_db"),
	)

	db, err := sqlx.Open("pgx", dsn)
	if err != nil {
		log.Fatalf("Critical: Invalid database configuration: %v", err)
	}
	defer db.Close()

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)

	rdb := cache.NewRedisClient(
		getEnv("REDIS_HOST", "localhost"),
		getEnv("REDIS_PORT", "6379"),
		os.Getenv("REDIS_PASSWORD"),
		0,
	)
	defer rdb.Close()

	snapshotStore := remote.NewPostgresSnapshotStore(db)
	completionStore := remote.NewPostgresCompletionStore(db, rdb)

	ctx := context.Background()
	if err := snapshotStore.EnsureSchema(ctx); err != nil {
		log.Printf("[agent] snapshot schema deferred: %v", err)
	}
	if err := completionStore.EnsureSchema(ctx); err != nil {
		log.Printf("[agent] completion schema deferred: %v", err)
	}

	authProvider := auth.NewTokenAuthProvider(
		getEnv("SYNC_SECRET", "dev-secret-change-me"),
		getEnv("SYNC_ISSUER", "habitflow-accounts"),
	)
	if token := os.Getenv("SYNC_TOKEN"); token != "" {
		if err := authProvider.SetToken(token); err != nil {
			log.Printf("[agent] stored sync token rejected: %v", err)
		}
	}

	exportSvc := services.NewExportService(store)
	syncSvc := services.NewSnapshotSyncService(authProvider, snapshotStore, exportSvc)
	completionSvc := services.NewCompletionSyncService(authProvider, completionStore)

	scheduler := workers.NewPushScheduler(authProvider, syncSvc)
	defer scheduler.Cancel()

	tracker := services.NewTrackerService(store, scheduler, completionSvc)

	realtime := services.NewRealtimeSyncService(authProvider, completionSvc, syncSvc, store)
	if err := realtime.Start(ctx); err != nil {
		log.Printf("[agent] realtime feed deferred: %v", err)
	}
	defer realtime.Stop()

	// Periodic catch-up stands in for connectivity events.
	scheduleSpec := "@every " + getEnv("SYNC_INTERVAL", "10m")
	c := cron.New()
	if _, err := c.AddFunc(scheduleSpec, func() {
		realtime.Reconnect(context.Background())
	}); err != nil {
		log.Fatalf("Critical: Invalid SYNC_INTERVAL: %v", err)
	}
	c.Start()
	defer c.Stop()

	router := adapterHTTP.NewRouter(adapterHTTP.RouterDependencies{
		SyncHandler:    adapterHTTP.NewSyncHandler(authProvider, syncSvc, exportSvc),
		TrackerHandler: adapterHTTP.NewTrackerHandler(tracker),
		DB:             db,
		Redis:          rdb,
		StartTime:      startTime,
	})

	srv := &http.Server{
		Addr:         "127.0.0.1:" + getEnv("PORT", "8723"),
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		log.Printf("HabitFlow sync agent listening on http://%s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Critical server error: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Stop signal received. Shutting down...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Fatal("Forced shutdown error:", err)
	}

	log.Println("Agent stopped gracefully.")
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func defaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".habitflow")
}
