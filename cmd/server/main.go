package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"list-scheduler/internal/clients/catalog"
	"list-scheduler/internal/clients/mediaserver"
	"list-scheduler/internal/clients/tracker"
	"list-scheduler/internal/config"
	"list-scheduler/internal/core/domain"
	"list-scheduler/internal/core/scheduler"
	"list-scheduler/internal/ratelimit"
	httpShell "list-scheduler/internal/shell/http"
	"list-scheduler/internal/shell/messaging"
	"list-scheduler/internal/shell/storage"
	"list-scheduler/internal/sync"
	"list-scheduler/internal/token"
	"list-scheduler/internal/vault"
)

func main() {
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("Failed to load configuration: %v", err)
	}

	log.Printf("Starting list-scheduler with configuration:")
	log.Printf("  Server: %s:%d", cfg.Server.Host, cfg.Server.Port)
	log.Printf("  Database Type: %s", cfg.Database.Type)
	log.Printf("  Kafka: enabled=%t, brokers=%v", cfg.Kafka.Enabled, cfg.Kafka.Brokers)
	log.Printf("  Metrics: enabled=%t, port=%d", cfg.Metrics.Enabled, cfg.Metrics.Port)
	log.Printf("  Catalog lists: %v", cfg.Catalog.ListIDs)

	credentialVault, err := vault.New(cfg.Vault.EncryptionSecret)
	if err != nil {
		log.Fatalf("Failed to initialize credential vault: %v", err)
	}

	// Storage backend
	var credentialStore token.CredentialStore
	var runRepo httpShell.RunHistory
	var recorder scheduler.RunRecorder

	switch cfg.Database.Type {
	case "sqlite":
		credRepo, err := storage.NewSQLiteCredentialRepository(cfg.Database.Path, credentialVault)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite credential repository: %v", err)
		}
		defer func() {
			if closeErr := credRepo.Close(); closeErr != nil {
				log.Printf("Error closing credential repository: %v", closeErr)
			}
		}()

		sqliteRunRepo, err := storage.NewSQLiteRunRepository(cfg.Database.Path)
		if err != nil {
			log.Fatalf("Failed to initialize SQLite run repository: %v", err)
		}
		defer func() {
			if closeErr := sqliteRunRepo.Close(); closeErr != nil {
				log.Printf("Error closing run repository: %v", closeErr)
			}
		}()

		credentialStore = credRepo
		runRepo = sqliteRunRepo
		recorder = sqliteRunRepo
		log.Printf("SQLite storage initialized successfully")

	case "postgres":
		credRepo, err := storage.NewPostgresCredentialRepository(cfg.Database.ConnectionString(), credentialVault)
		if err != nil {
			log.Fatalf("Failed to initialize Postgres credential repository: %v", err)
		}
		defer func() {
			if closeErr := credRepo.Close(); closeErr != nil {
				log.Printf("Error closing credential repository: %v", closeErr)
			}
		}()

		postgresRunRepo, err := storage.NewPostgresRunRepository(cfg.Database.ConnectionString())
		if err != nil {
			log.Fatalf("Failed to initialize Postgres run repository: %v", err)
		}
		defer func() {
			if closeErr := postgresRunRepo.Close(); closeErr != nil {
				log.Printf("Error closing run repository: %v", closeErr)
			}
		}()

		credentialStore = credRepo
		runRepo = postgresRunRepo
		recorder = postgresRunRepo
		log.Printf("Postgres storage initialized successfully")

	case "memory":
		memRunRepo := storage.NewMemoryRunRepository()
		credentialStore = storage.NewMemoryCredentialRepository()
		runRepo = memRunRepo
		recorder = memRunRepo
		log.Printf("In-memory storage initialized (credentials will not survive restarts)")

	default:
		log.Fatalf("Unsupported database type: %s", cfg.Database.Type)
	}

	// Upstream call spacing
	limiter := ratelimit.New(cfg.Tracker.RateLimitInterval)
	limiter.SetInterval("tracker", cfg.Tracker.RateLimitInterval)
	limiter.SetInterval("catalog", cfg.Catalog.RateLimitInterval)

	tokenManager := token.NewManager("tracker", cfg.Tracker.TokenURL, token.ClientCredentials{
		ClientID:     cfg.Tracker.ClientID,
		ClientSecret: cfg.Tracker.ClientSecret,
		RedirectURI:  cfg.Tracker.RedirectURI,
	})

	trackerClient := tracker.NewClient(cfg.Tracker.BaseURL, cfg.Tracker.ClientID, tokenManager, credentialStore, limiter)
	catalogClient := catalog.NewClient(cfg.Catalog.BaseURL, cfg.Catalog.APIKey, limiter)
	mediaServerClient := mediaserver.NewClient(cfg.MediaServer.BaseURL, cfg.MediaServer.APIKey)

	syncer := sync.NewSyncer(trackerClient, catalogClient, mediaServerClient, cfg.Catalog.ListIDs)
	refresher := sync.NewTokenRefresher(tokenManager, credentialStore)

	// Job event notifier
	var notifier scheduler.EventNotifier
	if cfg.Kafka.Enabled {
		kafkaProducer, err := messaging.NewKafkaProducer(cfg.Kafka.Brokers, cfg.Kafka.Topic)
		if err != nil {
			log.Fatalf("Failed to initialize Kafka producer: %v", err)
		}
		defer func() {
			if closeErr := kafkaProducer.Close(); closeErr != nil {
				log.Printf("Error closing Kafka producer: %v", closeErr)
			}
		}()

		notifier = messaging.NewKafkaNotifier(kafkaProducer)
		log.Printf("Kafka notifier initialized (topic %s)", cfg.Kafka.Topic)
	} else {
		notifier = messaging.NullNotifier{}
		log.Printf("Using null notifier (no job events will be published)")
	}

	jobScheduler := scheduler.NewScheduler()
	jobScheduler.SetRunRecorder(recorder)
	jobScheduler.SetNotifier(notifier)

	syncOpts := &domain.JobOptions{RunOnStart: cfg.Scheduler.RunOnStart, Enabled: true}
	if err := jobScheduler.Register("sync-watchlist", cfg.Scheduler.WatchlistSchedule, syncer.SyncWatchlist, syncOpts); err != nil {
		log.Fatalf("Failed to register sync-watchlist: %v", err)
	}
	if err := jobScheduler.Register("sync-lists", cfg.Scheduler.ListsSchedule, syncer.SyncLists, syncOpts); err != nil {
		log.Fatalf("Failed to register sync-lists: %v", err)
	}
	if err := jobScheduler.Register("refresh-token", cfg.Scheduler.TokenRefreshSchedule, refresher.Refresh, nil); err != nil {
		log.Fatalf("Failed to register refresh-token: %v", err)
	}

	router := httpShell.SetupRoutes(jobScheduler, runRepo, cfg.Server.APIKey)

	serverAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Server.Port)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	var metricsServer *http.Server
	if cfg.Metrics.Enabled {
		metricsAddr := fmt.Sprintf("%s:%d", cfg.Server.Host, cfg.Metrics.Port)
		metricsMux := http.NewServeMux()
		metricsMux.Handle(cfg.Metrics.Path, promhttp.Handler())

		metricsServer = &http.Server{
			Addr:    metricsAddr,
			Handler: metricsMux,
		}

		go func() {
			log.Printf("Starting metrics server on %s%s", metricsAddr, cfg.Metrics.Path)
			if err := metricsServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
				log.Printf("Metrics server error: %v", err)
			}
		}()
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	jobScheduler.Start(ctx)

	go func() {
		log.Printf("Starting server on %s", server.Addr)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Server failed to start: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	jobScheduler.Stop()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Fatalf("Server forced to shutdown: %v", err)
	}

	if cfg.Metrics.Enabled && metricsServer != nil {
		if err := metricsServer.Shutdown(shutdownCtx); err != nil {
			log.Printf("Metrics server forced to shutdown: %v", err)
		}
	}

	log.Println("Server exited")
}
