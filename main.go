package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	api "notion-sync-backend/cmd/api"
	authRepo "notion-sync-backend/internal/auth/repository"
	authUsecase "notion-sync-backend/internal/auth/usecase"
	notionUsecase "notion-sync-backend/internal/notion/usecase"
	syncdomain "notion-sync-backend/internal/sync/domain"
	syncRepo "notion-sync-backend/internal/sync/repository"
	"notion-sync-backend/internal/sync/scheduler"
	syncUsecase "notion-sync-backend/internal/sync/usecase"
	"notion-sync-backend/internal/sync/worker"
	"notion-sync-backend/pkg/config"
	"notion-sync-backend/pkg/database"
	"notion-sync-backend/pkg/fcm"
	"notion-sync-backend/pkg/firebase"
	"notion-sync-backend/pkg/notion"

	"golang.org/x/sync/errgroup"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration
	cfg := config.Load()

	// Initialize Firebase (Realtime Database, Authentication, Cloud Messaging)
	var store database.Store
	var verifier authUsecase.TokenVerifier = firebase.DisabledVerifier{}
	var fcmClient *fcm.Client

	if cfg.FirebaseDatabaseURL != "" {
		app, err := firebase.NewApp(ctx, cfg.FirebaseCredentials, cfg.FirebaseDatabaseURL)
		if err != nil {
			log.Fatal("Failed to initialize Firebase:", err)
		}

		dbClient, err := firebase.NewDatabase(ctx, app)
		if err != nil {
			log.Fatal("Failed to connect to database:", err)
		}
		store = database.NewFirebaseStore(dbClient)

		tokenVerifier, err := firebase.NewTokenVerifier(ctx, app)
		if err != nil {
			log.Fatal("Failed to initialize Firebase Authentication:", err)
		}
		verifier = tokenVerifier

		// FCM is optional, sync works without it
		fcmClient, err = fcm.NewClient(ctx, app)
		if err != nil {
			log.Printf("[WARN] Failed to initialize FCM client (push notifications disabled): %v", err)
		}
	} else {
		log.Printf("[WARN] FIREBASE_DATABASE_URL not configured, using in-memory store and disabling authentication")
		store = database.NewMemoryStore()
	}

	// Initialize repositories (dependency injection)
	userRepo := authRepo.NewUserRepository(store)
	fcmTokenRepo := authRepo.NewFCMTokenRepository(store)
	statusRepo := syncRepo.NewStatusRepository(store)
	lockRepo := syncRepo.NewLockRepository(store)

	// Sync run history lives in Postgres when configured
	var runRepo syncRepo.RunRepository
	if cfg.DatabaseURL != "" {
		db, err := database.NewPostgresConnection(cfg)
		if err != nil {
			log.Fatal("Failed to connect to database:", err)
		}
		if err := db.AutoMigrate(&syncdomain.SyncRun{}); err != nil {
			log.Fatal("Failed to migrate database:", err)
		}
		runRepo = syncRepo.NewGormRunRepository(db)
	} else {
		log.Printf("[WARN] DATABASE_URL not configured, sync history is kept in memory")
		runRepo = syncRepo.NewMemoryRunRepository()
	}

	notionOpts := notion.Options{
		APIVersion: cfg.NotionAPIVersion,
		Timeout:    cfg.NotionCallTimeout,
		MaxRetries: cfg.NotionMaxRetries,
	}

	engine := syncUsecase.NewEngine(userRepo, func(accessToken string) syncUsecase.ContentAPI {
		return notion.NewClient(accessToken, notionOpts)
	})

	// Select the task queue: Pub/Sub when configured, otherwise the in-process worker pool
	var dispatcher syncUsecase.Dispatcher
	var consumer *worker.PubSubConsumer
	var pubsubDispatcher *worker.PubSubDispatcher
	var localDispatcher *worker.LocalDispatcher

	if cfg.GoogleProjectID != "" && cfg.SyncPubSubTopic != "" {
		log.Printf("[DEBUG] Initializing Pub/Sub sync queue with projectID: %s, topic: %s", cfg.GoogleProjectID, cfg.SyncPubSubTopic)
		client, err := worker.NewPubSubClient(ctx, cfg.GoogleProjectID, cfg.GoogleCredentials)
		if err != nil {
			log.Fatal("Failed to initialize Pub/Sub:", err)
		}
		pubsubDispatcher = worker.NewPubSubDispatcher(client, cfg.SyncPubSubTopic)
		dispatcher = pubsubDispatcher
		consumer = worker.NewPubSubConsumer(client, cfg.SyncPubSubTopic, cfg.SyncWorkerCount)
	} else {
		localDispatcher = worker.NewLocalDispatcher(cfg.SyncWorkerCount, cfg.SyncQueueSize)
		dispatcher = localDispatcher
	}

	// Initialize use cases (dependency injection)
	authUsecaseInstance := authUsecase.NewAuthUsecase(verifier, userRepo, fcmTokenRepo, cfg.SessionCookieExpiry)
	syncUsecaseInstance := syncUsecase.NewSyncUsecase(engine, userRepo, statusRepo, lockRepo, runRepo, fcmTokenRepo, dispatcher, cfg.SyncLockTTL)
	if fcmClient != nil {
		syncUsecaseInstance.SetPushSender(fcmClient)
	}

	oauthConfig := notionUsecase.NewOAuthConfig(cfg.NotionClientID, cfg.NotionClientSecret, cfg.NotionRedirectURI)
	notionUsecaseInstance := notionUsecase.NewNotionUsecase(userRepo, oauthConfig, cfg.OAuthStateSecret, cfg.OAuthStateExpiry, func(accessToken string) notionUsecase.ResourceSearcher {
		return notion.NewClient(accessToken, notionOpts)
	})

	// Initialize HTTP handler
	handler := api.NewHandler(authUsecaseInstance, notionUsecaseInstance, syncUsecaseInstance, cfg)

	sweeper := scheduler.NewStaleRunSweeper(runRepo, statusRepo, lockRepo, cfg.SyncLockTTL)
	sweeper.Start()

	g, gCtx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return handler.Start(gCtx, ":"+cfg.Port)
	})

	// Start background workers
	if consumer != nil {
		g.Go(func() error {
			consumer.Start(gCtx, syncUsecaseInstance.RunSync)
			return nil
		})
	} else {
		localDispatcher.Start(syncUsecaseInstance.RunSync)
		log.Println("Sync worker pool started")
	}

	err := g.Wait()

	sweeper.Stop()
	if localDispatcher != nil {
		localDispatcher.Stop()
	}
	if pubsubDispatcher != nil {
		pubsubDispatcher.Stop()
	}

	if err != nil {
		log.Fatal("Server stopped with error:", err)
	}
	log.Println("Server stopped")
}
