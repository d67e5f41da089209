package main

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	firebase "firebase.google.com/go/v4"
	"github.com/gin-gonic/gin"
	"google.golang.org/api/option"

	"storefront-service/config"
	"storefront-service/internal/account"
	"storefront-service/internal/admin"
	"storefront-service/internal/api"
	"storefront-service/internal/archive"
	"storefront-service/internal/authsvc"
	"storefront-service/internal/blobstore"
	"storefront-service/internal/broker"
	"storefront-service/internal/catalog"
	"storefront-service/internal/docstore"
	"storefront-service/internal/redisclient"
	"storefront-service/internal/util"
	"storefront-service/internal/worker"
)

func main() {

	cfg := config.Load()

	if err := util.InitLogger(cfg.Server.Env); err != nil {
		log.Fatalf("Failed to initialize logger: %v", err)
	}
	defer util.SyncLogger()

	logger := util.GetLogger()
	logger.Info("Starting storefront service")

	tp, err := util.InitTracer("storefront-service", cfg.Observ.JaegerEndpoint)
	if err != nil {
		log.Fatalf("Failed to initialize tracer: %v", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := tp.Shutdown(ctx); err != nil {
			log.Printf("Error shutting down tracer: %v", err)
		}
	}()

	ctx := context.Background()

	var opts []option.ClientOption
	if cfg.Firebase.CredentialsFile != "" {
		opts = append(opts, option.WithCredentialsFile(cfg.Firebase.CredentialsFile))
	}
	app, err := firebase.NewApp(ctx, &firebase.Config{
		ProjectID:     cfg.Firebase.ProjectID,
		StorageBucket: cfg.Firebase.StorageBucket,
	}, opts...)
	if err != nil {
		log.Fatalf("Failed to initialize Firebase app: %v", err)
	}

	docs, err := docstore.NewFirestoreStore(ctx, app)
	if err != nil {
		log.Fatalf("Failed to initialize Firestore: %v", err)
	}
	log.Println("Firestore connected")

	authService, err := authsvc.NewFirebaseService(ctx, app, cfg.Firebase.WebAPIKey)
	if err != nil {
		log.Fatalf("Failed to initialize auth: %v", err)
	}

	blobs, err := blobstore.NewGCSStore(ctx, app, cfg.Firebase.StorageBucket)
	if err != nil {
		log.Fatalf("Failed to initialize blob storage: %v", err)
	}

	redisClient, err := redisclient.NewClient(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB)
	if err != nil {
		log.Fatalf("Failed to connect to Redis: %v", err)
	}
	defer redisClient.Close()
	log.Println("Redis connected")

	archiveStore, err := archive.NewStore(cfg.Archive.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to connect to archive database: %v", err)
	}
	defer archiveStore.Close()
	log.Println("Archive database connected")

	producer := broker.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrders)
	defer producer.Close()
	log.Println("Kafka producer initialized")

	eventPublisher := broker.NewEventPublisher(producer)

	catalogLoader := catalog.NewLoader(docs)
	accountService := account.NewService(docs)
	adminService := admin.NewService(docs, blobs, eventPublisher, cfg.Shop.AdminEmails)

	if err := catalogLoader.Refresh(ctx); err != nil {
		log.Printf("Initial catalog load failed: %v", err)
	}

	workerCtx, workerCancel := context.WithCancel(context.Background())
	defer workerCancel()

	consumer := broker.NewConsumer(cfg.Kafka.Brokers, cfg.Kafka.TopicOrders, cfg.Kafka.ConsumerGroup)
	archiveWorker := worker.NewArchiveWorker(consumer, archiveStore)
	go func() {
		if err := archiveWorker.Start(workerCtx); err != nil {
			log.Printf("Archive worker error: %v", err)
		}
	}()

	if cfg.Server.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	router := gin.Default()
	handler := api.NewHandler(
		catalogLoader,
		redisClient.CartStorage,
		authService,
		authService,
		accountService,
		adminService,
		docs,
		eventPublisher,
		archiveStore,
	)
	handler.SetupRoutes(router)

	srv := &http.Server{
		Addr:    fmt.Sprintf(":%s", cfg.Server.Port),
		Handler: router,
	}

	go func() {
		log.Printf("Starting HTTP server on port %s", cfg.Server.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down server...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	workerCancel()
	archiveWorker.Stop()

	log.Println("Server exited")
}
