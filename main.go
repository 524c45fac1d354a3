package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"quiz-trainer/config"
	"quiz-trainer/internal/handlers"
	"quiz-trainer/internal/middleware"
	"quiz-trainer/internal/repository"
	"quiz-trainer/internal/service"
	ws "quiz-trainer/internal/websocket"
	"quiz-trainer/pkg/cache"
	"quiz-trainer/pkg/database"
	"quiz-trainer/pkg/messaging"
	"quiz-trainer/pkg/storage"

	"github.com/gin-gonic/gin"
)

type stateStore interface {
	repository.Store
	Ping(ctx context.Context) error
	Close() error
}

func openStore(cfg *config.Config) (stateStore, error) {
	switch cfg.Store.Backend {
	case "redis":
		redisClient, err := cache.NewRedisClient(&cfg.Redis)
		if err != nil {
			return nil, err
		}
		log.Println("Connected to Redis")
		return redisClient, nil

	case "postgres":
		pgClient, err := database.NewPostgresClient(&cfg.DB)
		if err != nil {
			return nil, err
		}
		log.Println("Connected to PostgreSQL")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := pgClient.InitSchema(ctx); err != nil {
			pgClient.Close()
			return nil, err
		}
		log.Println("PostgreSQL schema initialized")
		return pgClient, nil

	case "mysql":
		mysqlClient, err := database.NewMySQLClient(&cfg.MySQL)
		if err != nil {
			return nil, err
		}
		log.Println("Connected to MySQL")

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := mysqlClient.InitSchema(ctx); err != nil {
			mysqlClient.Close()
			return nil, err
		}
		log.Println("MySQL schema initialized")
		return mysqlClient, nil

	default:
		log.Println("Using in-memory state store, progress is lost on exit")
		return cache.NewMemoryStore(), nil
	}
}

func main() {
	cfg := config.Load()
	log.Println("Configuration loaded")

	store, err := openStore(cfg)
	if err != nil {
		log.Fatalf("Failed to open %s state store: %v", cfg.Store.Backend, err)
	}
	defer store.Close()

	var publisher service.EventPublisher
	if cfg.RabbitMQ.Enabled {
		rabbitClient, err := messaging.NewRabbitMQClient(&cfg.RabbitMQ)
		if err != nil {
			log.Printf("Warning: Failed to connect to RabbitMQ: %v", err)
		} else {
			log.Println("Connected to RabbitMQ")
			defer rabbitClient.Close()
			publisher = rabbitClient
		}
	}

	var bankStorage service.BankStorage
	if cfg.S3.Enabled {
		s3Client, err := storage.NewS3Client(&cfg.S3)
		if err != nil {
			log.Printf("Warning: Failed to create S3 client: %v", err)
		} else {
			ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			if err := s3Client.EnsureBucket(ctx); err != nil {
				log.Printf("Warning: Failed to prepare bucket %s: %v", cfg.S3.Bucket, err)
			} else {
				log.Printf("Using bucket %s for question banks", cfg.S3.Bucket)
				bankStorage = s3Client
			}
			cancel()
		}
	}

	repo := repository.NewStateRepository(store, cfg.Store.Namespace)
	quizService := service.NewQuizService(repo, publisher, bankStorage, cfg.Store.Timeout)

	resumed, err := quizService.Load(context.Background())
	if err != nil {
		log.Fatalf("Failed to load stored state: %v", err)
	}
	if resumed {
		log.Println("Interrupted session restored")
	}

	hubCtx, stopHub := context.WithCancel(context.Background())
	defer stopHub()
	hub := ws.NewHub(quizService)
	go hub.Run(hubCtx)
	log.Println("WebSocket hub started")

	if os.Getenv("GIN_MODE") == "" {
		gin.SetMode(gin.ReleaseMode)
	}
	router := gin.New()

	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.CORS())
	router.Use(middleware.ErrorHandler())

	healthHandler := handlers.NewHealthHandler(store)
	router.GET("/health", healthHandler.Health)
	router.GET("/ready", healthHandler.Ready)

	handlers.NewQuizHandler(quizService).RegisterRoutes(router)

	wsHandler := handlers.NewWebSocketHandler(hub)
	router.GET("/ws", wsHandler.HandleWebSocket)

	srv := &http.Server{
		Addr:    cfg.GetServerAddress(),
		Handler: router,
	}

	go func() {
		log.Printf("Quiz trainer starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("Failed to start HTTP server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(ctx); err != nil {
		log.Printf("Server forced to shutdown: %v", err)
	}

	log.Println("Quiz trainer stopped")
}
