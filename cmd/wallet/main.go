package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/segmentio/kafka-go"

	"github.com/mercuriabank/backend/internal/common/config"
	"github.com/mercuriabank/backend/internal/common/db"
	"github.com/mercuriabank/backend/internal/common/logger"
	"github.com/mercuriabank/backend/internal/common/middleware"
	"github.com/mercuriabank/backend/internal/common/redis"
	"github.com/mercuriabank/backend/internal/riskclient"
	"github.com/mercuriabank/backend/internal/tokenvalidator"
	"github.com/mercuriabank/backend/internal/wallet"
	"github.com/mercuriabank/backend/pkg/outbox"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("no .env file found, using system environment variables")
	}

	cfg, err := config.Load("wallet")
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("wallet-service")

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 60*time.Second)
	database, err := db.WaitForDB(startupCtx, cfg.Database, log)
	cancelStartup()
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	redisClient, err := redis.Connect(cfg.Redis, log)
	if err != nil {
		log.Fatalf("failed to connect to redis: %v", err)
	}
	defer redisClient.Close()

	producer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	defer producer.Close()

	validator := tokenvalidator.New(cfg.JWT)

	repo := wallet.NewRepository(database, log)
	outboxRepo := outbox.NewRepository(database.DB, log)
	service := wallet.NewService(repo, outboxRepo, redisClient, database, log).
		WithRiskCheck(riskclient.New(cfg.Risk), cfg.RiskCheckEnabled)
	handler := wallet.NewHandler(service, log)

	publicMux := http.NewServeMux()
	internalMux := http.NewServeMux()

	handler.RegisterRoutes(publicMux, validator)
	handler.RegisterInternalRoutes(internalMux)

	healthHandler := func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	}
	publicMux.HandleFunc("GET /health", healthHandler)
	internalMux.HandleFunc("GET /health", healthHandler)

	var publicHandler http.Handler = publicMux
	publicHandler = middleware.RequestID(publicHandler)
	publicHandler = middleware.CORS(publicHandler)
	publicHandler = middleware.Logging(log)(publicHandler)
	publicHandler = middleware.Recovery(log)(publicHandler)

	var internalHandler http.Handler = internalMux
	internalHandler = middleware.RequestID(internalHandler)
	internalHandler = middleware.Logging(log)(internalHandler)
	internalHandler = middleware.Recovery(log)(internalHandler)

	outboxPublisher := outbox.NewPublisher(outboxRepo, producer, log, 5*time.Second)
	publisherCtx, cancelPublisher := context.WithCancel(context.Background())
	defer cancelPublisher()
	go outboxPublisher.Run(publisherCtx)
	log.Info("outbox publisher started")

	publicServer := &http.Server{
		Addr:         ":" + cfg.Service.Port,
		Handler:      publicHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	internalPort := os.Getenv("WALLET_INTERNAL_PORT")
	if internalPort == "" {
		internalPort = "9081"
	}
	internalServer := &http.Server{
		Addr:         ":" + internalPort,
		Handler:      internalHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("public API starting on port %s", cfg.Service.Port)
		if err := publicServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start public server: %v", err)
		}
	}()

	go func() {
		log.Infof("internal API starting on port %s", internalPort)
		if err := internalServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start internal server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down servers...")
	cancelPublisher()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := publicServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("public server forced to shutdown: %v", err)
	}
	if err := internalServer.Shutdown(shutdownCtx); err != nil {
		log.Errorf("internal server forced to shutdown: %v", err)
	}

	log.Info("all servers exited gracefully")
}
