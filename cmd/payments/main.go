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
	"github.com/mercuriabank/backend/internal/payments"
	"github.com/mercuriabank/backend/internal/riskclient"
	"github.com/mercuriabank/backend/internal/tokenvalidator"
	"github.com/mercuriabank/backend/pkg/outbox"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("no .env file found, using system environment variables")
	}

	cfg, err := config.Load("payments")
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("payments-service")

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 60*time.Second)
	database, err := db.WaitForDB(startupCtx, cfg.Database, log)
	cancelStartup()
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	producer := &kafka.Writer{
		Addr:     kafka.TCP(cfg.Kafka.Brokers...),
		Balancer: &kafka.LeastBytes{},
	}
	defer producer.Close()

	validator := tokenvalidator.New(cfg.JWT)

	outboxRepo := outbox.NewRepository(database.DB, log)
	repo := payments.NewRepository(database, outboxRepo, log)
	walletClient := payments.NewWalletClient(cfg.Wallet)
	riskClient := riskclient.New(cfg.Risk)
	service := payments.NewService(repo, walletClient, riskClient, log)
	handler := payments.NewHandler(service, log)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, validator)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	var rootHandler http.Handler = mux
	rootHandler = middleware.RequestID(rootHandler)
	rootHandler = middleware.CORS(rootHandler)
	rootHandler = middleware.Logging(log)(rootHandler)
	rootHandler = middleware.Recovery(log)(rootHandler)

	outboxPublisher := outbox.NewPublisher(outboxRepo, producer, log, 5*time.Second)
	publisherCtx, cancelPublisher := context.WithCancel(context.Background())
	defer cancelPublisher()
	go outboxPublisher.Run(publisherCtx)
	log.Info("outbox publisher started")

	server := &http.Server{
		Addr:         ":" + cfg.Service.Port,
		Handler:      rootHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("payments API starting on port %s", cfg.Service.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	cancelPublisher()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server forced to shutdown: %v", err)
	}

	log.Info("server exited gracefully")
}
