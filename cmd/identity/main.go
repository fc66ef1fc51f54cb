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

	"github.com/mercuriabank/backend/internal/common/config"
	"github.com/mercuriabank/backend/internal/common/db"
	"github.com/mercuriabank/backend/internal/common/logger"
	"github.com/mercuriabank/backend/internal/common/middleware"
	"github.com/mercuriabank/backend/internal/identity"
	"github.com/mercuriabank/backend/internal/tokenvalidator"
)

func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("no .env file found, using system environment variables")
	}

	cfg, err := config.Load("identity")
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("identity-service")

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 60*time.Second)
	database, err := db.WaitForDB(startupCtx, cfg.Database, log)
	cancelStartup()
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	keys := identity.NewKeyManager(cfg.Identity)
	if _, err := keys.PrivateKey(); err != nil {
		log.Fatalf("failed to load or generate signing key: %v", err)
	}

	// The Identity service trusts its own freshly-signed tokens through the
	// same JWKS contract every other service fetches, so /api/v1/auth/me
	// can reuse the shared Auth middleware.
	validator := tokenvalidator.New(cfg.JWT)

	repo := identity.NewRepository(database, log)
	service := identity.NewService(repo, keys, cfg.JWT, cfg.Identity, log)
	handler := identity.NewHandler(service, keys, log)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux, validator)

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	var httpHandler http.Handler = mux
	httpHandler = middleware.RequestID(httpHandler)
	httpHandler = middleware.CORS(httpHandler)
	httpHandler = middleware.Logging(log)(httpHandler)
	httpHandler = middleware.Recovery(log)(httpHandler)

	server := &http.Server{
		Addr:         ":" + cfg.Service.Port,
		Handler:      httpHandler,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("identity service starting on port %s", cfg.Service.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server forced to shutdown: %v", err)
	}

	log.Info("server exited")
}
