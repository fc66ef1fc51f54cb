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
	"github.com/mercuriabank/backend/internal/risk"
)

// The Risk Evaluator ships as a dev/test double (spec §4.3): a real rule
// engine over a real table of rules, but no production rule-authoring UI
// and no external fraud-data feeds. That's "riskstub" in the service name,
// not a fake in the implementation.
func main() {
	if err := godotenv.Load(); err != nil {
		fmt.Println("no .env file found, using system environment variables")
	}

	cfg, err := config.Load("riskstub")
	if err != nil {
		fmt.Printf("failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New("risk-service")

	startupCtx, cancelStartup := context.WithTimeout(context.Background(), 60*time.Second)
	database, err := db.WaitForDB(startupCtx, cfg.Database, log)
	cancelStartup()
	if err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	defer database.Close()

	repo := risk.NewRepository(database, log)
	seedCtx, cancelSeed := context.WithTimeout(context.Background(), 30*time.Second)
	if err := repo.SeedDefaultRules(seedCtx); err != nil {
		log.Fatalf("failed to seed risk rules: %v", err)
	}
	cancelSeed()

	service := risk.NewService(repo, log)
	handler := risk.NewHandler(service, log)

	mux := http.NewServeMux()
	handler.RegisterRoutes(mux)
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})

	var h http.Handler = mux
	h = middleware.RequestID(h)
	h = middleware.Logging(log)(h)
	h = middleware.Recovery(log)(h)

	server := &http.Server{
		Addr:         ":" + cfg.Service.Port,
		Handler:      h,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		log.Infof("risk service starting on port %s", cfg.Service.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("shutting down server...")
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Errorf("server forced to shutdown: %v", err)
	}
	log.Info("server exited gracefully")
}
