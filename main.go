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

	"github.com/lawrencecchen/autobuild/internal/adapter/d1"
	"github.com/lawrencecchen/autobuild/internal/adapter/deploy"
	"github.com/lawrencecchen/autobuild/internal/adapter/llm"
	"github.com/lawrencecchen/autobuild/internal/config"
	"github.com/lawrencecchen/autobuild/internal/hub"
	"github.com/lawrencecchen/autobuild/internal/repository"
	"github.com/lawrencecchen/autobuild/internal/service"
	"github.com/lawrencecchen/autobuild/internal/session"
	handler "github.com/lawrencecchen/autobuild/internal/transport/http"
	"github.com/lawrencecchen/autobuild/policy"
)

func main() {
	// Load configuration
	cfg := config.Load()

	log.Printf("Starting copilot backend...")
	log.Printf("HTTP Port: %d", cfg.HTTPPort)
	log.Printf("Database: %s", cfg.DatabaseURL)
	log.Printf("Completion provider: %s (model %s)", cfg.OpenAIBaseURL, cfg.OpenAIModel)

	ctx, stop := context.WithCancel(context.Background())
	defer stop()

	// Initialize store
	db, err := repository.NewSQLiteStore(cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("Failed to initialize store: %v", err)
	}
	defer db.Close()

	store, err := repository.NewCachedStore(db, cfg.SessionCacheSize)
	if err != nil {
		log.Fatalf("Failed to initialize session cache: %v", err)
	}

	// Initialize the update hub
	h := hub.NewHub()
	go h.Run(ctx)

	sessions := session.NewManager(store, h)

	// Initialize adapters
	llmClient := llm.NewLLMClient(cfg.OpenAIBaseURL, cfg.OpenAIAPIKey, cfg.LLMTimeout)
	database := d1.NewClient(cfg.D1BaseURL, cfg.CloudflareAccountID, cfg.D1DatabaseID, cfg.CloudflareAPIToken, cfg.D1Timeout)

	var deployer deploy.Deployer
	if cfg.DeployEnabled() {
		deployer = deploy.NewClient(cfg.DenoDeployBaseURL, cfg.DenoDeployAccessToken, cfg.DenoDeployOrgID)
		log.Printf("Query endpoint deployment enabled")
	}

	// Initialize policy engine
	policyEngine, err := policy.NewEngineFromFile(ctx, cfg.PolicyPath)
	if err != nil {
		log.Fatalf("Failed to initialize policy engine: %v", err)
	}

	// Initialize service
	svc := service.New(cfg, service.Deps{
		Store:    store,
		Sessions: sessions,
		LLM:      llmClient,
		Database: database,
		Deployer: deployer,
		Policy:   policyEngine,
		Notifier: h,
	})
	if err := svc.RecoverInterruptedTurns(ctx); err != nil {
		log.Printf("WARN: failed to recover interrupted turns: %v", err)
	}
	go svc.RunConfirmationTimeoutMonitor(ctx)

	e := handler.NewServer(svc, h)
	e.Debug = cfg.LogLevel == "debug"

	go func() {
		addr := fmt.Sprintf(":%d", cfg.HTTPPort)
		if err := e.Start(addr); err != nil && err != http.ErrServerClosed {
			log.Fatalf("Failed to start server: %v", err)
		}
	}()

	log.Printf("API started on port %d", cfg.HTTPPort)

	// Wait for interrupt signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Println("Shutting down copilot backend...")

	// Graceful shutdown
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := e.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to shutdown server gracefully: %v", err)
	}
	if err := svc.Shutdown(shutdownCtx); err != nil {
		log.Printf("Failed to drain background tasks: %v", err)
	}
	stop()

	log.Println("Copilot backend stopped")
}
