// Command chatmind runs the chat assistant: it opens a Socket Mode
// connection, ingests channel messages into the vector index, and answers
// mentions with an LLM-generated reply.
package main

import (
	"context"
	"flag"
	"log"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"

	"github.com/chatmind-dev/chatmind/pkg/config"
	"github.com/chatmind-dev/chatmind/pkg/embedder"
	"github.com/chatmind-dev/chatmind/pkg/llm"
	"github.com/chatmind-dev/chatmind/pkg/lshindex"
	"github.com/chatmind-dev/chatmind/pkg/memory"
	"github.com/chatmind-dev/chatmind/pkg/orchestrator"
	"github.com/chatmind-dev/chatmind/pkg/privacy"
	"github.com/chatmind-dev/chatmind/pkg/responder"
	"github.com/chatmind-dev/chatmind/pkg/transport"
	"github.com/chatmind-dev/chatmind/pkg/vectordb"
	"github.com/chatmind-dev/chatmind/pkg/version"
)

// embeddingDimension is the fixed output length shared by the TF-IDF floor
// and the averaged-word-vector fallback, and therefore the vector index's
// declared dimension.
const embeddingDimension = embedder.MinDimension

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func main() {
	configDir := flag.String("config-dir",
		getEnv("CONFIG_DIR", "./deploy/config"),
		"Path to configuration directory")
	flag.Parse()

	envPath := filepath.Join(*configDir, ".env")
	if err := godotenv.Load(envPath); err != nil {
		log.Printf("Warning: Could not load %s file: %v", envPath, err)
		log.Printf("Continuing with existing environment variables...")
	} else {
		log.Printf("Loaded environment from %s", envPath)
	}

	cfg := config.LoadFromEnv()
	if err := config.NewValidator(cfg).ValidateAll(); err != nil {
		log.Fatalf("Failed to validate configuration: %v", err)
	}

	logger := slog.Default().With("component", "main")

	db, err := vectordb.Open(cfg.Storage.DBPath, vectordb.Config{
		Dimension:   embeddingDimension,
		EnableLSH:   true,
		LSH:         lshindex.Config{NumTables: 8, HyperplanesPerTable: 12, Seed: 1},
		ExactFields: []string{"channel", "user_id", "privacy_level"},
		RangeFields: []string{"timestamp"},
		TextFields:  []string{"text"},
	})
	if err != nil {
		log.Fatalf("Failed to open vector store at %s: %v", cfg.Storage.DBPath, err)
	}
	defer func() {
		if err := db.Close(); err != nil {
			logger.Error("failed to close vector store", "error", err)
		}
	}()

	local := embedder.NewLocal(embeddingDimension)

	var external privacy.ExternalEmbedder
	if cfg.Privacy.Level != config.PrivacyHigh {
		extClient, err := privacy.NewClient(privacy.ClientConfig{
			Endpoint: cfg.Privacy.EmbeddingEndpoint,
			APIKey:   cfg.LLM.APIKey,
			Timeout:  10 * time.Second,
		})
		if err != nil {
			log.Fatalf("Failed to build external embedding client: %v", err)
		}
		external = extClient
	}
	privacyRouter := privacy.NewRouter(cfg.Privacy.Level, cfg.Privacy.UseEnterpriseZDR, local, external)

	mem := memory.New(memory.DefaultCapacity)

	llmClient, err := llm.NewClient(llm.Config{
		Endpoint: cfg.LLM.Endpoint,
		APIKey:   cfg.LLM.APIKey,
	})
	if err != nil {
		log.Fatalf("Failed to build LLM client: %v", err)
	}
	gen := responder.New(llmClient, responder.Config{
		Model:              cfg.LLM.Model,
		MaxTokens:          cfg.AI.ResponseMaxTokens,
		Temperature:        cfg.AI.Temperature,
		MaxContextMessages: cfg.AI.MaxContextMessages,
		ContextWindowHours: cfg.AI.ContextWindowHours,
	})

	chat := transport.NewClient(transport.Config{
		APIBase:      cfg.Chat.APIBase,
		AppToken:     cfg.Chat.AppToken,
		BotToken:     cfg.Chat.BotToken,
		PingInterval: cfg.Transport.PingInterval,
		Reconnect: transport.ReconnectPolicy{
			Exponential: false,
			BaseDelay:   cfg.Transport.ReconnectDelay,
			MaxDelay:    60 * time.Second,
			MaxAttempts: cfg.Transport.ReconnectAttempts,
		},
	})

	orch := orchestrator.New(*cfg, db, privacyRouter, mem, gen, chat)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		if err := orch.Run(ctx); err != nil {
			logger.Error("orchestrator exited", "error", err)
		}
	}()

	httpPort := getEnv("HTTP_PORT", "8080")
	gin.SetMode(getEnv("GIN_MODE", "release"))
	router := gin.Default()
	router.GET("/health", func(c *gin.Context) {
		snap := orch.Snapshot()
		c.JSON(http.StatusOK, gin.H{
			"status":  "healthy",
			"version": version.Full(),
			"stats": gin.H{
				"messages_ingested":      snap.MessagesIngested,
				"mentions_handled":       snap.MentionsHandled,
				"ai_responses_generated": snap.AIResponsesGenerated,
				"ai_responses_failed":    snap.AIResponsesFailed,
				"actions_dispatched":     snap.ActionsDispatched,
				"transport_state":        snap.TransportState,
				"reconnect_count":        snap.ReconnectCount,
				"llm": gin.H{
					"requests":     snap.LLM.Requests,
					"retries":      snap.LLM.Retries,
					"failures":     snap.LLM.Failures,
					"total_tokens": snap.LLM.TotalTokens,
					"cost_usd":     snap.LLM.CostUSD,
				},
				"privacy": gin.H{
					"total":    snap.Privacy.Total,
					"local":    snap.Privacy.Local,
					"external": snap.Privacy.External,
					"filtered": snap.Privacy.Filtered,
				},
			},
			"compliance_score": privacyRouter.ComplianceScore(),
		})
	})

	srv := &http.Server{Addr: ":" + httpPort, Handler: router}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logger.Error("http server shutdown error", "error", err)
		}
	}()

	log.Printf("%s starting, HTTP port %s, db %s", version.Full(), httpPort, cfg.Storage.DBPath)
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		log.Fatalf("HTTP server failed: %v", err)
	}
}
