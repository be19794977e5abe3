package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/avelkov/personachat/internal/ai"
	"github.com/avelkov/personachat/internal/auth"
	"github.com/avelkov/personachat/internal/character"
	"github.com/avelkov/personachat/internal/chat"
	"github.com/avelkov/personachat/internal/config"
	"github.com/avelkov/personachat/internal/httpapi"
	"github.com/avelkov/personachat/internal/httpapi/handlers"
	"github.com/avelkov/personachat/internal/store"
	"github.com/avelkov/personachat/internal/store/gormstore"
	"github.com/avelkov/personachat/internal/store/jsonstore"
	"github.com/avelkov/personachat/internal/store/rabbitmq"
	"github.com/avelkov/personachat/internal/store/redisstore"
)

func openStore(cfg config.Config) (store.Store, error) {
	switch cfg.StoreDriver {
	case "json":
		return jsonstore.Open(cfg.DataDir)
	case "sqlite", "mysql":
		return gormstore.Open(cfg.StoreDriver, cfg.DBDSN)
	default:
		return nil, fmt.Errorf("unsupported STORE_DRIVER=%q", cfg.StoreDriver)
	}
}

func buildProvider(cfg config.Config) (ai.Provider, error) {
	switch cfg.AIProvider {
	case "openrouter":
		return ai.NewOpenRouterProvider(cfg.OpenRouterBaseURL, cfg.OpenRouterAPIKey, cfg.OpenRouterModel), nil
	case "ollama":
		return ai.NewOllamaProvider(cfg.OllamaBaseURL, cfg.OllamaModel), nil
	default:
		return nil, fmt.Errorf("unsupported AI_PROVIDER=%q", cfg.AIProvider)
	}
}

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	st, err := openStore(cfg)
	if err != nil {
		log.Fatalf("store: %v", err)
	}
	defer st.Close()

	provider, err := buildProvider(cfg)
	if err != nil {
		log.Fatalf("provider: %v", err)
	}

	tokens := auth.NewTokenManager(cfg.JWTSecret)
	h := handlers.NewHandler(
		st,
		cfg,
		tokens,
		character.NewService(st),
		chat.NewService(st, provider, cfg.ChatContextWindowSize),
	)

	if cfg.RedisAddr != "" {
		rds, err := redisstore.New(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB)
		if err != nil {
			log.Fatalf("redis: %v", err)
		}
		defer rds.Close()
		h.Redis = rds
	}

	if cfg.RabbitURL != "" {
		pub, err := rabbitmq.NewPublisher(cfg.RabbitURL, cfg.RabbitQueue)
		if err != nil {
			log.Fatalf("rabbit: %v", err)
		}
		defer pub.Close()
		h.Rabbit = pub
	}

	srv := &http.Server{
		Addr:    ":" + cfg.HTTPPort,
		Handler: httpapi.NewRouter(h),
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	go func() {
		log.Printf("server listening on :%s (store=%s, provider=%s)", cfg.HTTPPort, cfg.StoreDriver, cfg.AIProvider)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("listen: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("shutdown: %v", err)
	}
}
