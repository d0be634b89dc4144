package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"market-chatter/internal/config"
	"market-chatter/internal/llm"
	"market-chatter/internal/minimarket"
)

func main() {
	// Try several common locations for .env
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()

	var llmClient llm.Client
	if cfg.OpenAIAPIKey != "" || cfg.YandexOAuthToken != "" {
		client, err := llm.NewFactory(cfg).CreateClient(string(cfg.LLMProvider), cfg.OpenAIModel)
		if err != nil {
			log.Printf("⚠️ Не удалось создать LLM клиента, ассистент отвечает заготовками: %v", err)
		} else {
			llmClient = client
		}
	} else {
		log.Printf("💡 Ключи LLM не заданы, ассистент отвечает заготовками")
	}

	lanes := minimarket.NewLaneAssistant(llmClient,
		readPrompt(cfg.InboxPromptPath),
		readPrompt(cfg.SupportPromptPath),
	)

	srv := minimarket.NewServer(cfg.MinimarketAddr, cfg.MinimarketSigningSecret, lanes)

	go func() {
		if err := srv.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Fatalf("❌ Сервер витрины упал: %v", err)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	<-ctx.Done()

	log.Printf("👋 Останавливаю сервер витрины")
	if err := srv.Stop(); err != nil {
		log.Printf("❌ Ошибка остановки сервера: %v", err)
	}
}

func readPrompt(path string) string {
	if path == "" {
		return ""
	}
	data, err := os.ReadFile(path)
	if err != nil {
		log.Printf("prompt file not found or unreadable at %s: %v", path, err)
		return ""
	}
	return string(data)
}
