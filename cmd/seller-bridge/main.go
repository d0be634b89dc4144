package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"market-chatter/internal/bridge"
	"market-chatter/internal/config"
	"market-chatter/internal/directory"
	"market-chatter/internal/dispatch"
	"market-chatter/internal/history"
	"market-chatter/internal/live"
	"market-chatter/internal/market"
	"market-chatter/internal/watch"
)

func main() {
	// Try several common locations for .env
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()
	if cfg.TelegramBotToken == "" {
		log.Fatalf("TELEGRAM_BOT_TOKEN is required")
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := market.NewClient(cfg.MarketBaseURL, market.StaticTokenSource(cfg.MarketAccessToken))
	store := history.NewStore()
	dir := directory.New(client, cfg.MarketUserID)

	b, err := bridge.New(cfg.TelegramBotToken, cfg.TelegramChatID, dispatch.New(client, store))
	if err != nil {
		log.Fatalf("failed to create telegram bridge: %v", err)
	}
	dir.OnNew = b.ForwardNewConversation

	manager := live.NewSessionManager(client, store, newChannelFactory(cfg, client), live.RetryPolicy{
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
		MaxAttempts: cfg.RetryMaxAttempts,
	})
	manager.OnStatus = func(conversationID int64, status live.Status) {
		b.ForwardStatus(conversationID, string(status))
	}
	manager.OnMessage = func(conversationID int64, msg market.Message) {
		conv, _ := findConversation(dir, conversationID)
		b.ForwardMessage(conv, msg)
	}
	manager.OnDeleted = b.ForwardDeletion
	defer manager.Close()

	b.Threads = dir.Rows
	b.Open = func(ctx context.Context, conversationID int64) (market.Conversation, error) {
		conv, err := dir.Select(conversationID)
		if err != nil {
			return market.Conversation{}, err
		}
		if err := manager.Open(ctx, conversationID); err != nil {
			return market.Conversation{}, err
		}
		return conv, nil
	}

	if err := dir.Refresh(ctx); err != nil {
		log.Fatalf("failed to load conversations: %v", err)
	}

	watcher := watch.New(cfg.WatchCronSpec)
	watcher.SetRefreshFunction(dir.Refresh)
	if err := watcher.Start(); err != nil {
		log.Printf("failed to start directory refresh: %v", err)
	}
	defer watcher.Stop()

	if conv, ok := dir.SelectInitial(cfg.InitialConversationID); ok {
		b.SetConversation(conv.ID)
		if err := manager.Open(ctx, conv.ID); err != nil {
			log.Printf("❌ Не удалось открыть диалог %d: %v", conv.ID, err)
		}
	} else {
		log.Printf("📭 Диалогов пока нет, мост продавца ждет")
	}

	go func() {
		<-ctx.Done()
		b.Stop()
	}()

	log.Printf("🔗 Мост продавца запущен")
	b.Start(ctx)
}

func newChannelFactory(cfg *config.Config, client *market.Client) live.Factory {
	switch cfg.ChatTransport {
	case config.TransportPolling:
		return live.PollFactory(client, cfg.PollInterval)
	case config.TransportWebSocket:
		return live.WebSocketFactory(wsBaseURL(cfg), cfg.MarketBaseURL, client)
	default:
		log.Fatalf("unknown chat transport: %s", cfg.ChatTransport)
		return nil
	}
}

func wsBaseURL(cfg *config.Config) string {
	if cfg.MarketWSURL != "" {
		return cfg.MarketWSURL
	}
	return "ws" + strings.TrimPrefix(cfg.MarketBaseURL, "http") + "/ws/chat"
}

func findConversation(dir *directory.Directory, id int64) (market.Conversation, bool) {
	for _, conv := range dir.Conversations() {
		if conv.ID == id {
			return conv, true
		}
	}
	return market.Conversation{}, false
}
