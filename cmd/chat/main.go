package main

import (
	"bufio"
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"market-chatter/internal/assistant"
	"market-chatter/internal/config"
	"market-chatter/internal/directory"
	"market-chatter/internal/dispatch"
	"market-chatter/internal/history"
	"market-chatter/internal/live"
	"market-chatter/internal/market"
	"market-chatter/internal/storage"
	"market-chatter/internal/watch"
)

func main() {
	// Try several common locations for .env
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	cfg := config.New()

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	client := market.NewClient(cfg.MarketBaseURL, market.StaticTokenSource(cfg.MarketAccessToken))
	store := history.NewStore()
	dir := directory.New(client, cfg.MarketUserID)
	dir.OnNew = func(conv market.Conversation) {
		fmt.Printf("🆕 Новый диалог [%d] %s · %s\n", conv.ID, conv.SubjectLabel(), conv.Counterpart(cfg.MarketUserID).Label())
	}

	var rec storage.Recorder
	if cfg.TranscriptLogPath != "" {
		fr, err := storage.NewFileRecorder(cfg.TranscriptLogPath)
		if err != nil {
			log.Printf("failed to init file recorder: %v", err)
		} else {
			rec = fr
		}
	}

	var sessions assistant.SessionStore
	if cfg.AssistantSessionFile != "" {
		fs, err := assistant.NewFileSessionStore(cfg.AssistantSessionFile)
		if err != nil {
			log.Printf("failed to init assistant session store: %v", err)
		} else {
			sessions = fs
		}
	}

	c := &console{
		viewerID: cfg.MarketUserID,
		store:    store,
		dir:      dir,
		disp:     dispatch.New(client, store),
		helper:   assistant.New(client, sessions, cfg.AssistantLane),
		rec:      rec,
	}

	manager := live.NewSessionManager(client, store, newChannelFactory(cfg, client), live.RetryPolicy{
		BaseDelay:   cfg.RetryBaseDelay,
		MaxDelay:    cfg.RetryMaxDelay,
		MaxAttempts: cfg.RetryMaxAttempts,
	})
	manager.OnStatus = c.showStatus
	manager.OnMessage = c.showIncoming
	manager.OnDeleted = c.showDeleted
	c.manager = manager
	defer manager.Close()

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
		c.openConversation(ctx, conv)
	} else {
		fmt.Println("📭 Диалогов пока нет")
	}

	printHelp()
	c.run(ctx)
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

// console is the interactive buyer screen: a directory of dialogues, one
// active dialogue with a live feed, and the storefront assistant.
type console struct {
	viewerID int64
	store    *history.Store
	dir      *directory.Directory
	disp     *dispatch.Dispatcher
	helper   *assistant.Assistant
	manager  *live.SessionManager
	rec      storage.Recorder
}

func (c *console) run(ctx context.Context) {
	lines := make(chan string)
	go func() {
		scanner := bufio.NewScanner(os.Stdin)
		for scanner.Scan() {
			lines <- scanner.Text()
		}
		close(lines)
	}()

	for {
		select {
		case <-ctx.Done():
			fmt.Println("\n👋 Завершение работы")
			return
		case line, ok := <-lines:
			if !ok {
				return
			}
			if quit := c.handleLine(ctx, strings.TrimSpace(line)); quit {
				return
			}
		}
	}
}

func (c *console) handleLine(ctx context.Context, line string) bool {
	switch {
	case line == "":
	case line == "/quit" || line == "/exit":
		return true
	case line == "/help":
		printHelp()
	case line == "/list":
		c.printDirectory()
	case strings.HasPrefix(line, "/find "):
		c.printFiltered(strings.TrimPrefix(line, "/find "))
	case line == "/history":
		c.printHistory()
	case strings.HasPrefix(line, "/open "):
		c.openByID(ctx, strings.TrimSpace(strings.TrimPrefix(line, "/open ")))
	case strings.HasPrefix(line, "/ask "):
		c.ask(ctx, strings.TrimPrefix(line, "/ask "))
	case line == "/reset":
		c.helper.Reset()
		fmt.Println("🔄 Диалог с ассистентом начат заново")
	case strings.HasPrefix(line, "/"):
		fmt.Printf("❓ Неизвестная команда %q, /help покажет список\n", line)
	default:
		c.sendText(ctx, line)
	}
	return false
}

func (c *console) openByID(ctx context.Context, raw string) {
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		fmt.Printf("⚠️ Нужен числовой номер диалога, получено %q\n", raw)
		return
	}
	conv, err := c.dir.Select(id)
	if err != nil {
		fmt.Printf("⚠️ %v\n", err)
		return
	}
	c.openConversation(ctx, conv)
}

func (c *console) openConversation(ctx context.Context, conv market.Conversation) {
	fmt.Printf("💬 Диалог %d: %s · %s\n", conv.ID, conv.SubjectLabel(), conv.Counterpart(c.viewerID).Label())
	if err := c.manager.Open(ctx, conv.ID); err != nil {
		fmt.Printf("❌ Не удалось открыть диалог: %v\n", err)
		return
	}
	c.printHistory()
}

func (c *console) sendText(ctx context.Context, text string) {
	conv, ok := c.dir.Selected()
	if !ok {
		fmt.Println("⚠️ Сначала выберите диалог через /open <id>")
		return
	}
	msg, err := c.disp.Send(ctx, conv.ID, text)
	if err != nil {
		fmt.Printf("❌ Не удалось отправить сообщение: %v\n", err)
		return
	}
	c.printMessage(conv, msg)
	c.record(storage.Event{
		Timestamp:      time.Now().UTC(),
		Kind:           storage.KindMessage,
		ConversationID: conv.ID,
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
		Body:           msg.Body,
	})
}

func (c *console) ask(ctx context.Context, text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		fmt.Println("⚠️ Пустой вопрос не отправлен")
		return
	}
	c.record(storage.Event{
		Timestamp: time.Now().UTC(),
		Kind:      storage.KindAssistant,
		Lane:      c.helper.Lane(),
		Role:      assistant.RoleUser,
		Body:      text,
	})
	turn, err := c.helper.Ask(ctx, text)
	if err != nil && turn.Text == "" {
		fmt.Printf("❌ %v\n", err)
		return
	}
	fmt.Printf("🤖 %s\n", turn.Text)
	c.record(storage.Event{
		Timestamp: time.Now().UTC(),
		Kind:      storage.KindAssistant,
		Lane:      c.helper.Lane(),
		Role:      turn.Role,
		Body:      turn.Text,
	})
}

func (c *console) printDirectory() {
	rows := c.dir.Rows()
	if len(rows) == 0 {
		fmt.Println("📭 Диалогов пока нет")
		return
	}
	selected, hasSelected := c.dir.Selected()
	for _, row := range rows {
		marker := "  "
		if hasSelected && selected.ID == row.Conversation.ID {
			marker = "▶ "
		}
		preview := row.Preview
		if len(preview) > 48 {
			preview = preview[:48] + "..."
		}
		fmt.Printf("%s[%d] %s · %s: %s\n", marker, row.Conversation.ID, row.Subject, row.Counterpart, preview)
	}
}

func (c *console) printFiltered(query string) {
	rows := c.dir.Filter(query)
	if len(rows) == 0 {
		fmt.Printf("🔍 Ничего не найдено по запросу %q\n", strings.TrimSpace(query))
		return
	}
	for _, row := range rows {
		fmt.Printf("  [%d] %s · %s\n", row.Conversation.ID, row.Subject, row.Counterpart)
	}
}

func (c *console) printHistory() {
	conv, ok := c.dir.Selected()
	if !ok {
		fmt.Println("⚠️ Нет активного диалога")
		return
	}
	msgs := c.store.Get(conv.ID)
	if len(msgs) == 0 {
		fmt.Println("📭 Сообщений пока нет")
		return
	}
	for _, msg := range msgs {
		c.printMessage(conv, msg)
	}
}

func (c *console) printMessage(conv market.Conversation, msg market.Message) {
	fmt.Printf("#%d [%s] %s: %s\n", msg.ID, msg.CreatedAt.Local().Format("15:04"), senderLabel(conv, msg.SenderID), msg.Body)
}

func (c *console) showStatus(conversationID int64, status live.Status) {
	fmt.Printf("📡 Диалог %d: %s\n", conversationID, status)
}

func (c *console) showIncoming(conversationID int64, msg market.Message) {
	if conv, ok := c.findConversation(conversationID); ok {
		c.printMessage(conv, msg)
	} else {
		fmt.Printf("#%d %s\n", msg.ID, msg.Body)
	}
	c.record(storage.Event{
		Timestamp:      time.Now().UTC(),
		Kind:           storage.KindMessage,
		ConversationID: conversationID,
		MessageID:      msg.ID,
		SenderID:       msg.SenderID,
		Body:           msg.Body,
	})
}

func (c *console) showDeleted(conversationID, messageID int64) {
	fmt.Printf("🗑 Сообщение %d удалено продавцом\n", messageID)
	c.record(storage.Event{
		Timestamp:      time.Now().UTC(),
		Kind:           storage.KindDeleted,
		ConversationID: conversationID,
		MessageID:      messageID,
	})
}

func (c *console) findConversation(id int64) (market.Conversation, bool) {
	for _, conv := range c.dir.Conversations() {
		if conv.ID == id {
			return conv, true
		}
	}
	return market.Conversation{}, false
}

func (c *console) record(event storage.Event) {
	if c.rec == nil {
		return
	}
	if err := c.rec.Append(event); err != nil {
		log.Printf("⚠️ Не удалось записать событие в журнал: %v", err)
	}
}

func senderLabel(conv market.Conversation, senderID int64) string {
	switch senderID {
	case conv.Buyer.ID:
		return conv.Buyer.Label()
	case conv.Seller.ID:
		return conv.Seller.Label()
	}
	return fmt.Sprintf("user %d", senderID)
}

func printHelp() {
	fmt.Println("Команды:")
	fmt.Println("  /list          список диалогов")
	fmt.Println("  /find <текст>  поиск по теме или собеседнику")
	fmt.Println("  /open <id>     открыть диалог")
	fmt.Println("  /history       история активного диалога")
	fmt.Println("  /ask <вопрос>  вопрос ассистенту витрины")
	fmt.Println("  /reset         начать диалог с ассистентом заново")
	fmt.Println("  /quit          выход")
	fmt.Println("Любой другой текст отправляется в активный диалог.")
}
