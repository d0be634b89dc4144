// Package bridge пересылает входящие сообщения витрины в Telegram-чат
// продавца и возвращает его ответы обратно в активный диалог.
package bridge

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"market-chatter/internal/directory"
	"market-chatter/internal/market"
)

type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

type botAPISender struct{ api *tgbotapi.BotAPI }

func (s botAPISender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	return s.api.Send(c)
}

type Dispatcher interface {
	Send(ctx context.Context, conversationID int64, body string) (market.Message, error)
}

type Bridge struct {
	api        *tgbotapi.BotAPI
	s          sender
	chatID     int64
	dispatcher Dispatcher

	// Wiring points for the /threads and /open commands. A nil callback
	// turns the matching command off.
	Threads func() []directory.Row
	Open    func(ctx context.Context, conversationID int64) (market.Conversation, error)

	mu             sync.Mutex
	conversationID int64
}

func New(botToken string, chatID int64, dispatcher Dispatcher) (*Bridge, error) {
	api, err := tgbotapi.NewBotAPI(botToken)
	if err != nil {
		return nil, err
	}
	return &Bridge{
		api:        api,
		s:          botAPISender{api: api},
		chatID:     chatID,
		dispatcher: dispatcher,
	}, nil
}

// SetConversation points seller replies at a conversation.
func (b *Bridge) SetConversation(id int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversationID = id
}

func (b *Bridge) conversation() int64 {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversationID
}

// Start consumes Telegram updates until the channel closes. Every text
// message from the seller chat becomes a reply into the active dialogue.
func (b *Bridge) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for update := range updates {
		if update.Message == nil {
			continue
		}
		b.handleSellerReply(ctx, update.Message)
	}
}

// Stop closes the update stream, after which Start returns.
func (b *Bridge) Stop() {
	b.api.StopReceivingUpdates()
}

func (b *Bridge) handleSellerReply(ctx context.Context, msg *tgbotapi.Message) {
	if b.chatID != 0 && msg.Chat.ID != b.chatID {
		log.Printf("⚠️ Сообщение из чужого чата %d проигнорировано", msg.Chat.ID)
		return
	}
	text := strings.TrimSpace(msg.Text)
	if text == "" {
		return
	}

	switch {
	case text == "/threads":
		b.replyThreads()
		return
	case strings.HasPrefix(text, "/open "):
		b.replyOpen(ctx, strings.TrimSpace(strings.TrimPrefix(text, "/open ")))
		return
	}

	conversationID := b.conversation()
	if conversationID == 0 {
		b.send("Нет активного диалога: ответ некуда отправить.")
		return
	}

	if _, err := b.dispatcher.Send(ctx, conversationID, text); err != nil {
		log.Printf("failed to relay seller reply: %v", err)
		b.send("Не удалось отправить ответ, попробуйте ещё раз.")
		return
	}
	b.send("✅ Отправлено")
}

func (b *Bridge) replyThreads() {
	if b.Threads == nil {
		b.send("Команда /threads здесь не настроена.")
		return
	}
	rows := b.Threads()
	if len(rows) == 0 {
		b.send("📭 Диалогов пока нет")
		return
	}
	var sb strings.Builder
	sb.WriteString("📋 Диалоги:\n")
	active := b.conversation()
	for _, row := range rows {
		marker := ""
		if row.Conversation.ID == active {
			marker = " ◀ активный"
		}
		fmt.Fprintf(&sb, "[%d] %s · %s%s\n", row.Conversation.ID, row.Subject, row.Counterpart, marker)
	}
	b.send(sb.String())
}

func (b *Bridge) replyOpen(ctx context.Context, raw string) {
	if b.Open == nil {
		b.send("Команда /open здесь не настроена.")
		return
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		b.send(fmt.Sprintf("Нужен числовой номер диалога, получено %q.", raw))
		return
	}
	conv, err := b.Open(ctx, id)
	if err != nil {
		log.Printf("failed to open conversation %d: %v", id, err)
		b.send(fmt.Sprintf("Не удалось открыть диалог %d.", id))
		return
	}
	b.SetConversation(conv.ID)
	b.send(fmt.Sprintf("✅ Открыт диалог %d: %s", conv.ID, conv.SubjectLabel()))
}

// ForwardMessage pushes an incoming storefront message to the seller chat.
func (b *Bridge) ForwardMessage(conv market.Conversation, msg market.Message) {
	from := conv.Buyer
	if msg.SenderID == conv.Seller.ID {
		from = conv.Seller
	}
	b.send(fmt.Sprintf("💬 %s · %s\n%s", from.Label(), conv.SubjectLabel(), msg.Body))
}

// ForwardDeletion notifies the seller chat about a removed message.
func (b *Bridge) ForwardDeletion(conversationID, messageID int64) {
	b.send(fmt.Sprintf("🗑 Сообщение %d удалено из диалога %d", messageID, conversationID))
}

// ForwardNewConversation announces a conversation that appeared in the
// directory since the last refresh.
func (b *Bridge) ForwardNewConversation(conv market.Conversation) {
	b.send(fmt.Sprintf("🆕 Новый диалог [%d] %s · %s", conv.ID, conv.SubjectLabel(), conv.Buyer.Label()))
}

// ForwardStatus mirrors the live-channel state into the seller chat.
func (b *Bridge) ForwardStatus(conversationID int64, status string) {
	b.send(fmt.Sprintf("📡 Диалог %d: %s", conversationID, status))
}

func (b *Bridge) send(text string) {
	msg := tgbotapi.NewMessage(b.chatID, text)
	if _, err := b.s.Send(msg); err != nil {
		log.Printf("failed to send message: %v", err)
	}
}
