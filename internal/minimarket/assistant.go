package minimarket

import (
	"context"
	"fmt"
	"log"
	"sync"

	"github.com/google/uuid"

	"market-chatter/internal/llm"
	"market-chatter/internal/market"
)

const laneHistoryLimit = 20

// LaneAssistant serves the storefront assistant endpoint. Each lane keeps
// its own system prompt; each session keeps its own dialogue history.
// Без LLM-клиента ассистент отвечает заготовками, чтобы локальный бэкенд
// работал без ключей.
type LaneAssistant struct {
	client  llm.Client
	prompts map[string]string

	mu       sync.Mutex
	sessions map[string]*laneSession
}

type laneSession struct {
	lane    string
	history []llm.Message
}

func NewLaneAssistant(client llm.Client, inboxPrompt, supportPrompt string) *LaneAssistant {
	if inboxPrompt == "" {
		inboxPrompt = "You help a marketplace seller draft short, polite replies to buyers."
	}
	if supportPrompt == "" {
		supportPrompt = "You answer storefront customer-service questions about orders, delivery and returns."
	}
	return &LaneAssistant{
		client: client,
		prompts: map[string]string{
			market.LaneInbox:           inboxPrompt,
			market.LaneCustomerService: supportPrompt,
		},
		sessions: make(map[string]*laneSession),
	}
}

// Turn answers one utterance. An empty sessionID starts a fresh session;
// the returned session id must be replayed to continue the thread.
func (a *LaneAssistant) Turn(ctx context.Context, text, sessionID, lane string) (market.AssistantReply, error) {
	prompt, ok := a.prompts[lane]
	if !ok {
		return market.AssistantReply{}, fmt.Errorf("unknown assistant lane %q", lane)
	}

	a.mu.Lock()
	if sessionID == "" {
		sessionID = uuid.NewString()
	}
	session, found := a.sessions[sessionID]
	if !found || session.lane != lane {
		session = &laneSession{lane: lane}
		a.sessions[sessionID] = session
	}
	session.history = append(session.history, llm.Message{Role: "user", Content: text})
	messages := make([]llm.Message, 0, len(session.history)+1)
	messages = append(messages, llm.Message{Role: "system", Content: prompt})
	messages = append(messages, session.history...)
	a.mu.Unlock()

	answer, err := a.generate(ctx, lane, text, messages)
	if err != nil {
		return market.AssistantReply{}, err
	}

	a.mu.Lock()
	session.history = append(session.history, llm.Message{Role: "assistant", Content: answer})
	if len(session.history) > laneHistoryLimit {
		session.history = session.history[len(session.history)-laneHistoryLimit:]
	}
	a.mu.Unlock()

	return market.AssistantReply{Reply: answer, SessionID: sessionID}, nil
}

func (a *LaneAssistant) generate(ctx context.Context, lane, text string, messages []llm.Message) (string, error) {
	if a.client == nil {
		return cannedReply(lane, text), nil
	}
	resp, err := a.client.Generate(ctx, messages)
	if err != nil {
		log.Printf("❌ LLM недоступна, отвечаю заготовкой: %v", err)
		return cannedReply(lane, text), nil
	}
	return resp.Content, nil
}

func cannedReply(lane, text string) string {
	switch lane {
	case market.LaneCustomerService:
		return fmt.Sprintf("Спасибо за вопрос! По теме «%s»: проверьте раздел заказов, там есть статус доставки и кнопка возврата.", text)
	default:
		return fmt.Sprintf("Черновик ответа покупателю: «Спасибо за сообщение про %s! Отвечу подробнее в ближайшее время.»", text)
	}
}
