// Package assistant ведёт диалог с ассистентом витрины: отдельные линии
// для инбокса и поддержки, долговечная сессия между запусками.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"market-chatter/internal/market"
)

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
	RoleError     = "error"
)

var ErrEmptyQuestion = errors.New("question is empty")

// Turn is one entry of the assistant thread as the user sees it.
type Turn struct {
	Role string
	Text string
	At   time.Time
}

type TurnAPI interface {
	AssistantTurn(ctx context.Context, text, sessionID, lane string) (market.AssistantReply, error)
}

type Assistant struct {
	api   TurnAPI
	store SessionStore
	lane  string

	mu      sync.Mutex
	session Session
	loaded  bool
	thread  []Turn
}

func New(api TurnAPI, store SessionStore, lane string) *Assistant {
	if lane != market.LaneInbox && lane != market.LaneCustomerService {
		log.Printf("⚠️ Неизвестная линия ассистента %q, использую %q", lane, market.LaneInbox)
		lane = market.LaneInbox
	}
	return &Assistant{api: api, store: store, lane: lane}
}

func (a *Assistant) Lane() string { return a.lane }

// Ask runs one turn. A transport failure becomes an inline error turn in
// the thread; the session id survives so the next turn continues the same
// backend dialogue.
func (a *Assistant) Ask(ctx context.Context, text string) (Turn, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return Turn{}, ErrEmptyQuestion
	}

	sessionID := a.currentSessionID()
	a.appendTurn(Turn{Role: RoleUser, Text: text, At: time.Now()})

	reply, err := a.api.AssistantTurn(ctx, text, sessionID, a.lane)
	if err != nil {
		log.Printf("❌ Ошибка ассистента: %v", err)
		turn := Turn{
			Role: RoleError,
			Text: "Извините, ассистент сейчас недоступен. Попробуйте ещё раз.",
			At:   time.Now(),
		}
		a.appendTurn(turn)
		return turn, fmt.Errorf("assistant turn: %w", err)
	}

	a.rememberSession(reply.SessionID)
	turn := Turn{Role: RoleAssistant, Text: reply.Reply, At: time.Now()}
	a.appendTurn(turn)
	return turn, nil
}

// Thread returns a copy of the local conversation with the assistant.
func (a *Assistant) Thread() []Turn {
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]Turn, len(a.thread))
	copy(out, a.thread)
	return out
}

// Reset drops the local thread and the stored session id; the next turn
// starts a new backend dialogue.
func (a *Assistant) Reset() {
	a.mu.Lock()
	a.session = Session{}
	a.loaded = true
	a.thread = nil
	store := a.store
	a.mu.Unlock()

	log.Printf("🔄 Сессия ассистента сброшена")
	if store == nil {
		return
	}
	if err := store.Clear(); err != nil {
		log.Printf("⚠️ Не удалось очистить сессию ассистента: %v", err)
	}
}

func (a *Assistant) appendTurn(turn Turn) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.thread = append(a.thread, turn)
}

// currentSessionID lazily restores the stored session. A session saved for
// another lane is discarded: each lane keeps its own dialogue thread.
func (a *Assistant) currentSessionID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.loaded {
		a.loaded = true
		if a.store != nil {
			session, ok, err := a.store.Load()
			switch {
			case err != nil:
				log.Printf("⚠️ Не удалось прочитать сессию ассистента: %v", err)
			case ok && session.Lane == a.lane:
				a.session = session
				log.Printf("📋 Продолжаю сессию ассистента %s", session.ID)
			case ok:
				log.Printf("🔄 Сохранённая сессия была для линии %q, начинаю новую", session.Lane)
			}
		}
	}
	return a.session.ID
}

func (a *Assistant) rememberSession(id string) {
	if id == "" {
		return
	}
	a.mu.Lock()
	a.session = Session{ID: id, Lane: a.lane, UpdatedAt: time.Now()}
	session := a.session
	store := a.store
	a.mu.Unlock()

	if store == nil {
		return
	}
	if err := store.Save(session); err != nil {
		log.Printf("⚠️ Не удалось сохранить сессию ассистента: %v", err)
	}
}
