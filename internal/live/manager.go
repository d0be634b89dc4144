package live

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"market-chatter/internal/history"
	"market-chatter/internal/market"
)

type Status string

const (
	StatusConnecting   Status = "connecting"
	StatusConnected    Status = "connected"
	StatusRetrying     Status = "retrying"
	StatusDisconnected Status = "disconnected"
)

// SessionManager владеет единственной живой сессией: открытие нового
// диалога всегда сначала закрывает предыдущий.
type SessionManager struct {
	api     HistoryFetcher
	store   *history.Store
	factory Factory
	retry   RetryPolicy

	// Callbacks fire from the session goroutine. Assign before the
	// first Open, nil callbacks are skipped.
	OnStatus  func(conversationID int64, status Status)
	OnMessage func(conversationID int64, msg market.Message)
	OnDeleted func(conversationID, messageID int64)

	// opMu serializes Open/Close so two callers cannot race a pair of
	// sessions into existence.
	opMu sync.Mutex

	mu     sync.Mutex
	gen    uint64
	cancel context.CancelFunc
	done   chan struct{}
}

func NewSessionManager(api HistoryFetcher, store *history.Store, factory Factory, retry RetryPolicy) *SessionManager {
	return &SessionManager{api: api, store: store, factory: factory, retry: retry}
}

// Open attaches to a conversation. The previous session is fully closed
// first, then the history is seeded over REST, and only after that the
// live channel starts.
func (m *SessionManager) Open(ctx context.Context, conversationID int64) error {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.closeCurrent()

	m.report(conversationID, StatusConnecting)
	msgs, err := m.api.Messages(ctx, conversationID)
	if err != nil {
		m.report(conversationID, StatusDisconnected)
		return fmt.Errorf("seed conversation %d: %w", conversationID, err)
	}

	m.mu.Lock()
	m.gen++
	gen := m.gen
	runCtx, cancel := context.WithCancel(ctx)
	m.cancel = cancel
	done := make(chan struct{})
	m.done = done
	m.mu.Unlock()

	m.store.Seed(conversationID, msgs)
	log.Printf("📋 История диалога %d загружена: %d сообщений", conversationID, len(msgs))

	ch := m.factory(conversationID)
	go m.run(runCtx, done, ch, conversationID, gen)
	return nil
}

// Close tears down the current session and waits for its goroutine.
func (m *SessionManager) Close() {
	m.opMu.Lock()
	defer m.opMu.Unlock()
	m.closeCurrent()
}

func (m *SessionManager) closeCurrent() {
	m.mu.Lock()
	cancel, done := m.cancel, m.done
	m.cancel, m.done = nil, nil
	// bump the generation so frames already in flight are dropped
	m.gen++
	m.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done
}

func (m *SessionManager) run(ctx context.Context, done chan struct{}, ch Channel, conversationID int64, gen uint64) {
	defer close(done)
	sink := &sessionHandle{m: m, gen: gen, conversationID: conversationID}

	attempt := 0
	for {
		started := time.Now()
		err := ch.Run(ctx, sink)
		if ctx.Err() != nil {
			m.reportIfCurrent(gen, conversationID, StatusDisconnected)
			return
		}
		if time.Since(started) >= m.retry.resetAfter() {
			attempt = 0
		}
		attempt++
		if m.retry.Exhausted(attempt) {
			log.Printf("❌ Канал %s: попытки исчерпаны для диалога %d: %v", ch.Name(), conversationID, err)
			m.reportIfCurrent(gen, conversationID, StatusDisconnected)
			return
		}

		delay := m.retry.Delay(attempt)
		log.Printf("🔄 Канал %s отвалился (%v), повтор через %s (попытка %d)", ch.Name(), err, delay, attempt)
		m.reportIfCurrent(gen, conversationID, StatusRetrying)
		select {
		case <-ctx.Done():
			m.reportIfCurrent(gen, conversationID, StatusDisconnected)
			return
		case <-time.After(delay):
		}

		// pick up whatever was missed while disconnected
		if msgs, err := m.api.Messages(ctx, conversationID); err == nil {
			sink.Replace(msgs)
		} else if ctx.Err() == nil {
			log.Printf("⚠️ Не удалось перечитать историю диалога %d: %v", conversationID, err)
		}
	}
}

func (m *SessionManager) report(conversationID int64, status Status) {
	if m.OnStatus != nil {
		m.OnStatus(conversationID, status)
	}
}

func (m *SessionManager) reportIfCurrent(gen uint64, conversationID int64, status Status) {
	if m.isCurrent(gen) {
		m.report(conversationID, status)
	}
}

func (m *SessionManager) isCurrent(gen uint64) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.gen == gen
}

// sessionHandle binds a channel to the history store for exactly one
// session generation. После закрытия сессии его обновления отбрасываются.
type sessionHandle struct {
	m              *SessionManager
	gen            uint64
	conversationID int64
}

func (h *sessionHandle) Online() {
	h.m.reportIfCurrent(h.gen, h.conversationID, StatusConnected)
}

func (h *sessionHandle) ChatMessage(msg market.Message) {
	if !h.m.isCurrent(h.gen) {
		log.Printf("⚠️ Кадр устаревшей сессии диалога %d отброшен", h.conversationID)
		return
	}
	if h.m.store.Append(h.conversationID, msg) && h.m.OnMessage != nil {
		h.m.OnMessage(h.conversationID, msg)
	}
}

func (h *sessionHandle) MessageDeleted(messageID int64) {
	if !h.m.isCurrent(h.gen) {
		log.Printf("⚠️ Кадр устаревшей сессии диалога %d отброшен", h.conversationID)
		return
	}
	if h.m.store.RemoveByID(h.conversationID, messageID) && h.m.OnDeleted != nil {
		h.m.OnDeleted(h.conversationID, messageID)
	}
}

func (h *sessionHandle) Replace(msgs []market.Message) {
	if !h.m.isCurrent(h.gen) {
		return
	}
	known := make(map[int64]bool, h.m.store.Len(h.conversationID))
	for _, old := range h.m.store.Get(h.conversationID) {
		known[old.ID] = true
	}
	h.m.store.Seed(h.conversationID, msgs)
	if h.m.OnMessage == nil {
		return
	}
	for _, msg := range msgs {
		if !known[msg.ID] {
			h.m.OnMessage(h.conversationID, msg)
		}
	}
}
