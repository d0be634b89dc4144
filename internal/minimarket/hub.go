package minimarket

import (
	"encoding/json"
	"log"
	"sync"

	"market-chatter/internal/market"
)

// wireFrame is the envelope pushed to chat sockets.
type wireFrame struct {
	Type      string          `json:"type"`
	Message   *market.Message `json:"message,omitempty"`
	MessageID int64           `json:"message_id,omitempty"`
}

type subscriber struct {
	mu  sync.Mutex
	enc *json.Encoder
}

func newSubscriber(enc *json.Encoder) *subscriber {
	return &subscriber{enc: enc}
}

func (s *subscriber) send(frame wireFrame) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.enc.Encode(frame)
}

// Hub fans frames out to every socket attached to a conversation.
type Hub struct {
	mu    sync.Mutex
	rooms map[int64]map[*subscriber]bool
}

func NewHub() *Hub {
	return &Hub{rooms: make(map[int64]map[*subscriber]bool)}
}

func (h *Hub) Join(conversationID int64, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.rooms[conversationID] == nil {
		h.rooms[conversationID] = make(map[*subscriber]bool)
	}
	h.rooms[conversationID][sub] = true
}

func (h *Hub) Leave(conversationID int64, sub *subscriber) {
	h.mu.Lock()
	defer h.mu.Unlock()
	delete(h.rooms[conversationID], sub)
	if len(h.rooms[conversationID]) == 0 {
		delete(h.rooms, conversationID)
	}
}

func (h *Hub) Broadcast(conversationID int64, frame wireFrame) {
	h.mu.Lock()
	subs := make([]*subscriber, 0, len(h.rooms[conversationID]))
	for sub := range h.rooms[conversationID] {
		subs = append(subs, sub)
	}
	h.mu.Unlock()

	for _, sub := range subs {
		if err := sub.send(frame); err != nil {
			log.Printf("⚠️ Не удалось доставить кадр подписчику диалога %d: %v", conversationID, err)
		}
	}
}
