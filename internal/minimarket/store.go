package minimarket

import (
	"sync"
	"time"

	"market-chatter/internal/market"
)

// Store держит данные витрины в памяти: диалоги, сообщения и ключи
// идемпотентности отправки.
type Store struct {
	mu            sync.RWMutex
	conversations []market.Conversation
	messages      map[int64][]market.Message
	byClientID    map[int64]map[string]int64
	nextMessageID int64
}

func NewStore() *Store {
	s := &Store{
		messages:      make(map[int64][]market.Message),
		byClientID:    make(map[int64]map[string]int64),
		nextMessageID: 1,
	}
	s.seedFixtures()
	return s
}

func (s *Store) seedFixtures() {
	alice := market.User{ID: 1, Name: "Alice", Email: "alice@example.com"}
	woodshop := market.User{ID: 2, Name: "Bob's Woodshop"}
	lamps := market.User{ID: 3, Email: "lamps@example.com"}

	s.conversations = []market.Conversation{
		{ID: 1, Buyer: alice, Seller: woodshop, Product: &market.Product{Title: "Oak coffee table"}},
		{ID: 2, Buyer: alice, Seller: lamps},
	}
	now := time.Now().UTC().Add(-time.Hour)
	s.appendLocked(1, woodshop.ID, "Hi! The table ships within two days.", now)
	s.appendLocked(2, alice.ID, "Is the lamp still available?", now.Add(time.Minute))
}

func (s *Store) appendLocked(conversationID, senderID int64, body string, at time.Time) market.Message {
	msg := market.Message{
		ID:             s.nextMessageID,
		ConversationID: conversationID,
		SenderID:       senderID,
		Body:           body,
		CreatedAt:      at,
	}
	s.nextMessageID++
	s.messages[conversationID] = append(s.messages[conversationID], msg)
	return msg
}

// Conversations returns the directory with last_message previews filled.
func (s *Store) Conversations() []market.Conversation {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]market.Conversation, len(s.conversations))
	copy(out, s.conversations)
	for i := range out {
		if msgs := s.messages[out[i].ID]; len(msgs) > 0 {
			last := msgs[len(msgs)-1]
			out[i].LastMessage = &last
		}
	}
	return out
}

func (s *Store) Conversation(id int64) (market.Conversation, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, c := range s.conversations {
		if c.ID == id {
			return c, true
		}
	}
	return market.Conversation{}, false
}

func (s *Store) Messages(conversationID int64) ([]market.Message, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if !s.hasConversationLocked(conversationID) {
		return nil, false
	}
	msgs := s.messages[conversationID]
	out := make([]market.Message, len(msgs))
	copy(out, msgs)
	return out, true
}

// AppendMessage stores a new message. A repeated clientMessageID returns
// the already stored copy so retries collapse to one message.
func (s *Store) AppendMessage(conversationID, senderID int64, body, clientMessageID string) (msg market.Message, duplicate, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.hasConversationLocked(conversationID) {
		return market.Message{}, false, false
	}

	if clientMessageID != "" {
		if ids, found := s.byClientID[conversationID]; found {
			if existingID, dup := ids[clientMessageID]; dup {
				for _, m := range s.messages[conversationID] {
					if m.ID == existingID {
						return m, true, true
					}
				}
			}
		}
	}

	msg = s.appendLocked(conversationID, senderID, body, time.Now().UTC())
	if clientMessageID != "" {
		if s.byClientID[conversationID] == nil {
			s.byClientID[conversationID] = make(map[string]int64)
		}
		s.byClientID[conversationID][clientMessageID] = msg.ID
	}
	return msg, false, true
}

func (s *Store) DeleteMessage(conversationID, messageID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	msgs := s.messages[conversationID]
	for i, m := range msgs {
		if m.ID == messageID {
			s.messages[conversationID] = append(msgs[:i], msgs[i+1:]...)
			return true
		}
	}
	return false
}

func (s *Store) hasConversationLocked(id int64) bool {
	for _, c := range s.conversations {
		if c.ID == id {
			return true
		}
	}
	return false
}
