package history

import (
	"sync"

	"market-chatter/internal/market"
)

type Store struct {
	mu            sync.RWMutex
	conversations map[int64][]market.Message
	index         map[int64]map[int64]int
}

func NewStore() *Store {
	return &Store{
		conversations: make(map[int64][]market.Message),
		index:         make(map[int64]map[int64]int),
	}
}

// Seed replaces the conversation history wholesale, keeping server order.
func (s *Store) Seed(conversationID int64, msgs []market.Message) {
	s.mu.Lock()
	defer s.mu.Unlock()
	copied := make([]market.Message, len(msgs))
	copy(copied, msgs)
	s.conversations[conversationID] = copied
	s.reindex(conversationID)
}

// Append adds one message. A message whose id is already stored is merged
// in place instead of duplicated; Append reports whether the message was new.
func (s *Store) Append(conversationID int64, msg market.Message) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.index[conversationID]
	if !ok {
		idx = make(map[int64]int)
		s.index[conversationID] = idx
	}
	if pos, known := idx[msg.ID]; known {
		s.conversations[conversationID][pos] = msg
		return false
	}
	s.conversations[conversationID] = append(s.conversations[conversationID], msg)
	idx[msg.ID] = len(s.conversations[conversationID]) - 1
	return true
}

// RemoveByID drops one message and reports whether it was present.
// Unknown ids are a no-op.
func (s *Store) RemoveByID(conversationID, messageID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	idx, ok := s.index[conversationID]
	if !ok {
		return false
	}
	pos, known := idx[messageID]
	if !known {
		return false
	}
	msgs := s.conversations[conversationID]
	s.conversations[conversationID] = append(msgs[:pos], msgs[pos+1:]...)
	s.reindex(conversationID)
	return true
}

func (s *Store) Reset(conversationID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.conversations, conversationID)
	delete(s.index, conversationID)
}

// Get returns a copy of the conversation history in arrival order.
func (s *Store) Get(conversationID int64) []market.Message {
	s.mu.RLock()
	defer s.mu.RUnlock()
	msgs := s.conversations[conversationID]
	out := make([]market.Message, len(msgs))
	copy(out, msgs)
	return out
}

func (s *Store) Len(conversationID int64) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.conversations[conversationID])
}

func (s *Store) reindex(conversationID int64) {
	idx := make(map[int64]int, len(s.conversations[conversationID]))
	for i, m := range s.conversations[conversationID] {
		idx[m.ID] = i
	}
	s.index[conversationID] = idx
}
