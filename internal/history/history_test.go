package history

import (
	"testing"

	"market-chatter/internal/market"
)

func msg(id int64, body string) market.Message {
	return market.Message{ID: id, ConversationID: 1, SenderID: 10, Body: body}
}

func TestAppendKeepsArrivalOrder(t *testing.T) {
	s := NewStore()
	s.Append(1, msg(3, "first"))
	s.Append(1, msg(1, "second"))
	s.Append(1, msg(2, "third"))

	got := s.Get(1)
	if len(got) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(got))
	}
	if got[0].ID != 3 || got[1].ID != 1 || got[2].ID != 2 {
		t.Fatalf("order broken: %+v", got)
	}
}

func TestAppendDeduplicatesByID(t *testing.T) {
	s := NewStore()
	if !s.Append(1, msg(5, "hello")) {
		t.Fatalf("first append must report new")
	}
	if s.Append(1, msg(5, "hello edited")) {
		t.Fatalf("second append of same id must report known")
	}
	got := s.Get(1)
	if len(got) != 1 {
		t.Fatalf("expected 1 message after duplicate, got %d", len(got))
	}
	if got[0].Body != "hello edited" {
		t.Fatalf("duplicate must merge latest body, got %q", got[0].Body)
	}
}

func TestSeedReplacesWholesale(t *testing.T) {
	s := NewStore()
	s.Append(1, msg(1, "stale"))
	s.Seed(1, []market.Message{msg(10, "a"), msg(11, "b")})

	got := s.Get(1)
	if len(got) != 2 {
		t.Fatalf("expected 2 messages after seed, got %d", len(got))
	}
	if got[0].ID != 10 || got[1].ID != 11 {
		t.Fatalf("seed order broken: %+v", got)
	}
	// index must follow the seed: old id is gone, new ids dedupe
	if s.RemoveByID(1, 1) {
		t.Fatalf("stale id must not survive the seed")
	}
	if s.Append(1, msg(11, "b2")) {
		t.Fatalf("seeded id must dedupe")
	}
}

func TestRemoveByID(t *testing.T) {
	s := NewStore()
	s.Seed(1, []market.Message{msg(1, "a"), msg(2, "b"), msg(3, "c")})

	if !s.RemoveByID(1, 2) {
		t.Fatalf("expected removal of known id")
	}
	got := s.Get(1)
	if len(got) != 2 || got[0].ID != 1 || got[1].ID != 3 {
		t.Fatalf("unexpected history after removal: %+v", got)
	}
	if s.RemoveByID(1, 99) {
		t.Fatalf("unknown id must be a no-op")
	}
	if !s.Append(1, msg(2, "b again")) {
		t.Fatalf("removed id must be appendable again")
	}
}

func TestConversationsAreIsolated(t *testing.T) {
	s := NewStore()
	s.Append(1, msg(1, "conv1"))
	s.Append(2, market.Message{ID: 1, ConversationID: 2, Body: "conv2"})

	if s.Len(1) != 1 || s.Len(2) != 1 {
		t.Fatalf("expected one message per conversation, got %d and %d", s.Len(1), s.Len(2))
	}
	s.Reset(1)
	if s.Len(1) != 0 {
		t.Fatalf("reset did not clear the conversation")
	}
	if s.Len(2) != 1 {
		t.Fatalf("reset should not affect other conversations")
	}
}

func TestGetReturnsCopy(t *testing.T) {
	s := NewStore()
	s.Append(1, msg(1, "original"))
	got := s.Get(1)
	got[0].Body = "mutated"
	if s.Get(1)[0].Body != "original" {
		t.Fatalf("internal state mutated via returned slice")
	}
}
