package directory

import (
	"context"
	"errors"
	"testing"

	"market-chatter/internal/market"
)

type fakeLister struct {
	convs []market.Conversation
	err   error
}

func (f *fakeLister) ListConversations(_ context.Context) ([]market.Conversation, error) {
	return f.convs, f.err
}

func sampleConvs() []market.Conversation {
	return []market.Conversation{
		{ID: 7, Buyer: market.User{ID: 1, Name: "Alice"}, Seller: market.User{ID: 2, Name: "Bob's shop"}, Product: &market.Product{Title: "Oak table"}},
		{ID: 42, Buyer: market.User{ID: 1, Name: "Alice"}, Seller: market.User{ID: 3, Email: "lamp@example.com"}},
	}
}

func TestSelectInitialPrefersRequestedID(t *testing.T) {
	d := New(&fakeLister{convs: sampleConvs()}, 1)
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %+v", err)
	}
	conv, ok := d.SelectInitial(42)
	if !ok {
		t.Fatal("expected a selection")
	}
	if conv.ID != 42 {
		t.Errorf("expected conversation 42, got %d", conv.ID)
	}
}

func TestSelectInitialFallsBackToFirst(t *testing.T) {
	d := New(&fakeLister{convs: sampleConvs()}, 1)
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %+v", err)
	}
	conv, ok := d.SelectInitial(99)
	if !ok {
		t.Fatal("expected a selection")
	}
	if conv.ID != 7 {
		t.Errorf("expected fallback to conversation 7, got %d", conv.ID)
	}
}

func TestSelectInitialEmptyDirectory(t *testing.T) {
	d := New(&fakeLister{}, 1)
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %+v", err)
	}
	if _, ok := d.SelectInitial(42); ok {
		t.Fatal("empty directory must yield no selection")
	}
	if _, ok := d.Selected(); ok {
		t.Fatal("no conversation may be reported selected")
	}
}

func TestRefreshError(t *testing.T) {
	d := New(&fakeLister{err: errors.New("boom")}, 1)
	if err := d.Refresh(context.Background()); err == nil {
		t.Fatal("expected refresh error")
	}
}

func TestRefreshDropsVanishedSelection(t *testing.T) {
	lister := &fakeLister{convs: sampleConvs()}
	d := New(lister, 1)
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %+v", err)
	}
	if _, err := d.Select(42); err != nil {
		t.Fatalf("Select: %+v", err)
	}

	lister.convs = sampleConvs()[:1]
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %+v", err)
	}
	if _, ok := d.Selected(); ok {
		t.Fatal("selection must be dropped when the conversation vanishes")
	}
}

func TestRefreshAnnouncesNewConversations(t *testing.T) {
	lister := &fakeLister{convs: sampleConvs()[:1]}
	d := New(lister, 1)
	var announced []int64
	d.OnNew = func(conv market.Conversation) { announced = append(announced, conv.ID) }

	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %+v", err)
	}
	if len(announced) != 0 {
		t.Fatalf("first load must be silent, got %v", announced)
	}

	lister.convs = sampleConvs()
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %+v", err)
	}
	if len(announced) != 1 || announced[0] != 42 {
		t.Fatalf("expected announcement for conversation 42, got %v", announced)
	}

	// a repeat refresh with the same list stays silent
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %+v", err)
	}
	if len(announced) != 1 {
		t.Fatalf("unchanged list must not re-announce, got %v", announced)
	}
}

func TestSelectUnknownConversation(t *testing.T) {
	d := New(&fakeLister{convs: sampleConvs()}, 1)
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %+v", err)
	}
	if _, err := d.Select(1000); err == nil {
		t.Fatal("expected error for unlisted conversation")
	}
}

func TestFilterMatchesSubjectAndCounterpart(t *testing.T) {
	d := New(&fakeLister{convs: sampleConvs()}, 1)
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %+v", err)
	}

	cases := []struct {
		query string
		want  []int64
	}{
		{"oak", []int64{7}},
		{"BOB", []int64{7}},
		{"lamp@", []int64{42}},
		{"", []int64{7, 42}},
		{"   ", []int64{7, 42}},
		{"nothing matches", nil},
	}
	for _, tc := range cases {
		rows := d.Filter(tc.query)
		if len(rows) != len(tc.want) {
			t.Errorf("Filter(%q): expected %d rows, got %d", tc.query, len(tc.want), len(rows))
			continue
		}
		for i, id := range tc.want {
			if rows[i].Conversation.ID != id {
				t.Errorf("Filter(%q)[%d]: expected conversation %d, got %d", tc.query, i, id, rows[i].Conversation.ID)
			}
		}
	}
}

func TestRowsRenderLabels(t *testing.T) {
	convs := sampleConvs()
	convs[0].LastMessage = &market.Message{ID: 5, Body: "see you at noon"}
	d := New(&fakeLister{convs: convs}, 1)
	if err := d.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh: %+v", err)
	}

	rows := d.Rows()
	if len(rows) != 2 {
		t.Fatalf("expected 2 rows, got %d", len(rows))
	}
	if rows[0].Subject != "Oak table" || rows[0].Counterpart != "Bob's shop" {
		t.Errorf("unexpected first row: %+v", rows[0])
	}
	if rows[0].Preview != "see you at noon" {
		t.Errorf("expected preview, got %q", rows[0].Preview)
	}
	if rows[1].Subject != "General conversation" || rows[1].Counterpart != "lamp@example.com" {
		t.Errorf("unexpected second row: %+v", rows[1])
	}
}
