package live

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"market-chatter/internal/history"
	"market-chatter/internal/market"
)

type blockingChannel struct {
	started chan Sink
	exited  chan struct{}
}

func newBlockingChannel() *blockingChannel {
	return &blockingChannel{started: make(chan Sink, 8), exited: make(chan struct{})}
}

func (c *blockingChannel) Run(ctx context.Context, sink Sink) error {
	c.started <- sink
	<-ctx.Done()
	close(c.exited)
	return ctx.Err()
}

func (c *blockingChannel) Name() string { return "fake" }

type droppyChannel struct {
	mu        sync.Mutex
	runs      int
	failFirst int
	started   chan Sink
}

func (c *droppyChannel) Run(ctx context.Context, sink Sink) error {
	c.mu.Lock()
	c.runs++
	n := c.runs
	c.mu.Unlock()
	if n <= c.failFirst {
		return errors.New("transport dropped")
	}
	sink.Online()
	c.started <- sink
	<-ctx.Done()
	return ctx.Err()
}

func (c *droppyChannel) Name() string { return "droppy" }

type failingChannel struct {
	mu   sync.Mutex
	runs int
}

func (c *failingChannel) Run(_ context.Context, _ Sink) error {
	c.mu.Lock()
	c.runs++
	c.mu.Unlock()
	return errors.New("no connect")
}

func (c *failingChannel) Name() string { return "failing" }

func (c *failingChannel) runCount() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.runs
}

func fastRetry() RetryPolicy {
	return RetryPolicy{
		BaseDelay:   time.Millisecond,
		MaxDelay:    2 * time.Millisecond,
		MaxAttempts: 5,
		ResetAfter:  time.Hour,
	}
}

func TestOpenSeedsHistoryBeforeChannelStarts(t *testing.T) {
	api := &fakeHistoryAPI{pages: [][]market.Message{
		{{ID: 1, ConversationID: 7, Body: "a"}, {ID: 2, ConversationID: 7, Body: "b"}},
	}}
	store := history.NewStore()
	ch := newBlockingChannel()

	seenAtFactory := -1
	factory := func(conversationID int64) Channel {
		seenAtFactory = store.Len(conversationID)
		return ch
	}
	m := NewSessionManager(api, store, factory, fastRetry())
	t.Cleanup(m.Close)

	if err := m.Open(context.Background(), 7); err != nil {
		t.Fatalf("Open: %+v", err)
	}
	if seenAtFactory != 2 {
		t.Errorf("history must be seeded before the channel starts, saw %d messages", seenAtFactory)
	}
}

func TestSessionAppliesFramesToStore(t *testing.T) {
	api := &fakeHistoryAPI{pages: [][]market.Message{{{ID: 1, ConversationID: 7, Body: "seed"}}}}
	store := history.NewStore()
	ch := newBlockingChannel()
	m := NewSessionManager(api, store, func(int64) Channel { return ch }, fastRetry())
	t.Cleanup(m.Close)

	events := newRecordingSink()
	m.OnMessage = func(conversationID int64, msg market.Message) {
		events.add(fmt.Sprintf("msg:%d:%d", conversationID, msg.ID))
	}
	m.OnDeleted = func(conversationID, messageID int64) {
		events.add(fmt.Sprintf("del:%d:%d", conversationID, messageID))
	}

	if err := m.Open(context.Background(), 7); err != nil {
		t.Fatalf("Open: %+v", err)
	}
	sink := <-ch.started

	sink.ChatMessage(market.Message{ID: 100, ConversationID: 7, Body: "hi"})
	events.waitFor(t, "msg:7:100")
	if store.Len(7) != 2 {
		t.Errorf("expected seed + live message, len=%d", store.Len(7))
	}

	// duplicate delivery must not re-announce
	sink.ChatMessage(market.Message{ID: 100, ConversationID: 7, Body: "hi edited"})
	if store.Len(7) != 2 {
		t.Errorf("duplicate must merge, len=%d", store.Len(7))
	}

	sink.MessageDeleted(100)
	events.waitFor(t, "del:7:100")
	if store.Len(7) != 1 {
		t.Errorf("expected deletion, len=%d", store.Len(7))
	}

	// deleting an unknown id must stay silent
	sink.MessageDeleted(9999)
	got := events.snapshot()
	for _, e := range got {
		if e == "del:7:9999" {
			t.Errorf("unknown deletion must not be announced: %v", got)
		}
	}
}

func TestOpenClosesPreviousSession(t *testing.T) {
	api := &fakeHistoryAPI{pages: [][]market.Message{
		{{ID: 1, ConversationID: 1, Body: "one"}},
		{{ID: 2, ConversationID: 2, Body: "two"}},
	}}
	store := history.NewStore()
	channels := map[int64]*blockingChannel{1: newBlockingChannel(), 2: newBlockingChannel()}
	m := NewSessionManager(api, store, func(id int64) Channel { return channels[id] }, fastRetry())
	t.Cleanup(m.Close)

	events := newRecordingSink()
	m.OnMessage = func(conversationID int64, msg market.Message) {
		events.add(fmt.Sprintf("msg:%d:%d", conversationID, msg.ID))
	}

	if err := m.Open(context.Background(), 1); err != nil {
		t.Fatalf("Open(1): %+v", err)
	}
	staleSink := <-channels[1].started

	if err := m.Open(context.Background(), 2); err != nil {
		t.Fatalf("Open(2): %+v", err)
	}
	select {
	case <-channels[1].exited:
	case <-time.After(2 * time.Second):
		t.Fatal("previous session did not stop before the new one")
	}
	<-channels[2].started

	// frames from the closed session must not touch state
	before := store.Len(1)
	staleSink.ChatMessage(market.Message{ID: 555, ConversationID: 1, Body: "ghost"})
	if store.Len(1) != before {
		t.Errorf("stale frame mutated history: %d -> %d", before, store.Len(1))
	}
	for _, e := range events.snapshot() {
		if e == "msg:1:555" {
			t.Error("stale frame must not be announced")
		}
	}
}

func TestRetryReseedsAndAnnouncesMissed(t *testing.T) {
	api := &fakeHistoryAPI{pages: [][]market.Message{
		{{ID: 1, ConversationID: 7, Body: "seed"}},
		{{ID: 1, ConversationID: 7, Body: "seed"}, {ID: 2, ConversationID: 7, Body: "missed"}},
	}}
	store := history.NewStore()
	ch := &droppyChannel{failFirst: 1, started: make(chan Sink, 8)}
	m := NewSessionManager(api, store, func(int64) Channel { return ch }, fastRetry())
	t.Cleanup(m.Close)

	events := newRecordingSink()
	m.OnStatus = func(_ int64, status Status) { events.add("status:" + string(status)) }
	m.OnMessage = func(_ int64, msg market.Message) { events.add(fmt.Sprintf("msg:%d", msg.ID)) }

	if err := m.Open(context.Background(), 7); err != nil {
		t.Fatalf("Open: %+v", err)
	}
	<-ch.started

	events.waitFor(t, "status:retrying")
	events.waitFor(t, "msg:2")
	events.waitFor(t, "status:connected")
	if store.Len(7) != 2 {
		t.Errorf("reconnect must re-seed history, len=%d", store.Len(7))
	}
}

func TestRetryExhaustedReportsOffline(t *testing.T) {
	api := &fakeHistoryAPI{pages: [][]market.Message{{{ID: 1, ConversationID: 7, Body: "seed"}}}}
	ch := &failingChannel{}
	policy := fastRetry()
	policy.MaxAttempts = 2
	m := NewSessionManager(api, history.NewStore(), func(int64) Channel { return ch }, policy)
	t.Cleanup(m.Close)

	events := newRecordingSink()
	m.OnStatus = func(_ int64, status Status) { events.add("status:" + string(status)) }

	if err := m.Open(context.Background(), 7); err != nil {
		t.Fatalf("Open: %+v", err)
	}
	events.waitFor(t, "status:disconnected")
	if got := ch.runCount(); got != 3 {
		t.Errorf("expected initial attempt plus 2 retries, got %d runs", got)
	}
}

func TestOpenSeedFailure(t *testing.T) {
	api := &fakeHistoryAPI{errs: []error{errors.New("api down")}}
	factoryCalls := 0
	m := NewSessionManager(api, history.NewStore(), func(int64) Channel {
		factoryCalls++
		return newBlockingChannel()
	}, fastRetry())

	events := newRecordingSink()
	m.OnStatus = func(_ int64, status Status) { events.add("status:" + string(status)) }

	if err := m.Open(context.Background(), 7); err == nil {
		t.Fatal("expected seed error")
	}
	if factoryCalls != 0 {
		t.Error("channel must not start when the seed fails")
	}
	events.waitFor(t, "status:disconnected")
}

func TestCloseWithoutOpen(t *testing.T) {
	m := NewSessionManager(&fakeHistoryAPI{}, history.NewStore(), func(int64) Channel { return newBlockingChannel() }, fastRetry())
	m.Close()
	m.Close()
}
