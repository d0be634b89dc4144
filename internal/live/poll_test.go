package live

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"market-chatter/internal/market"
)

type fakeHistoryAPI struct {
	mu    sync.Mutex
	pages [][]market.Message
	errs  []error
	calls int
}

func (f *fakeHistoryAPI) Messages(_ context.Context, _ int64) ([]market.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	i := f.calls
	f.calls++
	if i < len(f.errs) && f.errs[i] != nil {
		return nil, f.errs[i]
	}
	if len(f.pages) == 0 {
		return nil, nil
	}
	if i >= len(f.pages) {
		i = len(f.pages) - 1
	}
	return f.pages[i], nil
}

func (f *fakeHistoryAPI) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func TestPollChannelReplacesWholesale(t *testing.T) {
	api := &fakeHistoryAPI{pages: [][]market.Message{
		{{ID: 1, Body: "a"}},
		{{ID: 1, Body: "a"}, {ID: 2, Body: "b"}},
	}}
	ch := NewPollChannel(api, 5*time.Millisecond, 7)
	if ch.Name() != "poll" {
		t.Errorf("unexpected channel name %q", ch.Name())
	}

	ctx, cancel := context.WithCancel(context.Background())
	sink := newRecordingSink()
	runErr := make(chan error, 1)
	go func() { runErr <- ch.Run(ctx, sink) }()

	sink.waitFor(t, "replace:2")
	cancel()
	select {
	case err := <-runErr:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not stop on cancel")
	}

	events := sink.snapshot()
	if events[0] != "online" {
		t.Errorf("poll channel must report online first, got %v", events)
	}
}

func TestPollChannelSurvivesFetchErrors(t *testing.T) {
	api := &fakeHistoryAPI{
		errs:  []error{errors.New("boom")},
		pages: [][]market.Message{nil, {{ID: 5, Body: "late"}}},
	}
	ch := NewPollChannel(api, 5*time.Millisecond, 7)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	sink := newRecordingSink()
	go func() { _ = ch.Run(ctx, sink) }()

	// first tick fails, a later tick must still deliver
	sink.waitFor(t, "replace:1")
	if api.callCount() < 2 {
		t.Errorf("expected polling to continue after an error, calls=%d", api.callCount())
	}
}

func TestPollChannelDefaultInterval(t *testing.T) {
	ch := NewPollChannel(&fakeHistoryAPI{}, 0, 7)
	if ch.interval != defaultPollInterval {
		t.Errorf("expected default interval %s, got %s", defaultPollInterval, ch.interval)
	}
}
