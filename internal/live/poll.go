package live

import (
	"context"
	"log"
	"time"

	"market-chatter/internal/market"
)

const defaultPollInterval = 3 * time.Second

type HistoryFetcher interface {
	Messages(ctx context.Context, conversationID int64) ([]market.Message, error)
}

// PollChannel is the fallback for backends without a chat socket: the full
// history is re-fetched on a fixed interval and replaces the local copy.
type PollChannel struct {
	api            HistoryFetcher
	interval       time.Duration
	conversationID int64
}

func NewPollChannel(api HistoryFetcher, interval time.Duration, conversationID int64) *PollChannel {
	if interval <= 0 {
		interval = defaultPollInterval
	}
	return &PollChannel{api: api, interval: interval, conversationID: conversationID}
}

// PollFactory wires NewPollChannel into the session manager.
func PollFactory(api HistoryFetcher, interval time.Duration) Factory {
	return func(conversationID int64) Channel {
		return NewPollChannel(api, interval, conversationID)
	}
}

func (c *PollChannel) Name() string { return "poll" }

func (c *PollChannel) Run(ctx context.Context, sink Sink) error {
	log.Printf("🔄 Опрос диалога %d каждые %s", c.conversationID, c.interval)
	sink.Online()

	ticker := time.NewTicker(c.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			msgs, err := c.api.Messages(ctx, c.conversationID)
			if err != nil {
				if ctx.Err() != nil {
					return ctx.Err()
				}
				// transient REST failures must not kill the channel
				log.Printf("⚠️ Опрос диалога %d не удался: %v", c.conversationID, err)
				continue
			}
			sink.Replace(msgs)
		}
	}
}
