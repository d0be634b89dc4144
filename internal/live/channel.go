// Package live подключает диалог к живому каналу обновлений: WebSocket
// или опрос REST для старых бэкендов.
package live

import (
	"context"

	"market-chatter/internal/market"
)

// Sink receives updates from a running channel. The session manager hands
// each channel a sink bound to one session; updates from a closed session
// are dropped by the sink itself.
type Sink interface {
	Online()
	ChatMessage(msg market.Message)
	MessageDeleted(messageID int64)
	Replace(msgs []market.Message)
}

// Channel is one live-update strategy for a single conversation. Run
// blocks until the context is cancelled or the transport fails; the
// session manager owns reconnects.
type Channel interface {
	Run(ctx context.Context, sink Sink) error
	Name() string
}

// Factory builds a channel attached to one conversation.
type Factory func(conversationID int64) Channel
