// Package dispatch посылает исходящие сообщения и вливает подтверждённые
// копии в историю диалога.
package dispatch

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"market-chatter/internal/history"
	"market-chatter/internal/market"
)

var ErrEmptyMessage = errors.New("message body is empty")

type Sender interface {
	SendMessage(ctx context.Context, conversationID int64, body, clientMessageID string) (market.Message, error)
}

type Dispatcher struct {
	client Sender
	store  *history.Store
}

func New(client Sender, store *history.Store) *Dispatcher {
	return &Dispatcher{client: client, store: store}
}

// Send posts one message. Every send carries a fresh client message id so
// the backend can collapse retries. The confirmed copy is merged into the
// history store; when the live channel already delivered the same message
// the merge is a no-op.
func (d *Dispatcher) Send(ctx context.Context, conversationID int64, body string) (market.Message, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return market.Message{}, ErrEmptyMessage
	}

	clientMessageID := uuid.NewString()
	msg, err := d.client.SendMessage(ctx, conversationID, body, clientMessageID)
	if err != nil {
		return market.Message{}, fmt.Errorf("dispatch message: %w", err)
	}
	d.store.Append(conversationID, msg)
	return msg, nil
}
