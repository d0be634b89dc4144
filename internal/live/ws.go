package live

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/url"
	"strings"

	"golang.org/x/net/websocket"

	"market-chatter/internal/market"
)

const maxDecodeErrorsPerConn = 10

// frame is the wire envelope of the chat socket. Unknown types and broken
// payloads are logged and dropped, the connection stays up.
type frame struct {
	Type      string          `json:"type"`
	Message   json.RawMessage `json:"message,omitempty"`
	MessageID int64           `json:"message_id,omitempty"`
}

type TokenIssuer interface {
	IssueAccessToken(ctx context.Context, conversationID int64) (string, error)
}

// WebSocketChannel attaches to {baseURL}/{conversationID}/?token={token}
// with a freshly minted conversation token on every connect.
type WebSocketChannel struct {
	baseURL        string
	origin         string
	tokens         TokenIssuer
	conversationID int64
}

func NewWebSocketChannel(baseURL, origin string, tokens TokenIssuer, conversationID int64) *WebSocketChannel {
	return &WebSocketChannel{
		baseURL:        strings.TrimRight(baseURL, "/"),
		origin:         origin,
		tokens:         tokens,
		conversationID: conversationID,
	}
}

// WebSocketFactory wires NewWebSocketChannel into the session manager.
func WebSocketFactory(baseURL, origin string, tokens TokenIssuer) Factory {
	return func(conversationID int64) Channel {
		return NewWebSocketChannel(baseURL, origin, tokens, conversationID)
	}
}

func (c *WebSocketChannel) Name() string { return "ws" }

func (c *WebSocketChannel) Run(ctx context.Context, sink Sink) error {
	token, err := c.tokens.IssueAccessToken(ctx, c.conversationID)
	if err != nil {
		return fmt.Errorf("live channel: %w", err)
	}

	wsURL := fmt.Sprintf("%s/%d/?token=%s", c.baseURL, c.conversationID, url.QueryEscape(token))
	conn, err := websocket.Dial(wsURL, "", c.origin)
	if err != nil {
		return fmt.Errorf("dial live channel for conversation %d: %w", c.conversationID, err)
	}
	defer conn.Close()

	log.Printf("🔗 Живой канал открыт для диалога %d", c.conversationID)
	sink.Online()

	// Decode blocks on the socket, so the context watcher closes the
	// connection to unblock it.
	watcherDone := make(chan struct{})
	defer close(watcherDone)
	go func() {
		select {
		case <-ctx.Done():
			_ = conn.Close()
		case <-watcherDone:
		}
	}()

	decoder := json.NewDecoder(conn)
	decodeErrors := 0
	for {
		var f frame
		if err := decoder.Decode(&f); err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if errors.Is(err, io.EOF) {
				return fmt.Errorf("live channel for conversation %d closed by server", c.conversationID)
			}
			decodeErrors++
			log.Printf("⚠️ Не удалось разобрать кадр диалога %d: %v", c.conversationID, err)
			if decodeErrors >= maxDecodeErrorsPerConn {
				return fmt.Errorf("too many malformed frames: %w", err)
			}
			continue
		}
		decodeErrors = 0
		c.dispatch(f, sink)
	}
}

func (c *WebSocketChannel) dispatch(f frame, sink Sink) {
	switch f.Type {
	case "chat_message":
		var msg market.Message
		if err := json.Unmarshal(f.Message, &msg); err != nil {
			log.Printf("⚠️ Кадр chat_message с некорректным телом: %v", err)
			return
		}
		if msg.ID == 0 {
			log.Printf("⚠️ Кадр chat_message без id сообщения, пропускаю")
			return
		}
		sink.ChatMessage(msg)
	case "message_deleted":
		if f.MessageID == 0 {
			log.Printf("⚠️ Кадр message_deleted без message_id, пропускаю")
			return
		}
		sink.MessageDeleted(f.MessageID)
	default:
		log.Printf("⚠️ Неизвестный тип кадра %q, пропускаю", f.Type)
	}
}
