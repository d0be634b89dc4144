// Package market is a typed client for the storefront messaging REST API.
package market

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// APIError is a non-2xx response from the storefront API.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("market api: status %d: %s", e.StatusCode, e.Body)
}

// Client talks to the storefront messaging API.
type Client struct {
	baseURL string
	httpc   *http.Client
}

// StaticTokenSource wraps a personal access token for NewClient.
// An empty token yields nil (unauthenticated client, dev backends only).
func StaticTokenSource(token string) oauth2.TokenSource {
	if token == "" {
		return nil
	}
	return oauth2.StaticTokenSource(&oauth2.Token{AccessToken: token})
}

// NewClient builds a client for the API at baseURL. When ts is non-nil
// every request carries its bearer token.
func NewClient(baseURL string, ts oauth2.TokenSource) *Client {
	httpc := &http.Client{Timeout: 15 * time.Second}
	if ts != nil {
		httpc = oauth2.NewClient(context.Background(), ts)
		httpc.Timeout = 15 * time.Second
	}
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		httpc:   httpc,
	}
}

// ListConversations returns every conversation visible to the caller.
func (c *Client) ListConversations(ctx context.Context) ([]Conversation, error) {
	var out []Conversation
	if err := c.doJSON(ctx, http.MethodGet, "/api/v1/conversations", nil, &out); err != nil {
		return nil, fmt.Errorf("list conversations: %w", err)
	}
	return out, nil
}

// Messages returns the full message history of one conversation,
// oldest first.
func (c *Client) Messages(ctx context.Context, conversationID int64) ([]Message, error) {
	var out []Message
	path := fmt.Sprintf("/api/v1/conversations/%d/messages", conversationID)
	if err := c.doJSON(ctx, http.MethodGet, path, nil, &out); err != nil {
		return nil, fmt.Errorf("messages of conversation %d: %w", conversationID, err)
	}
	return out, nil
}

// IssueAccessToken mints a short-lived token scoped to one conversation.
// The token is consumed by the live transport handshake.
func (c *Client) IssueAccessToken(ctx context.Context, conversationID int64) (string, error) {
	var out struct {
		Token string `json:"token"`
	}
	path := fmt.Sprintf("/api/v1/conversations/%d/token", conversationID)
	if err := c.doJSON(ctx, http.MethodPost, path, nil, &out); err != nil {
		return "", fmt.Errorf("issue access token for conversation %d: %w", conversationID, err)
	}
	if out.Token == "" {
		return "", fmt.Errorf("issue access token for conversation %d: empty token in response", conversationID)
	}
	log.Printf("🔑 Получен токен доступа для диалога %d", conversationID)
	return out.Token, nil
}

type sendMessageRequest struct {
	Body            string `json:"body"`
	ClientMessageID string `json:"client_message_id,omitempty"`
}

// SendMessage posts a new message and returns the stored copy with its
// server-assigned id. clientMessageID lets the backend deduplicate retries.
func (c *Client) SendMessage(ctx context.Context, conversationID int64, body, clientMessageID string) (Message, error) {
	var out Message
	path := fmt.Sprintf("/api/v1/conversations/%d/messages", conversationID)
	in := sendMessageRequest{Body: body, ClientMessageID: clientMessageID}
	if err := c.doJSON(ctx, http.MethodPost, path, in, &out); err != nil {
		return Message{}, fmt.Errorf("send message to conversation %d: %w", conversationID, err)
	}
	return out, nil
}

type assistantTurnRequest struct {
	Text      string `json:"text"`
	SessionID string `json:"session_id,omitempty"`
	Lane      string `json:"lane"`
}

// AssistantTurn sends one user utterance to the storefront assistant.
// sessionID may be empty on the first turn; the returned SessionID keeps
// the dialogue thread on the backend side.
func (c *Client) AssistantTurn(ctx context.Context, text, sessionID, lane string) (AssistantReply, error) {
	var out AssistantReply
	in := assistantTurnRequest{Text: text, SessionID: sessionID, Lane: lane}
	if err := c.doJSON(ctx, http.MethodPost, "/api/v1/assistant", in, &out); err != nil {
		return AssistantReply{}, fmt.Errorf("assistant turn: %w", err)
	}
	return out, nil
}

func (c *Client) doJSON(ctx context.Context, method, path string, in, out interface{}) error {
	var body io.Reader
	if in != nil {
		buf, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("marshal request: %w", err)
		}
		body = bytes.NewReader(buf)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpc.Do(req)
	if err != nil {
		log.Printf("❌ Ошибка запроса %s %s: %v", method, path, err)
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		data, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return &APIError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(data))}
	}
	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
