package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"market-chatter/internal/dispatch"
	"market-chatter/internal/history"
	"market-chatter/internal/market"
)

// ListConversationsParams параметры для списка диалогов
type ListConversationsParams struct {
	MaxConversations int `json:"max_conversations,omitempty" mcp:"maximum number of conversations to return (default: 20)"`
}

// GetMessagesParams параметры для чтения истории диалога
type GetMessagesParams struct {
	ConversationID int64 `json:"conversation_id" mcp:"conversation id from list_conversations"`
}

// SendMessageParams параметры для отправки сообщения
type SendMessageParams struct {
	ConversationID int64  `json:"conversation_id" mcp:"conversation id to post the message into"`
	Body           string `json:"body" mcp:"message text"`
}

// AssistantTurnParams параметры для обращения к ассистенту витрины
type AssistantTurnParams struct {
	Text      string `json:"text" mcp:"question for the storefront assistant"`
	SessionID string `json:"session_id,omitempty" mcp:"session id from a previous turn to continue the dialogue"`
	Lane      string `json:"lane,omitempty" mcp:"assistant lane: 'inbox' or 'customer_service' (default: inbox)"`
}

// MarketMCPServer MCP сервер поверх чатов витрины
type MarketMCPServer struct {
	client *market.Client
	disp   *dispatch.Dispatcher
}

// NewMarketMCPServer создает новый MCP сервер для чатов витрины
func NewMarketMCPServer(baseURL, token string) *MarketMCPServer {
	log.Printf("🔑 Initializing Market MCP Server for %s", baseURL)
	if token == "" {
		log.Printf("⚠️ Warning: MARKET_ACCESS_TOKEN is empty, requests go unauthenticated")
	}

	client := market.NewClient(baseURL, market.StaticTokenSource(token))
	return &MarketMCPServer{
		client: client,
		disp:   dispatch.New(client, history.NewStore()),
	}
}

// ListConversations отдает список диалогов пользователя
func (s *MarketMCPServer) ListConversations(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[ListConversationsParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments

	log.Printf("📋 MCP Server: Listing conversations")

	convs, err := s.client.ListConversations(ctx)
	if err != nil {
		return toolError(fmt.Sprintf("❌ Failed to list conversations: %v", err)), nil
	}

	limit := args.MaxConversations
	if limit <= 0 {
		limit = 20
	}
	if len(convs) > limit {
		convs = convs[:limit]
	}

	var resultMessage string
	if len(convs) == 0 {
		resultMessage = "📭 No conversations found"
	} else {
		resultMessage = fmt.Sprintf("📋 Found %d conversations:\n\n", len(convs))
		for i, conv := range convs {
			resultMessage += fmt.Sprintf("%d. [%d] %s\n", i+1, conv.ID, conv.SubjectLabel())
			resultMessage += fmt.Sprintf("   **Buyer:** %s\n", conv.Buyer.Label())
			resultMessage += fmt.Sprintf("   **Seller:** %s\n", conv.Seller.Label())
			if conv.LastMessage != nil {
				preview := conv.LastMessage.Body
				if len(preview) > 120 {
					preview = preview[:120] + "..."
				}
				resultMessage += fmt.Sprintf("   **Last message:** %s\n", preview)
			}
			resultMessage += "\n"
		}
	}

	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: resultMessage},
		},
		Meta: map[string]interface{}{
			"conversations": convs,
			"total_found":   len(convs),
			"success":       true,
		},
	}, nil
}

// GetMessages отдает историю одного диалога
func (s *MarketMCPServer) GetMessages(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[GetMessagesParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments

	if args.ConversationID <= 0 {
		return toolError("❌ conversation_id must be a positive integer"), nil
	}

	log.Printf("💬 MCP Server: Getting messages for conversation %d", args.ConversationID)

	msgs, err := s.client.Messages(ctx, args.ConversationID)
	if err != nil {
		return toolError(fmt.Sprintf("❌ Failed to get messages: %v", err)), nil
	}

	var resultMessage string
	if len(msgs) == 0 {
		resultMessage = fmt.Sprintf("📭 Conversation %d has no messages yet", args.ConversationID)
	} else {
		resultMessage = fmt.Sprintf("💬 Conversation %d, %d messages:\n\n", args.ConversationID, len(msgs))
		for _, msg := range msgs {
			resultMessage += fmt.Sprintf("[#%d] user %d at %s:\n%s\n\n", msg.ID, msg.SenderID, msg.CreatedAt.Format("2006-01-02 15:04"), msg.Body)
		}
	}

	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: resultMessage},
		},
		Meta: map[string]interface{}{
			"conversation_id": args.ConversationID,
			"messages":        msgs,
			"total_found":     len(msgs),
			"success":         true,
		},
	}, nil
}

// SendMessage отправляет сообщение в диалог
func (s *MarketMCPServer) SendMessage(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[SendMessageParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments

	if args.ConversationID <= 0 {
		return toolError("❌ conversation_id must be a positive integer"), nil
	}

	log.Printf("📤 MCP Server: Sending message to conversation %d", args.ConversationID)

	msg, err := s.disp.Send(ctx, args.ConversationID, args.Body)
	if err != nil {
		return toolError(fmt.Sprintf("❌ Failed to send message: %v", err)), nil
	}

	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: fmt.Sprintf("✅ Message #%d posted to conversation %d", msg.ID, args.ConversationID)},
		},
		Meta: map[string]interface{}{
			"conversation_id": args.ConversationID,
			"message":         msg,
			"success":         true,
		},
	}, nil
}

// AssistantTurn задает вопрос ассистенту витрины
func (s *MarketMCPServer) AssistantTurn(ctx context.Context, session *mcp.ServerSession, params *mcp.CallToolParamsFor[AssistantTurnParams]) (*mcp.CallToolResultFor[any], error) {
	args := params.Arguments

	if strings.TrimSpace(args.Text) == "" {
		return toolError("❌ text must not be empty"), nil
	}
	lane := args.Lane
	if lane == "" {
		lane = market.LaneInbox
	}

	log.Printf("🤖 MCP Server: Assistant turn on lane %s", lane)

	reply, err := s.client.AssistantTurn(ctx, args.Text, args.SessionID, lane)
	if err != nil {
		return toolError(fmt.Sprintf("❌ Assistant turn failed: %v", err)), nil
	}

	resultMessage := fmt.Sprintf("🤖 %s\n\n**Session:** %s", reply.Reply, reply.SessionID)
	return &mcp.CallToolResultFor[any]{
		Content: []mcp.Content{
			&mcp.TextContent{Text: resultMessage},
		},
		Meta: map[string]interface{}{
			"reply":      reply.Reply,
			"session_id": reply.SessionID,
			"lane":       lane,
			"success":    true,
		},
	}, nil
}

func toolError(text string) *mcp.CallToolResultFor[any] {
	return &mcp.CallToolResultFor[any]{
		IsError: true,
		Content: []mcp.Content{
			&mcp.TextContent{Text: text},
		},
	}
}

func main() {
	if err := godotenv.Load(".env"); err != nil {
		log.Printf("Warning: .env file not found: %v", err)
	}

	baseURL := os.Getenv("MARKET_BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8077"
	}
	token := os.Getenv("MARKET_ACCESS_TOKEN")

	log.Printf("🚀 Starting Market MCP Server")
	log.Printf("🌐 Market API: %s", baseURL)
	log.Printf("🔑 Access token available: %v", token != "")

	marketServer := NewMarketMCPServer(baseURL, token)

	server := mcp.NewServer(&mcp.Implementation{
		Name:    "market-chatter-mcp",
		Version: "1.0.0",
	}, nil)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "list_conversations",
		Description: "Lists the buyer's conversations with sellers, newest first",
	}, marketServer.ListConversations)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "get_messages",
		Description: "Gets the full message history of one conversation",
	}, marketServer.GetMessages)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "send_message",
		Description: "Posts a text message into a conversation",
	}, marketServer.SendMessage)

	mcp.AddTool(server, &mcp.Tool{
		Name:        "assistant_turn",
		Description: "Asks the storefront assistant one question, optionally continuing a session",
	}, marketServer.AssistantTurn)

	log.Printf("📋 Registered Market MCP tools: list_conversations, get_messages, send_message, assistant_turn")
	log.Printf("🔗 Starting Market MCP server on stdin/stdout...")

	transport := mcp.NewStdioTransport()
	if err := server.Run(context.Background(), transport); err != nil {
		log.Fatalf("❌ Market MCP Server failed: %v", err)
	}
}
