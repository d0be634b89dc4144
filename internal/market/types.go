package market

import (
	"fmt"
	"time"
)

// Assistant lanes supported by the storefront backend.
const (
	LaneInbox           = "inbox"
	LaneCustomerService = "customer_service"
)

// User is a conversation participant as the storefront API reports it.
type User struct {
	ID    int64  `json:"id"`
	Name  string `json:"name,omitempty"`
	Email string `json:"email,omitempty"`
}

// Label returns the best human-readable identity for the user: display
// name, then email, then a numeric placeholder.
func (u User) Label() string {
	if u.Name != "" {
		return u.Name
	}
	if u.Email != "" {
		return u.Email
	}
	return fmt.Sprintf("user %d", u.ID)
}

// Product anchors a conversation to a listing.
type Product struct {
	Title string `json:"title"`
}

// Conversation is a two-party buyer/seller thread, optionally anchored to a
// product listing.
type Conversation struct {
	ID          int64    `json:"id"`
	Buyer       User     `json:"buyer"`
	Seller      User     `json:"seller"`
	Product     *Product `json:"product,omitempty"`
	LastMessage *Message `json:"last_message,omitempty"`
}

// SubjectLabel returns the product title or a generic fallback when the
// conversation has no product subject.
func (c Conversation) SubjectLabel() string {
	if c.Product != nil && c.Product.Title != "" {
		return c.Product.Title
	}
	return "General conversation"
}

// Counterpart returns the participant on the other side from viewerID.
// An unknown viewer is treated as the buyer looking at the seller.
func (c Conversation) Counterpart(viewerID int64) User {
	if viewerID == c.Seller.ID {
		return c.Buyer
	}
	return c.Seller
}

// Message is a single chat message with a server-assigned id.
type Message struct {
	ID             int64     `json:"id"`
	ConversationID int64     `json:"conversation_id"`
	SenderID       int64     `json:"sender_id"`
	Body           string    `json:"body"`
	CreatedAt      time.Time `json:"created_at"`
}

// AssistantReply is the response of one assistant turn. SessionID must be
// persisted by the caller and replayed on every following turn.
type AssistantReply struct {
	Reply     string `json:"reply"`
	SessionID string `json:"session_id"`
}
