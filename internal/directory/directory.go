// Package directory keeps the list of conversations visible to the user
// and tracks which one is active.
package directory

import (
	"context"
	"fmt"
	"log"
	"strings"
	"sync"

	"market-chatter/internal/market"
)

type Lister interface {
	ListConversations(ctx context.Context) ([]market.Conversation, error)
}

// Row is one rendered directory entry.
type Row struct {
	Conversation market.Conversation
	Subject      string
	Counterpart  string
	Preview      string
}

type Directory struct {
	client   Lister
	viewerID int64

	// OnNew fires from Refresh for conversations that were not in the
	// previous load. The very first load stays silent.
	OnNew func(conv market.Conversation)

	mu            sync.RWMutex
	conversations []market.Conversation
	selectedID    int64
	hasSelection  bool
	loadedOnce    bool
}

func New(client Lister, viewerID int64) *Directory {
	return &Directory{client: client, viewerID: viewerID}
}

// Refresh re-fetches the conversation list. The current selection survives
// the refresh as long as its conversation is still listed.
func (d *Directory) Refresh(ctx context.Context) error {
	convs, err := d.client.ListConversations(ctx)
	if err != nil {
		return fmt.Errorf("refresh directory: %w", err)
	}

	d.mu.Lock()
	var appeared []market.Conversation
	if d.loadedOnce && d.OnNew != nil {
		for _, conv := range convs {
			if !containsID(d.conversations, conv.ID) {
				appeared = append(appeared, conv)
			}
		}
	}
	d.loadedOnce = true
	d.conversations = convs
	if d.hasSelection && !containsID(convs, d.selectedID) {
		log.Printf("⚠️ Активный диалог %d пропал из списка", d.selectedID)
		d.hasSelection = false
		d.selectedID = 0
	}
	d.mu.Unlock()

	for _, conv := range appeared {
		log.Printf("🆕 Появился новый диалог %d", conv.ID)
		d.OnNew(conv)
	}
	return nil
}

// SelectInitial applies the startup selection rule: the preferred id when
// it is listed, otherwise the first conversation, otherwise nothing.
func (d *Directory) SelectInitial(preferredID int64) (market.Conversation, bool) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if len(d.conversations) == 0 {
		d.hasSelection = false
		return market.Conversation{}, false
	}
	chosen := d.conversations[0]
	if preferredID != 0 {
		if conv, ok := findID(d.conversations, preferredID); ok {
			chosen = conv
		} else {
			log.Printf("⚠️ Диалог %d не найден, выбираю первый из списка", preferredID)
		}
	}
	d.selectedID = chosen.ID
	d.hasSelection = true
	return chosen, true
}

// Select makes a listed conversation active.
func (d *Directory) Select(id int64) (market.Conversation, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	conv, ok := findID(d.conversations, id)
	if !ok {
		return market.Conversation{}, fmt.Errorf("conversation %d is not in the directory", id)
	}
	d.selectedID = id
	d.hasSelection = true
	return conv, nil
}

// Selected returns the active conversation, when there is one.
func (d *Directory) Selected() (market.Conversation, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	if !d.hasSelection {
		return market.Conversation{}, false
	}
	conv, ok := findID(d.conversations, d.selectedID)
	return conv, ok
}

func (d *Directory) Conversations() []market.Conversation {
	d.mu.RLock()
	defer d.mu.RUnlock()
	out := make([]market.Conversation, len(d.conversations))
	copy(out, d.conversations)
	return out
}

// Rows renders the directory the way the inbox screen shows it:
// subject, counterpart and the last message preview.
func (d *Directory) Rows() []Row {
	d.mu.RLock()
	defer d.mu.RUnlock()
	rows := make([]Row, 0, len(d.conversations))
	for _, conv := range d.conversations {
		row := Row{
			Conversation: conv,
			Subject:      conv.SubjectLabel(),
			Counterpart:  conv.Counterpart(d.viewerID).Label(),
		}
		if conv.LastMessage != nil {
			row.Preview = conv.LastMessage.Body
		}
		rows = append(rows, row)
	}
	return rows
}

// Filter keeps the rows whose subject or counterpart label contains the
// query, case-insensitively. An empty query returns everything.
func (d *Directory) Filter(query string) []Row {
	rows := d.Rows()
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return rows
	}
	out := make([]Row, 0, len(rows))
	for _, row := range rows {
		if strings.Contains(strings.ToLower(row.Subject), query) ||
			strings.Contains(strings.ToLower(row.Counterpart), query) {
			out = append(out, row)
		}
	}
	return out
}

func containsID(convs []market.Conversation, id int64) bool {
	_, ok := findID(convs, id)
	return ok
}

func findID(convs []market.Conversation, id int64) (market.Conversation, bool) {
	for _, c := range convs {
		if c.ID == id {
			return c, true
		}
	}
	return market.Conversation{}, false
}
