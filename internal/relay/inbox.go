package relay

import (
	"context"
	"fmt"
	"time"

	"github.com/jackzampolin/runsheets/internal/api"
)

// Address is a mailbox as reported by the relay.
type Address struct {
	Name    string `json:"Name" yaml:"name,omitempty"`
	Address string `json:"Address" yaml:"address"`
}

// Message is the summary of a captured message.
type Message struct {
	ID          string    `json:"ID" yaml:"id"`
	From        Address   `json:"From" yaml:"from"`
	To          []Address `json:"To" yaml:"to"`
	Subject     string    `json:"Subject" yaml:"subject"`
	Attachments int       `json:"Attachments" yaml:"attachments"`
	Created     time.Time `json:"Created" yaml:"created"`
}

// MessageList is one page of captured messages, newest first.
type MessageList struct {
	Total    int       `json:"total" yaml:"total"`
	Messages []Message `json:"messages" yaml:"messages"`
}

// Inbox reads and clears messages captured by the relay.
type Inbox struct {
	client *api.Client
}

// NewInbox creates an inbox client for a relay UI base URL.
func NewInbox(baseURL string) *Inbox {
	return &Inbox{client: api.NewClient(baseURL)}
}

// Messages lists captured messages.
func (i *Inbox) Messages(ctx context.Context) (*MessageList, error) {
	var list MessageList
	if err := i.client.Get(ctx, "/api/v1/messages", &list); err != nil {
		return nil, fmt.Errorf("failed to list relay messages: %w", err)
	}
	return &list, nil
}

// Clear deletes every captured message.
func (i *Inbox) Clear(ctx context.Context) error {
	if err := i.client.Delete(ctx, "/api/v1/messages"); err != nil {
		return fmt.Errorf("failed to clear relay messages: %w", err)
	}
	return nil
}
