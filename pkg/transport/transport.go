// Package transport delivers captured exchanges to their destinations
// without ever blocking the request path.
package transport

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Sender accepts serialized archives for asynchronous delivery. Send must
// return immediately; delivery failures are never reported to the caller.
type Sender interface {
	Send(har, pathHint, customerID string)
}

// Message is one captured exchange on its way to a sink
type Message struct {
	ID         string    `json:"id"`
	HAR        string    `json:"har"`
	PathHint   string    `json:"path_hint"`
	CustomerID string    `json:"customer_id,omitempty"`
	CreatedAt  time.Time `json:"created_at"`
}

// NewMessage creates a message with a fresh identifier
func NewMessage(har, pathHint, customerID string) Message {
	return Message{
		ID:         uuid.NewString(),
		HAR:        har,
		PathHint:   pathHint,
		CustomerID: customerID,
		CreatedAt:  time.Now(),
	}
}

// Sink writes messages to one destination
type Sink interface {
	Deliver(ctx context.Context, msg Message) error
	Close() error
}

// SenderFunc adapts a function to the Sender interface
type SenderFunc func(har, pathHint, customerID string)

func (f SenderFunc) Send(har, pathHint, customerID string) {
	f(har, pathHint, customerID)
}
