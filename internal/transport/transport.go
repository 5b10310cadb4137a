// Package transport defines the outbound delivery boundary and its
// implementations.
package transport

import (
	"context"
	"errors"
)

// Sentinel errors distinguishing the failure categories the processor
// reacts to. Anything else is treated as a transient delivery failure.
var (
	// ErrNoIdentity means no sender identity is configured.
	ErrNoIdentity = errors.New("sender identity not configured")
	// ErrAuthRequired means the transport needs the user to
	// re-authorize before any delivery can succeed.
	ErrAuthRequired = errors.New("authorization required")
)

// Message is one outbound notification.
type Message struct {
	Subject    string
	Body       string
	From       string
	ReplyTo    string
	Recipients []string
}

// Transport delivers messages to a remote party.
type Transport interface {
	// Login verifies the configured identity against the remote side.
	Login(ctx context.Context) error
	// Send delivers the message to every recipient.
	Send(ctx context.Context, msg *Message) error
}
