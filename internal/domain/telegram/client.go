package telegram

import (
	"context"
	"fmt"
	"time"
)

// SendParams describes one outgoing chat message.
type SendParams struct {
	ChatID            int64
	ThreadID          int // topic thread, 0 when none
	Text              string
	ParseMode         string
	ReplyTo           int // message ID to reply to, 0 when none
	DisableWebPreview bool
}

// Client defines the chat-platform actions the dispatcher performs.
// Implementations translate platform errors into the classified error types
// below so the dispatcher can decide whether and when to retry.
type Client interface {
	// Send posts a message and returns the platform message ID.
	Send(ctx context.Context, p SendParams) (int, error)
	Pin(ctx context.Context, chatID int64, messageID int, silent bool) error
	Ban(ctx context.Context, chatID, userID int64) error
}

// RateLimitError signals that the platform mandated a wait before the same
// call may be repeated.
type RateLimitError struct {
	RetryAfter time.Duration
}

func (e *RateLimitError) Error() string {
	return fmt.Sprintf("rate limited, retry after %s", e.RetryAfter)
}

// ConnectivityError wraps a transient network failure (timeout, connection
// reset, or an API error whose message indicates a connectivity problem).
type ConnectivityError struct {
	Err error
}

func (e *ConnectivityError) Error() string {
	return fmt.Sprintf("connectivity error: %v", e.Err)
}

func (e *ConnectivityError) Unwrap() error {
	return e.Err
}
