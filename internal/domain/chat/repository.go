package chat

import (
	"context"
)

// Repository manages the bound-chat singleton.
type Repository interface {
	// GetBound returns the currently bound chat.
	GetBound(ctx context.Context) (*Chat, error)
	// Bind inserts the chat as the single bound chat. The implementation must
	// guard the exists-check-then-insert with a transaction so two concurrent
	// bind requests cannot both succeed.
	Bind(ctx context.Context, c *Chat) error
	// Unbind removes the bound chat and returns the number of rows deleted.
	Unbind(ctx context.Context) (int64, error)
	SetThread(ctx context.Context, telegramID int64, threadID int64) error
	ClearThread(ctx context.Context, telegramID int64) error
}
