package user

import (
	"context"
)

// Repository defines the operations for persisting and retrieving User entities.
type Repository interface {
	Create(ctx context.Context, u *User) error
	GetByTelegramID(ctx context.Context, telegramID int64) (*User, error)
	GetByCallsign(ctx context.Context, callsign string) (*User, error)
	// GetActiveByCallsign resolves an active, non-creator account by callsign.
	GetActiveByCallsign(ctx context.Context, callsign string) (*User, error)
	Update(ctx context.Context, u *User) error
	// ListActive returns all active users, ordered by callsign.
	ListActive(ctx context.Context) ([]*User, error)
	// SetActive flips the active flag for the user with the given Telegram ID.
	SetActive(ctx context.Context, telegramID int64, active bool) error
}
