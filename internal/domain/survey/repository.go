package survey

import (
	"context"
	"time"
)

// Repository defines the operations for persisting and retrieving Survey entities.
type Repository interface {
	Create(ctx context.Context, s *Survey) error
	GetByFormID(ctx context.Context, formID string) (*Survey, error)
	// ListUnannounced returns surveys that have not been announced to the chat yet.
	ListUnannounced(ctx context.Context) ([]*Survey, error)
	MarkAnnounced(ctx context.Context, id int64) error
	// ListEndingBetween returns surveys whose deadline falls within [from, to).
	ListEndingBetween(ctx context.Context, from, to time.Time) ([]*Survey, error)
}
