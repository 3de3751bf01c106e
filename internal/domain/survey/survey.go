package survey

import (
	"database/sql"
	"time"
)

// Survey represents an externally hosted form the team is required to complete.
type Survey struct {
	ID          int64
	FormID      string // external form identifier, globally unique
	Title       string
	Description sql.NullString
	FormURL     string
	Announced   bool // whether the announcement has been posted to the bound chat
	CreatedAt   time.Time
	EndsAt      time.Time // completion deadline
}

// IsExpired reports whether the completion deadline has passed.
func (s *Survey) IsExpired(now time.Time) bool {
	return now.After(s.EndsAt)
}
