package penalty

import (
	"database/sql"
	"strings"
	"time"
)

// BanThreshold is the penalty count at which a user is automatically
// banned from the bound chat and deactivated.
const BanThreshold = 3

// Penalty is a single penalty point issued to a user for missing a survey.
// Rows are append-only: they are never mutated, and the only deletion path is
// the bulk forgiveness when a user re-joins the monitored chat.
type Penalty struct {
	ID       int64
	UserID   int64
	SurveyID int64
	Reason   string
	IssuedAt time.Time
}

// Offender is the aggregated view of a user who reached the ban threshold.
type Offender struct {
	TelegramID int64
	Callsign   string
	Username   sql.NullString
	Count      int
}

// MentionTag returns the Markdown-safe chat tag for the offender.
func (o *Offender) MentionTag() string {
	if o.Username.Valid && o.Username.String != "" {
		return "@" + strings.ReplaceAll(o.Username.String, "_", `\_`)
	}
	return o.Callsign
}
