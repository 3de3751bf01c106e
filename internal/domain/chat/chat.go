package chat

import (
	"database/sql"
)

// Chat is the single Telegram chat the bot is bound to. At most one row
// exists at any time; binding a second chat is rejected.
type Chat struct {
	ID         int64
	TelegramID int64
	Title      sql.NullString
	Type       string // group, supergroup, channel
	ThreadID   sql.NullInt64
}

// Thread returns the bound topic thread ID, or 0 when none is set.
func (c *Chat) Thread() int {
	if c.ThreadID.Valid {
		return int(c.ThreadID.Int64)
	}
	return 0
}
