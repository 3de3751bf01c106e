package user

import (
	"database/sql"
	"strings"
	"time"
)

// Role defines the permission level of a user.
// - RoleCreator: the bot owner, has all permissions and is never surveyed.
// - RoleAdmin: extended permissions (reserve users, manage surveys).
// - RoleUser: regular team member.
type Role string

const (
	RoleCreator Role = "creator"
	RoleAdmin   Role = "admin"
	RoleUser    Role = "user"
)

// User represents a registered team member.
type User struct {
	ID         int64
	TelegramID int64
	Username   sql.NullString
	FirstName  sql.NullString
	LastName   sql.NullString
	Callsign   string // unique, stored lowercase
	Role       Role
	Active     bool
	Reserved   bool // exempt from surveys
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// IsCreator reports whether the user is the bot owner.
func (u *User) IsCreator() bool {
	return u.Role == RoleCreator
}

// IsAdmin reports whether the user has admin privileges (admins and the creator).
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin || u.Role == RoleCreator
}

// MentionTag returns the Markdown-safe tag used to address the user in chat
// messages: "@username" with underscores escaped, or the callsign when the
// user has no username.
func (u *User) MentionTag() string {
	if u.Username.Valid && u.Username.String != "" {
		return "@" + strings.ReplaceAll(u.Username.String, "_", `\_`)
	}
	return u.Callsign
}
