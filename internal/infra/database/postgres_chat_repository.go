package database

import (
	"context"
	"database/sql"
	"fmt"

	"survey_compliance_bot/internal/domain/chat"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Custom errors
var ErrNoBoundChat = fmt.Errorf("no chat is bound")
var ErrChatAlreadyBound = fmt.Errorf("a chat is already bound")
var ErrChatNotFound = fmt.Errorf("chat not found")

type PostgresChatRepository struct {
	db *sql.DB
}

func NewPostgresChatRepository(db *sql.DB) *PostgresChatRepository {
	return &PostgresChatRepository{db: db}
}

func (r *PostgresChatRepository) GetBound(ctx context.Context) (*chat.Chat, error) {
	query := `SELECT id, telegram_id, title, type, thread_id FROM chats LIMIT 1`

	c := &chat.Chat{}
	err := r.db.QueryRowContext(ctx, query).Scan(&c.ID, &c.TelegramID, &c.Title, &c.Type, &c.ThreadID)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNoBoundChat
		}
		return nil, fmt.Errorf("error getting bound chat: %w", err)
	}
	return c, nil
}

// Bind inserts the chat as the single bound chat. The exists-check and the
// insert run inside one transaction holding a table lock, so two concurrent
// binds cannot both succeed.
func (r *PostgresChatRepository) Bind(ctx context.Context, c *chat.Chat) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("error starting bind transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `LOCK TABLE chats IN SHARE ROW EXCLUSIVE MODE`); err != nil {
		return fmt.Errorf("error locking chats table: %w", err)
	}

	var existing int64
	err = tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM chats`).Scan(&existing)
	if err != nil {
		return fmt.Errorf("error checking bound chat: %w", err)
	}
	if existing > 0 {
		return ErrChatAlreadyBound
	}

	query := `INSERT INTO chats (telegram_id, title, type, thread_id)
              VALUES ($1, $2, $3, $4)
              RETURNING id`
	err = tx.QueryRowContext(ctx, query, c.TelegramID, c.Title, c.Type, c.ThreadID).Scan(&c.ID)
	if err != nil {
		return fmt.Errorf("error inserting bound chat: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("error committing bind transaction: %w", err)
	}
	return nil
}

func (r *PostgresChatRepository) Unbind(ctx context.Context) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM chats`)
	if err != nil {
		return 0, fmt.Errorf("error unbinding chat: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("error checking affected rows: %w", err)
	}
	return affected, nil
}

func (r *PostgresChatRepository) SetThread(ctx context.Context, telegramID int64, threadID int64) error {
	query := `UPDATE chats SET thread_id = $1 WHERE telegram_id = $2`

	res, err := r.db.ExecContext(ctx, query, threadID, telegramID)
	if err != nil {
		return fmt.Errorf("error setting chat thread: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking affected rows: %w", err)
	}
	if affected == 0 {
		return ErrChatNotFound
	}
	return nil
}

func (r *PostgresChatRepository) ClearThread(ctx context.Context, telegramID int64) error {
	query := `UPDATE chats SET thread_id = NULL WHERE telegram_id = $1`

	res, err := r.db.ExecContext(ctx, query, telegramID)
	if err != nil {
		return fmt.Errorf("error clearing chat thread: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking affected rows: %w", err)
	}
	if affected == 0 {
		return ErrChatNotFound
	}
	return nil
}
