package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"survey_compliance_bot/internal/domain/user"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Custom errors
var ErrUserNotFound = fmt.Errorf("user not found")
var ErrDuplicateCallsign = fmt.Errorf("user with this callsign already exists")
var ErrDuplicateTelegramID = fmt.Errorf("user with this Telegram ID already exists")

type PostgresUserRepository struct {
	db *sql.DB
}

func NewPostgresUserRepository(db *sql.DB) *PostgresUserRepository {
	return &PostgresUserRepository{db: db}
}

const userColumns = `id, telegram_id, username, first_name, last_name, callsign, role, is_active, is_reserved, created_at, updated_at`

func scanUser(row interface{ Scan(...any) error }) (*user.User, error) {
	u := &user.User{}
	err := row.Scan(&u.ID, &u.TelegramID, &u.Username, &u.FirstName, &u.LastName,
		&u.Callsign, &u.Role, &u.Active, &u.Reserved, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (r *PostgresUserRepository) Create(ctx context.Context, u *user.User) error {
	query := `INSERT INTO users (telegram_id, username, first_name, last_name, callsign, role, is_active, is_reserved)
              VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
              RETURNING id, created_at, updated_at`

	err := r.db.QueryRowContext(ctx, query,
		u.TelegramID, u.Username, u.FirstName, u.LastName, u.Callsign, u.Role, u.Active, u.Reserved,
	).Scan(&u.ID, &u.CreatedAt, &u.UpdatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "unique constraint") {
			if strings.Contains(err.Error(), "users_callsign_key") {
				return ErrDuplicateCallsign
			}
			if strings.Contains(err.Error(), "users_telegram_id_key") {
				return ErrDuplicateTelegramID
			}
		}
		return fmt.Errorf("error creating user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) GetByTelegramID(ctx context.Context, telegramID int64) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE telegram_id = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, telegramID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error getting user by Telegram ID: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepository) GetByCallsign(ctx context.Context, callsign string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE callsign = $1`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, callsign))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error getting user by callsign: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepository) GetActiveByCallsign(ctx context.Context, callsign string) (*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users
              WHERE callsign = $1 AND is_active = TRUE AND role <> 'creator'`
	u, err := scanUser(r.db.QueryRowContext(ctx, query, callsign))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrUserNotFound
		}
		return nil, fmt.Errorf("error getting active user by callsign: %w", err)
	}
	return u, nil
}

func (r *PostgresUserRepository) Update(ctx context.Context, u *user.User) error {
	query := `UPDATE users
              SET username = $1, first_name = $2, last_name = $3, role = $4,
                  is_active = $5, is_reserved = $6, updated_at = NOW()
              WHERE id = $7
              RETURNING updated_at`

	err := r.db.QueryRowContext(ctx, query,
		u.Username, u.FirstName, u.LastName, u.Role, u.Active, u.Reserved, u.ID,
	).Scan(&u.UpdatedAt)
	if err != nil {
		if err == sql.ErrNoRows {
			return ErrUserNotFound
		}
		return fmt.Errorf("error updating user: %w", err)
	}
	return nil
}

func (r *PostgresUserRepository) ListActive(ctx context.Context) ([]*user.User, error) {
	query := `SELECT ` + userColumns + ` FROM users WHERE is_active = TRUE ORDER BY callsign`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("error listing active users: %w", err)
	}
	defer rows.Close()

	users := make([]*user.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning active user: %w", err)
		}
		users = append(users, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating active users: %w", err)
	}
	return users, nil
}

func (r *PostgresUserRepository) SetActive(ctx context.Context, telegramID int64, active bool) error {
	query := `UPDATE users SET is_active = $1, updated_at = NOW() WHERE telegram_id = $2`

	res, err := r.db.ExecContext(ctx, query, active, telegramID)
	if err != nil {
		return fmt.Errorf("error setting user active flag: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking affected rows: %w", err)
	}
	if affected == 0 {
		return ErrUserNotFound
	}
	return nil
}
