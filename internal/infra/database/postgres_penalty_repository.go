package database

import (
	"context"
	"database/sql"
	"fmt"

	"survey_compliance_bot/internal/domain/penalty"

	_ "github.com/lib/pq" // PostgreSQL driver
)

type PostgresPenaltyRepository struct {
	db *sql.DB
}

func NewPostgresPenaltyRepository(db *sql.DB) *PostgresPenaltyRepository {
	return &PostgresPenaltyRepository{db: db}
}

func (r *PostgresPenaltyRepository) Add(ctx context.Context, p *penalty.Penalty) error {
	query := `INSERT INTO penalties (user_id, survey_id, reason)
              VALUES ($1, $2, $3)
              RETURNING id, issued_at`

	err := r.db.QueryRowContext(ctx, query, p.UserID, p.SurveyID, p.Reason).Scan(&p.ID, &p.IssuedAt)
	if err != nil {
		return fmt.Errorf("error adding penalty: %w", err)
	}
	return nil
}

func (r *PostgresPenaltyRepository) CountByUser(ctx context.Context, userID int64) (int, error) {
	query := `SELECT COUNT(*) FROM penalties WHERE user_id = $1`

	var count int
	if err := r.db.QueryRowContext(ctx, query, userID).Scan(&count); err != nil {
		return 0, fmt.Errorf("error counting penalties: %w", err)
	}
	return count, nil
}

func (r *PostgresPenaltyRepository) ListByUser(ctx context.Context, userID int64) ([]*penalty.Penalty, error) {
	query := `SELECT id, user_id, survey_id, reason, issued_at
              FROM penalties WHERE user_id = $1 ORDER BY issued_at`

	rows, err := r.db.QueryContext(ctx, query, userID)
	if err != nil {
		return nil, fmt.Errorf("error listing penalties: %w", err)
	}
	defer rows.Close()

	penalties := make([]*penalty.Penalty, 0)
	for rows.Next() {
		p := &penalty.Penalty{}
		if err := rows.Scan(&p.ID, &p.UserID, &p.SurveyID, &p.Reason, &p.IssuedAt); err != nil {
			return nil, fmt.Errorf("error scanning penalty: %w", err)
		}
		penalties = append(penalties, p)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating penalties: %w", err)
	}
	return penalties, nil
}

func (r *PostgresPenaltyRepository) OffendersWithAtLeast(ctx context.Context, threshold int) ([]*penalty.Offender, error) {
	query := `SELECT u.telegram_id, u.callsign, u.username, COUNT(p.id) AS total
              FROM penalties p
              JOIN users u ON u.id = p.user_id
              WHERE u.is_active = TRUE
              GROUP BY u.telegram_id, u.callsign, u.username
              HAVING COUNT(p.id) >= $1
              ORDER BY u.callsign`

	rows, err := r.db.QueryContext(ctx, query, threshold)
	if err != nil {
		return nil, fmt.Errorf("error listing offenders: %w", err)
	}
	defer rows.Close()

	offenders := make([]*penalty.Offender, 0)
	for rows.Next() {
		o := &penalty.Offender{}
		if err := rows.Scan(&o.TelegramID, &o.Callsign, &o.Username, &o.Count); err != nil {
			return nil, fmt.Errorf("error scanning offender: %w", err)
		}
		offenders = append(offenders, o)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating offenders: %w", err)
	}
	return offenders, nil
}

func (r *PostgresPenaltyRepository) DeleteByUser(ctx context.Context, userID int64) error {
	query := `DELETE FROM penalties WHERE user_id = $1`

	if _, err := r.db.ExecContext(ctx, query, userID); err != nil {
		return fmt.Errorf("error deleting user penalties: %w", err)
	}
	return nil
}

func (r *PostgresPenaltyRepository) DeleteAll(ctx context.Context) error {
	query := `DELETE FROM penalties`

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		return fmt.Errorf("error deleting all penalties: %w", err)
	}
	return nil
}
