package database

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"survey_compliance_bot/internal/domain/survey"

	_ "github.com/lib/pq" // PostgreSQL driver
)

// Custom errors
var ErrSurveyNotFound = fmt.Errorf("survey not found")
var ErrDuplicateFormID = fmt.Errorf("survey with this form ID already exists")

type PostgresSurveyRepository struct {
	db *sql.DB
}

func NewPostgresSurveyRepository(db *sql.DB) *PostgresSurveyRepository {
	return &PostgresSurveyRepository{db: db}
}

const surveyColumns = `id, form_id, title, description, form_url, announced, created_at, ends_at`

func scanSurvey(row interface{ Scan(...any) error }) (*survey.Survey, error) {
	s := &survey.Survey{}
	err := row.Scan(&s.ID, &s.FormID, &s.Title, &s.Description, &s.FormURL,
		&s.Announced, &s.CreatedAt, &s.EndsAt)
	if err != nil {
		return nil, err
	}
	return s, nil
}

func (r *PostgresSurveyRepository) Create(ctx context.Context, s *survey.Survey) error {
	query := `INSERT INTO surveys (form_id, title, description, form_url, announced, ends_at)
              VALUES ($1, $2, $3, $4, $5, $6)
              RETURNING id, created_at`

	err := r.db.QueryRowContext(ctx, query,
		s.FormID, s.Title, s.Description, s.FormURL, s.Announced, s.EndsAt,
	).Scan(&s.ID, &s.CreatedAt)
	if err != nil {
		if strings.Contains(err.Error(), "unique constraint") && strings.Contains(err.Error(), "surveys_form_id_key") {
			return ErrDuplicateFormID
		}
		return fmt.Errorf("error creating survey: %w", err)
	}
	return nil
}

func (r *PostgresSurveyRepository) GetByFormID(ctx context.Context, formID string) (*survey.Survey, error) {
	query := `SELECT ` + surveyColumns + ` FROM surveys WHERE form_id = $1`
	s, err := scanSurvey(r.db.QueryRowContext(ctx, query, formID))
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrSurveyNotFound
		}
		return nil, fmt.Errorf("error getting survey by form ID: %w", err)
	}
	return s, nil
}

func (r *PostgresSurveyRepository) ListUnannounced(ctx context.Context) ([]*survey.Survey, error) {
	query := `SELECT ` + surveyColumns + ` FROM surveys WHERE announced = FALSE ORDER BY created_at`
	return r.list(ctx, query)
}

func (r *PostgresSurveyRepository) MarkAnnounced(ctx context.Context, id int64) error {
	query := `UPDATE surveys SET announced = TRUE WHERE id = $1`

	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("error marking survey announced: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("error checking affected rows: %w", err)
	}
	if affected == 0 {
		return ErrSurveyNotFound
	}
	return nil
}

func (r *PostgresSurveyRepository) ListEndingBetween(ctx context.Context, from, to time.Time) ([]*survey.Survey, error) {
	query := `SELECT ` + surveyColumns + ` FROM surveys
              WHERE ends_at >= $1 AND ends_at < $2 ORDER BY ends_at`
	return r.list(ctx, query, from, to)
}

func (r *PostgresSurveyRepository) list(ctx context.Context, query string, args ...any) ([]*survey.Survey, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("error listing surveys: %w", err)
	}
	defer rows.Close()

	surveys := make([]*survey.Survey, 0)
	for rows.Next() {
		s, err := scanSurvey(rows)
		if err != nil {
			return nil, fmt.Errorf("error scanning survey: %w", err)
		}
		surveys = append(surveys, s)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("error iterating surveys: %w", err)
	}
	return surveys, nil
}
