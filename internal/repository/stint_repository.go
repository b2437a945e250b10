package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"stint/backend/internal/model"
)

const stintColumns = `id, user_id, project_id, status, planned_duration,
		started_at, paused_at, paused_duration, ended_at, actual_duration,
		completion_type, notes, created_at, updated_at`

type StintRepository struct {
	db *sql.DB
}

func NewStintRepository(db *sql.DB) *StintRepository {
	return &StintRepository{db: db}
}

func (r *StintRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	return tx, nil
}

// InsertTx inserts a new stint. An insert that trips the one-active partial
// unique index means a concurrent start won between validation and here; it
// is reported as ErrActiveStintExists so the caller can take the recovery
// path instead of surfacing a raw constraint failure.
func (r *StintRepository) InsertTx(ctx context.Context, tx *sql.Tx, stint *model.Stint) error {
	_, err := tx.ExecContext(
		ctx,
		`INSERT INTO stints (
			id, user_id, project_id, status, planned_duration,
			started_at, paused_at, paused_duration, ended_at, actual_duration,
			completion_type, notes, created_at, updated_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		stint.ID,
		stint.UserID,
		stint.ProjectID,
		stint.Status,
		stint.PlannedDuration,
		formatTime(stint.StartedAt),
		nullableTime(stint.PausedAt),
		stint.PausedDuration,
		nullableTime(stint.EndedAt),
		nullableInt(stint.ActualDuration),
		nullableString(stint.CompletionType),
		nullableString(stint.Notes),
		formatTime(stint.CreatedAt),
		formatTime(stint.UpdatedAt),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			return ErrActiveStintExists
		}
		return fmt.Errorf("insert stint: %w", err)
	}
	return nil
}

func (r *StintRepository) GetByID(ctx context.Context, userID, stintID string) (*model.Stint, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT `+stintColumns+` FROM stints WHERE id = ? AND user_id = ?`,
		stintID,
		userID,
	)
	return scanStint(row)
}

func (r *StintRepository) GetByIDTx(ctx context.Context, tx *sql.Tx, userID, stintID string) (*model.Stint, error) {
	row := tx.QueryRowContext(
		ctx,
		`SELECT `+stintColumns+` FROM stints WHERE id = ? AND user_id = ?`,
		stintID,
		userID,
	)
	return scanStint(row)
}

// FindByStatusTx returns the user's single stint in the given status, if any.
// The partial unique indexes guarantee at most one row for active and paused.
func (r *StintRepository) FindByStatusTx(ctx context.Context, tx *sql.Tx, userID, status string) (*model.Stint, error) {
	row := tx.QueryRowContext(
		ctx,
		`SELECT `+stintColumns+` FROM stints WHERE user_id = ? AND status = ?`,
		userID,
		status,
	)
	return scanStint(row)
}

func (r *StintRepository) FindByStatus(ctx context.Context, userID, status string) (*model.Stint, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT `+stintColumns+` FROM stints WHERE user_id = ? AND status = ?`,
		userID,
		status,
	)
	return scanStint(row)
}

func (r *StintRepository) UpdateTx(ctx context.Context, tx *sql.Tx, stint *model.Stint) error {
	_, err := tx.ExecContext(
		ctx,
		`UPDATE stints
		 SET status = ?,
		     paused_at = ?,
		     paused_duration = ?,
		     ended_at = ?,
		     actual_duration = ?,
		     completion_type = ?,
		     notes = ?,
		     updated_at = ?
		 WHERE id = ?`,
		stint.Status,
		nullableTime(stint.PausedAt),
		stint.PausedDuration,
		nullableTime(stint.EndedAt),
		nullableInt(stint.ActualDuration),
		nullableString(stint.CompletionType),
		nullableString(stint.Notes),
		formatTime(stint.UpdatedAt),
		stint.ID,
	)
	if err != nil {
		return fmt.Errorf("update stint: %w", err)
	}
	return nil
}

// ListActive returns every active stint across all users. The sweep filters
// deadlines in Go so the remaining-time math lives in one place.
func (r *StintRepository) ListActive(ctx context.Context) ([]model.Stint, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT `+stintColumns+` FROM stints WHERE status = ? ORDER BY started_at ASC`,
		model.StatusActive,
	)
	if err != nil {
		return nil, fmt.Errorf("list active stints: %w", err)
	}
	defer rows.Close()

	return collectStints(rows)
}

func (r *StintRepository) ListByUser(ctx context.Context, userID string, limit int) ([]model.Stint, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT `+stintColumns+` FROM stints
		 WHERE user_id = ?
		 ORDER BY started_at DESC
		 LIMIT ?`,
		userID,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list stints: %w", err)
	}
	defer rows.Close()

	return collectStints(rows)
}

func collectStints(rows *sql.Rows) ([]model.Stint, error) {
	stints := make([]model.Stint, 0)
	for rows.Next() {
		stint, err := scanStint(rows)
		if err != nil {
			return nil, err
		}
		stints = append(stints, *stint)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate stints: %w", err)
	}
	return stints, nil
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanStint(s scanner) (*model.Stint, error) {
	stint := model.Stint{}
	var startedAt string
	var pausedAt sql.NullString
	var endedAt sql.NullString
	var actualDuration sql.NullInt64
	var completionType sql.NullString
	var notes sql.NullString
	var createdAt string
	var updatedAt string
	err := s.Scan(
		&stint.ID,
		&stint.UserID,
		&stint.ProjectID,
		&stint.Status,
		&stint.PlannedDuration,
		&startedAt,
		&pausedAt,
		&stint.PausedDuration,
		&endedAt,
		&actualDuration,
		&completionType,
		&notes,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan stint: %w", err)
	}

	parsedStartedAt, err := parseTime(startedAt)
	if err != nil {
		return nil, fmt.Errorf("parse stint started_at: %w", err)
	}
	stint.StartedAt = parsedStartedAt

	if pausedAt.Valid {
		parsedPausedAt, parseErr := parseTime(pausedAt.String)
		if parseErr != nil {
			return nil, fmt.Errorf("parse stint paused_at: %w", parseErr)
		}
		stint.PausedAt = &parsedPausedAt
	}
	if endedAt.Valid {
		parsedEndedAt, parseErr := parseTime(endedAt.String)
		if parseErr != nil {
			return nil, fmt.Errorf("parse stint ended_at: %w", parseErr)
		}
		stint.EndedAt = &parsedEndedAt
	}
	if actualDuration.Valid {
		value := int(actualDuration.Int64)
		stint.ActualDuration = &value
	}
	if completionType.Valid {
		value := completionType.String
		stint.CompletionType = &value
	}
	if notes.Valid {
		value := notes.String
		stint.Notes = &value
	}

	parsedCreatedAt, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse stint created_at: %w", err)
	}
	stint.CreatedAt = parsedCreatedAt

	parsedUpdatedAt, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse stint updated_at: %w", err)
	}
	stint.UpdatedAt = parsedUpdatedAt

	return &stint, nil
}

func nullableTime(t *time.Time) interface{} {
	if t == nil {
		return nil
	}
	return formatTime(*t)
}

func nullableInt(v *int) interface{} {
	if v == nil {
		return nil
	}
	return *v
}

func nullableString(v *string) interface{} {
	if v == nil {
		return nil
	}
	return *v
}
