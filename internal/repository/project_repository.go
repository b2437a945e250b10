package repository

import (
	"context"
	"database/sql"
	"fmt"

	"stint/backend/internal/model"
)

type ProjectRepository struct {
	db *sql.DB
}

func NewProjectRepository(db *sql.DB) *ProjectRepository {
	return &ProjectRepository{db: db}
}

func (r *ProjectRepository) Create(ctx context.Context, project *model.Project) error {
	var customDuration interface{}
	if project.CustomDuration != nil {
		customDuration = *project.CustomDuration
	}

	_, err := r.db.ExecContext(
		ctx,
		`INSERT INTO projects (id, user_id, name, custom_duration, archived, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		project.ID,
		project.UserID,
		project.Name,
		customDuration,
		boolToInt(project.Archived),
		formatTime(project.CreatedAt),
		formatTime(project.UpdatedAt),
	)
	if err != nil {
		return fmt.Errorf("create project: %w", err)
	}
	return nil
}

// GetByID is scoped to the owning user; a project belonging to someone else
// is indistinguishable from one that does not exist.
func (r *ProjectRepository) GetByID(ctx context.Context, userID, projectID string) (*model.Project, error) {
	row := r.db.QueryRowContext(
		ctx,
		`SELECT id, user_id, name, custom_duration, archived, created_at, updated_at
		 FROM projects
		 WHERE id = ? AND user_id = ?`,
		projectID,
		userID,
	)
	return scanProject(row)
}

func (r *ProjectRepository) List(ctx context.Context, userID string) ([]model.Project, error) {
	rows, err := r.db.QueryContext(
		ctx,
		`SELECT id, user_id, name, custom_duration, archived, created_at, updated_at
		 FROM projects
		 WHERE user_id = ?
		 ORDER BY created_at ASC`,
		userID,
	)
	if err != nil {
		return nil, fmt.Errorf("list projects: %w", err)
	}
	defer rows.Close()

	projects := make([]model.Project, 0)
	for rows.Next() {
		project, scanErr := scanProject(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		projects = append(projects, *project)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate projects: %w", err)
	}

	return projects, nil
}

func (r *ProjectRepository) Archive(ctx context.Context, userID, projectID string, updatedAt string) error {
	result, err := r.db.ExecContext(
		ctx,
		`UPDATE projects SET archived = 1, updated_at = ? WHERE id = ? AND user_id = ?`,
		updatedAt,
		projectID,
		userID,
	)
	if err != nil {
		return fmt.Errorf("archive project: %w", err)
	}
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("archive project: %w", err)
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func scanProject(s scanner) (*model.Project, error) {
	project := model.Project{}
	var customDuration sql.NullInt64
	var archived int
	var createdAt string
	var updatedAt string
	err := s.Scan(
		&project.ID,
		&project.UserID,
		&project.Name,
		&customDuration,
		&archived,
		&createdAt,
		&updatedAt,
	)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("scan project: %w", err)
	}

	if customDuration.Valid {
		value := int(customDuration.Int64)
		project.CustomDuration = &value
	}
	project.Archived = archived != 0

	parsedCreatedAt, err := parseTime(createdAt)
	if err != nil {
		return nil, fmt.Errorf("parse project created_at: %w", err)
	}
	parsedUpdatedAt, err := parseTime(updatedAt)
	if err != nil {
		return nil, fmt.Errorf("parse project updated_at: %w", err)
	}
	project.CreatedAt = parsedCreatedAt
	project.UpdatedAt = parsedUpdatedAt

	return &project, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
