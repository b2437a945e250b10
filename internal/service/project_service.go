package service

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"

	apperrors "stint/backend/internal/errors"
	"stint/backend/internal/model"
	"stint/backend/internal/repository"
)

// ProjectService is the thin CRUD surface stints hang off. Archival matters
// to the engine only as a start precondition.
type ProjectService struct {
	repo *repository.ProjectRepository
	now  func() time.Time
}

func NewProjectService(repo *repository.ProjectRepository) *ProjectService {
	return &ProjectService{
		repo: repo,
		now:  func() time.Time { return time.Now().UTC() },
	}
}

type CreateProjectInput struct {
	Name            string
	DurationMinutes *int
}

func (s *ProjectService) Create(ctx context.Context, userID string, input CreateProjectInput) (*model.Project, *apperrors.APIError) {
	name := strings.TrimSpace(input.Name)
	if name == "" {
		return nil, apperrors.BadRequest("invalid_name", "project name is required")
	}

	if input.DurationMinutes != nil {
		if _, apiErr := ResolveDuration(input.DurationMinutes, nil); apiErr != nil {
			return nil, apiErr
		}
	}

	now := s.now()
	project := model.Project{
		ID:             uuid.NewString(),
		UserID:         userID,
		Name:           name,
		CustomDuration: input.DurationMinutes,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	if err := s.repo.Create(ctx, &project); err != nil {
		return nil, apperrors.Internal("failed to create project")
	}
	return &project, nil
}

func (s *ProjectService) List(ctx context.Context, userID string) ([]model.Project, *apperrors.APIError) {
	projects, err := s.repo.List(ctx, userID)
	if err != nil {
		return nil, apperrors.Internal("failed to list projects")
	}
	return projects, nil
}

func (s *ProjectService) Archive(ctx context.Context, userID, projectID string) *apperrors.APIError {
	err := s.repo.Archive(ctx, userID, projectID, s.now().UTC().Format(time.RFC3339Nano))
	if err == repository.ErrNotFound {
		return apperrors.ProjectNotFound()
	}
	if err != nil {
		return apperrors.Internal("failed to archive project")
	}
	return nil
}
