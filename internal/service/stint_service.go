package service

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	apperrors "stint/backend/internal/errors"
	"stint/backend/internal/events"
	"stint/backend/internal/model"
	"stint/backend/internal/repository"
)

// DriftThresholdSeconds is the divergence a sync check tolerates before
// telling the client to correct its local countdown.
const DriftThresholdSeconds = 5

type StintService struct {
	stints   *repository.StintRepository
	projects *repository.ProjectRepository
	users    *repository.UserRepository
	bus      *events.Bus
	now      func() time.Time
}

func NewStintService(
	stints *repository.StintRepository,
	projects *repository.ProjectRepository,
	users *repository.UserRepository,
	bus *events.Bus,
) *StintService {
	return &StintService{
		stints:   stints,
		projects: projects,
		users:    users,
		bus:      bus,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

type StartInput struct {
	ProjectID       string
	DurationMinutes *int
	BaseVersion     int
}

type StintView struct {
	model.Stint
	RemainingSeconds int       `json:"remainingSeconds"`
	Version          int       `json:"version"`
	ServerTime       time.Time `json:"serverTime"`
}

type SyncView struct {
	StintID          string    `json:"stintId"`
	Status           string    `json:"status"`
	RemainingSeconds int       `json:"remainingSeconds"`
	DriftSeconds     int       `json:"driftSeconds"`
	CorrectionNeeded bool      `json:"correctionNeeded"`
	ServerTime       time.Time `json:"serverTime"`
}

// Start runs the two-phase start protocol: a validation transaction that
// fails fast with the blocking stint, then an insert that leans on the
// one-active unique index as the authoritative guard. The version check is
// advisory; the index alone keeps the invariant under any interleaving.
func (s *StintService) Start(ctx context.Context, userID string, input StartInput) (*StintView, *apperrors.APIError) {
	now := s.now()

	if input.DurationMinutes != nil {
		if _, apiErr := ResolveDuration(input.DurationMinutes, nil); apiErr != nil {
			return nil, apiErr
		}
	}

	project, err := s.projects.GetByID(ctx, userID, input.ProjectID)
	if err == repository.ErrNotFound {
		return nil, apperrors.ProjectNotFound()
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load project")
	}
	if project.Archived {
		return nil, apperrors.ProjectArchived()
	}

	minutes, apiErr := ResolveDuration(input.DurationMinutes, project.CustomDuration)
	if apiErr != nil {
		return nil, apiErr
	}

	if apiErr := s.validateStart(ctx, userID, input.BaseVersion, now); apiErr != nil {
		return nil, apiErr
	}

	stint := &model.Stint{
		ID:              uuid.NewString(),
		UserID:          userID,
		ProjectID:       input.ProjectID,
		Status:          model.StatusActive,
		PlannedDuration: minutes,
		StartedAt:       now,
		CreatedAt:       now,
		UpdatedAt:       now,
	}

	tx, err := s.stints.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	if err := s.stints.InsertTx(ctx, tx, stint); err != nil {
		_ = tx.Rollback()
		if err == repository.ErrActiveStintExists {
			return nil, s.conflictWithCurrent(ctx, userID, now)
		}
		return nil, apperrors.Internal("failed to create stint")
	}
	if err := s.users.BumpVersionTx(ctx, tx, userID); err != nil {
		return nil, apperrors.Internal("failed to bump user version")
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.Internal("failed to commit transaction")
	}

	s.publish(stint)
	return s.view(ctx, stint, now), nil
}

// validateStart is phase one: inside one transaction it re-checks the
// primary conflict (an active stint) and the staleness guard (the version
// token). An active stint always wins the conflict message over a paused
// one; a paused stint by itself never blocks a start.
func (s *StintService) validateStart(ctx context.Context, userID string, baseVersion int, now time.Time) *apperrors.APIError {
	tx, err := s.stints.BeginTx(ctx)
	if err != nil {
		return apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	active, err := s.stints.FindByStatusTx(ctx, tx, userID, model.StatusActive)
	if err != nil && err != repository.ErrNotFound {
		return apperrors.Internal("failed to check active stint")
	}

	version, err := s.users.GetVersionTx(ctx, tx, userID)
	if err != nil {
		return apperrors.Internal("failed to read user version")
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return apperrors.Internal("failed to commit transaction")
	}

	if active != nil {
		return apperrors.StintConflict("an active stint is already running", s.stintDetails(active, now))
	}

	if baseVersion > 0 && baseVersion != version {
		paused, findErr := s.stints.FindByStatus(ctx, userID, model.StatusPaused)
		if findErr != nil && findErr != repository.ErrNotFound {
			return apperrors.Internal("failed to check paused stint")
		}
		var details interface{}
		if paused != nil {
			details = s.stintDetails(paused, now)
		}
		return apperrors.StintConflict("stint state changed on another device", details)
	}

	return nil
}

// conflictWithCurrent is the recovery path for a genuine race: the insert
// lost to the unique index, so re-query whatever stint holds the slot now.
func (s *StintService) conflictWithCurrent(ctx context.Context, userID string, now time.Time) *apperrors.APIError {
	existing, err := s.stints.FindByStatus(ctx, userID, model.StatusActive)
	if err == repository.ErrNotFound {
		existing, err = s.stints.FindByStatus(ctx, userID, model.StatusPaused)
	}
	if err != nil && err != repository.ErrNotFound {
		return apperrors.Internal("failed to resolve conflicting stint")
	}

	var details interface{}
	if existing != nil {
		details = s.stintDetails(existing, now)
	}
	return apperrors.StintConflict("an active stint is already running", details)
}

func (s *StintService) Pause(ctx context.Context, userID, stintID string) (*StintView, *apperrors.APIError) {
	now := s.now()
	tx, err := s.stints.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	stint, apiErr := s.getStintTx(ctx, tx, userID, stintID)
	if apiErr != nil {
		return nil, apiErr
	}
	if stint.Status != model.StatusActive {
		return nil, apperrors.NotActive()
	}

	paused, err := s.stints.FindByStatusTx(ctx, tx, userID, model.StatusPaused)
	if err != nil && err != repository.ErrNotFound {
		return nil, apperrors.Internal("failed to check paused stint")
	}
	if paused != nil {
		return nil, apperrors.AlreadyHasPaused()
	}

	stint.Status = model.StatusPaused
	stint.PausedAt = &now
	stint.UpdatedAt = now

	if apiErr := s.saveAndBump(ctx, tx, stint, userID); apiErr != nil {
		return nil, apiErr
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.Internal("failed to commit transaction")
	}

	s.publish(stint)
	return s.view(ctx, stint, now), nil
}

func (s *StintService) Resume(ctx context.Context, userID, stintID string) (*StintView, *apperrors.APIError) {
	now := s.now()
	tx, err := s.stints.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	stint, apiErr := s.getStintTx(ctx, tx, userID, stintID)
	if apiErr != nil {
		return nil, apiErr
	}
	if stint.Status != model.StatusPaused {
		return nil, apperrors.NotPaused()
	}

	active, err := s.stints.FindByStatusTx(ctx, tx, userID, model.StatusActive)
	if err != nil && err != repository.ErrNotFound {
		return nil, apperrors.Internal("failed to check active stint")
	}
	if active != nil {
		return nil, apperrors.AnotherStintActive()
	}

	// Fold exactly this pause interval into the cumulative total.
	if stint.PausedAt != nil {
		stint.PausedDuration += int(now.Sub(*stint.PausedAt).Seconds())
	}
	stint.Status = model.StatusActive
	stint.PausedAt = nil
	stint.UpdatedAt = now

	if apiErr := s.saveAndBump(ctx, tx, stint, userID); apiErr != nil {
		return nil, apiErr
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.Internal("failed to commit transaction")
	}

	s.publish(stint)
	return s.view(ctx, stint, now), nil
}

// Complete ends a stint manually. Interrupt is the same transition with a
// different terminal status; both go through finish so the accounting is
// identical on every path.
func (s *StintService) Complete(ctx context.Context, userID, stintID string, notes *string) (*StintView, *apperrors.APIError) {
	return s.end(ctx, userID, stintID, model.CompletionManual, notes)
}

func (s *StintService) Interrupt(ctx context.Context, userID, stintID string, notes *string) (*StintView, *apperrors.APIError) {
	return s.end(ctx, userID, stintID, model.CompletionInterrupted, notes)
}

func (s *StintService) end(ctx context.Context, userID, stintID, completionType string, notes *string) (*StintView, *apperrors.APIError) {
	if notes != nil && len(*notes) > model.MaxNotesLength {
		return nil, apperrors.BadRequest("invalid_notes", "notes must be at most 500 characters")
	}

	now := s.now()
	tx, err := s.stints.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	stint, apiErr := s.getStintTx(ctx, tx, userID, stintID)
	if apiErr != nil {
		return nil, apiErr
	}
	if stint.Terminal() {
		return nil, apperrors.NotActiveOrPaused()
	}

	s.finish(stint, completionType, notes, now)

	if apiErr := s.saveAndBump(ctx, tx, stint, userID); apiErr != nil {
		return nil, apiErr
	}
	if err := tx.Commit(); err != nil {
		return nil, apperrors.Internal("failed to commit transaction")
	}

	s.publish(stint)
	return s.view(ctx, stint, now), nil
}

// finish applies the terminal transition in memory. A pause interval still
// open at completion is folded into pausedDuration before actualDuration is
// computed, so paused time never counts as focus time.
func (s *StintService) finish(stint *model.Stint, completionType string, notes *string, now time.Time) {
	if stint.Status == model.StatusPaused && stint.PausedAt != nil {
		stint.PausedDuration += int(now.Sub(*stint.PausedAt).Seconds())
	}
	stint.PausedAt = nil

	ended := now
	stint.EndedAt = &ended

	actual := int(now.Sub(stint.StartedAt).Seconds()) - stint.PausedDuration
	if actual < 0 {
		actual = 0
	}
	stint.ActualDuration = &actual

	ct := completionType
	stint.CompletionType = &ct
	if completionType == model.CompletionInterrupted {
		stint.Status = model.StatusInterrupted
	} else {
		stint.Status = model.StatusCompleted
	}
	if notes != nil {
		stint.Notes = notes
	}
	stint.UpdatedAt = now
}

// Sync answers a drift-reconciliation check from a client's local countdown.
// An active stint whose deadline has passed is auto-completed first, so the
// response reports the terminal status instead of a countdown for a session
// that no longer exists.
func (s *StintService) Sync(ctx context.Context, userID, stintID string, clientRemaining int) (*SyncView, *apperrors.APIError) {
	now := s.now()
	tx, err := s.stints.BeginTx(ctx)
	if err != nil {
		return nil, apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	stint, apiErr := s.getStintTx(ctx, tx, userID, stintID)
	if apiErr != nil {
		return nil, apiErr
	}

	completed, apiErr := s.normalizeExpiredTx(ctx, tx, stint, now)
	if apiErr != nil {
		return nil, apiErr
	}

	if err := tx.Commit(); err != nil {
		return nil, apperrors.Internal("failed to commit transaction")
	}
	if completed {
		s.publish(stint)
	}

	remaining := s.remainingSeconds(stint, now)
	drift := clientRemaining - remaining
	corrected := drift > DriftThresholdSeconds || drift < -DriftThresholdSeconds

	return &SyncView{
		StintID:          stint.ID,
		Status:           stint.Status,
		RemainingSeconds: remaining,
		DriftSeconds:     drift,
		CorrectionNeeded: corrected,
		ServerTime:       now,
	}, nil
}

// Current returns the user's active or paused stint, if any, after
// normalizing an expired active one. The user version rides along so a
// client can start its next stint against fresh state.
func (s *StintService) Current(ctx context.Context, userID string) (*StintView, int, *apperrors.APIError) {
	now := s.now()
	tx, err := s.stints.BeginTx(ctx)
	if err != nil {
		return nil, 0, apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	stint, err := s.stints.FindByStatusTx(ctx, tx, userID, model.StatusActive)
	if err != nil && err != repository.ErrNotFound {
		return nil, 0, apperrors.Internal("failed to load current stint")
	}

	var expired *model.Stint
	if stint != nil {
		completed, apiErr := s.normalizeExpiredTx(ctx, tx, stint, now)
		if apiErr != nil {
			return nil, 0, apiErr
		}
		if completed {
			expired = stint
			stint = nil
		}
	}

	if stint == nil {
		paused, findErr := s.stints.FindByStatusTx(ctx, tx, userID, model.StatusPaused)
		if findErr != nil && findErr != repository.ErrNotFound {
			return nil, 0, apperrors.Internal("failed to load paused stint")
		}
		stint = paused
	}

	version, err := s.users.GetVersionTx(ctx, tx, userID)
	if err != nil {
		return nil, 0, apperrors.Internal("failed to read user version")
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return nil, 0, apperrors.Internal("failed to commit transaction")
	}
	if expired != nil {
		s.publish(expired)
	}

	if stint == nil {
		return nil, version, nil
	}

	view := &StintView{
		Stint:            *stint,
		RemainingSeconds: s.remainingSeconds(stint, now),
		Version:          version,
		ServerTime:       now,
	}
	return view, version, nil
}

func (s *StintService) History(ctx context.Context, userID string, limit int) ([]model.Stint, *apperrors.APIError) {
	if limit <= 0 || limit > 200 {
		limit = 50
	}
	stints, err := s.stints.ListByUser(ctx, userID, limit)
	if err != nil {
		return nil, apperrors.Internal("failed to list stints")
	}
	return stints, nil
}

// normalizeExpiredTx completes an active stint whose deadline has passed,
// with completionType auto. Whichever observer sees the expiry first (sweep,
// sync check, current-stint read) performs the same transition.
func (s *StintService) normalizeExpiredTx(ctx context.Context, tx *sql.Tx, stint *model.Stint, now time.Time) (bool, *apperrors.APIError) {
	if stint.Status != model.StatusActive {
		return false, nil
	}
	if now.Before(s.deadline(stint)) {
		return false, nil
	}

	s.finish(stint, model.CompletionAuto, nil, now)
	if apiErr := s.saveAndBump(ctx, tx, stint, stint.UserID); apiErr != nil {
		return false, apiErr
	}
	return true, nil
}

// remainingSeconds is the authoritative remaining-time computation. While
// paused the value is frozen at the instant the pause began; every second
// spent paused is credited back via pausedDuration.
func (s *StintService) remainingSeconds(stint *model.Stint, now time.Time) int {
	planned := stint.PlannedDuration * 60

	var elapsed int
	switch stint.Status {
	case model.StatusActive:
		elapsed = int(now.Sub(stint.StartedAt).Seconds())
	case model.StatusPaused:
		if stint.PausedAt == nil {
			return 0
		}
		elapsed = int(stint.PausedAt.Sub(stint.StartedAt).Seconds())
	default:
		return 0
	}

	remaining := planned - elapsed + stint.PausedDuration
	if remaining < 0 {
		return 0
	}
	return remaining
}

// deadline is the instant remainingSeconds reaches zero for an active stint.
func (s *StintService) deadline(stint *model.Stint) time.Time {
	return stint.StartedAt.
		Add(time.Duration(stint.PlannedDuration) * time.Minute).
		Add(time.Duration(stint.PausedDuration) * time.Second)
}

func (s *StintService) getStintTx(ctx context.Context, tx *sql.Tx, userID, stintID string) (*model.Stint, *apperrors.APIError) {
	stint, err := s.stints.GetByIDTx(ctx, tx, userID, stintID)
	if err == repository.ErrNotFound {
		return nil, apperrors.NotFound("not_found", "stint not found")
	}
	if err != nil {
		return nil, apperrors.Internal("failed to load stint")
	}
	return stint, nil
}

func (s *StintService) saveAndBump(ctx context.Context, tx *sql.Tx, stint *model.Stint, userID string) *apperrors.APIError {
	if err := s.stints.UpdateTx(ctx, tx, stint); err != nil {
		return apperrors.Internal("failed to update stint")
	}
	if err := s.users.BumpVersionTx(ctx, tx, userID); err != nil {
		return apperrors.Internal("failed to bump user version")
	}
	return nil
}

func (s *StintService) publish(stint *model.Stint) {
	if s.bus == nil {
		return
	}
	s.bus.Publish(events.Event{
		StintID:   stint.ID,
		UserID:    stint.UserID,
		ProjectID: stint.ProjectID,
		Status:    stint.Status,
	})
}

func (s *StintService) view(ctx context.Context, stint *model.Stint, now time.Time) *StintView {
	version, err := s.users.GetVersion(ctx, stint.UserID)
	if err != nil {
		version = 0
	}
	return &StintView{
		Stint:            *stint,
		RemainingSeconds: s.remainingSeconds(stint, now),
		Version:          version,
		ServerTime:       now,
	}
}

func (s *StintService) stintDetails(stint *model.Stint, now time.Time) map[string]interface{} {
	return map[string]interface{}{
		"stint":            stint,
		"remainingSeconds": s.remainingSeconds(stint, now),
	}
}
