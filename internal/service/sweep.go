package service

import (
	"context"
	"log"
	"time"

	apperrors "stint/backend/internal/errors"
	"stint/backend/internal/model"
)

// SweepResult reports one auto-completion pass.
type SweepResult struct {
	Scanned   int `json:"scanned"`
	Completed int `json:"completed"`
	Errored   int `json:"errored"`
}

// Sweep completes every active stint whose deadline has passed, independent
// of any connected client. Each stint goes through the same atomic terminal
// transition as a manual completion, with completionType auto. A failure on
// one row is logged and counted; it never aborts the rest of the batch.
func (s *StintService) Sweep(ctx context.Context) (SweepResult, *apperrors.APIError) {
	now := s.now()
	result := SweepResult{}

	active, err := s.stints.ListActive(ctx)
	if err != nil {
		return result, apperrors.Internal("failed to list active stints")
	}
	result.Scanned = len(active)

	for i := range active {
		stint := &active[i]
		if now.Before(s.deadline(stint)) {
			continue
		}
		if apiErr := s.autoComplete(ctx, stint); apiErr != nil {
			log.Printf("sweep: complete stint %s: %s", stint.ID, apiErr.Message)
			result.Errored++
			continue
		}
		result.Completed++
	}

	return result, nil
}

func (s *StintService) autoComplete(ctx context.Context, stint *model.Stint) *apperrors.APIError {
	now := s.now()
	tx, err := s.stints.BeginTx(ctx)
	if err != nil {
		return apperrors.Internal("failed to start transaction")
	}
	defer tx.Rollback()

	// Re-read inside the transaction: another device or a sync check may
	// have completed the stint since the scan.
	fresh, apiErr := s.getStintTx(ctx, tx, stint.UserID, stint.ID)
	if apiErr != nil {
		return apiErr
	}
	if fresh.Terminal() {
		return nil
	}
	if fresh.Status != model.StatusActive {
		return nil
	}

	s.finish(fresh, model.CompletionAuto, nil, now)

	if apiErr := s.saveAndBump(ctx, tx, fresh, fresh.UserID); apiErr != nil {
		return apiErr
	}
	if err := tx.Commit(); err != nil {
		return apperrors.Internal("failed to commit transaction")
	}

	s.publish(fresh)
	return nil
}

// RunSweeper invokes Sweep on a fixed cadence until the context is done.
// Intended to run in its own goroutine next to the HTTP server.
func (s *StintService) RunSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			result, apiErr := s.Sweep(ctx)
			if apiErr != nil {
				log.Printf("sweep: %s", apiErr.Message)
				continue
			}
			if result.Completed > 0 || result.Errored > 0 {
				log.Printf("sweep: completed=%d errored=%d", result.Completed, result.Errored)
			}
		}
	}
}
