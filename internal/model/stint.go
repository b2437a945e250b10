package model

import "time"

const (
	StatusActive      = "active"
	StatusPaused      = "paused"
	StatusCompleted   = "completed"
	StatusInterrupted = "interrupted"

	CompletionManual      = "manual"
	CompletionAuto        = "auto"
	CompletionInterrupted = "interrupted"
)

const (
	MinStintMinutes     = 5
	MaxStintMinutes     = 480
	DefaultStintMinutes = 120

	MaxNotesLength = 500
)

// Stint is one timed focus session against a project. PausedDuration
// accumulates seconds across all pause/resume cycles; ActualDuration and
// CompletionType are set only when the stint reaches a terminal status.
type Stint struct {
	ID              string     `json:"id"`
	UserID          string     `json:"userId"`
	ProjectID       string     `json:"projectId"`
	Status          string     `json:"status"`
	PlannedDuration int        `json:"plannedDuration"` // minutes
	StartedAt       time.Time  `json:"startedAt"`
	PausedAt        *time.Time `json:"pausedAt,omitempty"`
	PausedDuration  int        `json:"pausedDuration"` // seconds
	EndedAt         *time.Time `json:"endedAt,omitempty"`
	ActualDuration  *int       `json:"actualDuration,omitempty"` // seconds
	CompletionType  *string    `json:"completionType,omitempty"`
	Notes           *string    `json:"notes,omitempty"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// Terminal reports whether the stint can take no further transitions.
func (s *Stint) Terminal() bool {
	return s.Status == StatusCompleted || s.Status == StatusInterrupted
}

func IsValidStatus(status string) bool {
	switch status {
	case StatusActive, StatusPaused, StatusCompleted, StatusInterrupted:
		return true
	}
	return false
}
