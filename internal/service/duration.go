package service

import (
	"fmt"

	apperrors "stint/backend/internal/errors"
	"stint/backend/internal/model"
)

// ResolveDuration picks the planned duration for a new stint: an explicit
// request value wins over the project's custom default, which wins over the
// global default. The resolved value must land inside [5, 480] minutes.
func ResolveDuration(explicit *int, projectCustom *int) (int, *apperrors.APIError) {
	minutes := model.DefaultStintMinutes
	switch {
	case explicit != nil:
		minutes = *explicit
	case projectCustom != nil:
		minutes = *projectCustom
	}

	if minutes < model.MinStintMinutes || minutes > model.MaxStintMinutes {
		return 0, apperrors.InvalidDuration(fmt.Sprintf(
			"duration must be between %d and %d minutes",
			model.MinStintMinutes,
			model.MaxStintMinutes,
		))
	}
	return minutes, nil
}
