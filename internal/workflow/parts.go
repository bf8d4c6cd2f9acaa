package workflow

import (
	"strings"
	"time"

	"garage-repair-api-server/internal/apperr"
	"garage-repair-api-server/internal/models"
	"garage-repair-api-server/internal/permission"
)

// PartsWaiting validates a toggle of the order's waiting-for-parts flag.
// Turning it off clears the window and the note.
func PartsWaiting(p permission.Principal, waiting bool, start, expectedEnd *time.Time, note string) (models.PartsWaiting, error) {
	if !permission.CanManageOrder(p) {
		return models.PartsWaiting{}, apperr.Forbidden("role %s cannot change the parts status", p.Role)
	}
	if !waiting {
		return models.PartsWaiting{}, nil
	}
	if start == nil || expectedEnd == nil {
		return models.PartsWaiting{}, apperr.Validation("parts order start time and expected ready time are required")
	}
	if expectedEnd.Before(*start) {
		return models.PartsWaiting{}, apperr.Validation("expected ready time must not be before the order start time")
	}
	return models.PartsWaiting{
		WaitingForParts:      true,
		PartsOrderStartTime:  start,
		PartsExpectedEndTime: expectedEnd,
		PartsNote:            strings.TrimSpace(note),
	}, nil
}
