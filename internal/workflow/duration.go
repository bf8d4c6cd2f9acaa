package workflow

import (
	"strconv"
	"strings"

	"garage-repair-api-server/internal/apperr"
)

// DurationMinutes turns the hour and minute fields of the assign form into a
// total. Both must be whole non-negative numbers and the total must be positive.
func DurationMinutes(hours, minutes string) (int, error) {
	h, err := wholeNumber("hours", hours)
	if err != nil {
		return 0, err
	}
	m, err := wholeNumber("minutes", minutes)
	if err != nil {
		return 0, err
	}
	total := h*60 + m
	if total <= 0 {
		return 0, apperr.Validation("estimated duration must be greater than zero")
	}
	return total, nil
}

func wholeNumber(field, s string) (int, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, apperr.Validation("%s must be a whole number, got %q", field, s)
	}
	if n < 0 {
		return 0, apperr.Validation("%s cannot be negative", field)
	}
	return n, nil
}
