package workflow

import (
	"errors"
	"testing"

	"garage-repair-api-server/internal/apperr"

	"github.com/stretchr/testify/assert"
)

func TestDurationMinutes(t *testing.T) {
	cases := []struct {
		hours, minutes string
		want           int
		ok             bool
	}{
		{"0", "15", 15, true},
		{"2", "30", 150, true},
		{"1", "0", 60, true},
		{"1", "", 60, true},
		{" 3 ", "5", 185, true},
		{"0", "0", 0, false},
		{"", "", 0, false},
		{"1.5", "0", 0, false},
		{"1", "7.5", 0, false},
		{"abc", "10", 0, false},
		{"-1", "90", 0, false},
	}
	for _, tc := range cases {
		got, err := DurationMinutes(tc.hours, tc.minutes)
		if !tc.ok {
			assert.True(t, errors.Is(err, apperr.ErrValidation), "%q/%q should be rejected", tc.hours, tc.minutes)
			continue
		}
		assert.NoError(t, err)
		assert.Equal(t, tc.want, got, "%q/%q", tc.hours, tc.minutes)
	}
}
