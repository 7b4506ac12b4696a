package rrule

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNextDay_DefaultRule(t *testing.T) {
	tests := []struct {
		name string
		now  time.Time
		want time.Time
	}{
		{"early morning still means tomorrow", time.Date(2025, 3, 10, 6, 0, 0, 0, time.UTC), time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)},
		{"evening", time.Date(2025, 3, 10, 21, 30, 0, 0, time.UTC), time.Date(2025, 3, 11, 9, 0, 0, 0, time.UTC)},
		{"end of month", time.Date(2025, 3, 31, 12, 0, 0, 0, time.UTC), time.Date(2025, 4, 1, 9, 0, 0, 0, time.UTC)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NextDay(DefaultFallbackRule, tt.now)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got), "got %s", got)
		})
	}
}

func TestNextDay_CustomRule(t *testing.T) {
	now := time.Date(2025, 3, 10, 12, 0, 0, 0, time.UTC)
	got, err := NextDay("RRULE:FREQ=DAILY;BYHOUR=18;BYMINUTE=30;BYSECOND=0", now)
	require.NoError(t, err)
	assert.True(t, time.Date(2025, 3, 11, 18, 30, 0, 0, time.UTC).Equal(got))
}

func TestNextDay_InvalidRule(t *testing.T) {
	_, err := NextDay("FREQ=SOMETIMES", time.Now())
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	assert.NoError(t, Validate(DefaultFallbackRule))
	assert.Error(t, Validate(""))
	assert.Error(t, Validate("BYHOUR=9"))
}
