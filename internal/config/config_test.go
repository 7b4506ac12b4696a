package config

import (
	"testing"
	"time"

	"github.com/hray3182/Upkeep/internal/rrule"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("DATABASE_URI", "")
	t.Setenv("REEVALUATE_DEBOUNCE", "")
	t.Setenv("REMINDER_FALLBACK_RULE", "")
	t.Setenv("NATS_SUBJECT", "")

	cfg, err := Load()
	require.NoError(t, err)

	assert.Equal(t, 500*time.Millisecond, cfg.ReevaluateDebounce)
	assert.Equal(t, 15*time.Minute, cfg.ReevaluateInterval)
	assert.Equal(t, 5*time.Second, cfg.DistanceReminderDelay)
	assert.Equal(t, rrule.DefaultFallbackRule, cfg.FallbackRule)
	assert.Equal(t, "upkeep.data.changed", cfg.NATSSubject)
	assert.EqualError(t, cfg.Validate(), "DATABASE_URI is required")
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("DATABASE_URI", "postgres://localhost/upkeep")
	t.Setenv("REEVALUATE_DEBOUNCE", "2s")
	t.Setenv("DISPATCH_INTERVAL", "not-a-duration")
	t.Setenv("REMINDER_FALLBACK_RULE", "FREQ=DAILY;BYHOUR=18;BYMINUTE=0;BYSECOND=0")

	cfg, err := Load()
	require.NoError(t, err)

	assert.NoError(t, cfg.Validate())
	assert.Equal(t, 2*time.Second, cfg.ReevaluateDebounce)
	assert.Equal(t, 30*time.Second, cfg.DispatchInterval)
	assert.Equal(t, "FREQ=DAILY;BYHOUR=18;BYMINUTE=0;BYSECOND=0", cfg.FallbackRule)
}

func TestLoad_InvalidFallbackRule(t *testing.T) {
	t.Setenv("REMINDER_FALLBACK_RULE", "tomorrow please")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, rrule.DefaultFallbackRule, cfg.FallbackRule)
}
