// Package rrule evaluates RFC 5545 recurrence rules used for reminder lead
// times, such as the "tomorrow morning" fallback reminder.
package rrule

import (
	"fmt"
	"strings"
	"time"

	"github.com/teambition/rrule-go"
)

// DefaultFallbackRule fires at 09:00 every day.
const DefaultFallbackRule = "FREQ=DAILY;BYHOUR=9;BYMINUTE=0;BYSECOND=0"

// ParseRRule parses an RFC 5545 RRULE string anchored at dtstart.
func ParseRRule(ruleStr string, dtstart time.Time) (*rrule.RRule, error) {
	// Handle RRULE: prefix if present
	ruleStr = strings.TrimPrefix(strings.TrimSpace(ruleStr), "RRULE:")

	opt, err := rrule.StrToROption(ruleStr)
	if err != nil {
		return nil, fmt.Errorf("failed to parse RRULE: %w", err)
	}
	opt.Dtstart = dtstart
	return rrule.NewRRule(*opt)
}

// Validate reports whether ruleStr is a usable recurrence rule.
func Validate(ruleStr string) error {
	if !IsRecurring(ruleStr) {
		return fmt.Errorf("rule %q has no FREQ", ruleStr)
	}
	_, err := ParseRRule(ruleStr, time.Now())
	return err
}

// NextOccurrence returns the first occurrence at or after the given time.
// Returns nil if there are no more occurrences.
func NextOccurrence(ruleStr string, dtstart time.Time, after time.Time) (*time.Time, error) {
	rule, err := ParseRRule(ruleStr, dtstart)
	if err != nil {
		return nil, err
	}

	next := rule.After(after, true)
	if next.IsZero() {
		return nil, nil
	}
	return &next, nil
}

// NextDay returns the first occurrence of ruleStr on the calendar day after
// now, in now's location. If the rule has no occurrence that day, the first
// later occurrence is returned.
func NextDay(ruleStr string, now time.Time) (time.Time, error) {
	y, m, d := now.Date()
	tomorrow := time.Date(y, m, d+1, 0, 0, 0, 0, now.Location())

	next, err := NextOccurrence(ruleStr, tomorrow, tomorrow)
	if err != nil {
		return time.Time{}, err
	}
	if next == nil {
		return time.Time{}, fmt.Errorf("rule %q has no occurrence after %s", ruleStr, tomorrow.Format(time.DateOnly))
	}
	return *next, nil
}

// IsRecurring checks if the RRULE string represents a recurring rule
func IsRecurring(ruleStr string) bool {
	return ruleStr != "" && strings.Contains(strings.ToUpper(ruleStr), "FREQ=")
}
