package handlers

import (
	"errors"
	"strconv"
	"strings"

	"github.com/hray3182/Upkeep/internal/models"
)

var errTimeInterval = errors.New("time interval must look like 6m or 1y, or 0")

// parseNumber accepts readings such as "15,200".
func parseNumber(s string) (int, error) {
	s = strings.NewReplacer(",", "", "_", "").Replace(s)
	n, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if n < 0 {
		return 0, errors.New("negative number")
	}
	return n, nil
}

// trailingNumber splits a trailing number off fields.
func trailingNumber(fields []string) ([]string, int, bool) {
	if len(fields) == 0 {
		return fields, 0, false
	}
	n, err := parseNumber(fields[len(fields)-1])
	if err != nil {
		return fields, 0, false
	}
	return fields[:len(fields)-1], n, true
}

// parseTimeInterval parses "6m", "12mo", "1y" or "0".
func parseTimeInterval(s string) (int, models.TimeUnit, error) {
	if s == "0" {
		return 0, "", nil
	}
	i := strings.IndexFunc(s, func(r rune) bool { return r < '0' || r > '9' })
	if i <= 0 {
		return 0, "", errTimeInterval
	}
	n, err := strconv.Atoi(s[:i])
	if err != nil {
		return 0, "", errTimeInterval
	}
	unit, ok := models.ParseTimeUnit(strings.ToLower(s[i:]))
	if !ok {
		return 0, "", errTimeInterval
	}
	return n, unit, nil
}

// itemArgs is "<vehicle> <item...> <distance> <time>".
type itemArgs struct {
	vehicle  string
	item     string
	distance int
	interval int
	unit     models.TimeUnit
}

func parseItemArgs(args []string) (*itemArgs, error) {
	if len(args) < 4 {
		return nil, errors.New("expected <vehicle> <item> <distance> <time>")
	}
	n := len(args)
	distance, err := parseNumber(args[n-2])
	if err != nil {
		return nil, errors.New("distance interval must be a number, 0 to disable")
	}
	interval, unit, err := parseTimeInterval(args[n-1])
	if err != nil {
		return nil, err
	}
	return &itemArgs{
		vehicle:  args[0],
		item:     strings.Join(args[1:n-2], " "),
		distance: distance,
		interval: interval,
		unit:     unit,
	}, nil
}
