package model

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

// ErrBadInput marks structurally invalid calls: unknown weekday, malformed date, missing field.
var ErrBadInput = errors.New("bad input")

const (
	Monday    = "monday"
	Tuesday   = "tuesday"
	Wednesday = "wednesday"
	Thursday  = "thursday"
	Friday    = "friday"
	Saturday  = "saturday"
	Sunday    = "sunday"
)

// Weekdays lists the canonical weekday keys in display order.
var Weekdays = [7]string{Monday, Tuesday, Wednesday, Thursday, Friday, Saturday, Sunday}

// DateLayout is the dateKey format (YYYY-MM-DD).
const DateLayout = "2006-01-02"

func IsWeekday(key string) bool {
	for _, w := range Weekdays {
		if w == key {
			return true
		}
	}
	return false
}

// NormalizeWeekday lowercases and validates a weekday key.
func NormalizeWeekday(key string) (string, error) {
	k := strings.ToLower(strings.TrimSpace(key))
	if !IsWeekday(k) {
		return "", fmt.Errorf("%w: unknown weekday %q", ErrBadInput, key)
	}
	return k, nil
}

// ParseDateKey validates a YYYY-MM-DD key.
func ParseDateKey(key string) (time.Time, error) {
	t, err := time.Parse(DateLayout, key)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: date %q must be YYYY-MM-DD", ErrBadInput, key)
	}
	return t, nil
}

// DateKey formats t in its own location as YYYY-MM-DD.
func DateKey(t time.Time) string {
	return t.Format(DateLayout)
}

// WeekdayOf maps a time to its weekday key.
func WeekdayOf(t time.Time) string {
	// time.Sunday == 0
	return Weekdays[(int(t.Weekday())+6)%7]
}

// OverrideSourceWeekday names the weekday whose schedule entry seeds the
// override for dateKey: the day after it ("today's override shows tomorrow's homework").
// Every place that needs the offset goes through here.
func OverrideSourceWeekday(dateKey string) (string, error) {
	d, err := ParseDateKey(dateKey)
	if err != nil {
		return "", err
	}
	return WeekdayOf(d.AddDate(0, 0, 1)), nil
}
