// Package scheduling provides the timer/clock primitives the rules engine
// builds on: an explicit after/onChange scheduler abstraction, and the
// next-fire-time functions for interval, daily, and sunrise/sunset rules.
package scheduling

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseIntervalDuration parses "hh:mm:ss" as a positive duration of at
// least one second, for interval-behavior rules.
func ParseIntervalDuration(s string) (time.Duration, error) {
	h, m, sec, err := parseHMS(s)
	if err != nil {
		return 0, err
	}
	d := time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second
	if d < time.Second {
		return 0, fmt.Errorf("scheduling: interval %q must be at least 1 second", s)
	}
	return d, nil
}

// ParseClockOfDay parses "hh:mm:ss" as a time-of-day offset from midnight,
// for daily-behavior rules.
func ParseClockOfDay(s string) (time.Duration, error) {
	h, m, sec, err := parseHMS(s)
	if err != nil {
		return 0, err
	}
	if h < 0 || h > 23 || m < 0 || m > 59 || sec < 0 || sec > 59 {
		return 0, fmt.Errorf("scheduling: clock time %q out of range", s)
	}
	return time.Duration(h)*time.Hour + time.Duration(m)*time.Minute + time.Duration(sec)*time.Second, nil
}

func parseHMS(s string) (h, m, sec int, err error) {
	parts := strings.Split(s, ":")
	if len(parts) != 3 {
		return 0, 0, 0, fmt.Errorf("scheduling: %q is not hh:mm:ss", s)
	}
	if h, err = strconv.Atoi(parts[0]); err != nil {
		return 0, 0, 0, fmt.Errorf("scheduling: %q is not hh:mm:ss", s)
	}
	if m, err = strconv.Atoi(parts[1]); err != nil {
		return 0, 0, 0, fmt.Errorf("scheduling: %q is not hh:mm:ss", s)
	}
	if sec, err = strconv.Atoi(parts[2]); err != nil {
		return 0, 0, 0, fmt.Errorf("scheduling: %q is not hh:mm:ss", s)
	}
	return h, m, sec, nil
}

// NextInterval returns the least instant midnight_today_UTC + k*interval
// strictly greater than now, where "today" is the UTC calendar day of now.
func NextInterval(now time.Time, interval time.Duration) time.Time {
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	elapsed := now.Sub(midnight)
	k := elapsed/interval + 1
	return midnight.Add(interval * k)
}

// NextDailyAt returns the next instant (in UTC) strictly after now whose
// wall-clock time in loc equals clock.
func NextDailyAt(now time.Time, loc *time.Location, clock time.Duration) time.Time {
	local := now.In(loc)
	midnight := time.Date(local.Year(), local.Month(), local.Day(), 0, 0, 0, 0, loc)
	candidate := midnight.Add(clock)
	if !candidate.After(local) {
		candidate = candidate.AddDate(0, 0, 1)
	}
	return candidate.UTC()
}
