package utils

import (
	"fmt"
	"time"
)

// NowUTC returns the current time in UTC
func NowUTC() time.Time {
	return time.Now().UTC()
}

// FormatDuration renders a duration in minutes the way the player labels
// modules and lessons: "45min", "1h", "2h 5min".
func FormatDuration(minutes int) string {
	if minutes <= 0 {
		return "0min"
	}

	h, m := minutes/60, minutes%60
	switch {
	case h == 0:
		return fmt.Sprintf("%dmin", m)
	case m == 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dh %dmin", h, m)
	}
}
