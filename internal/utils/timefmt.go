package utils

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

var isoDurationPattern = regexp.MustCompile(`^P(?:(\d+)D)?(?:T(?:(\d+)H)?(?:(\d+)M)?(?:(\d+)S)?)?$`)

// FormatClock shortens a clock time such as "14:05:00" to "14:05"
func FormatClock(clock string) string {
	clock = strings.TrimSpace(clock)
	if len(clock) > 5 && clock[2] == ':' {
		return clock[:5]
	}
	return clock
}

// parseClock returns minutes since midnight for "HH:MM" or "HH:MM:SS"
func parseClock(clock string) (int, bool) {
	parts := strings.Split(FormatClock(clock), ":")
	if len(parts) != 2 {
		return 0, false
	}
	h, err := strconv.Atoi(parts[0])
	if err != nil || h < 0 || h > 23 {
		return 0, false
	}
	m, err := strconv.Atoi(parts[1])
	if err != nil || m < 0 || m > 59 {
		return 0, false
	}
	return h*60 + m, true
}

// DelayMinutes returns how many minutes realtime is behind scheduled.
// Negative values mean early. A missing or unparseable realtime yields 0.
// Differences beyond twelve hours are read across midnight, so
// "23:58" -> "00:03" is a delay of 5.
func DelayMinutes(scheduled, realtime string) int {
	if realtime == "" {
		return 0
	}
	s, ok := parseClock(scheduled)
	if !ok {
		return 0
	}
	r, ok := parseClock(realtime)
	if !ok {
		return 0
	}

	diff := r - s
	switch {
	case diff > 12*60:
		diff -= 24 * 60
	case diff < -12*60:
		diff += 24 * 60
	}
	return diff
}

// ParseISODuration parses the subset of ISO-8601 durations journey planners
// emit: days, hours, minutes and seconds, e.g. "PT1H2M" or "P1DT3H"
func ParseISODuration(s string) (time.Duration, bool) {
	m := isoDurationPattern.FindStringSubmatch(strings.ToUpper(strings.TrimSpace(s)))
	if m == nil || s == "P" || strings.HasSuffix(strings.ToUpper(s), "T") {
		return 0, false
	}
	units := []time.Duration{24 * time.Hour, time.Hour, time.Minute, time.Second}
	var d time.Duration
	for i, unit := range units {
		if m[i+1] == "" {
			continue
		}
		n, err := strconv.Atoi(m[i+1])
		if err != nil {
			return 0, false
		}
		d += time.Duration(n) * unit
	}
	return d, true
}

// ISODuration renders d, truncated to whole minutes, as "PT1H2M"
func ISODuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	total := int(d / time.Minute)
	h, m := total/60, total%60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("PT%dH%dM", h, m)
	case h > 0:
		return fmt.Sprintf("PT%dH", h)
	default:
		return fmt.Sprintf("PT%dM", m)
	}
}

// FormatISODuration renders an ISO-8601 duration for display:
// "PT1H2M" -> "1h 2min", "PT42M" -> "42min". Unparseable input is
// returned unchanged.
func FormatISODuration(s string) string {
	d, ok := ParseISODuration(s)
	if !ok {
		return s
	}
	total := int(d / time.Minute)
	h, m := total/60, total%60
	switch {
	case h > 0 && m > 0:
		return fmt.Sprintf("%dh %dmin", h, m)
	case h > 0:
		return fmt.Sprintf("%dh", h)
	default:
		return fmt.Sprintf("%dmin", m)
	}
}
