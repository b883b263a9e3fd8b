package music

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"
)

// ParseDuration converts a renderer duration string into a time.Duration.
//
// Accepted forms are "123.4", "mm:ss" and "hh:mm:ss", each optionally followed
// by a fractional second after the final ".". Malformed input, or a value too
// large for a time.Duration, yields 0: a bad res@duration must not stop the
// track from being tracked.
func ParseDuration(s string) time.Duration {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	byDot := strings.Split(s, ".")
	if len(byDot) > 2 {
		return 0
	}

	whole := byDot[0]
	frac := ""
	if len(byDot) == 2 {
		frac = byDot[1]
	}

	fields := strings.Split(whole, ":")
	if len(fields) > 3 {
		return 0
	}

	// right-aligned: seconds, minutes, hours
	var total time.Duration
	unit := time.Second
	for i := len(fields) - 1; i >= 0; i-- {
		n, ok := parseField(fields[i])
		if !ok || n > math.MaxInt64/int64(unit) {
			return 0
		}
		add := time.Duration(n) * unit
		if total > math.MaxInt64-add {
			return 0
		}
		total += add
		unit *= 60
	}

	if frac != "" {
		ns, ok := parseFraction(frac)
		if !ok || total > math.MaxInt64-ns {
			return 0
		}
		total += ns
	}

	return total
}

// parseFraction reads the digits after the decimal point as a fraction of a
// second, keeping nanosecond precision.
func parseFraction(s string) (time.Duration, bool) {
	for _, r := range s {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	if len(s) > 9 {
		s = s[:9]
	}
	s += strings.Repeat("0", 9-len(s))
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return 0, false
	}
	return time.Duration(n), true
}

// parseField parses one non-negative colon-separated field. An empty field
// counts as zero so that ".5" and ":30" are tolerated.
func parseField(s string) (int64, bool) {
	if s == "" {
		return 0, true
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil || n < 0 {
		return 0, false
	}
	return n, true
}

// FormatDuration renders d in the DIDL-Lite res@duration form h:mm:ss.fff.
func FormatDuration(d time.Duration) string {
	if d < 0 {
		d = 0
	}
	ms := d.Milliseconds()
	h := ms / 3_600_000
	ms -= h * 3_600_000
	m := ms / 60_000
	ms -= m * 60_000
	sec := ms / 1000
	ms -= sec * 1000
	return fmt.Sprintf("%d:%02d:%02d.%03d", h, m, sec, ms)
}
