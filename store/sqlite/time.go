package sqlitestore

import "time"

// timeLayout is RFC3339 with nanosecond precision, UTC, matching the
// teacher's zombiezen store convention for TEXT timestamp columns.
const timeLayout = time.RFC3339Nano

func timeFormat(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(timeLayout)
}

func timeParse(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}
