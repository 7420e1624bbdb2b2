package utils

import "time"

const utcDateLayout = "Mon, 02 Jan 2006 15:04:05 UTC"

func Now() time.Time {
	return time.Now().UTC()
}

// FormatUTCDate renders t in RFC 1123 form with an explicit UTC zone name
func FormatUTCDate(t time.Time) string {
	return t.UTC().Format(utcDateLayout)
}

// UnixMilli returns the epoch milliseconds of t, or 0 for nil
func UnixMilli(t *time.Time) int64 {
	if t == nil {
		return 0
	}
	return t.UnixMilli()
}
