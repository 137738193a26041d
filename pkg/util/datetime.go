package util

import (
	"strings"
	"time"
)

const (
	DateTimeFormat = "2006-01-02 15:04:05"
	DateFormat     = "2006-01-02"
)

func FormatDateTime(t time.Time) string {
	return t.Format(DateTimeFormat)
}

func ParseDateTime(s string) (time.Time, error) {
	return time.Parse(DateTimeFormat, s)
}

// expireTimeFormats lists the layouts the voucher endpoints have been seen
// returning, including the localized ones.
var expireTimeFormats = []string{
	DateTimeFormat,
	"2006/01/02 15:04:05",
	DateFormat,
	"2006/01/02",
	"2006年01月02日 15:04",
	"2006年01月02日",
}

// ParseExpireTime parses a voucher expiry string into a time. The zero time
// and false are returned when no known layout matches.
func ParseExpireTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	for _, layout := range expireTimeFormats {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
