package utils

import (
	"strings"
	"time"
)

// FormatDisplayDate renders a calendar date such as "March 4, 2025".
func FormatDisplayDate(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.Format("January 2, 2006")
}

// FormatDisplayDatePtr returns an empty string for nil dates.
func FormatDisplayDatePtr(t *time.Time) string {
	if t == nil {
		return ""
	}
	return FormatDisplayDate(*t)
}

// StringOr returns def when s is blank.
func StringOr(s, def string) string {
	if strings.TrimSpace(s) == "" {
		return def
	}
	return s
}
