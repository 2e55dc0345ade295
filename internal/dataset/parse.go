package dataset

import (
	"strings"
	"time"
)

var timeLayouts = []string{
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02T15:04:05Z07:00",
	"2006-01-02T15:04:05.000Z07:00",
	"2006-01-02 15:04",
	"2006/01/02 15:04:05",
	"2006-01-02",
	"2006/01/02",
	"02.01.2006 15:04:05",
	"02.01.2006",
}

// ParseTime recognises the date and timestamp layouts seen in spreadsheets.
func ParseTime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, lay := range timeLayouts {
		if t, err := time.Parse(lay, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

// ParseBool accepts only the literals true and false, in any case.
func ParseBool(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "true":
		return true, true
	case "false":
		return false, true
	default:
		return false, false
	}
}

// ParseBoolLoose also accepts the usual spreadsheet spellings of flags.
func ParseBoolLoose(s string) (bool, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "1", "t", "true", "yes", "y", "是":
		return true, true
	case "0", "f", "false", "no", "n", "否":
		return false, true
	default:
		return false, false
	}
}
