package utils

import (
	"strings"
	"time"
	"unicode"

	"github.com/vladimiradmaev/pill-reminder/internal/timezone"
)

// IntakeTimeLayout is how intake timestamps are shown to users.
const IntakeTimeLayout = "15:04 2006-01-02"

// FormatLocal renders t in the IANA zone tz, falling back to UTC when tz is unknown.
func FormatLocal(t time.Time, tz string) string {
	loc, err := timezone.LoadLocation(tz)
	if err != nil {
		loc = time.UTC
	}
	return t.In(loc).Format(IntakeTimeLayout)
}

// SplitTimes splits user input like "08:00, 14:00 20:00" into separate values.
func SplitTimes(text string) []string {
	return strings.FieldsFunc(text, func(r rune) bool {
		return r == ',' || r == ';' || unicode.IsSpace(r)
	})
}
