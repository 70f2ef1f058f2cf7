// Package timezone turns a user's local wall-clock time into the UTC hour and
// minute a daily trigger should fire at.
//
// The offset is taken at the moment of conversion. Reminders created before a
// daylight-saving switch keep firing at the old UTC time afterwards.
package timezone

import (
	"regexp"
	"strconv"
	"sync"
	"time"

	apperrors "github.com/vladimiradmaev/pill-reminder/internal/errors"
)

const minutesPerDay = 24 * 60

var localTimePattern = regexp.MustCompile(`^\d\d:\d\d$`)

var locations sync.Map // string -> *time.Location

// Fire is a local time resolved against a zone.
type Fire struct {
	HourUTC   int
	MinuteUTC int
	// Reference is the first UTC instant after the conversion time at HourUTC:MinuteUTC.
	Reference time.Time
	// Offset is the zone's UTC offset that was applied.
	Offset time.Duration
}

// LoadLocation resolves an IANA identifier, caching hits.
func LoadLocation(tz string) (*time.Location, error) {
	if loc, ok := locations.Load(tz); ok {
		return loc.(*time.Location), nil
	}
	if tz == "" || tz == "Local" {
		return nil, apperrors.NewInvalidTimezoneError(tz, nil)
	}
	loc, err := time.LoadLocation(tz)
	if err != nil {
		return nil, apperrors.NewInvalidTimezoneError(tz, err)
	}
	locations.Store(tz, loc)
	return loc, nil
}

// ParseLocalTime validates "HH:MM" and returns the hour and minute.
func ParseLocalTime(localTime string) (hour, minute int, err error) {
	if !localTimePattern.MatchString(localTime) {
		return 0, 0, apperrors.NewInvalidTimeFormatError(localTime)
	}
	hour, _ = strconv.Atoi(localTime[:2])
	minute, _ = strconv.Atoi(localTime[3:])
	if hour > 23 || minute > 59 {
		return 0, 0, apperrors.NewInvalidTimeFormatError(localTime)
	}
	return hour, minute, nil
}

// ResolveNextLocalFire converts localTime in zone tz to a UTC hour/minute using
// the zone's offset at now.
func ResolveNextLocalFire(localTime, tz string, now time.Time) (Fire, error) {
	hour, minute, err := ParseLocalTime(localTime)
	if err != nil {
		return Fire{}, err
	}
	loc, err := LoadLocation(tz)
	if err != nil {
		return Fire{}, err
	}

	_, offsetSec := now.In(loc).Zone()
	offset := time.Duration(offsetSec) * time.Second

	utcMinutes := mod(hour*60+minute-offsetSec/60, minutesPerDay)
	f := Fire{
		HourUTC:   utcMinutes / 60,
		MinuteUTC: utcMinutes % 60,
		Offset:    offset,
	}
	f.Reference = NextOccurrence(f.HourUTC, f.MinuteUTC, now)
	return f, nil
}

// NextOccurrence returns the first UTC instant strictly after now at hour:minute.
func NextOccurrence(hourUTC, minuteUTC int, now time.Time) time.Time {
	now = now.UTC()
	next := time.Date(now.Year(), now.Month(), now.Day(), hourUTC, minuteUTC, 0, 0, time.UTC)
	if !next.After(now) {
		next = next.AddDate(0, 0, 1)
	}
	return next
}

// ToLocal applies offset to a UTC hour/minute and formats the result as "HH:MM".
func ToLocal(hourUTC, minuteUTC int, offset time.Duration) string {
	m := mod(hourUTC*60+minuteUTC+int(offset/time.Minute), minutesPerDay)
	return time.Date(0, 1, 1, m/60, m%60, 0, 0, time.UTC).Format("15:04")
}

func mod(a, n int) int {
	return ((a % n) + n) % n
}
