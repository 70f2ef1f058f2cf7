package timezone

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/vladimiradmaev/pill-reminder/internal/errors"
)

func TestResolveNextLocalFire(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name       string
		localTime  string
		tz         string
		wantHour   int
		wantMinute int
		wantRef    time.Time
	}{
		{
			name:      "moscow morning",
			localTime: "09:00",
			tz:        "Europe/Moscow",
			wantHour:  6,
			wantRef:   time.Date(2024, 3, 2, 6, 0, 0, 0, time.UTC),
		},
		{
			name:       "utc later today",
			localTime:  "18:30",
			tz:         "UTC",
			wantHour:   18,
			wantMinute: 30,
			wantRef:    time.Date(2024, 3, 1, 18, 30, 0, 0, time.UTC),
		},
		{
			name:       "wraps to previous utc day",
			localTime:  "01:15",
			tz:         "Asia/Tokyo",
			wantHour:   16,
			wantMinute: 15,
			wantRef:    time.Date(2024, 3, 1, 16, 15, 0, 0, time.UTC),
		},
		{
			name:       "half hour offset",
			localTime:  "23:45",
			tz:         "Asia/Kolkata",
			wantHour:   18,
			wantMinute: 15,
			wantRef:    time.Date(2024, 3, 1, 18, 15, 0, 0, time.UTC),
		},
		{
			name:      "west of utc",
			localTime: "20:00",
			tz:        "America/New_York",
			wantHour:  1,
			wantRef:   time.Date(2024, 3, 2, 1, 0, 0, 0, time.UTC),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			fire, err := ResolveNextLocalFire(tt.localTime, tt.tz, now)
			require.NoError(t, err)
			assert.Equal(t, tt.wantHour, fire.HourUTC)
			assert.Equal(t, tt.wantMinute, fire.MinuteUTC)
			assert.Equal(t, tt.wantRef, fire.Reference)
			assert.True(t, fire.Reference.After(now))
		})
	}
}

func TestResolveNextLocalFire_SameMinuteRollsOver(t *testing.T) {
	now := time.Date(2024, 3, 1, 6, 0, 0, 0, time.UTC)

	fire, err := ResolveNextLocalFire("09:00", "Europe/Moscow", now)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 3, 2, 6, 0, 0, 0, time.UTC), fire.Reference)
}

func TestResolveNextLocalFire_OffsetTakenAtConversion(t *testing.T) {
	winter := time.Date(2024, 1, 15, 12, 0, 0, 0, time.UTC)
	summer := time.Date(2024, 7, 15, 12, 0, 0, 0, time.UTC)

	w, err := ResolveNextLocalFire("08:00", "Europe/Berlin", winter)
	require.NoError(t, err)
	s, err := ResolveNextLocalFire("08:00", "Europe/Berlin", summer)
	require.NoError(t, err)

	assert.Equal(t, 7, w.HourUTC)
	assert.Equal(t, time.Hour, w.Offset)
	assert.Equal(t, 6, s.HourUTC)
	assert.Equal(t, 2*time.Hour, s.Offset)
}

func TestResolveNextLocalFire_InvalidTime(t *testing.T) {
	now := time.Now()
	for _, value := range []string{"", "9:00", "24:00", "12:60", "12-30", "aa:bb", "12:300", " 12:30"} {
		_, err := ResolveNextLocalFire(value, "UTC", now)
		assert.Truef(t, errors.Is(err, apperrors.ErrInvalidTimeFormat), "value %q", value)
	}
}

func TestResolveNextLocalFire_InvalidTimezone(t *testing.T) {
	for _, tz := range []string{"", "Local", "Mars/Olympus"} {
		_, err := ResolveNextLocalFire("09:00", tz, time.Now())
		assert.Truef(t, errors.Is(err, apperrors.ErrInvalidTimezone), "tz %q", tz)
	}
}

func TestToLocal_RoundTrip(t *testing.T) {
	now := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	zones := []string{"UTC", "Europe/Moscow", "Asia/Tokyo", "Asia/Kolkata", "America/Los_Angeles", "Pacific/Chatham"}

	for _, tz := range zones {
		for _, local := range []string{"00:00", "00:30", "07:45", "12:00", "23:59"} {
			fire, err := ResolveNextLocalFire(local, tz, now)
			require.NoError(t, err)
			assert.Equalf(t, local, ToLocal(fire.HourUTC, fire.MinuteUTC, fire.Offset), "%s in %s", local, tz)
		}
	}
}

func TestLoadLocation_Caches(t *testing.T) {
	a, err := LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	b, err := LoadLocation("Europe/Moscow")
	require.NoError(t, err)
	assert.Same(t, a, b)
}
