package errors

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_IsMatchesTypeAndCode(t *testing.T) {
	err := NewAlreadyResolvedError("Aspirin")

	assert.True(t, errors.Is(err, ErrAlreadyResolved))
	assert.False(t, errors.Is(err, ErrDuplicateSchedule))
	assert.False(t, errors.Is(err, ErrPersistenceUnavailable))
}

func TestAppError_IsThroughWrapping(t *testing.T) {
	cause := errors.New("connection refused")
	err := fmt.Errorf("append intake: %w", NewDatabaseError(cause))

	assert.True(t, errors.Is(err, ErrPersistenceUnavailable))
	assert.True(t, errors.Is(err, cause))
	assert.True(t, HasCode(err, CodePersistenceUnavailable))
	assert.False(t, HasCode(cause, CodePersistenceUnavailable))
}

func TestAppError_ErrorString(t *testing.T) {
	err := NewInvalidTimeFormatError("9:00")
	assert.Equal(t, `validation: time "9:00" must look like HH:MM`, err.Error())

	wrapped := NewInvalidTimezoneError("Mars/Base", errors.New("unknown time zone Mars/Base"))
	assert.Contains(t, wrapped.Error(), "internal: unknown time zone Mars/Base")
}

func TestAppError_SourcePointsAtCaller(t *testing.T) {
	err := NewValidationError("bad")
	assert.True(t, strings.Contains(err.Source, "errors_test.go"), err.Source)
}

func TestAppError_LogFields(t *testing.T) {
	err := NewDuplicateScheduleError("Aspirin")
	fields := err.LogFields()

	require.Equal(t, 0, len(fields)%2)
	assert.Contains(t, fields, "error_code")
	assert.Contains(t, fields, CodeDuplicateSchedule)
	assert.Contains(t, fields, "medicine")
}

func TestHandler_LevelsByType(t *testing.T) {
	var buf bytes.Buffer
	h := NewHandler(slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))
	ctx := context.Background()

	h.Handle(ctx, NewAlreadyResolvedError("Aspirin"))
	assert.Contains(t, buf.String(), "level=WARN")

	buf.Reset()
	h.Handle(ctx, NewDatabaseError(errors.New("down")))
	assert.Contains(t, buf.String(), "level=ERROR")

	buf.Reset()
	h.Handle(ctx, errors.New("plain"))
	assert.Contains(t, buf.String(), "Unhandled error")

	buf.Reset()
	h.Handle(ctx, nil)
	assert.Empty(t, buf.String())
}
