package errors

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
)

// ErrorType represents different types of errors
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeDatabase   ErrorType = "database"
	ErrorTypeExternal   ErrorType = "external_api"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeTimeout    ErrorType = "timeout"
)

// Error codes shared by the reminder engine.
const (
	CodeInvalidInput           = "INVALID_INPUT"
	CodeInvalidTimeFormat      = "INVALID_TIME_FORMAT"
	CodeInvalidTimezone        = "INVALID_TIMEZONE"
	CodeDuplicateSchedule      = "DUPLICATE_SCHEDULE"
	CodeScheduleNotFound       = "SCHEDULE_NOT_FOUND"
	CodeUserNotFound           = "USER_NOT_FOUND"
	CodeAlreadyResolved        = "ALREADY_RESOLVED"
	CodePersistenceUnavailable = "PERSISTENCE_UNAVAILABLE"
	CodeTriggerRegistration    = "TRIGGER_REGISTRATION"
	CodeDelivery               = "DELIVERY_FAILED"
)

// AppError represents an application error with additional context
type AppError struct {
	Type     ErrorType
	Message  string
	Code     string
	Internal error
	Context  map[string]interface{}
	Source   string
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (internal: %v)", e.Type, e.Message, e.Internal)
	}
	return fmt.Sprintf("%s: %s", e.Type, e.Message)
}

// Unwrap returns the internal error
func (e *AppError) Unwrap() error {
	return e.Internal
}

// Is checks if the error matches the target
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Type == t.Type && e.Code == t.Code
	}
	return errors.Is(e.Internal, target)
}

// WithContext adds context to the error
func (e *AppError) WithContext(key string, value interface{}) *AppError {
	if e.Context == nil {
		e.Context = make(map[string]interface{})
	}
	e.Context[key] = value
	return e
}

// LogFields returns structured logging fields
func (e *AppError) LogFields() []interface{} {
	fields := []interface{}{
		"error_type", e.Type,
		"error_code", e.Code,
		"error_message", e.Message,
		"source", e.Source,
	}

	if e.Internal != nil {
		fields = append(fields, "internal_error", e.Internal.Error())
	}

	for k, v := range e.Context {
		fields = append(fields, k, v)
	}

	return fields
}

func newAt(skip int, err error, errorType ErrorType, code, message string) *AppError {
	_, file, line, _ := runtime.Caller(skip)
	return &AppError{
		Type:     errorType,
		Code:     code,
		Message:  message,
		Internal: err,
		Source:   fmt.Sprintf("%s:%d", file, line),
		Context:  make(map[string]interface{}),
	}
}

// HasCode reports whether err carries an AppError with the given code.
func HasCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// Handler provides error handling strategies
type Handler struct {
	logger *slog.Logger
}

// NewHandler creates a new error handler
func NewHandler(logger *slog.Logger) *Handler {
	return &Handler{logger: logger}
}

// Handle processes an error according to its type
func (h *Handler) Handle(ctx context.Context, err error) {
	if err == nil {
		return
	}

	var appErr *AppError
	if errors.As(err, &appErr) {
		h.handleAppError(ctx, appErr)
	} else {
		h.handleGenericError(ctx, err)
	}
}

func (h *Handler) handleAppError(ctx context.Context, err *AppError) {
	switch err.Type {
	case ErrorTypeValidation:
		h.logger.WarnContext(ctx, "Validation error", err.LogFields()...)
	case ErrorTypeConflict:
		h.logger.WarnContext(ctx, "Conflict", err.LogFields()...)
	case ErrorTypeNotFound:
		h.logger.WarnContext(ctx, "Not found", err.LogFields()...)
	case ErrorTypeDatabase, ErrorTypeExternal, ErrorTypeInternal, ErrorTypeTimeout:
		h.logger.ErrorContext(ctx, "Critical error", err.LogFields()...)
	default:
		h.logger.ErrorContext(ctx, "Unknown error type", err.LogFields()...)
	}
}

func (h *Handler) handleGenericError(ctx context.Context, err error) {
	h.logger.ErrorContext(ctx, "Unhandled error", "error", err.Error())
}

// Sentinels for errors.Is matching. Never mutate them; use the constructors below.
var (
	ErrInvalidInput           = &AppError{Type: ErrorTypeValidation, Code: CodeInvalidInput}
	ErrInvalidTimeFormat      = &AppError{Type: ErrorTypeValidation, Code: CodeInvalidTimeFormat}
	ErrInvalidTimezone        = &AppError{Type: ErrorTypeValidation, Code: CodeInvalidTimezone}
	ErrDuplicateSchedule      = &AppError{Type: ErrorTypeConflict, Code: CodeDuplicateSchedule}
	ErrScheduleNotFound       = &AppError{Type: ErrorTypeNotFound, Code: CodeScheduleNotFound}
	ErrUserNotFound           = &AppError{Type: ErrorTypeNotFound, Code: CodeUserNotFound}
	ErrAlreadyResolved        = &AppError{Type: ErrorTypeConflict, Code: CodeAlreadyResolved}
	ErrPersistenceUnavailable = &AppError{Type: ErrorTypeDatabase, Code: CodePersistenceUnavailable}
	ErrTriggerRegistration    = &AppError{Type: ErrorTypeInternal, Code: CodeTriggerRegistration}
)

// Convenience functions for common errors
func NewValidationError(message string) *AppError {
	return newAt(2, nil, ErrorTypeValidation, CodeInvalidInput, message)
}

func NewInvalidTimeFormatError(value string) *AppError {
	return newAt(2, nil, ErrorTypeValidation, CodeInvalidTimeFormat,
		fmt.Sprintf("time %q must look like HH:MM", value)).
		WithContext("value", value)
}

func NewInvalidTimezoneError(tz string, err error) *AppError {
	return newAt(2, err, ErrorTypeValidation, CodeInvalidTimezone,
		fmt.Sprintf("unknown timezone %q", tz)).
		WithContext("timezone", tz)
}

func NewDuplicateScheduleError(medicineName string) *AppError {
	return newAt(2, nil, ErrorTypeConflict, CodeDuplicateSchedule,
		fmt.Sprintf("medicine %q is already scheduled", medicineName)).
		WithContext("medicine", medicineName)
}

func NewScheduleNotFoundError(medicineName string) *AppError {
	return newAt(2, nil, ErrorTypeNotFound, CodeScheduleNotFound,
		fmt.Sprintf("medicine %q is not scheduled", medicineName)).
		WithContext("medicine", medicineName)
}

func NewUserNotFoundError(ownerID int64) *AppError {
	return newAt(2, nil, ErrorTypeNotFound, CodeUserNotFound, "user has no timezone yet").
		WithContext("owner_id", ownerID)
}

func NewAlreadyResolvedError(medicineName string) *AppError {
	return newAt(2, nil, ErrorTypeConflict, CodeAlreadyResolved,
		fmt.Sprintf("intake of %q is already recorded", medicineName)).
		WithContext("medicine", medicineName)
}

func NewDatabaseError(err error) *AppError {
	return newAt(2, err, ErrorTypeDatabase, CodePersistenceUnavailable, "Database operation failed")
}

func NewTriggerRegistrationError(err error) *AppError {
	return newAt(2, err, ErrorTypeInternal, CodeTriggerRegistration, "Failed to register trigger")
}

func NewDeliveryError(err error) *AppError {
	return newAt(2, err, ErrorTypeExternal, CodeDelivery, "Telegram API error").
		WithContext("api", "telegram")
}

func NewTimeoutError(operation string) *AppError {
	return newAt(2, nil, ErrorTypeTimeout, "TIMEOUT", fmt.Sprintf("%s operation timed out", operation)).
		WithContext("operation", operation)
}
