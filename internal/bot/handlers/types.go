package handlers

import (
	"context"
	"errors"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/pill-reminder/internal/bot/menus"
	"github.com/vladimiradmaev/pill-reminder/internal/bot/state"
	apperrors "github.com/vladimiradmaev/pill-reminder/internal/errors"
	"github.com/vladimiradmaev/pill-reminder/internal/interfaces"
)

// API is the part of the Telegram client handlers use
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Dependencies holds all service dependencies for handlers
type Dependencies struct {
	ReminderSvc interfaces.ReminderServiceInterface
	Logger      *slog.Logger
}

// base carries what every handler needs plus the flows shared by commands,
// menu buttons and text input.
type base struct {
	api          API
	deps         Dependencies
	stateManager state.StateManager
	errs         *apperrors.Handler
}

func newBase(api API, deps Dependencies, stateManager state.StateManager) *base {
	return &base{
		api:          api,
		deps:         deps,
		stateManager: stateManager,
		errs:         apperrors.NewHandler(deps.Logger),
	}
}

func (b *base) send(chatID int64, text string) error {
	_, err := b.api.Send(tgbotapi.NewMessage(chatID, text))
	return err
}

// replyError logs err and tells the user what went wrong in plain words.
func (b *base) replyError(ctx context.Context, chatID int64, err error) error {
	b.errs.Handle(ctx, err)
	return b.send(chatID, userMessage(err))
}

func userMessage(err error) string {
	var appErr *apperrors.AppError
	if !errors.As(err, &appErr) {
		return "Something went wrong, please try again."
	}
	switch appErr.Type {
	case apperrors.ErrorTypeValidation, apperrors.ErrorTypeConflict, apperrors.ErrorTypeNotFound:
		return "⚠️ " + capitalize(appErr.Message)
	case apperrors.ErrorTypeDatabase, apperrors.ErrorTypeTimeout:
		return "Storage is unavailable right now, please try again later."
	default:
		return "Something went wrong, please try again."
	}
}

func capitalize(s string) string {
	if s == "" || s[0] < 'a' || s[0] > 'z' {
		return s
	}
	return string(s[0]-'a'+'A') + s[1:]
}

func (b *base) resetState(ctx context.Context, userID int64) {
	if err := b.stateManager.Reset(ctx, userID); err != nil {
		b.deps.Logger.Warn("Failed to reset dialog state", "user_id", userID, "error", err)
	}
}

func (b *base) setState(ctx context.Context, userID int64, s string) error {
	if err := b.stateManager.SetUserState(ctx, userID, s); err != nil {
		return apperrors.NewDatabaseError(err).WithContext("store", "dialog_state")
	}
	return nil
}

func (b *base) startAdd(ctx context.Context, chatID, userID int64) error {
	b.resetState(ctx, userID)
	if err := b.setState(ctx, userID, state.WaitingForMedicineName); err != nil {
		return b.replyError(ctx, chatID, err)
	}
	return b.send(chatID, "What medicine should I remind you about? Send its name.")
}

func (b *base) askTimezone(ctx context.Context, chatID, userID int64) error {
	if err := b.setState(ctx, userID, state.WaitingForTimezone); err != nil {
		return b.replyError(ctx, chatID, err)
	}
	return b.send(chatID, "Send your timezone as an IANA name, for example Europe/Moscow or America/New_York.")
}

func (b *base) applyTimezone(ctx context.Context, chatID, userID int64, tz string) error {
	if err := b.deps.ReminderSvc.SetTimezone(ctx, userID, tz); err != nil {
		return b.replyError(ctx, chatID, err)
	}
	b.resetState(ctx, userID)
	return b.send(chatID, "🌍 Timezone set to "+tz+". New reminders will follow your local time.")
}

func (b *base) showList(ctx context.Context, chatID, userID int64) error {
	schedules, err := b.deps.ReminderSvc.ListSchedules(ctx, userID)
	if err != nil {
		return b.replyError(ctx, chatID, err)
	}
	return menus.SendScheduleList(b.api, chatID, schedules)
}

func (b *base) showHistory(ctx context.Context, chatID, userID int64) error {
	records, err := b.deps.ReminderSvc.IntakeHistory(ctx, userID, 0)
	if err != nil {
		return b.replyError(ctx, chatID, err)
	}
	tz, err := b.deps.ReminderSvc.Timezone(ctx, userID)
	if err != nil && !errors.Is(err, apperrors.ErrUserNotFound) {
		return b.replyError(ctx, chatID, err)
	}
	return menus.SendHistory(b.api, chatID, records, tz)
}

func (b *base) deleteSchedule(ctx context.Context, chatID, userID int64, medicine string) error {
	if err := b.deps.ReminderSvc.DeleteSchedule(ctx, medicine, userID); err != nil {
		return b.replyError(ctx, chatID, err)
	}
	return b.send(chatID, "🗑️ "+medicine+" deleted, no more reminders for it.")
}
