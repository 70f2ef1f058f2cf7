package handlers

import (
	"context"
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/pill-reminder/internal/bot/keyboards"
	"github.com/vladimiradmaev/pill-reminder/internal/bot/menus"
	"github.com/vladimiradmaev/pill-reminder/internal/bot/state"
	"github.com/vladimiradmaev/pill-reminder/internal/domain"
	apperrors "github.com/vladimiradmaev/pill-reminder/internal/errors"
)

// CallbackHandler handles callback query messages
type CallbackHandler struct {
	*base
}

// NewCallbackHandler creates a new callback handler
func NewCallbackHandler(api API, deps Dependencies, stateManager state.StateManager) *CallbackHandler {
	return &CallbackHandler{base: newBase(api, deps, stateManager)}
}

// Handle processes a callback query
func (h *CallbackHandler) Handle(ctx context.Context, query *tgbotapi.CallbackQuery) error {
	if status, medicine, ok := keyboards.ParseAck(query.Data); ok {
		return h.handleAck(ctx, query, status, medicine)
	}

	if err := h.answer(query.ID, ""); err != nil {
		return err
	}
	if query.Message == nil {
		return nil
	}
	chatID := query.Message.Chat.ID
	userID := query.From.ID

	if medicine, ok := keyboards.ParseDelete(query.Data); ok {
		return h.deleteSchedule(ctx, chatID, userID, medicine)
	}

	switch query.Data {
	case keyboards.MenuAdd:
		return h.startAdd(ctx, chatID, userID)
	case keyboards.MenuList:
		return h.showList(ctx, chatID, userID)
	case keyboards.MenuHistory:
		return h.showHistory(ctx, chatID, userID)
	case keyboards.MenuTimezone:
		return h.askTimezone(ctx, chatID, userID)
	case keyboards.MenuMain:
		h.resetState(ctx, userID)
		return menus.SendMainMenu(h.api, chatID)
	default:
		return h.send(chatID, "This button is no longer supported. Use /help.")
	}
}

// handleAck records a Done or Skip press and answers with a short toast
func (h *CallbackHandler) handleAck(ctx context.Context, query *tgbotapi.CallbackQuery, status domain.IntakeStatus, medicine string) error {
	err := h.deps.ReminderSvc.Acknowledge(ctx, query.From.ID, medicine, status)

	var toast string
	switch {
	case err == nil:
		toast = "Recorded: " + medicine + " taken"
		if status == domain.IntakeSkipped {
			toast = "Recorded: " + medicine + " skipped"
		}
	case errors.Is(err, apperrors.ErrAlreadyResolved):
		toast = "Already recorded"
	case errors.Is(err, apperrors.ErrPersistenceUnavailable):
		h.errs.Handle(ctx, err)
		toast = "Could not save, please press again"
	default:
		h.errs.Handle(ctx, err)
		toast = "Something went wrong"
	}
	return h.answer(query.ID, toast)
}

func (h *CallbackHandler) answer(queryID, text string) error {
	_, err := h.api.Request(tgbotapi.NewCallback(queryID, text))
	return err
}
