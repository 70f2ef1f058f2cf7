package handlers

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/pill-reminder/internal/bot/state"
	"github.com/vladimiradmaev/pill-reminder/internal/domain"
	"github.com/vladimiradmaev/pill-reminder/internal/services"
	"github.com/vladimiradmaev/pill-reminder/internal/timezone"
	"github.com/vladimiradmaev/pill-reminder/internal/utils"
)

// TextHandler drives the timezone and add-medicine dialogs
type TextHandler struct {
	*base
}

// NewTextHandler creates a new text handler
func NewTextHandler(api API, deps Dependencies, stateManager state.StateManager) *TextHandler {
	return &TextHandler{base: newBase(api, deps, stateManager)}
}

// Handle processes a text message
func (h *TextHandler) Handle(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	userID := message.From.ID
	text := strings.TrimSpace(message.Text)

	switch h.stateManager.GetUserState(ctx, userID) {
	case state.WaitingForTimezone:
		return h.applyTimezone(ctx, chatID, userID, text)
	case state.WaitingForMedicineName:
		return h.handleMedicineName(ctx, chatID, userID, text)
	case state.WaitingForDoseCount:
		return h.handleDoseCount(ctx, chatID, userID, text)
	case state.WaitingForTimes:
		return h.handleTimes(ctx, chatID, userID, text)
	default:
		return h.send(chatID, "Please use the menu or /help.")
	}
}

func (h *TextHandler) handleMedicineName(ctx context.Context, chatID, userID int64, name string) error {
	if err := services.ValidateMedicineName(name); err != nil {
		return h.replyError(ctx, chatID, err)
	}
	if err := h.stateManager.SetTempData(ctx, userID, state.KeyMedicine, name); err != nil {
		return h.replyError(ctx, chatID, err)
	}
	if err := h.setState(ctx, userID, state.WaitingForDoseCount); err != nil {
		return h.replyError(ctx, chatID, err)
	}
	return h.send(chatID, fmt.Sprintf("How many times a day do you take %s? Send a number from 1 to %d.", name, domain.MaxDailyIntakes))
}

func (h *TextHandler) handleDoseCount(ctx context.Context, chatID, userID int64, text string) error {
	count, err := strconv.Atoi(text)
	if err != nil || count < 1 || count > domain.MaxDailyIntakes {
		return h.send(chatID, fmt.Sprintf("Please send a number from 1 to %d.", domain.MaxDailyIntakes))
	}
	if err := h.stateManager.SetTempData(ctx, userID, state.KeyCount, strconv.Itoa(count)); err != nil {
		return h.replyError(ctx, chatID, err)
	}
	if err := h.setState(ctx, userID, state.WaitingForTimes); err != nil {
		return h.replyError(ctx, chatID, err)
	}
	if count == 1 {
		return h.send(chatID, "At what time? Send it as HH:MM in your local time, e.g. 09:00.")
	}
	return h.send(chatID, fmt.Sprintf("Send %d times as HH:MM in your local time, e.g. 08:00 20:00. One message or several.", count))
}

func (h *TextHandler) handleTimes(ctx context.Context, chatID, userID int64, text string) error {
	medicine, ok := h.stateManager.GetTempData(ctx, userID, state.KeyMedicine)
	rawCount, ok2 := h.stateManager.GetTempData(ctx, userID, state.KeyCount)
	count, err := strconv.Atoi(rawCount)
	if !ok || !ok2 || err != nil {
		h.resetState(ctx, userID)
		return h.send(chatID, "This dialog has expired. Start again with /add.")
	}

	var times []string
	if prev, ok := h.stateManager.GetTempData(ctx, userID, state.KeyTimes); ok && prev != "" {
		times = strings.Split(prev, ",")
	}

	input := utils.SplitTimes(text)
	if len(input) == 0 {
		return h.send(chatID, "Please send a time as HH:MM.")
	}
	for _, lt := range input {
		if _, _, err := timezone.ParseLocalTime(lt); err != nil {
			return h.replyError(ctx, chatID, err)
		}
	}
	times = append(times, input...)
	if len(times) > count {
		return h.send(chatID, fmt.Sprintf("That is more than %d times. Send the remaining %d.", count, count-len(times)+len(input)))
	}

	if len(times) < count {
		if err := h.stateManager.SetTempData(ctx, userID, state.KeyTimes, strings.Join(times, ",")); err != nil {
			return h.replyError(ctx, chatID, err)
		}
		return h.send(chatID, fmt.Sprintf("Got %d of %d. Send the next time.", len(times), count))
	}

	h.resetState(ctx, userID)
	entry, err := h.deps.ReminderSvc.CreateSchedule(ctx, userID, chatID, medicine, times)
	if err != nil {
		return h.replyError(ctx, chatID, err)
	}
	return h.send(chatID, fmt.Sprintf("✅ %s scheduled daily at %s (%s).",
		entry.MedicineName, strings.Join(entry.LocalTimes, ", "), entry.Timezone))
}
