package handlers

import (
	"context"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/pill-reminder/internal/bot/menus"
	"github.com/vladimiradmaev/pill-reminder/internal/bot/state"
)

const helpText = `Available commands:
/start - show the main menu
/timezone <name> - set your timezone, e.g. /timezone Europe/Moscow
/add - add a medicine
/list - list your medicines
/delete <name> - delete a medicine
/history - latest intakes
/cancel - abort the current dialog
/help - show this message

When a reminder arrives press ✅ Done or ⏭ Skip. Until you do, I repeat it every few minutes.`

// CommandHandler handles bot commands
type CommandHandler struct {
	*base
}

// NewCommandHandler creates a new command handler
func NewCommandHandler(api API, deps Dependencies, stateManager state.StateManager) *CommandHandler {
	return &CommandHandler{base: newBase(api, deps, stateManager)}
}

// Handle processes a command message
func (h *CommandHandler) Handle(ctx context.Context, message *tgbotapi.Message) error {
	chatID := message.Chat.ID
	userID := message.From.ID
	args := strings.TrimSpace(message.CommandArguments())

	h.deps.Logger.Info("Handling command", "command", message.Command(), "user_id", userID)

	switch message.Command() {
	case "start":
		h.resetState(ctx, userID)
		return menus.SendMainMenu(h.api, chatID)
	case "help":
		return h.send(chatID, helpText)
	case "timezone":
		if args == "" {
			return h.askTimezone(ctx, chatID, userID)
		}
		return h.applyTimezone(ctx, chatID, userID, args)
	case "add":
		return h.startAdd(ctx, chatID, userID)
	case "list":
		return h.showList(ctx, chatID, userID)
	case "delete":
		if args == "" {
			return h.showList(ctx, chatID, userID)
		}
		return h.deleteSchedule(ctx, chatID, userID, args)
	case "history":
		return h.showHistory(ctx, chatID, userID)
	case "cancel":
		h.resetState(ctx, userID)
		return h.send(chatID, "Cancelled.")
	default:
		return h.send(chatID, "Unknown command. Use /help to see what I can do.")
	}
}
