package bot

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/pill-reminder/internal/bot/handlers"
	"github.com/vladimiradmaev/pill-reminder/internal/bot/state"
	"github.com/vladimiradmaev/pill-reminder/internal/domain"
)

// API is the part of *tgbotapi.BotAPI the bot uses
type API interface {
	handlers.API
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

// NewAPI authorizes the bot token against Telegram
func NewAPI(token string, debug bool) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	api.Debug = debug
	return api, nil
}

// NewSenderAPI builds a client for outgoing reminders whose requests give up
// after timeout. Long polling keeps the client from NewAPI.
func NewSenderAPI(token string, timeout time.Duration) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("failed to create sender: %w", err)
	}
	return api, nil
}

var _ domain.BotService = (*Bot)(nil)

type Bot struct {
	api     API
	handler *handlers.UpdateHandler
	logger  *slog.Logger
}

func NewBot(api API, deps handlers.Dependencies, stateManager state.StateManager) *Bot {
	return &Bot{
		api:     api,
		handler: handlers.NewUpdateHandler(api, deps, stateManager),
		logger:  deps.Logger,
	}
}

var commands = []tgbotapi.BotCommand{
	{Command: "start", Description: "Main menu"},
	{Command: "timezone", Description: "Set your timezone"},
	{Command: "add", Description: "Add a medicine"},
	{Command: "list", Description: "Your medicines"},
	{Command: "delete", Description: "Delete a medicine"},
	{Command: "history", Description: "Latest intakes"},
	{Command: "cancel", Description: "Abort the current dialog"},
	{Command: "help", Description: "Help"},
}

// Start long-polls Telegram until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if _, err := b.api.Request(tgbotapi.NewSetMyCommands(commands...)); err != nil {
		b.logger.Warn("Failed to register bot commands", "error", err)
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)
	b.logger.Info("Bot is now listening for updates")

	for {
		select {
		case <-ctx.Done():
			b.logger.Info("Bot is shutting down")
			b.api.StopReceivingUpdates()
			return nil
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			b.handle(ctx, update)
		}
	}
}

func (b *Bot) handle(ctx context.Context, update tgbotapi.Update) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Panic while handling update", "update_id", update.UpdateID, "panic", r)
		}
	}()

	if err := b.handler.Handle(ctx, update); err != nil {
		b.logger.Error("Error handling update", "update_id", update.UpdateID, "error", err)
	}
}
