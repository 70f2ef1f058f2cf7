package bot

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/time/rate"

	"github.com/vladimiradmaev/pill-reminder/internal/bot/handlers"
	"github.com/vladimiradmaev/pill-reminder/internal/bot/keyboards"
	"github.com/vladimiradmaev/pill-reminder/internal/config"
	"github.com/vladimiradmaev/pill-reminder/internal/domain"
	apperrors "github.com/vladimiradmaev/pill-reminder/internal/errors"
)

var _ domain.Notifier = (*Notifier)(nil)

// Notifier delivers reminders over Telegram. Sends share one limiter so
// bursts of due reminders stay under the Bot API's global rate limit.
type Notifier struct {
	api     handlers.API
	limiter *rate.Limiter
	logger  *slog.Logger
}

func NewNotifier(api handlers.API, cfg config.SenderConfig, logger *slog.Logger) *Notifier {
	perSec := cfg.RatePerSec
	if perSec < 1 {
		perSec = 1
	}
	return &Notifier{
		api:     api,
		limiter: rate.NewLimiter(rate.Limit(perSec), perSec),
		logger:  logger,
	}
}

// SendReminder posts "Time to take <medicine>!" with Done/Skip buttons.
func (n *Notifier) SendReminder(ctx context.Context, chatID int64, medicineName string) (domain.DeliveryHandle, error) {
	if err := n.limiter.Wait(ctx); err != nil {
		return domain.DeliveryHandle{}, apperrors.NewTimeoutError("send_reminder").WithContext("chat_id", chatID)
	}

	msg := tgbotapi.NewMessage(chatID, fmt.Sprintf("⏰ Time to take %s!", medicineName))
	msg.ReplyMarkup = keyboards.Reminder(medicineName)

	var sent tgbotapi.Message
	err := n.call(ctx, func() (err error) {
		sent, err = n.api.Send(msg)
		return err
	})
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return domain.DeliveryHandle{}, apperrors.NewTimeoutError("send_reminder").WithContext("chat_id", chatID)
	}
	if err != nil {
		return domain.DeliveryHandle{}, apperrors.NewDeliveryError(err).
			WithContext("chat_id", chatID).
			WithContext("medicine", medicineName)
	}
	return domain.DeliveryHandle{ChatID: chatID, MessageID: sent.MessageID}, nil
}

// ClearReminder replaces a delivered reminder with the recorded answer. Editing
// the text without a markup drops the buttons.
func (n *Notifier) ClearReminder(ctx context.Context, handle domain.DeliveryHandle, medicineName string, status domain.IntakeStatus) error {
	if err := n.limiter.Wait(ctx); err != nil {
		return apperrors.NewTimeoutError("clear_reminder").WithContext("chat_id", handle.ChatID)
	}

	text := fmt.Sprintf("✅ %s taken", medicineName)
	if status == domain.IntakeSkipped {
		text = fmt.Sprintf("⏭ %s skipped", medicineName)
	}

	edit := tgbotapi.NewEditMessageText(handle.ChatID, handle.MessageID, text)
	err := n.call(ctx, func() error {
		_, err := n.api.Request(edit)
		return err
	})
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return apperrors.NewTimeoutError("clear_reminder").WithContext("chat_id", handle.ChatID)
	}
	if err != nil {
		return apperrors.NewDeliveryError(err).
			WithContext("chat_id", handle.ChatID).
			WithContext("message_id", handle.MessageID)
	}
	return nil
}

// call returns when fn does or ctx is done, whichever comes first. The Bot API
// client takes no context, so an abandoned fn finishes in the background and
// is bounded by the client's own HTTP timeout.
func (n *Notifier) call(ctx context.Context, fn func() error) error {
	done := make(chan error, 1)
	go func() { done <- fn() }()
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		n.logger.Warn("Telegram call abandoned", "error", ctx.Err())
		return ctx.Err()
	}
}
