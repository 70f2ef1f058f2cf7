package menus

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/pill-reminder/internal/bot/keyboards"
	"github.com/vladimiradmaev/pill-reminder/internal/domain"
	"github.com/vladimiradmaev/pill-reminder/internal/utils"
)

// Sender is the part of the Telegram client menus need.
type Sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// SendMainMenu sends the main menu to a chat
func SendMainMenu(api Sender, chatID int64) error {
	text := `💊 *Pill reminder*

I remind you to take your medicines every day and keep nagging every few minutes until you press ✅ Done or ⏭ Skip.

Set your timezone first, then add a medicine.

Choose an action:`

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	msg.ReplyMarkup = keyboards.MainMenu()
	_, err := api.Send(msg)
	return err
}

// SendScheduleList sends the user's schedules with a delete button per medicine
func SendScheduleList(api Sender, chatID int64, schedules []domain.ScheduleEntry) error {
	if len(schedules) == 0 {
		msg := tgbotapi.NewMessage(chatID, "You have no medicines yet. Use /add to create one.")
		msg.ReplyMarkup = keyboards.BackToMenu()
		_, err := api.Send(msg)
		return err
	}

	var b strings.Builder
	b.WriteString("Your medicines:\n\n")
	for _, s := range schedules {
		fmt.Fprintf(&b, "💊 %s: %s (%s)\n", s.MedicineName, strings.Join(s.LocalTimes, ", "), s.Timezone)
	}
	b.WriteString("\nTap a medicine below to delete it.")

	msg := tgbotapi.NewMessage(chatID, b.String())
	msg.ReplyMarkup = keyboards.ScheduleList(schedules)
	_, err := api.Send(msg)
	return err
}

// SendHistory sends the latest intakes, timestamps shown in the user's timezone
func SendHistory(api Sender, chatID int64, records []domain.IntakeRecord, tz string) error {
	text := "No intakes recorded yet."
	if len(records) > 0 {
		var b strings.Builder
		b.WriteString("Latest intakes:\n\n")
		for _, r := range records {
			icon := "✅"
			if r.Status == domain.IntakeSkipped {
				icon = "⏭"
			}
			fmt.Fprintf(&b, "%s %s, %s\n", icon, r.MedicineName, utils.FormatLocal(r.Timestamp, tz))
		}
		text = b.String()
	}

	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboards.BackToMenu()
	_, err := api.Send(msg)
	return err
}
