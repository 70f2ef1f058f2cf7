package keyboards

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/vladimiradmaev/pill-reminder/internal/domain"
)

// Callback data prefixes. Medicine names never contain ':' so the name is
// always the last segment.
const (
	ackPrefix    = "ack:"
	deletePrefix = "del:"

	MenuAdd      = "menu:add"
	MenuList     = "menu:list"
	MenuHistory  = "menu:history"
	MenuTimezone = "menu:timezone"
	MenuMain     = "menu:main"
)

// MainMenu creates the main menu keyboard
func MainMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("➕ Add medicine", MenuAdd),
			tgbotapi.NewInlineKeyboardButtonData("📋 My medicines", MenuList),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🕘 History", MenuHistory),
			tgbotapi.NewInlineKeyboardButtonData("🌍 Timezone", MenuTimezone),
		),
	)
}

// BackToMenu is a single "main menu" button
func BackToMenu() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("◀️ Main menu", MenuMain),
		),
	)
}

// Reminder creates the Done/Skip keyboard attached to a reminder
func Reminder(medicineName string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Done", AckData(domain.IntakeDone, medicineName)),
			tgbotapi.NewInlineKeyboardButtonData("⏭ Skip", AckData(domain.IntakeSkipped, medicineName)),
		),
	)
}

// ScheduleList creates one delete button per schedule
func ScheduleList(schedules []domain.ScheduleEntry) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(schedules)+1)
	for _, s := range schedules {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🗑️ "+s.MedicineName, deletePrefix+s.MedicineName),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("◀️ Main menu", MenuMain),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// AckData builds "ack:done:<medicine>" or "ack:skip:<medicine>".
func AckData(status domain.IntakeStatus, medicineName string) string {
	verb := "done"
	if status == domain.IntakeSkipped {
		verb = "skip"
	}
	return ackPrefix + verb + ":" + medicineName
}

// ParseAck is the inverse of AckData.
func ParseAck(data string) (domain.IntakeStatus, string, bool) {
	rest, ok := strings.CutPrefix(data, ackPrefix)
	if !ok {
		return "", "", false
	}
	verb, medicine, ok := strings.Cut(rest, ":")
	if !ok || medicine == "" {
		return "", "", false
	}
	switch verb {
	case "done":
		return domain.IntakeDone, medicine, true
	case "skip":
		return domain.IntakeSkipped, medicine, true
	}
	return "", "", false
}

// ParseDelete extracts the medicine of a "del:<medicine>" button.
func ParseDelete(data string) (string, bool) {
	medicine, ok := strings.CutPrefix(data, deletePrefix)
	if !ok || medicine == "" {
		return "", false
	}
	return medicine, true
}
