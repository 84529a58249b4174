package bot

import (
	"fmt"
	"log"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"weekplan/internal/model"
	"weekplan/internal/service"
)

const (
	btnCancelDialog  = "⏪ Отменить ввод"
	menuLabelToday   = "📅 Сегодня"
	menuLabelTomorow = "➡️ Завтра"
	menuLabelWeek    = "🗓 Неделя"
	menuLabelAdd     = "➕ Новая задача"
	menuLabelSync    = "🔄 Синхронизировать"
	menuLabelHelp    = "ℹ️ Помощь"
)

// maxCallbackData is Telegram's limit for inline button payloads.
const maxCallbackData = 64

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelToday),
			tgbotapi.NewKeyboardButton(menuLabelTomorow),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelWeek),
			tgbotapi.NewKeyboardButton(menuLabelAdd),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelSync),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func weekdayKeyboard() tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	var row []tgbotapi.KeyboardButton
	for _, day := range model.Weekdays {
		row = append(row, tgbotapi.NewKeyboardButton(service.WeekdayTitle(day)))
		if len(row) == 3 {
			rows = append(rows, row)
			row = nil
		}
	}
	rows = append(rows, append(row, tgbotapi.NewKeyboardButton(btnCancelDialog)))
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

// dayKeyboard has one row per task (the title button starts an inline edit) plus navigation. Tasks whose ids do not fit
// into callback data get no buttons.
func dayKeyboard(day model.DayOverride) tgbotapi.InlineKeyboardMarkup {
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, task := range day.Tasks {
		buttons := []struct {
			label string
			cb    callback
		}{
			{"➖", callback{action: cbBump, date: day.DateKey, taskID: task.ID, delta: -progressStep}},
			{"➕", callback{action: cbBump, date: day.DateKey, taskID: task.ID, delta: progressStep}},
			{doneLabel(task), callback{action: cbToggle, date: day.DateKey, taskID: task.ID}},
			{"🗑", callback{action: cbRemove, date: day.DateKey, taskID: task.ID}},
		}
		row := make([]tgbotapi.InlineKeyboardButton, 0, len(buttons)+1)
		row = append(row, tgbotapi.NewInlineKeyboardButtonData("✏️ "+shortTitle(task.Title, 14), callback{action: cbEdit, date: day.DateKey, taskID: task.ID}.String()))
		for _, btn := range buttons {
			row = append(row, tgbotapi.NewInlineKeyboardButtonData(btn.label, btn.cb.String()))
		}
		if !fitsCallback(row) {
			log.Printf("task %q: id too long for inline buttons", task.ID)
			continue
		}
		rows = append(rows, row)
	}

	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("◀️", callback{action: cbShift, date: day.DateKey, delta: -1}.String()),
		tgbotapi.NewInlineKeyboardButtonData("♻️ Сбросить", callback{action: cbReset, date: day.DateKey}.String()),
		tgbotapi.NewInlineKeyboardButtonData("▶️", callback{action: cbShift, date: day.DateKey, delta: 1}.String()),
	))
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func fitsCallback(row []tgbotapi.InlineKeyboardButton) bool {
	for _, btn := range row {
		if btn.CallbackData != nil && len(*btn.CallbackData) > maxCallbackData {
			return false
		}
	}
	return true
}

func doneLabel(task model.Task) string {
	if task.DonePercent >= 100 {
		return "↩️"
	}
	return fmt.Sprintf("✅ %d%%", task.DonePercent)
}
