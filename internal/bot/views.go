package bot

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"weekplan/internal/model"
	"weekplan/internal/service"
)

// showDay renders the plan for date. A non-zero messageID edits that message in place.
func (b *Bot) showDay(ctx context.Context, chatID int64, date string, messageID int) error {
	day, stored, err := b.planner.Day(ctx, date)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось загрузить день: %s", escape(err.Error())))
	}
	b.setState(chatID, b.state(chatID).showingDay(date))

	t, _ := model.ParseDateKey(date)
	text := service.FormatDay(day, t)
	if !stored && len(day.Tasks) > 0 {
		text += "\n<i>План взят из расписания на завтрашний день недели.</i>"
	}
	markup := dayKeyboard(day)

	if messageID != 0 {
		edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup)
		edit.ParseMode = tgbotapi.ModeHTML
		_, err := b.api.Send(edit)
		if err == nil || strings.Contains(err.Error(), "message is not modified") {
			return nil
		}
	}
	return b.sendWithReplyMarkup(chatID, text, markup)
}

func (b *Bot) showWeek(ctx context.Context, chatID int64) error {
	sched, err := b.planner.Schedule(ctx)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось загрузить расписание: %s", escape(err.Error())))
	}
	b.setState(chatID, b.state(chatID).showingWeek())
	return b.sendText(chatID, formatWeek(sched))
}

func formatWeek(sched model.Schedule) string {
	var sb strings.Builder
	sb.WriteString("🗓 <b>Расписание на неделю</b>\n")
	for _, day := range model.Weekdays {
		sb.WriteString(fmt.Sprintf("\n<b>%s</b>\n", service.WeekdayTitle(day)))
		tasks := sched.Tasks(day)
		if len(tasks) == 0 {
			sb.WriteString("   —\n")
			continue
		}
		for i, task := range tasks {
			sb.WriteString(fmt.Sprintf("   %d. %s", i+1, escape(normalizeTitle(task.Title))))
			if task.Minutes > 0 {
				sb.WriteString(fmt.Sprintf(" · %d мин", task.Minutes))
			}
			sb.WriteByte('\n')
		}
	}
	return sb.String()
}

// resolveDate understands "", today/tomorrow words, YYYY-MM-DD and DD.MM[.YYYY].
func resolveDate(arg string, now time.Time) (string, error) {
	value := strings.ToLower(strings.TrimSpace(arg))
	switch value {
	case "", "today", "сегодня":
		return model.DateKey(now), nil
	case "tomorrow", "завтра":
		return model.DateKey(now.AddDate(0, 0, 1)), nil
	case "yesterday", "вчера":
		return model.DateKey(now.AddDate(0, 0, -1)), nil
	}
	if _, err := model.ParseDateKey(value); err == nil {
		return value, nil
	}
	for _, layout := range []string{"02.01.2006", "2.1.2006"} {
		if t, err := time.ParseInLocation(layout, value, now.Location()); err == nil {
			return model.DateKey(t), nil
		}
	}
	for _, layout := range []string{"02.01", "2.1"} {
		if t, err := time.ParseInLocation(layout, value, now.Location()); err == nil {
			return model.DateKey(time.Date(now.Year(), t.Month(), t.Day(), 0, 0, 0, 0, now.Location())), nil
		}
	}
	return "", fmt.Errorf("%w: не понимаю дату %q", model.ErrBadInput, arg)
}

func shiftDate(date string, days int) (string, error) {
	t, err := model.ParseDateKey(date)
	if err != nil {
		return "", err
	}
	return model.DateKey(t.AddDate(0, 0, days)), nil
}

// parseWeekday accepts a weekday key or its Russian title.
func parseWeekday(value string) (string, error) {
	value = strings.TrimSpace(value)
	for _, day := range model.Weekdays {
		if strings.EqualFold(service.WeekdayTitle(day), value) {
			return day, nil
		}
	}
	return model.NormalizeWeekday(value)
}

func parseMinutes(value string) (int, error) {
	minutes, err := strconv.Atoi(strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(value), "мин")))
	if err != nil || minutes < 0 {
		return 0, fmt.Errorf("%w: minutes %q", model.ErrBadInput, value)
	}
	return minutes, nil
}

// parseTaskEdit reads "title" or "title | minutes".
func parseTaskEdit(text string) (model.TaskPatch, error) {
	title, rest, hasMinutes := strings.Cut(text, "|")
	title = strings.TrimSpace(title)

	var patch model.TaskPatch
	if title != "" {
		patch.Title = &title
	}
	if hasMinutes {
		minutes, err := parseMinutes(rest)
		if err != nil {
			return model.TaskPatch{}, err
		}
		patch.Minutes = &minutes
	}
	if patch.Title == nil && patch.Minutes == nil {
		return model.TaskPatch{}, fmt.Errorf("%w: empty edit", model.ErrBadInput)
	}
	return patch, patch.Validate()
}

// parseAddArgs reads "/add <weekday> <minutes> <title>".
func parseAddArgs(args string) (string, model.TaskInput, error) {
	fields := strings.Fields(args)
	if len(fields) < 3 {
		return "", model.TaskInput{}, fmt.Errorf("%w: need weekday, minutes and title", model.ErrBadInput)
	}
	weekday, err := parseWeekday(fields[0])
	if err != nil {
		return "", model.TaskInput{}, err
	}
	minutes, err := parseMinutes(fields[1])
	if err != nil {
		return "", model.TaskInput{}, err
	}
	in := model.TaskInput{Title: strings.Join(fields[2:], " "), Minutes: minutes}
	return weekday, in, in.Validate()
}

func shortTitle(title string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(title, "\n", " "))
	clean = normalizeTitle(clean)
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}

func normalizeTitle(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return value
	}
	runes := []rune(value)
	runes[0] = unicode.ToUpper(runes[0])
	return string(runes)
}
