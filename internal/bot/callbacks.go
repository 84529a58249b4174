package bot

import (
	"context"
	"fmt"
	"log"
	"strconv"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"weekplan/internal/model"
)

const (
	cbBump   = "bump"
	cbToggle = "toggle"
	cbRemove = "remove"
	cbEdit   = "edit"
	cbReset  = "reset"
	cbShift  = "shift"
)

// progressStep is how much one ➕/➖ press moves a task.
const progressStep = 25

// callback is the decoded payload of an inline button, e.g. "bump:2026-10-19:<id>:25".
type callback struct {
	action string
	date   string
	taskID string
	delta  int
}

func (c callback) String() string {
	switch c.action {
	case cbBump:
		return fmt.Sprintf("%s:%s:%s:%d", c.action, c.date, c.taskID, c.delta)
	case cbShift:
		return fmt.Sprintf("%s:%s:%d", c.action, c.date, c.delta)
	case cbReset:
		return c.action + ":" + c.date
	default:
		return fmt.Sprintf("%s:%s:%s", c.action, c.date, c.taskID)
	}
}

func parseCallback(data string) (callback, error) {
	parts := strings.Split(data, ":")
	if len(parts) < 2 {
		return callback{}, fmt.Errorf("bad callback %q", data)
	}
	c := callback{action: parts[0], date: parts[1]}
	if _, err := model.ParseDateKey(c.date); err != nil {
		return callback{}, err
	}

	want := map[string]int{cbBump: 4, cbToggle: 3, cbRemove: 3, cbEdit: 3, cbReset: 2, cbShift: 3}
	n, ok := want[c.action]
	if !ok || len(parts) != n {
		return callback{}, fmt.Errorf("bad callback %q", data)
	}

	switch c.action {
	case cbShift:
		delta, err := strconv.Atoi(parts[2])
		if err != nil {
			return callback{}, fmt.Errorf("bad shift in %q", data)
		}
		c.delta = delta
	case cbReset:
	default:
		c.taskID = parts[2]
		if c.taskID == "" {
			return callback{}, fmt.Errorf("missing task id in %q", data)
		}
	}
	if c.action == cbBump {
		delta, err := strconv.Atoi(parts[3])
		if err != nil {
			return callback{}, fmt.Errorf("bad delta in %q", data)
		}
		c.delta = delta
	}
	return c, nil
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil {
		return nil
	}
	if _, err := b.api.Request(tgbotapi.NewCallback(cb.ID, "")); err != nil {
		log.Printf("callback ack: %v", err)
	}

	c, err := parseCallback(cb.Data)
	if err != nil {
		log.Printf("callback from %d: %v", cb.From.ID, err)
		return nil
	}
	log.Printf("[info] callback %s from %d", cb.Data, cb.From.ID)

	chatID := cb.Message.Chat.ID
	switch c.action {
	case cbBump:
		_, _, err = b.planner.BumpDayTask(ctx, c.date, c.taskID, c.delta)
	case cbToggle:
		_, _, err = b.planner.ToggleDayTask(ctx, c.date, c.taskID)
	case cbRemove:
		_, _, err = b.planner.RemoveDayTask(ctx, c.date, c.taskID)
	case cbReset:
		_, err = b.planner.ResetDay(ctx, c.date)
	case cbShift:
		date, serr := shiftDate(c.date, c.delta)
		if serr != nil {
			return nil
		}
		return b.showDay(ctx, chatID, date, cb.Message.MessageID)
	case cbEdit:
		b.setState(chatID, b.state(chatID).editingTask(c.date, c.taskID))
		return b.sendWithReplyMarkup(chatID, "✏️ Пришли новое название и, через «|», минуты. Например: <code>Физика | 40</code>", cancelKeyboard())
	}
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("Не удалось обновить день: %s", escape(err.Error())))
	}
	return b.showDay(ctx, chatID, c.date, cb.Message.MessageID)
}
