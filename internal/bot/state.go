package bot

import "strings"

type viewKind int

const (
	viewDay viewKind = iota
	viewWeek
)

type addStage int

const (
	addWeekday addStage = iota + 1
	addTitle
	addMinutes
)

// editCursor points at the day task whose next text message replaces it inline.
type editCursor struct {
	date   string
	taskID string
}

// addDraft collects a new schedule task step by step.
type addDraft struct {
	stage   addStage
	weekday string
	title   string
}

// viewState is everything the bot remembers about one chat.
type viewState struct {
	view    viewKind
	date    string
	editing *editCursor
	adding  *addDraft
}

func (s viewState) showingDay(date string) viewState {
	s.view = viewDay
	s.date = date
	s.editing = nil
	return s
}

func (s viewState) showingWeek() viewState {
	s.view = viewWeek
	s.editing = nil
	return s
}

func (s viewState) editingTask(date, taskID string) viewState {
	s.editing = &editCursor{date: date, taskID: taskID}
	s.adding = nil
	return s
}

func (s viewState) startAdding() viewState {
	s.adding = &addDraft{stage: addWeekday}
	s.editing = nil
	return s
}

// idle drops any pending input.
func (s viewState) idle() viewState {
	s.editing = nil
	s.adding = nil
	return s
}

func (b *Bot) state(chatID int64) viewState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.states[chatID]
}

func (b *Bot) setState(chatID int64, s viewState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.states[chatID] = s
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancelDialog) || value == "отменить ввод" || value == "отмена"
}
