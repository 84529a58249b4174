package model

import (
	"strings"

	"github.com/google/uuid"
)

// Week maps weekday keys to ordered task lists.
type Week map[string][]Task

// Schedule is the weekly recurring template. One per user.
type Schedule struct {
	Week Week  `json:"week"`
	Meta *Meta `json:"meta,omitempty"`
}

func (s Schedule) Version() *Meta {
	return s.Meta
}

// Tasks returns the list for weekday; a missing key reads as empty.
func (s Schedule) Tasks(weekday string) []Task {
	return s.Week[weekday]
}

// Clone deep-copies s with all seven weekday keys present.
func (s Schedule) Clone() Schedule {
	week := make(Week, len(Weekdays))
	for _, day := range Weekdays {
		src := s.Week[day]
		tasks := make([]Task, 0, len(src))
		for _, t := range src {
			tasks = append(tasks, t.Clone())
		}
		week[day] = tasks
	}
	return Schedule{Week: week, Meta: s.Meta.Clone()}
}

// FindTask looks for id under one weekday.
func (s Schedule) FindTask(weekday, id string) (Task, bool) {
	for _, t := range s.Week[weekday] {
		if t.ID == id {
			return t, true
		}
	}
	return Task{}, false
}

// FindTaskAnywhere scans every weekday in canonical order.
func (s Schedule) FindTaskAnywhere(id string) (Task, string, bool) {
	for _, day := range Weekdays {
		if t, ok := s.FindTask(day, id); ok {
			return t, day, true
		}
	}
	return Task{}, "", false
}

// WithNewTask appends a fresh task to weekday.
func (s Schedule) WithNewTask(weekday string, in TaskInput, st Stamp) (Schedule, Task, error) {
	day, err := NormalizeWeekday(weekday)
	if err != nil {
		return s, Task{}, err
	}
	if err := in.Validate(); err != nil {
		return s, Task{}, err
	}

	id := strings.TrimSpace(in.ID)
	if id == "" {
		id = uuid.NewString()
	}
	task := Task{
		ID:          id,
		Title:       strings.TrimSpace(in.Title),
		Minutes:     in.Minutes,
		OffloadDays: append([]string{}, in.OffloadDays...),
		Meta:        (*Meta)(nil).Touch(st),
	}

	next := s.Clone()
	next.Week[day] = append(next.Week[day], task)
	next.Meta = s.Meta.Touch(st)
	return next, task, nil
}

// WithEditedTask replaces title, minutes and offloadDays of the matching task.
// Reports false, and returns s untouched, when id is not under weekday.
func (s Schedule) WithEditedTask(weekday, id string, p TaskPatch, st Stamp) (Schedule, bool, error) {
	day, err := NormalizeWeekday(weekday)
	if err != nil {
		return s, false, err
	}
	if err := p.Validate(); err != nil {
		return s, false, err
	}

	next := s.Clone()
	for i, t := range next.Week[day] {
		if t.ID != id {
			continue
		}
		edited := t.EditInline(p, st)
		if p.OffloadDays != nil {
			edited.OffloadDays = append([]string{}, (*p.OffloadDays)...)
		}
		next.Week[day][i] = edited
		next.Meta = s.Meta.Touch(st)
		return next, true, nil
	}
	return s, false, nil
}

// WithTaskRemoved filters id out of weekday.
func (s Schedule) WithTaskRemoved(weekday, id string, st Stamp) (Schedule, bool, error) {
	day, err := NormalizeWeekday(weekday)
	if err != nil {
		return s, false, err
	}
	if _, ok := s.FindTask(day, id); !ok {
		return s, false, nil
	}

	next := s.Clone()
	kept := next.Week[day][:0]
	for _, t := range next.Week[day] {
		if t.ID != id {
			kept = append(kept, t)
		}
	}
	next.Week[day] = kept
	next.Meta = s.Meta.Touch(st)
	return next, true, nil
}

// MakeOverrideForDate builds the day plan for dateKey from the weekday picked
// by OverrideSourceWeekday, with progress zeroed and offloadDays dropped.
func (s Schedule) MakeOverrideForDate(dateKey string, st Stamp) (DayOverride, error) {
	source, err := OverrideSourceWeekday(dateKey)
	if err != nil {
		return DayOverride{}, err
	}
	tasks := make([]Task, 0, len(s.Week[source]))
	for _, t := range s.Week[source] {
		tasks = append(tasks, snapshotFrom(t, st))
	}
	return DayOverride{
		DateKey: dateKey,
		Tasks:   tasks,
		Meta:    (*Meta)(nil).Touch(st),
	}, nil
}
