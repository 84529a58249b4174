package model

import (
	"fmt"
	"strings"
)

// Task is a single schedulable item.
type Task struct {
	ID          string   `json:"id"`
	Title       string   `json:"title"`
	Minutes     int      `json:"minutes"`
	DonePercent int      `json:"donePercent"`
	Done        bool     `json:"done"`
	OffloadDays []string `json:"offloadDays"`
	Meta        *Meta    `json:"meta,omitempty"`
}

// TaskInput carries the fields of a new schedule task. An empty ID is generated.
type TaskInput struct {
	ID          string
	Title       string
	Minutes     int
	OffloadDays []string
}

// TaskPatch is a partial edit. Nil fields are left alone.
type TaskPatch struct {
	Title       *string
	Minutes     *int
	OffloadDays *[]string
}

func (in TaskInput) Validate() error {
	if strings.TrimSpace(in.Title) == "" {
		return fmt.Errorf("%w: title is required", ErrBadInput)
	}
	if in.Minutes < 0 {
		return fmt.Errorf("%w: minutes must be >= 0", ErrBadInput)
	}
	return validateOffloadDays(in.OffloadDays)
}

func (p TaskPatch) Validate() error {
	if p.Title != nil && strings.TrimSpace(*p.Title) == "" {
		return fmt.Errorf("%w: title cannot be empty", ErrBadInput)
	}
	if p.Minutes != nil && *p.Minutes < 0 {
		return fmt.Errorf("%w: minutes must be >= 0", ErrBadInput)
	}
	if p.OffloadDays != nil {
		return validateOffloadDays(*p.OffloadDays)
	}
	return nil
}

func validateOffloadDays(days []string) error {
	for _, d := range days {
		if !IsWeekday(d) {
			return fmt.Errorf("%w: unknown offload day %q", ErrBadInput, d)
		}
	}
	return nil
}

// ValidateTasks checks a task list received from outside this device: ids
// present and unique, minutes non-negative, progress inside [0,100] and
// offload days naming weekdays.
func ValidateTasks(tasks []Task) error {
	seen := make(map[string]bool, len(tasks))
	for i, t := range tasks {
		switch {
		case strings.TrimSpace(t.ID) == "":
			return fmt.Errorf("%w: task %d has no id", ErrBadInput, i)
		case seen[t.ID]:
			return fmt.Errorf("%w: duplicate task id %q", ErrBadInput, t.ID)
		case t.Minutes < 0:
			return fmt.Errorf("%w: task %q minutes must be >= 0", ErrBadInput, t.ID)
		case t.DonePercent < 0 || t.DonePercent > 100:
			return fmt.Errorf("%w: task %q donePercent %d outside [0,100]", ErrBadInput, t.ID, t.DonePercent)
		}
		seen[t.ID] = true
		if err := validateOffloadDays(t.OffloadDays); err != nil {
			return fmt.Errorf("task %q: %w", t.ID, err)
		}
	}
	return nil
}

// ClampPercent keeps p inside [0,100].
func ClampPercent(p int) int {
	switch {
	case p < 0:
		return 0
	case p > 100:
		return 100
	default:
		return p
	}
}

// Version exposes the task's Meta for LWW resolution.
func (t Task) Version() *Meta {
	return t.Meta
}

func (t Task) Clone() Task {
	c := t
	if t.OffloadDays != nil {
		c.OffloadDays = append([]string{}, t.OffloadDays...)
	}
	c.Meta = t.Meta.Clone()
	return c
}

// DoneDrift reports a stored done flag that disagrees with donePercent.
// Mutations never produce drift; imported or remote data can carry it.
func (t Task) DoneDrift() bool {
	return t.Done != (t.DonePercent >= 100)
}

// WithPercent sets donePercent (clamped) and derives done from it.
func (t Task) WithPercent(p int, s Stamp) Task {
	c := t.Clone()
	c.DonePercent = ClampPercent(p)
	c.Done = c.DonePercent >= 100
	c.Meta = t.Meta.Touch(s)
	return c
}

// BumpProgress adds delta to donePercent, clamped to [0,100].
func (t Task) BumpProgress(delta int, s Stamp) Task {
	return t.WithPercent(t.DonePercent+delta, s)
}

// ToggleDone jumps to 100 when below it, otherwise back to 0.
func (t Task) ToggleDone(s Stamp) Task {
	if t.DonePercent < 100 {
		return t.WithPercent(100, s)
	}
	return t.WithPercent(0, s)
}

// EditInline replaces title and minutes only. ID and Meta.CreatedAt survive.
func (t Task) EditInline(p TaskPatch, s Stamp) Task {
	c := t.Clone()
	if p.Title != nil {
		c.Title = strings.TrimSpace(*p.Title)
	}
	if p.Minutes != nil {
		c.Minutes = *p.Minutes
	}
	c.Meta = t.Meta.Touch(s)
	return c
}

// snapshotFrom clones a schedule task into a fresh, unstarted day task.
func snapshotFrom(t Task, s Stamp) Task {
	c := t.Clone()
	c.DonePercent = 0
	c.Done = false
	c.OffloadDays = nil
	c.Meta = (*Meta)(nil).Touch(s)
	return c
}
