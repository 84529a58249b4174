package model

// DayOverride is the materialized, freely editable plan for one date.
type DayOverride struct {
	DateKey string `json:"dateKey"`
	Tasks   []Task `json:"tasks"`
	Meta    *Meta  `json:"meta,omitempty"`
}

func (d DayOverride) Version() *Meta {
	return d.Meta
}

func (d DayOverride) Clone() DayOverride {
	tasks := make([]Task, 0, len(d.Tasks))
	for _, t := range d.Tasks {
		tasks = append(tasks, t.Clone())
	}
	return DayOverride{DateKey: d.DateKey, Tasks: tasks, Meta: d.Meta.Clone()}
}

func (d DayOverride) indexOf(id string) int {
	for i, t := range d.Tasks {
		if t.ID == id {
			return i
		}
	}
	return -1
}

func (d DayOverride) HasTask(id string) bool {
	return d.indexOf(id) >= 0
}

func (d DayOverride) Task(id string) (Task, bool) {
	if i := d.indexOf(id); i >= 0 {
		return d.Tasks[i], true
	}
	return Task{}, false
}

// EnsureTask makes sure id is part of the day. A missing task is looked up in
// the schedule under the date's source weekday first, then across the whole
// week, so an id can be resolved from an unrelated day. Reports whether the
// task is present afterwards.
func (d DayOverride) EnsureTask(id string, schedule Schedule, st Stamp) (DayOverride, bool) {
	if d.HasTask(id) {
		return d, true
	}

	var (
		found Task
		ok    bool
	)
	if source, err := OverrideSourceWeekday(d.DateKey); err == nil {
		found, ok = schedule.FindTask(source, id)
	}
	if !ok {
		found, _, ok = schedule.FindTaskAnywhere(id)
	}
	if !ok {
		return d, false
	}

	next := d.Clone()
	next.Tasks = append(next.Tasks, snapshotFrom(found, st))
	next.Meta = d.Meta.Touch(st)
	return next, true
}

// update applies fn to the task with id and restamps the day.
func (d DayOverride) update(id string, st Stamp, fn func(Task) Task) (DayOverride, bool) {
	i := d.indexOf(id)
	if i < 0 {
		return d, false
	}
	next := d.Clone()
	next.Tasks[i] = fn(next.Tasks[i])
	next.Meta = d.Meta.Touch(st)
	return next, true
}

func (d DayOverride) BumpTaskPercent(id string, delta int, st Stamp) (DayOverride, bool) {
	return d.update(id, st, func(t Task) Task { return t.BumpProgress(delta, st) })
}

// ToggleTaskDone sets the task to 100 when below it, otherwise resets it to 0.
func (d DayOverride) ToggleTaskDone(id string, st Stamp) (DayOverride, bool) {
	return d.update(id, st, func(t Task) Task { return t.ToggleDone(st) })
}

// EditTaskInline changes title and minutes only.
func (d DayOverride) EditTaskInline(id string, p TaskPatch, st Stamp) (DayOverride, bool) {
	p.OffloadDays = nil
	return d.update(id, st, func(t Task) Task { return t.EditInline(p, st) })
}

func (d DayOverride) RemoveTask(id string, st Stamp) (DayOverride, bool) {
	i := d.indexOf(id)
	if i < 0 {
		return d, false
	}
	next := d.Clone()
	next.Tasks = append(next.Tasks[:i], next.Tasks[i+1:]...)
	next.Meta = d.Meta.Touch(st)
	return next, true
}

func (d DayOverride) ClearTasks(st Stamp) DayOverride {
	return DayOverride{DateKey: d.DateKey, Tasks: []Task{}, Meta: d.Meta.Touch(st)}
}

// Progress sums minutes and returns the minute-weighted completion of the day.
func (d DayOverride) Progress() (totalMinutes, percent int) {
	var weighted int
	for _, t := range d.Tasks {
		totalMinutes += t.Minutes
		weighted += t.Minutes * t.DonePercent
	}
	if totalMinutes == 0 {
		if len(d.Tasks) == 0 {
			return 0, 0
		}
		var sum int
		for _, t := range d.Tasks {
			sum += t.DonePercent
		}
		return 0, sum / len(d.Tasks)
	}
	return totalMinutes, weighted / totalMinutes
}
