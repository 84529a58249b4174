package model

import (
	"errors"
	"testing"
)

func TestSchedule_CloneFillsMissingWeekdays(t *testing.T) {
	s := Schedule{Week: Week{Monday: {{ID: "m1", Title: "Math"}}}}.Clone()
	for _, day := range Weekdays {
		if _, ok := s.Week[day]; !ok {
			t.Errorf("weekday %s missing after Clone", day)
		}
	}
	if len(s.Tasks(Sunday)) != 0 {
		t.Errorf("sunday should be empty, got %v", s.Tasks(Sunday))
	}
}

func TestSchedule_WithNewTask(t *testing.T) {
	base := Schedule{}.Clone()
	st := stampAt("2026-01-01T10:00:00.000Z")

	next, task, err := base.WithNewTask("Monday", TaskInput{Title: " Math ", Minutes: 30}, st)
	if err != nil {
		t.Fatalf("WithNewTask: %v", err)
	}
	if task.ID == "" {
		t.Error("expected generated id")
	}
	if task.Title != "Math" || task.Meta == nil || task.Meta.UpdatedAt != st.At {
		t.Errorf("unexpected task %+v", task)
	}
	if got := next.Tasks(Monday); len(got) != 1 || got[0].ID != task.ID {
		t.Fatalf("monday = %+v", got)
	}
	if next.Meta == nil || next.Meta.UpdatedAt != st.At {
		t.Errorf("schedule not stamped: %+v", next.Meta)
	}
	if len(base.Tasks(Monday)) != 0 {
		t.Error("receiver was mutated")
	}

	keep, explicit, err := next.WithNewTask(Monday, TaskInput{ID: "fixed", Title: "Reading"}, st)
	if err != nil || explicit.ID != "fixed" || len(keep.Tasks(Monday)) != 2 {
		t.Errorf("explicit id: task=%+v err=%v", explicit, err)
	}

	if _, _, err := base.WithNewTask("funday", TaskInput{Title: "x"}, st); !errors.Is(err, ErrBadInput) {
		t.Errorf("unknown weekday: %v", err)
	}
	if _, _, err := base.WithNewTask(Monday, TaskInput{Title: ""}, st); !errors.Is(err, ErrBadInput) {
		t.Errorf("empty title: %v", err)
	}
}

func TestSchedule_WithEditedTask(t *testing.T) {
	base := Schedule{Week: Week{Monday: {{ID: "m1", Title: "Math", Minutes: 20, OffloadDays: []string{}}}}}.Clone()
	st := stampAt("2026-01-01T10:00:00.000Z")
	title, minutes := "Algebra", 45
	days := []string{Saturday}

	next, ok, err := base.WithEditedTask(Monday, "m1", TaskPatch{Title: &title, Minutes: &minutes, OffloadDays: &days}, st)
	if err != nil || !ok {
		t.Fatalf("edit: ok=%v err=%v", ok, err)
	}
	got, _ := next.FindTask(Monday, "m1")
	if got.Title != "Algebra" || got.Minutes != 45 || len(got.OffloadDays) != 1 || got.OffloadDays[0] != Saturday {
		t.Errorf("unexpected task %+v", got)
	}

	same, ok, err := base.WithEditedTask(Monday, "missing", TaskPatch{Title: &title}, st)
	if err != nil || ok {
		t.Fatalf("missing id: ok=%v err=%v", ok, err)
	}
	if same.Meta != nil {
		t.Error("no-op edit must not stamp the schedule")
	}
}

func TestSchedule_WithTaskRemoved(t *testing.T) {
	base := Schedule{Week: Week{Monday: {{ID: "m1"}, {ID: "m2"}}}}.Clone()
	st := stampAt("2026-01-01T10:00:00.000Z")

	next, ok, err := base.WithTaskRemoved(Monday, "m1", st)
	if err != nil || !ok {
		t.Fatalf("remove: ok=%v err=%v", ok, err)
	}
	if tasks := next.Tasks(Monday); len(tasks) != 1 || tasks[0].ID != "m2" {
		t.Errorf("monday = %+v", tasks)
	}
	if len(base.Tasks(Monday)) != 2 {
		t.Error("receiver was mutated")
	}

	if _, ok, _ := base.WithTaskRemoved(Tuesday, "m1", st); ok {
		t.Error("removing from the wrong weekday should report false")
	}
}

func TestSchedule_MakeOverrideForDateUsesTomorrow(t *testing.T) {
	s := Schedule{Week: Week{
		Monday:  {{ID: "mon", Title: "Monday task"}},
		Tuesday: {{ID: "tue", Title: "Tuesday task", Minutes: 15, DonePercent: 70, Done: false, OffloadDays: []string{Friday}}},
	}}.Clone()
	st := stampAt("2026-10-19T07:00:00.000Z")

	// 2026-10-19 is a Monday; its plan comes from Tuesday.
	d, err := s.MakeOverrideForDate("2026-10-19", st)
	if err != nil {
		t.Fatalf("MakeOverrideForDate: %v", err)
	}
	if d.DateKey != "2026-10-19" || len(d.Tasks) != 1 {
		t.Fatalf("unexpected override %+v", d)
	}
	task := d.Tasks[0]
	if task.ID != "tue" || task.DonePercent != 0 || task.Done || task.OffloadDays != nil {
		t.Errorf("snapshot not reset: %+v", task)
	}
	if d.Meta == nil || d.Meta.UpdatedAt != st.At {
		t.Errorf("override meta = %+v", d.Meta)
	}

	if _, err := s.MakeOverrideForDate("not-a-date", st); !errors.Is(err, ErrBadInput) {
		t.Errorf("bad date: %v", err)
	}
}
