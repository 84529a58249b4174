package model

import (
	"errors"
	"testing"
)

func stampAt(at string) Stamp {
	return Stamp{At: at, DeviceID: "dev-test", Action: "test"}
}

func TestTask_BumpProgressRespectsClamp(t *testing.T) {
	tests := []struct {
		name  string
		start int
		delta int
		want  int
	}{
		{name: "round trip inside range", start: 30, delta: 20, want: 30},
		{name: "clamped at top", start: 90, delta: 20, want: 80},
		{name: "clamped at bottom", start: 10, delta: -20, want: 20},
		{name: "zero delta", start: 55, delta: 0, want: 55},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			task := Task{ID: "t1", DonePercent: tt.start}
			up := task.BumpProgress(tt.delta, stampAt("2026-01-01T10:00:00.000Z"))
			back := up.BumpProgress(-tt.delta, stampAt("2026-01-01T10:00:01.000Z"))
			if back.DonePercent != tt.want {
				t.Errorf("start %d %+d then %+d = %d, want %d", tt.start, tt.delta, -tt.delta, back.DonePercent, tt.want)
			}
			if back.DoneDrift() {
				t.Errorf("done=%v disagrees with percent %d", back.Done, back.DonePercent)
			}
		})
	}
}

func TestTask_BumpProgressDerivesDone(t *testing.T) {
	task := Task{ID: "t1", DonePercent: 90}
	got := task.BumpProgress(20, stampAt("2026-01-01T10:00:00.000Z"))
	if got.DonePercent != 100 || !got.Done {
		t.Fatalf("got percent=%d done=%v, want 100/true", got.DonePercent, got.Done)
	}
	got = got.BumpProgress(-1, stampAt("2026-01-01T10:00:01.000Z"))
	if got.Done {
		t.Fatalf("done should clear below 100, percent=%d", got.DonePercent)
	}
}

func TestTask_ToggleDone(t *testing.T) {
	task := Task{ID: "t1", DonePercent: 45}

	on := task.ToggleDone(stampAt("2026-01-01T10:00:00.000Z"))
	if on.DonePercent != 100 || !on.Done {
		t.Fatalf("first toggle: percent=%d done=%v, want 100/true", on.DonePercent, on.Done)
	}

	off := on.ToggleDone(stampAt("2026-01-01T10:00:01.000Z"))
	if off.DonePercent != 0 || off.Done {
		t.Fatalf("second toggle: percent=%d done=%v, want 0/false", off.DonePercent, off.Done)
	}
}

// A stored done flag can disagree with the percent (data written before done
// was derived, or by another client). The model reports it rather than fixing
// it on read.
func TestTask_DoneDriftIsReportedNotRepaired(t *testing.T) {
	drifted := Task{ID: "t1", DonePercent: 40, Done: true}
	if !drifted.DoneDrift() {
		t.Fatal("expected drift for done=true at 40%")
	}

	clone := drifted.Clone()
	if !clone.Done {
		t.Error("Clone must not repair done")
	}

	fixed := drifted.BumpProgress(0, stampAt("2026-01-01T10:00:00.000Z"))
	if fixed.DoneDrift() {
		t.Error("any mutation re-derives done")
	}
}

func TestTask_EditInlineKeepsIdentity(t *testing.T) {
	task := Task{
		ID:          "t1",
		Title:       "Old",
		Minutes:     10,
		DonePercent: 50,
		OffloadDays: []string{Monday},
		Meta:        &Meta{CreatedAt: "2025-12-01T00:00:00.000Z", UpdatedAt: "2025-12-01T00:00:00.000Z"},
	}
	title, minutes := "New", 25
	got := task.EditInline(TaskPatch{Title: &title, Minutes: &minutes}, stampAt("2026-01-01T10:00:00.000Z"))

	if got.ID != "t1" || got.Title != "New" || got.Minutes != 25 {
		t.Fatalf("unexpected edit result %+v", got)
	}
	if got.DonePercent != 50 {
		t.Errorf("percent changed to %d", got.DonePercent)
	}
	if got.Meta.CreatedAt != "2025-12-01T00:00:00.000Z" {
		t.Errorf("createdAt = %q, want preserved", got.Meta.CreatedAt)
	}
	if got.Meta.UpdatedAt != "2026-01-01T10:00:00.000Z" || got.Meta.UserAction != "test" {
		t.Errorf("meta not refreshed: %+v", got.Meta)
	}
	if task.Title != "Old" {
		t.Error("receiver was mutated")
	}
}

func TestTaskPatch_Validate(t *testing.T) {
	empty, negative := "  ", -5
	bad := []string{"funday"}

	tests := []struct {
		name  string
		patch TaskPatch
	}{
		{name: "empty title", patch: TaskPatch{Title: &empty}},
		{name: "negative minutes", patch: TaskPatch{Minutes: &negative}},
		{name: "unknown offload day", patch: TaskPatch{OffloadDays: &bad}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.patch.Validate(); !errors.Is(err, ErrBadInput) {
				t.Errorf("Validate() = %v, want ErrBadInput", err)
			}
		})
	}

	if err := (TaskPatch{}).Validate(); err != nil {
		t.Errorf("empty patch: %v", err)
	}
}

func TestValidateTasks(t *testing.T) {
	tests := []struct {
		name  string
		tasks []Task
	}{
		{name: "empty ids", tasks: []Task{{Title: "A"}, {Title: "B"}}},
		{name: "duplicate id", tasks: []Task{{ID: "a"}, {ID: "a"}}},
		{name: "negative minutes", tasks: []Task{{ID: "a", Minutes: -5}}},
		{name: "percent above range", tasks: []Task{{ID: "a", DonePercent: 250}}},
		{name: "percent below range", tasks: []Task{{ID: "a", DonePercent: -40}}},
		{name: "unknown offload day", tasks: []Task{{ID: "a", OffloadDays: []string{"funday"}}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := ValidateTasks(tt.tasks); !errors.Is(err, ErrBadInput) {
				t.Errorf("ValidateTasks() = %v, want ErrBadInput", err)
			}
		})
	}

	ok := []Task{{ID: "a", DonePercent: 100, Done: true}, {ID: "b", Minutes: 30, OffloadDays: []string{Friday}}}
	if err := ValidateTasks(ok); err != nil {
		t.Errorf("valid list: %v", err)
	}
	if err := ValidateTasks(nil); err != nil {
		t.Errorf("empty list: %v", err)
	}
}
