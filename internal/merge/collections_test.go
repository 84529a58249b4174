package merge

import (
	"testing"

	"weekplan/internal/model"
)

const (
	t1 = "2026-01-01T10:00:00.000Z"
	t2 = "2026-01-02T10:00:00.000Z"
)

func TestSchedules_TaskGranularity(t *testing.T) {
	local := model.Schedule{
		Week: model.Week{model.Monday: {
			{ID: "m1", Minutes: 20, Meta: meta(t1)},
			{ID: "m2", Minutes: 5, Meta: meta(t1)},
		}},
		Meta: meta(t2),
	}.Clone()
	incoming := model.Schedule{
		Week: model.Week{model.Monday: {
			{ID: "m1", Minutes: 30, Meta: meta(t2)},
			{ID: "m3", Minutes: 10, Meta: meta(t1)},
		}},
		Meta: meta(t1),
	}.Clone()

	merged := Schedules(&local, &incoming)
	mon := merged.Tasks(model.Monday)
	if len(mon) != 3 {
		t.Fatalf("monday = %+v", mon)
	}
	if mon[0].ID != "m1" || mon[0].Minutes != 30 {
		t.Errorf("m1 should take the newer incoming minutes: %+v", mon[0])
	}
	if mon[1].ID != "m2" || mon[1].Minutes != 5 {
		t.Errorf("local-only m2 should pass through: %+v", mon[1])
	}
	if mon[2].ID != "m3" {
		t.Errorf("incoming-only m3 should be appended: %+v", mon[2])
	}
	if merged.Meta.UpdatedAt != t2 {
		t.Errorf("schedule meta = %+v, want local (newer)", merged.Meta)
	}
	for _, day := range model.Weekdays {
		if _, ok := merged.Week[day]; !ok {
			t.Errorf("merged schedule lost weekday %s", day)
		}
	}
}

func TestSchedules_NilSides(t *testing.T) {
	s := model.Schedule{Week: model.Week{model.Friday: {{ID: "f"}}}}
	if Schedules(nil, nil) != nil {
		t.Error("nil,nil should stay nil")
	}
	if got := Schedules(nil, &s); got == nil || len(got.Tasks(model.Friday)) != 1 {
		t.Errorf("nil local: %+v", got)
	}
	if got := Schedules(&s, nil); got == nil || len(got.Tasks(model.Friday)) != 1 {
		t.Errorf("nil incoming: %+v", got)
	}
}

func TestOverrides_DayGranularity(t *testing.T) {
	local := map[string]model.DayOverride{
		"2026-10-19": {DateKey: "2026-10-19", Tasks: []model.Task{{ID: "a", DonePercent: 50, Meta: meta(t2)}, {ID: "b"}}, Meta: meta(t1)},
		"2026-10-20": {DateKey: "2026-10-20", Tasks: []model.Task{{ID: "c"}}, Meta: meta(t1)},
	}
	incoming := map[string]model.DayOverride{
		"2026-10-19": {DateKey: "2026-10-19", Tasks: []model.Task{{ID: "a", DonePercent: 10, Meta: meta(t1)}}, Meta: meta(t2)},
		"2026-10-21": {DateKey: "2026-10-21", Tasks: []model.Task{{ID: "d"}}, Meta: meta(t1)},
	}

	merged := Overrides(local, incoming)
	if len(merged) != 3 {
		t.Fatalf("merged keys = %v", DateKeys(merged))
	}

	day := merged["2026-10-19"]
	// The incoming day document is newer, so it wins whole even though local's
	// copy of task "a" carries a newer task stamp.
	if len(day.Tasks) != 1 || day.Tasks[0].DonePercent != 10 {
		t.Errorf("2026-10-19 = %+v", day.Tasks)
	}
	if _, ok := merged["2026-10-20"]; !ok {
		t.Error("local-only day dropped")
	}
	if _, ok := merged["2026-10-21"]; !ok {
		t.Error("incoming-only day dropped")
	}

	keys := DateKeys(merged)
	if keys[0] != "2026-10-19" || keys[2] != "2026-10-21" {
		t.Errorf("DateKeys not sorted: %v", keys)
	}
}

func TestTasks_DoesNotAliasInputs(t *testing.T) {
	local := []model.Task{{ID: "a", OffloadDays: []string{model.Monday}}}
	out := Tasks(local, nil)
	out[0].OffloadDays[0] = model.Sunday
	if local[0].OffloadDays[0] != model.Monday {
		t.Error("merge result aliases its input")
	}
}
