package authority

import (
	"context"
	"testing"

	"weekplan/internal/model"
	"weekplan/internal/remote"
	"weekplan/internal/repository"
)

func meta(at, device string) *model.Meta {
	return &model.Meta{CreatedAt: at, UpdatedAt: at, DeviceID: device}
}

func schedule(at string, minutes int) model.Schedule {
	return model.Schedule{
		Week: model.Week{model.Monday: {{ID: "m1", Title: "Math", Minutes: minutes}}},
		Meta: meta(at, "dev-a"),
	}
}

func TestWriteSchedule_StaleLeavesStoredCopy(t *testing.T) {
	ctx := context.Background()
	svc := NewService(repository.NewMemoryStore(), nil)

	res, err := svc.WriteSchedule(ctx, "tok", schedule("2026-10-19T08:00:00.000Z", 20))
	if err != nil || !res.Applied {
		t.Fatalf("first write = %+v, %v", res, err)
	}

	for _, at := range []string{"2026-10-19T08:00:00.000Z", "2026-10-19T07:00:00.000Z"} {
		res, err := svc.WriteSchedule(ctx, "tok", schedule(at, 99))
		if err != nil {
			t.Fatalf("write %s: %v", at, err)
		}
		if !res.Stale() || *res.UpdatedAt != "2026-10-19T08:00:00.000Z" {
			t.Errorf("write %s = %+v, want stale", at, res)
		}
	}

	stored, err := svc.ReadSchedule(ctx, "tok")
	if err != nil {
		t.Fatalf("ReadSchedule: %v", err)
	}
	if got := stored.Tasks(model.Monday)[0].Minutes; got != 20 {
		t.Errorf("stored minutes = %d, want 20", got)
	}
}

func TestWriteSchedule_RejectsBadInput(t *testing.T) {
	ctx := context.Background()
	svc := NewService(repository.NewMemoryStore(), nil)

	cases := map[string]model.Schedule{
		"no meta":         {Week: model.Week{}},
		"bad timestamp":   {Week: model.Week{}, Meta: meta("yesterday", "d")},
		"unknown weekday": {Week: model.Week{"funday": nil}, Meta: meta("2026-10-19T08:00:00.000Z", "d")},
		"duplicate ids": {
			Week: model.Week{model.Monday: {{ID: "a"}, {ID: "a"}}},
			Meta: meta("2026-10-19T08:00:00.000Z", "d"),
		},
		"negative minutes": {
			Week: model.Week{model.Monday: {{ID: "a", Minutes: -5}}},
			Meta: meta("2026-10-19T08:00:00.000Z", "d"),
		},
	}
	for name, s := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := svc.WriteSchedule(ctx, "tok", s)
			if !remote.HasCode(err, remote.CodeBadInput) {
				t.Errorf("err = %v, want bad_input", err)
			}
		})
	}

	day := model.DayOverride{
		DateKey: "2026-10-19",
		Tasks:   []model.Task{{ID: "a", DonePercent: 250}},
		Meta:    meta("2026-10-19T08:00:00.000Z", "d"),
	}
	if _, err := svc.WriteOverride(ctx, "tok", day); !remote.HasCode(err, remote.CodeBadInput) {
		t.Errorf("override percent out of range: %v", err)
	}
	if _, err := svc.ReadOverride(ctx, "tok", "2026-10-19"); !remote.HasCode(err, remote.CodeNotFound) {
		t.Errorf("rejected override was stored: %v", err)
	}

	if _, err := svc.WriteSchedule(ctx, " ", schedule("2026-10-19T08:00:00.000Z", 1)); !remote.HasCode(err, remote.CodeUnauthorized) {
		t.Errorf("empty token: %v", err)
	}
}

func TestBeaconAndVersions(t *testing.T) {
	ctx := context.Background()
	svc := NewService(repository.NewMemoryStore(), nil)

	b, err := svc.Beacon(ctx, "tok")
	if err != nil || b.UpdatedAt != nil || b.DeviceID != nil {
		t.Fatalf("empty beacon = %+v, %v", b, err)
	}
	v, err := svc.ListVersions(ctx, "tok")
	if err != nil || v.Schedule != nil || len(v.Overrides) != 0 {
		t.Fatalf("empty versions = %+v, %v", v, err)
	}

	_, _ = svc.WriteSchedule(ctx, "tok", schedule("2026-10-19T09:00:00.000Z", 20))
	day := model.DayOverride{DateKey: "2026-10-19", Tasks: []model.Task{}, Meta: meta("2026-10-19T08:30:00.000Z", "dev-b")}
	if res, err := svc.WriteOverride(ctx, "tok", day); err != nil || !res.Applied {
		t.Fatalf("WriteOverride = %+v, %v", res, err)
	}

	// The day write is stamped before the schedule but is still applied, so
	// the beacon has to move past the schedule's stamp.
	b, _ = svc.Beacon(ctx, "tok")
	if b.Watermark() != "2026-10-19T09:00:00.001Z" || *b.DeviceID != "dev-b" {
		t.Errorf("beacon = %s/%v, want moved past the previous beacon", b.Watermark(), b.DeviceID)
	}

	later := model.DayOverride{DateKey: "2026-10-20", Tasks: []model.Task{}, Meta: meta("2026-10-19T10:00:00.000Z", "dev-b")}
	_, _ = svc.WriteOverride(ctx, "tok", later)
	if b, _ = svc.Beacon(ctx, "tok"); b.Watermark() != "2026-10-19T10:00:00.000Z" {
		t.Errorf("beacon = %s, want the newer write's stamp", b.Watermark())
	}

	v, _ = svc.ListVersions(ctx, "tok")
	if v.ScheduleVersion() != "2026-10-19T09:00:00.000Z" {
		t.Errorf("schedule version = %q", v.ScheduleVersion())
	}
	if got := v.Overrides["2026-10-19"]; got.UpdatedAt == nil || *got.UpdatedAt != "2026-10-19T08:30:00.000Z" {
		t.Errorf("override version = %+v", got)
	}

	other, _ := svc.ListVersions(ctx, "someone-else")
	if other.Schedule != nil || len(other.Overrides) != 0 {
		t.Errorf("tokens must not share documents: %+v", other)
	}
}

func TestReadOverride_NotFound(t *testing.T) {
	svc := NewService(repository.NewMemoryStore(), nil)
	if _, err := svc.ReadOverride(context.Background(), "tok", "2026-10-19"); !remote.HasCode(err, remote.CodeNotFound) {
		t.Errorf("err = %v, want not_found", err)
	}
	if _, err := svc.ReadOverride(context.Background(), "tok", "19.10.2026"); !remote.HasCode(err, remote.CodeBadInput) {
		t.Errorf("err = %v, want bad_input", err)
	}
}
