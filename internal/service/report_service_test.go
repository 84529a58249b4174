package service

import (
	"context"
	"strings"
	"testing"
	"time"

	"weekplan/internal/model"
)

func TestFormatTask(t *testing.T) {
	cases := []struct {
		task model.Task
		want string
	}{
		{model.Task{Title: "Read <b>", Minutes: 20}, "⬜ Read &lt;b&gt; · 20 мин"},
		{model.Task{Title: "Math", Minutes: 30, DonePercent: 40}, "🟡 Math · 30 мин · 40%"},
		{model.Task{Title: "Run", DonePercent: 100, Done: true}, "✅ Run"},
	}
	for _, tc := range cases {
		if got := FormatTask(tc.task); got != tc.want {
			t.Errorf("FormatTask(%+v) = %q, want %q", tc.task, got, tc.want)
		}
	}
}

func TestDailySummary(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newPlanner(t)
	_, _, _ = svc.ToggleDayTask(ctx, monday, "t1")

	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	text, err := NewReportService(svc).DailySummary(ctx, now)
	if err != nil {
		t.Fatalf("DailySummary: %v", err)
	}
	for _, want := range []string{"Понедельник, 19.10.2026", "✅ Physics", "⬜ Essay", "Всего: 60 мин · выполнено 66%"} {
		if !strings.Contains(text, want) {
			t.Errorf("summary missing %q:\n%s", want, text)
		}
	}

	empty := FormatDay(model.DayOverride{DateKey: "2026-10-24"}, time.Date(2026, 10, 24, 0, 0, 0, 0, time.UTC))
	if !strings.Contains(empty, "задач нет") {
		t.Errorf("empty day = %q", empty)
	}
}
