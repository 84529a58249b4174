package merge

import (
	"testing"

	"weekplan/internal/model"
)

func meta(updatedAt string) *model.Meta {
	return &model.Meta{UpdatedAt: updatedAt}
}

func TestPick(t *testing.T) {
	tests := []struct {
		name     string
		local    *model.Meta
		incoming *model.Meta
		want     Side
	}{
		{name: "both absent", want: Local},
		{name: "both empty updatedAt", local: &model.Meta{}, incoming: &model.Meta{}, want: Local},
		{name: "only incoming stamped", incoming: meta("2026-01-01T00:00:00.000Z"), want: Incoming},
		{name: "only local stamped", local: meta("2026-01-01T00:00:00.000Z"), want: Local},
		{name: "incoming newer", local: meta("2026-01-01T00:00:00.000Z"), incoming: meta("2026-01-01T00:00:00.001Z"), want: Incoming},
		{name: "local newer", local: meta("2026-01-02T00:00:00.000Z"), incoming: meta("2026-01-01T00:00:00.000Z"), want: Local},
		{name: "tie", local: meta("2026-01-01T00:00:00.000Z"), incoming: meta("2026-01-01T00:00:00.000Z"), want: Local},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Pick(tt.local, tt.incoming); got != tt.want {
				t.Errorf("Pick() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolve_WinnerIsOrderIndependent(t *testing.T) {
	older := model.Task{ID: "x", Title: "older", Meta: meta("2026-01-01T00:00:00.000Z")}
	newer := model.Task{ID: "x", Title: "newer", Meta: meta("2026-02-01T00:00:00.000Z")}

	if got := Resolve(older, newer); got.Title != "newer" {
		t.Errorf("Resolve(older, newer) = %q", got.Title)
	}
	if got := Resolve(newer, older); got.Title != "newer" {
		t.Errorf("Resolve(newer, older) = %q", got.Title)
	}

	a := model.Task{ID: "x", Title: "first"}
	b := model.Task{ID: "x", Title: "second"}
	if got := Resolve(a, b); got.Title != "first" {
		t.Errorf("unstamped pair should keep the first argument, got %q", got.Title)
	}
}
