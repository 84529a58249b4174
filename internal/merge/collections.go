package merge

import (
	"sort"

	"weekplan/internal/model"
)

// Tasks unions two task lists by id. Ids on one side only pass through; ids on
// both sides resolve per task. Local order comes first, then incoming-only tasks
// in their incoming order.
func Tasks(local, incoming []model.Task) []model.Task {
	byID := make(map[string]model.Task, len(incoming))
	for _, t := range incoming {
		byID[t.ID] = t
	}

	out := make([]model.Task, 0, len(local)+len(incoming))
	seen := make(map[string]struct{}, len(local))
	for _, l := range local {
		seen[l.ID] = struct{}{}
		if r, ok := byID[l.ID]; ok {
			out = append(out, Resolve(l, r).Clone())
			continue
		}
		out = append(out, l.Clone())
	}
	for _, r := range incoming {
		if _, ok := seen[r.ID]; ok {
			continue
		}
		seen[r.ID] = struct{}{}
		out = append(out, r.Clone())
	}
	return out
}

// Schedules merges weekday by weekday at task granularity. The merged schedule
// keeps the Meta of whichever whole schedule wins Pick. Nil means absent.
func Schedules(local, incoming *model.Schedule) *model.Schedule {
	switch {
	case local == nil && incoming == nil:
		return nil
	case local == nil:
		c := incoming.Clone()
		return &c
	case incoming == nil:
		c := local.Clone()
		return &c
	}

	merged := model.Schedule{Week: make(model.Week, len(model.Weekdays))}
	for _, day := range model.Weekdays {
		merged.Week[day] = Tasks(local.Tasks(day), incoming.Tasks(day))
	}
	merged.Meta = Resolve(*local, *incoming).Meta.Clone()
	return &merged
}

// Overrides merges two dateKey -> DayOverride maps over the union of keys.
// A date present on both sides is decided as a whole document; there is no
// per-task merge inside one day.
func Overrides(local, incoming map[string]model.DayOverride) map[string]model.DayOverride {
	out := make(map[string]model.DayOverride, len(local)+len(incoming))
	for key, l := range local {
		if r, ok := incoming[key]; ok {
			out[key] = Resolve(l, r).Clone()
			continue
		}
		out[key] = l.Clone()
	}
	for key, r := range incoming {
		if _, ok := out[key]; !ok {
			out[key] = r.Clone()
		}
	}
	return out
}

// DateKeys returns the keys of m in ascending order.
func DateKeys(m map[string]model.DayOverride) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
