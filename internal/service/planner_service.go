package service

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"weekplan/internal/merge"
	"weekplan/internal/model"
	"weekplan/internal/remote"
	"weekplan/internal/repository"
	"weekplan/internal/snapshot"
)

// Pusher sends freshly stamped entities to the remote authority.
type Pusher interface {
	PushSchedule(ctx context.Context, s model.Schedule) (remote.WriteResult, error)
	PushOverride(ctx context.Context, d model.DayOverride) (remote.WriteResult, error)
}

// PlannerService runs every edit as load, stamp, persist, push. It also
// applies versions pulled by the sync loop through the merge engine.
type PlannerService struct {
	repo    *repository.PlannerRepository
	stamper *model.Stamper
	logger  *log.Logger

	mu     sync.Mutex
	pusher Pusher
}

func NewPlannerService(repo *repository.PlannerRepository, stamper *model.Stamper, logger *log.Logger) *PlannerService {
	if logger == nil {
		logger = log.Default()
	}
	return &PlannerService{repo: repo, stamper: stamper, logger: logger}
}

// SetPusher enables pushing after local edits. Nil disables it.
func (s *PlannerService) SetPusher(p Pusher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pusher = p
}

func (s *PlannerService) DeviceID() string {
	return s.stamper.DeviceID()
}

func (s *PlannerService) Schedule(ctx context.Context) (model.Schedule, error) {
	return s.repo.LoadSchedule(ctx)
}

// Day returns the stored plan for dateKey. When nothing is stored the plan is
// derived from the schedule and reported with stored=false; it is not saved.
func (s *PlannerService) Day(ctx context.Context, dateKey string) (day model.DayOverride, stored bool, err error) {
	if _, err := model.ParseDateKey(dateKey); err != nil {
		return model.DayOverride{}, false, err
	}
	d, ok, err := s.repo.LoadOverride(ctx, dateKey)
	if err != nil {
		return model.DayOverride{}, false, err
	}
	if ok {
		return d, true, nil
	}
	sched, err := s.repo.LoadSchedule(ctx)
	if err != nil {
		return model.DayOverride{}, false, err
	}
	d, err = sched.MakeOverrideForDate(dateKey, model.Stamp{})
	if err != nil {
		return model.DayOverride{}, false, err
	}
	d.Meta = nil
	for i := range d.Tasks {
		d.Tasks[i].Meta = nil
	}
	return d, false, nil
}

func (s *PlannerService) AddTask(ctx context.Context, weekday string, in model.TaskInput) (model.Task, error) {
	var task model.Task
	_, err := s.editSchedule(ctx, "add-task", func(cur model.Schedule, st model.Stamp) (model.Schedule, bool, error) {
		next, t, err := cur.WithNewTask(weekday, in, st)
		task = t
		return next, err == nil, err
	})
	return task, err
}

func (s *PlannerService) EditTask(ctx context.Context, weekday, id string, p model.TaskPatch) (bool, error) {
	return s.editSchedule(ctx, "edit-task", func(cur model.Schedule, st model.Stamp) (model.Schedule, bool, error) {
		return cur.WithEditedTask(weekday, id, p, st)
	})
}

func (s *PlannerService) RemoveTask(ctx context.Context, weekday, id string) (bool, error) {
	return s.editSchedule(ctx, "remove-task", func(cur model.Schedule, st model.Stamp) (model.Schedule, bool, error) {
		return cur.WithTaskRemoved(weekday, id, st)
	})
}

type scheduleEdit func(cur model.Schedule, st model.Stamp) (model.Schedule, bool, error)

func (s *PlannerService) editSchedule(ctx context.Context, action string, fn scheduleEdit) (bool, error) {
	s.mu.Lock()
	cur, err := s.repo.LoadScheduleForUpdate(ctx)
	if err != nil {
		s.mu.Unlock()
		return false, err
	}
	next, changed, err := fn(cur, s.stamper.Stamp(action))
	if err != nil || !changed {
		s.mu.Unlock()
		return false, err
	}
	if err := s.repo.SaveSchedule(ctx, next); err != nil {
		s.mu.Unlock()
		return false, fmt.Errorf("save schedule: %w", err)
	}
	pusher := s.pusher
	s.mu.Unlock()

	s.pushSchedule(ctx, pusher, next)
	return true, nil
}

type dayEdit func(d model.DayOverride, sched model.Schedule, st model.Stamp) (model.DayOverride, bool)

// editDay materializes the day from the schedule on first write. Nothing is
// saved when fn reports no change.
func (s *PlannerService) editDay(ctx context.Context, dateKey, action string, fn dayEdit) (model.DayOverride, bool, error) {
	if _, err := model.ParseDateKey(dateKey); err != nil {
		return model.DayOverride{}, false, err
	}

	s.mu.Lock()
	sched, err := s.repo.LoadScheduleForUpdate(ctx)
	if err != nil {
		s.mu.Unlock()
		return model.DayOverride{}, false, err
	}
	st := s.stamper.Stamp(action)
	cur, ok, err := s.repo.LoadOverrideForUpdate(ctx, dateKey)
	if err != nil {
		s.mu.Unlock()
		return model.DayOverride{}, false, err
	}
	if !ok {
		if cur, err = sched.MakeOverrideForDate(dateKey, st); err != nil {
			s.mu.Unlock()
			return model.DayOverride{}, false, err
		}
	}

	next, changed := fn(cur, sched, st)
	if !changed {
		s.mu.Unlock()
		return cur, false, nil
	}
	if err := s.repo.SaveOverride(ctx, next); err != nil {
		s.mu.Unlock()
		return model.DayOverride{}, false, fmt.Errorf("save override %s: %w", dateKey, err)
	}
	pusher := s.pusher
	s.mu.Unlock()

	s.pushOverride(ctx, pusher, next)
	return next, true, nil
}

// EnsureDayTask adds id to the day from the schedule when it is missing.
func (s *PlannerService) EnsureDayTask(ctx context.Context, dateKey, id string) (model.DayOverride, bool, error) {
	d, changed, err := s.editDay(ctx, dateKey, "ensure-task", func(d model.DayOverride, sched model.Schedule, st model.Stamp) (model.DayOverride, bool) {
		if d.HasTask(id) {
			return d, false
		}
		return d.EnsureTask(id, sched, st)
	})
	if err != nil {
		return d, false, err
	}
	return d, changed || d.HasTask(id), nil
}

// withEnsured resolves id into the day before applying op.
func withEnsured(id string, op func(d model.DayOverride, st model.Stamp) (model.DayOverride, bool)) dayEdit {
	return func(d model.DayOverride, sched model.Schedule, st model.Stamp) (model.DayOverride, bool) {
		d, ok := d.EnsureTask(id, sched, st)
		if !ok {
			return d, false
		}
		return op(d, st)
	}
}

func (s *PlannerService) BumpDayTask(ctx context.Context, dateKey, id string, delta int) (model.DayOverride, bool, error) {
	return s.editDay(ctx, dateKey, "bump", withEnsured(id, func(d model.DayOverride, st model.Stamp) (model.DayOverride, bool) {
		return d.BumpTaskPercent(id, delta, st)
	}))
}

func (s *PlannerService) ToggleDayTask(ctx context.Context, dateKey, id string) (model.DayOverride, bool, error) {
	return s.editDay(ctx, dateKey, "toggle", withEnsured(id, func(d model.DayOverride, st model.Stamp) (model.DayOverride, bool) {
		return d.ToggleTaskDone(id, st)
	}))
}

func (s *PlannerService) EditDayTask(ctx context.Context, dateKey, id string, p model.TaskPatch) (model.DayOverride, bool, error) {
	if err := p.Validate(); err != nil {
		return model.DayOverride{}, false, err
	}
	return s.editDay(ctx, dateKey, "edit-day-task", withEnsured(id, func(d model.DayOverride, st model.Stamp) (model.DayOverride, bool) {
		return d.EditTaskInline(id, p, st)
	}))
}

func (s *PlannerService) RemoveDayTask(ctx context.Context, dateKey, id string) (model.DayOverride, bool, error) {
	return s.editDay(ctx, dateKey, "remove-day-task", func(d model.DayOverride, _ model.Schedule, st model.Stamp) (model.DayOverride, bool) {
		return d.RemoveTask(id, st)
	})
}

func (s *PlannerService) ClearDay(ctx context.Context, dateKey string) (model.DayOverride, error) {
	d, _, err := s.editDay(ctx, dateKey, "clear-day", func(d model.DayOverride, _ model.Schedule, st model.Stamp) (model.DayOverride, bool) {
		return d.ClearTasks(st), true
	})
	return d, err
}

// ResetDay discards whatever is stored for dateKey and rebuilds it from the schedule.
func (s *PlannerService) ResetDay(ctx context.Context, dateKey string) (model.DayOverride, error) {
	d, _, err := s.editDay(ctx, dateKey, "reset-day", func(d model.DayOverride, sched model.Schedule, st model.Stamp) (model.DayOverride, bool) {
		fresh, err := sched.MakeOverrideForDate(d.DateKey, st)
		if err != nil {
			return d, false
		}
		if d.Meta != nil {
			fresh.Meta = d.Meta.Touch(st)
		}
		return fresh, true
	})
	return d, err
}

// ApplySchedule merges a pulled schedule into local state.
func (s *PlannerService) ApplySchedule(ctx context.Context, incoming model.Schedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	local, err := s.repo.LoadScheduleForUpdate(ctx)
	if err != nil {
		return err
	}
	merged := merge.Schedules(&local, &incoming)
	return s.repo.SaveSchedule(ctx, *merged)
}

// ApplyOverride keeps whichever day wins last-write-wins. A local winner is
// not rewritten.
func (s *PlannerService) ApplyOverride(ctx context.Context, incoming model.DayOverride) error {
	if _, err := model.ParseDateKey(incoming.DateKey); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	local, ok, err := s.repo.LoadOverrideForUpdate(ctx, incoming.DateKey)
	if err != nil {
		return err
	}
	if ok && merge.Pick(local.Meta, incoming.Meta) == merge.Local {
		return nil
	}
	return s.repo.SaveOverride(ctx, incoming)
}

func (s *PlannerService) Export(ctx context.Context, now time.Time) (snapshot.Document, error) {
	return snapshot.Export(ctx, s.repo, s.DeviceID(), now)
}

// Import merges a snapshot into local state and pushes the entities it carried.
func (s *PlannerService) Import(ctx context.Context, data []byte) (snapshot.Result, error) {
	doc, err := snapshot.Decode(data)
	if err != nil {
		return snapshot.Result{}, err
	}

	s.mu.Lock()
	res, err := snapshot.Import(ctx, forUpdate{s.repo}, doc)
	pusher := s.pusher
	s.mu.Unlock()
	if err != nil || pusher == nil {
		return res, err
	}

	if doc.Schedule != nil && res.ScheduleWritten {
		if sched, err := s.repo.LoadSchedule(ctx); err == nil && sched.Meta != nil {
			s.pushSchedule(ctx, pusher, sched)
		}
	}
	for _, key := range merge.DateKeys(doc.Overrides) {
		d, ok, err := s.repo.LoadOverride(ctx, key)
		if err != nil || !ok || d.Meta == nil {
			continue
		}
		s.pushOverride(ctx, pusher, d)
	}
	return res, nil
}

// forUpdate makes an import fail on a store outage rather than merge the
// snapshot over state it could not read.
type forUpdate struct {
	repo *repository.PlannerRepository
}

func (f forUpdate) LoadSchedule(ctx context.Context) (model.Schedule, error) {
	return f.repo.LoadScheduleForUpdate(ctx)
}

func (f forUpdate) ListOverrides(ctx context.Context) (map[string]model.DayOverride, error) {
	return f.repo.ListOverridesForUpdate(ctx)
}

func (f forUpdate) SaveSchedule(ctx context.Context, sched model.Schedule) error {
	return f.repo.SaveSchedule(ctx, sched)
}

func (f forUpdate) SaveOverride(ctx context.Context, d model.DayOverride) error {
	return f.repo.SaveOverride(ctx, d)
}

func (s *PlannerService) pushSchedule(ctx context.Context, p Pusher, sched model.Schedule) {
	if p == nil {
		return
	}
	res, err := p.PushSchedule(ctx, sched)
	switch {
	case err != nil:
		s.logger.Printf("push schedule: %v", err)
	case res.Stale():
		s.logger.Printf("[info] push schedule stale, remote has %s", derefString(res.UpdatedAt))
	}
}

func (s *PlannerService) pushOverride(ctx context.Context, p Pusher, d model.DayOverride) {
	if p == nil {
		return
	}
	res, err := p.PushOverride(ctx, d)
	switch {
	case err != nil:
		s.logger.Printf("push override %s: %v", d.DateKey, err)
	case res.Stale():
		s.logger.Printf("[info] push override %s stale, remote has %s", d.DateKey, derefString(res.UpdatedAt))
	}
}

func derefString(p *string) string {
	if p == nil {
		return ""
	}
	return *p
}
