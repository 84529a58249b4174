package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"
	"time"

	"weekplan/internal/model"
	"weekplan/internal/repository"
	"weekplan/internal/snapshot"
)

// flakyStore fails the next failLoads reads of keys starting with prefix.
type flakyStore struct {
	*repository.MemoryStore
	prefix    string
	failLoads int
}

func (f *flakyStore) Load(ctx context.Context, key string) (string, bool, error) {
	if f.failLoads > 0 && strings.HasPrefix(key, f.prefix) {
		f.failLoads--
		return "", false, fmt.Errorf("load %s: %w", key, repository.ErrStorageUnavailable)
	}
	return f.MemoryStore.Load(ctx, key)
}

func (f *flakyStore) failNext(prefix string) {
	f.prefix, f.failLoads = prefix, 1
}

func newFlakyPlanner(t *testing.T) (*PlannerService, *repository.PlannerRepository, *recordingPusher, *flakyStore) {
	t.Helper()
	store := &flakyStore{MemoryStore: repository.NewMemoryStore()}
	repo := repository.NewPlannerRepository(store, testTemplate(), quiet)
	clock := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	svc := NewPlannerService(repo, model.NewStamper("dev", func() time.Time { return clock }), quiet)
	p := &recordingPusher{}
	svc.SetPusher(p)
	return svc, repo, p, store
}

func TestScheduleEdit_OutageDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	svc, repo, p, store := newFlakyPlanner(t)

	if _, err := svc.AddTask(ctx, model.Monday, model.TaskInput{ID: "keep", Title: "Keep"}); err != nil {
		t.Fatalf("AddTask: %v", err)
	}

	store.failNext("")
	if _, err := svc.AddTask(ctx, model.Monday, model.TaskInput{Title: "Blind"}); !errors.Is(err, repository.ErrStorageUnavailable) {
		t.Fatalf("AddTask during outage: %v", err)
	}
	if len(p.schedules) != 1 {
		t.Errorf("outage edit was pushed: %d pushes", len(p.schedules))
	}
	s, _ := repo.LoadSchedule(ctx)
	if _, ok := s.FindTask(model.Monday, "keep"); !ok {
		t.Errorf("stored schedule lost its task: %+v", s.Tasks(model.Monday))
	}
}

func TestDayEdit_OutageDoesNotOverwrite(t *testing.T) {
	ctx := context.Background()
	svc, repo, p, store := newFlakyPlanner(t)

	if _, _, err := svc.BumpDayTask(ctx, monday, "t1", 40); err != nil {
		t.Fatalf("BumpDayTask: %v", err)
	}

	store.failNext("override:")
	if _, _, err := svc.BumpDayTask(ctx, monday, "t2", 10); !errors.Is(err, repository.ErrStorageUnavailable) {
		t.Fatalf("BumpDayTask during outage: %v", err)
	}
	if len(p.overrides) != 1 {
		t.Errorf("outage edit was pushed: %d pushes", len(p.overrides))
	}
	d, ok, _ := repo.LoadOverride(ctx, monday)
	if task, _ := d.Task("t1"); !ok || task.DonePercent != 40 {
		t.Errorf("stored progress lost: %+v", d.Tasks)
	}
}

func TestApply_OutageIsReported(t *testing.T) {
	ctx := context.Background()
	svc, repo, _, store := newFlakyPlanner(t)

	local, _, _ := svc.BumpDayTask(ctx, monday, "t1", 40)
	older := model.DayOverride{DateKey: monday, Tasks: []model.Task{}, Meta: &model.Meta{UpdatedAt: "2026-10-18T00:00:00.000Z"}}

	store.failNext("override:")
	if err := svc.ApplyOverride(ctx, older); !errors.Is(err, repository.ErrStorageUnavailable) {
		t.Fatalf("ApplyOverride during outage: %v", err)
	}
	if got, _, _ := repo.LoadOverride(ctx, monday); got.Meta.Version() != local.Meta.Version() {
		t.Errorf("older day replaced local during outage: %+v", got.Meta)
	}

	_, _ = svc.AddTask(ctx, model.Monday, model.TaskInput{ID: "keep", Title: "Keep"})
	store.failNext("")
	if err := svc.ApplySchedule(ctx, model.Schedule{Meta: &model.Meta{UpdatedAt: "2026-10-20T00:00:00.000Z"}}); !errors.Is(err, repository.ErrStorageUnavailable) {
		t.Fatalf("ApplySchedule during outage: %v", err)
	}
	s, _ := repo.LoadSchedule(ctx)
	if _, ok := s.FindTask(model.Monday, "keep"); !ok {
		t.Errorf("stored schedule lost its task: %+v", s.Tasks(model.Monday))
	}
}

func TestImport_OutageIsReported(t *testing.T) {
	ctx := context.Background()
	svc, _, p, store := newFlakyPlanner(t)

	doc := snapshot.Document{
		Format:   snapshot.Format,
		Schedule: &model.Schedule{Week: model.Week{model.Monday: {{ID: "x", Title: "X"}}}},
	}
	data, _ := json.Marshal(doc)

	store.failNext("")
	if _, err := svc.Import(ctx, data); !errors.Is(err, repository.ErrStorageUnavailable) {
		t.Fatalf("Import during outage: %v", err)
	}
	if len(p.schedules) != 0 {
		t.Errorf("import during outage pushed %d schedules", len(p.schedules))
	}
}
