package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"

	"github.com/google/uuid"

	"weekplan/internal/model"
)

const (
	keySchedule    = "schedule"
	keyWatermarks  = "sync:watermarks"
	keyDeviceID    = "device:id"
	overridePrefix = "override:"
)

// PlannerRepository stores planner documents as JSON values in a Store.
// The plain loaders read a store outage as "nothing stored" and never write
// while degraded. The ForUpdate loaders return ErrStorageUnavailable instead,
// so read-modify-write paths cannot build on state they never saw. Failed
// writes are returned to the caller and are not retried.
type PlannerRepository struct {
	store    Store
	template model.Schedule
	logger   *log.Logger
}

func NewPlannerRepository(store Store, template model.Schedule, logger *log.Logger) *PlannerRepository {
	if logger == nil {
		logger = log.Default()
	}
	return &PlannerRepository{store: store, template: template.Clone(), logger: logger}
}

// load returns ok=false only when the key is missing; an outage is an error.
func (r *PlannerRepository) load(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := r.store.Load(ctx, key)
	if err != nil {
		return false, err
	}
	if !ok {
		return false, nil
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// degraded logs err and reports whether it is a store outage.
func (r *PlannerRepository) degraded(err error) bool {
	if !errors.Is(err, ErrStorageUnavailable) {
		return false
	}
	r.logger.Printf("[warn] %v", err)
	return true
}

func (r *PlannerRepository) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return r.store.Save(ctx, key, string(data))
}

// LoadSchedule returns the stored schedule, or the template while the store
// is unavailable.
func (r *PlannerRepository) LoadSchedule(ctx context.Context) (model.Schedule, error) {
	s, err := r.LoadScheduleForUpdate(ctx)
	if err != nil && r.degraded(err) {
		return r.template.Clone(), nil
	}
	return s, err
}

// LoadScheduleForUpdate returns the stored schedule, bootstrapping the
// template when none has ever been saved.
func (r *PlannerRepository) LoadScheduleForUpdate(ctx context.Context) (model.Schedule, error) {
	var s model.Schedule
	ok, err := r.load(ctx, keySchedule, &s)
	if err != nil {
		return model.Schedule{}, err
	}
	if ok {
		return s.Clone(), nil
	}

	s = r.template.Clone()
	if err := r.save(ctx, keySchedule, s); err != nil {
		r.logger.Printf("bootstrap schedule: %v", err)
	}
	return s, nil
}

func (r *PlannerRepository) SaveSchedule(ctx context.Context, s model.Schedule) error {
	return r.save(ctx, keySchedule, s.Clone())
}

func overrideKey(dateKey string) string {
	return overridePrefix + dateKey
}

// LoadOverride reports ok=false when nothing is stored for dateKey or the
// store is unavailable.
func (r *PlannerRepository) LoadOverride(ctx context.Context, dateKey string) (model.DayOverride, bool, error) {
	d, ok, err := r.LoadOverrideForUpdate(ctx, dateKey)
	if err != nil && r.degraded(err) {
		return model.DayOverride{}, false, nil
	}
	return d, ok, err
}

// LoadOverrideForUpdate reports ok=false only when nothing is stored for dateKey.
func (r *PlannerRepository) LoadOverrideForUpdate(ctx context.Context, dateKey string) (model.DayOverride, bool, error) {
	if _, err := model.ParseDateKey(dateKey); err != nil {
		return model.DayOverride{}, false, err
	}
	var d model.DayOverride
	ok, err := r.load(ctx, overrideKey(dateKey), &d)
	if err != nil || !ok {
		return model.DayOverride{}, false, err
	}
	if d.Tasks == nil {
		d.Tasks = []model.Task{}
	}
	return d, true, nil
}

func (r *PlannerRepository) SaveOverride(ctx context.Context, d model.DayOverride) error {
	if _, err := model.ParseDateKey(d.DateKey); err != nil {
		return err
	}
	if d.Tasks == nil {
		d.Tasks = []model.Task{}
	}
	return r.save(ctx, overrideKey(d.DateKey), d)
}

// OverrideDates lists every stored dateKey in ascending order, or none while
// the store is unavailable.
func (r *PlannerRepository) OverrideDates(ctx context.Context) ([]string, error) {
	dates, err := r.overrideDates(ctx)
	if err != nil && r.degraded(err) {
		return nil, nil
	}
	return dates, err
}

func (r *PlannerRepository) overrideDates(ctx context.Context) ([]string, error) {
	keys, err := r.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	var dates []string
	for _, k := range keys {
		if date, ok := strings.CutPrefix(k, overridePrefix); ok {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)
	return dates, nil
}

// ListOverrides loads every stored override keyed by date, skipping what an
// outage hides.
func (r *PlannerRepository) ListOverrides(ctx context.Context) (map[string]model.DayOverride, error) {
	dates, err := r.OverrideDates(ctx)
	if err != nil {
		return nil, err
	}
	return r.collect(ctx, dates, r.LoadOverride)
}

// ListOverridesForUpdate is ListOverrides failing on any outage.
func (r *PlannerRepository) ListOverridesForUpdate(ctx context.Context) (map[string]model.DayOverride, error) {
	dates, err := r.overrideDates(ctx)
	if err != nil {
		return nil, err
	}
	return r.collect(ctx, dates, r.LoadOverrideForUpdate)
}

type overrideLoader func(context.Context, string) (model.DayOverride, bool, error)

func (r *PlannerRepository) collect(ctx context.Context, dates []string, load overrideLoader) (map[string]model.DayOverride, error) {
	out := make(map[string]model.DayOverride, len(dates))
	for _, date := range dates {
		d, ok, err := load(ctx, date)
		if err != nil {
			return nil, err
		}
		if ok {
			out[date] = d
		}
	}
	return out, nil
}

// LoadWatermarks returns fresh watermarks while the store is unavailable,
// which costs a full pull on the next cycle.
func (r *PlannerRepository) LoadWatermarks(ctx context.Context) (model.Watermarks, error) {
	w := model.NewWatermarks()
	if _, err := r.load(ctx, keyWatermarks, &w); err != nil {
		if r.degraded(err) {
			return model.NewWatermarks(), nil
		}
		return model.NewWatermarks(), err
	}
	if w.Overrides == nil {
		w.Overrides = make(map[string]string)
	}
	return w, nil
}

func (r *PlannerRepository) SaveWatermarks(ctx context.Context, w model.Watermarks) error {
	return r.save(ctx, keyWatermarks, w)
}

// DeviceID returns configured when set, otherwise the id stored on this
// device, generating and saving one on first use. During an outage the
// generated id lasts for this process only.
func (r *PlannerRepository) DeviceID(ctx context.Context, configured string) (string, error) {
	if id := strings.TrimSpace(configured); id != "" {
		return id, nil
	}
	var id string
	ok, err := r.load(ctx, keyDeviceID, &id)
	if err != nil {
		if r.degraded(err) {
			return uuid.NewString(), nil
		}
		return "", err
	}
	if ok && id != "" {
		return id, nil
	}
	id = uuid.NewString()
	if err := r.save(ctx, keyDeviceID, id); err != nil {
		r.logger.Printf("save device id: %v", err)
	}
	return id, nil
}
