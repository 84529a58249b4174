package syncer

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"sync/atomic"

	"weekplan/internal/model"
	"weekplan/internal/remote"
)

// ErrCancelled is returned by RunCycle once Cancel has been called.
var ErrCancelled = errors.New("sync cancelled")

// Applier receives pulled versions. Implementations merge them with current
// local state instead of overwriting it.
type Applier interface {
	ApplySchedule(ctx context.Context, s model.Schedule) error
	ApplyOverride(ctx context.Context, d model.DayOverride) error
}

// WatermarkStore persists the watermark map between runs.
type WatermarkStore interface {
	LoadWatermarks(ctx context.Context) (model.Watermarks, error)
	SaveWatermarks(ctx context.Context, w model.Watermarks) error
}

// FailurePolicy decides what a non-transport pull failure does to the cycle.
type FailurePolicy int

const (
	// AbortCycle stops the remaining pulls and skips the beacon commit.
	AbortCycle FailurePolicy = iota
	// IsolateEntity skips the failed entity and carries on.
	IsolateEntity
)

func (p FailurePolicy) String() string {
	if p == IsolateEntity {
		return "isolate"
	}
	return "abort"
}

// ParseFailurePolicy accepts "abort" or "isolate"; empty means abort.
func ParseFailurePolicy(s string) (FailurePolicy, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "abort":
		return AbortCycle, nil
	case "isolate":
		return IsolateEntity, nil
	default:
		return AbortCycle, fmt.Errorf("unknown failure policy %q", s)
	}
}

type Options struct {
	Policy FailurePolicy
	Logger *log.Logger
}

// CycleReport summarizes one poll cycle.
type CycleReport struct {
	Beacon           string
	Unchanged        bool
	ScheduleApplied  bool
	OverridesApplied []string
	Skipped          []string
	Aborted          bool
	Committed        bool
}

func (r CycleReport) String() string {
	switch {
	case r.Unchanged:
		return "beacon unchanged"
	case r.Aborted:
		return fmt.Sprintf("aborted: schedule=%t overrides=%d skipped=%d", r.ScheduleApplied, len(r.OverridesApplied), len(r.Skipped))
	default:
		return fmt.Sprintf("beacon=%s schedule=%t overrides=%d skipped=%d", r.Beacon, r.ScheduleApplied, len(r.OverridesApplied), len(r.Skipped))
	}
}

// Orchestrator owns the watermark map; everything else only reads it.
type Orchestrator struct {
	remote remote.Authority
	apply  Applier
	store  WatermarkStore
	policy FailurePolicy
	logger *log.Logger

	cycleMu   sync.Mutex
	saveMu    sync.Mutex // orders persists; taken before mu
	mu        sync.Mutex
	marks     model.Watermarks
	loaded    bool
	cancelled atomic.Bool
}

func New(authority remote.Authority, apply Applier, store WatermarkStore, opts Options) *Orchestrator {
	logger := opts.Logger
	if logger == nil {
		logger = log.New(os.Stderr, "[sync] ", log.LstdFlags)
	}
	return &Orchestrator{
		remote: authority,
		apply:  apply,
		store:  store,
		policy: opts.Policy,
		logger: logger,
		marks:  model.NewWatermarks(),
	}
}

// Cancel stops future cycles.
func (o *Orchestrator) Cancel() {
	o.cancelled.Store(true)
}

func (o *Orchestrator) Cancelled() bool {
	return o.cancelled.Load()
}

// Watermarks returns a copy of the current map.
func (o *Orchestrator) Watermarks(ctx context.Context) model.Watermarks {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.ensureLoaded(ctx)
	return o.marks.Clone()
}

// ensureLoaded reads persisted watermarks once. Callers hold mu.
func (o *Orchestrator) ensureLoaded(ctx context.Context) {
	if o.loaded || o.store == nil {
		o.loaded = true
		return
	}
	w, err := o.store.LoadWatermarks(ctx)
	if err != nil {
		o.logger.Printf("load watermarks: %v", err)
		w = model.NewWatermarks()
	}
	o.marks = w.Clone()
	o.loaded = true
}

// update mutates the watermark map and persists it. Copies are saved in the
// order they were taken, so the stored map never goes backwards.
func (o *Orchestrator) update(ctx context.Context, fn func(w *model.Watermarks)) {
	o.saveMu.Lock()
	defer o.saveMu.Unlock()

	o.mu.Lock()
	o.ensureLoaded(ctx)
	fn(&o.marks)
	snapshot := o.marks.Clone()
	o.mu.Unlock()

	if o.store == nil {
		return
	}
	if err := o.store.SaveWatermarks(ctx, snapshot); err != nil {
		o.logger.Printf("save watermarks: %v", err)
	}
}

func newer(remoteAt, localAt string) bool {
	return remoteAt != "" && remoteAt > localAt
}

func maxStamp(a, b string) string {
	if b > a {
		return b
	}
	return a
}

// skippable reports pull failures that never abort a cycle.
func skippable(err error) bool {
	return errors.Is(err, remote.ErrUnreachable) || remote.HasCode(err, remote.CodeNotFound)
}

// RunCycle performs one beacon, versions, pull, commit pass.
func (o *Orchestrator) RunCycle(ctx context.Context) (CycleReport, error) {
	var report CycleReport
	if o.Cancelled() {
		return report, ErrCancelled
	}

	o.cycleMu.Lock()
	defer o.cycleMu.Unlock()

	local := o.Watermarks(ctx)

	beacon, err := o.remote.Beacon(ctx)
	if err != nil {
		return report, fmt.Errorf("beacon: %w", err)
	}
	if o.Cancelled() {
		return report, ErrCancelled
	}
	report.Beacon = beacon.Watermark()
	if report.Beacon == local.Beacon {
		report.Unchanged = true
		return report, nil
	}

	versions, err := o.remote.ListVersions(ctx)
	if err != nil {
		return report, fmt.Errorf("list versions: %w", err)
	}
	if o.Cancelled() {
		return report, ErrCancelled
	}

	if at := versions.ScheduleVersion(); newer(at, local.Schedule) {
		if err := o.pullSchedule(ctx, at); err != nil {
			if abort, rerr := o.handle(&report, "schedule", err); abort {
				return report, rerr
			}
		} else {
			report.ScheduleApplied = true
		}
	}

	for _, date := range sortedKeys(versions.Overrides) {
		at := ""
		if v := versions.Overrides[date].UpdatedAt; v != nil {
			at = *v
		}
		if !newer(at, local.Overrides[date]) {
			continue
		}
		if err := o.pullOverride(ctx, date, at); err != nil {
			if abort, rerr := o.handle(&report, date, err); abort {
				return report, rerr
			}
			continue
		}
		report.OverridesApplied = append(report.OverridesApplied, date)
	}

	if o.Cancelled() {
		return report, ErrCancelled
	}
	o.update(ctx, func(w *model.Watermarks) {
		w.Beacon = report.Beacon
	})
	report.Committed = true
	o.logger.Printf("[info] sync cycle: %s", report)
	return report, nil
}

// handle applies the failure policy to one failed pull and reports whether
// the cycle must stop.
func (o *Orchestrator) handle(report *CycleReport, entity string, err error) (bool, error) {
	if errors.Is(err, ErrCancelled) {
		return true, err
	}
	if skippable(err) || o.policy == IsolateEntity {
		o.logger.Printf("pull %s skipped: %v", entity, err)
		report.Skipped = append(report.Skipped, entity)
		return false, nil
	}
	report.Aborted = true
	o.logger.Printf("pull %s failed, aborting cycle: %v", entity, err)
	return true, fmt.Errorf("pull %s: %w", entity, err)
}

func (o *Orchestrator) pullSchedule(ctx context.Context, at string) error {
	s, err := o.remote.ReadSchedule(ctx)
	if err != nil {
		return err
	}
	if o.Cancelled() {
		return ErrCancelled
	}
	if err := o.apply.ApplySchedule(ctx, s); err != nil {
		return fmt.Errorf("apply schedule: %w", err)
	}
	o.update(ctx, func(w *model.Watermarks) {
		w.Schedule = maxStamp(w.Schedule, maxStamp(at, s.Meta.Version()))
	})
	return nil
}

func (o *Orchestrator) pullOverride(ctx context.Context, date, at string) error {
	d, err := o.remote.ReadOverride(ctx, date)
	if err != nil {
		return err
	}
	if o.Cancelled() {
		return ErrCancelled
	}
	if d.DateKey != date {
		return fmt.Errorf("override for %s came back as %q", date, d.DateKey)
	}
	if err := o.apply.ApplyOverride(ctx, d); err != nil {
		return fmt.Errorf("apply override: %w", err)
	}
	o.update(ctx, func(w *model.Watermarks) {
		w.Overrides[date] = maxStamp(w.Overrides[date], maxStamp(at, d.Meta.Version()))
	})
	return nil
}

// PushSchedule sends s to the authority. A stale result leaves local state alone.
func (o *Orchestrator) PushSchedule(ctx context.Context, s model.Schedule) (remote.WriteResult, error) {
	res, err := o.remote.WriteSchedule(ctx, s)
	if err != nil {
		return res, fmt.Errorf("push schedule: %w", err)
	}
	if !res.Applied {
		return res, nil
	}
	at := appliedAt(res, s.Meta)
	o.update(ctx, func(w *model.Watermarks) {
		w.Schedule = maxStamp(w.Schedule, at)
		w.Beacon = maxStamp(w.Beacon, at)
	})
	return res, nil
}

// PushOverride sends one day to the authority.
func (o *Orchestrator) PushOverride(ctx context.Context, d model.DayOverride) (remote.WriteResult, error) {
	res, err := o.remote.WriteOverride(ctx, d)
	if err != nil {
		return res, fmt.Errorf("push override %s: %w", d.DateKey, err)
	}
	if !res.Applied {
		return res, nil
	}
	at := appliedAt(res, d.Meta)
	o.update(ctx, func(w *model.Watermarks) {
		w.Overrides[d.DateKey] = maxStamp(w.Overrides[d.DateKey], at)
		w.Beacon = maxStamp(w.Beacon, at)
	})
	return res, nil
}

func appliedAt(res remote.WriteResult, m *model.Meta) string {
	if res.UpdatedAt != nil && *res.UpdatedAt != "" {
		return *res.UpdatedAt
	}
	return m.Version()
}

func sortedKeys(m map[string]remote.Version) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
