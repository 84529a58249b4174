// Package authority is the remote arbiter of record: it stores one schedule
// and a set of day overrides per auth token and accepts a write only when its
// client timestamp is strictly newer than the stored one.
package authority

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"log"
	"os"
	"sort"
	"strings"
	"sync"
	"time"

	"weekplan/internal/model"
	"weekplan/internal/remote"
	"weekplan/internal/repository"
)

// Service serializes every check-and-write under one mutex.
type Service struct {
	store  repository.Store
	logger *log.Logger
	mu     sync.Mutex
}

func NewService(store repository.Store, logger *log.Logger) *Service {
	if logger == nil {
		logger = log.New(os.Stderr, "[authority] ", log.LstdFlags)
	}
	return &Service{store: store, logger: logger}
}

type beaconDoc struct {
	UpdatedAt string `json:"updatedAt"`
	DeviceID  string `json:"deviceId"`
}

// namespace keeps raw tokens out of storage keys.
func namespace(token string) (string, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return "", &remote.Error{Code: remote.CodeUnauthorized}
	}
	sum := sha256.Sum256([]byte(token))
	return hex.EncodeToString(sum[:8]), nil
}

func scheduleKey(ns string) string { return ns + "/schedule" }
func beaconKey(ns string) string   { return ns + "/beacon" }
func overridePrefix(ns string) string {
	return ns + "/override/"
}

func (s *Service) load(ctx context.Context, key string, dst any) (bool, error) {
	raw, ok, err := s.store.Load(ctx, key)
	if err != nil || !ok {
		return false, err
	}
	if err := json.Unmarshal([]byte(raw), dst); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

func (s *Service) save(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return s.store.Save(ctx, key, string(data))
}

func (s *Service) Beacon(ctx context.Context, token string) (remote.Beacon, error) {
	ns, err := namespace(token)
	if err != nil {
		return remote.Beacon{}, err
	}
	var b beaconDoc
	if _, err := s.load(ctx, beaconKey(ns), &b); err != nil {
		return remote.Beacon{}, err
	}
	return remote.Beacon{UpdatedAt: remote.NullString(b.UpdatedAt), DeviceID: remote.NullString(b.DeviceID)}, nil
}

func (s *Service) ListVersions(ctx context.Context, token string) (remote.Versions, error) {
	ns, err := namespace(token)
	if err != nil {
		return remote.Versions{}, err
	}
	out := remote.Versions{Overrides: map[string]remote.Version{}}

	var sched model.Schedule
	ok, err := s.load(ctx, scheduleKey(ns), &sched)
	if err != nil {
		return remote.Versions{}, err
	}
	if ok {
		out.Schedule = &remote.Version{UpdatedAt: remote.NullString(sched.Meta.Version())}
	}

	dates, err := s.overrideDates(ctx, ns)
	if err != nil {
		return remote.Versions{}, err
	}
	for _, date := range dates {
		var d model.DayOverride
		ok, err := s.load(ctx, overridePrefix(ns)+date, &d)
		if err != nil {
			return remote.Versions{}, err
		}
		if ok {
			out.Overrides[date] = remote.Version{UpdatedAt: remote.NullString(d.Meta.Version())}
		}
	}
	return out, nil
}

func (s *Service) overrideDates(ctx context.Context, ns string) ([]string, error) {
	keys, err := s.store.ListAll(ctx)
	if err != nil {
		return nil, err
	}
	prefix := overridePrefix(ns)
	var dates []string
	for _, k := range keys {
		if date, ok := strings.CutPrefix(k, prefix); ok {
			dates = append(dates, date)
		}
	}
	sort.Strings(dates)
	return dates, nil
}

func (s *Service) ReadSchedule(ctx context.Context, token string) (model.Schedule, error) {
	ns, err := namespace(token)
	if err != nil {
		return model.Schedule{}, err
	}
	var sched model.Schedule
	ok, err := s.load(ctx, scheduleKey(ns), &sched)
	if err != nil {
		return model.Schedule{}, err
	}
	if !ok {
		return model.Schedule{}, &remote.Error{Code: remote.CodeNotFound}
	}
	return sched.Clone(), nil
}

func (s *Service) ReadOverride(ctx context.Context, token, dateKey string) (model.DayOverride, error) {
	ns, err := namespace(token)
	if err != nil {
		return model.DayOverride{}, err
	}
	if _, err := model.ParseDateKey(dateKey); err != nil {
		return model.DayOverride{}, &remote.Error{Code: remote.CodeBadInput}
	}
	var d model.DayOverride
	ok, err := s.load(ctx, overridePrefix(ns)+dateKey, &d)
	if err != nil {
		return model.DayOverride{}, err
	}
	if !ok {
		return model.DayOverride{}, &remote.Error{Code: remote.CodeNotFound}
	}
	return d.Clone(), nil
}

// clientVersion validates the client meta and returns its updatedAt.
func clientVersion(m *model.Meta) (string, error) {
	at := m.Version()
	if at == "" {
		return "", &remote.Error{Code: remote.CodeBadInput}
	}
	if _, err := time.Parse(model.TimestampLayout, at); err != nil {
		return "", &remote.Error{Code: remote.CodeBadInput}
	}
	return at, nil
}

func (s *Service) WriteSchedule(ctx context.Context, token string, sched model.Schedule) (remote.WriteResult, error) {
	ns, err := namespace(token)
	if err != nil {
		return remote.WriteResult{}, err
	}
	at, err := clientVersion(sched.Meta)
	if err != nil {
		return remote.WriteResult{}, err
	}
	for day, tasks := range sched.Week {
		if !model.IsWeekday(day) || model.ValidateTasks(tasks) != nil {
			return remote.WriteResult{}, &remote.Error{Code: remote.CodeBadInput}
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	var stored model.Schedule
	if _, err := s.load(ctx, scheduleKey(ns), &stored); err != nil {
		return remote.WriteResult{}, err
	}
	if cur := stored.Meta.Version(); cur != "" && at <= cur {
		return remote.WriteResult{Reason: remote.ReasonStale, UpdatedAt: remote.NullString(cur)}, nil
	}

	if err := s.save(ctx, scheduleKey(ns), sched.Clone()); err != nil {
		return remote.WriteResult{}, err
	}
	s.advanceBeacon(ctx, ns, sched.Meta)
	s.logger.Printf("[info] schedule applied at %s from %s", at, sched.Meta.DeviceID)
	return remote.WriteResult{Applied: true, UpdatedAt: remote.NullString(at)}, nil
}

func (s *Service) WriteOverride(ctx context.Context, token string, d model.DayOverride) (remote.WriteResult, error) {
	ns, err := namespace(token)
	if err != nil {
		return remote.WriteResult{}, err
	}
	if _, err := model.ParseDateKey(d.DateKey); err != nil {
		return remote.WriteResult{}, &remote.Error{Code: remote.CodeBadInput}
	}
	at, err := clientVersion(d.Meta)
	if err != nil {
		return remote.WriteResult{}, err
	}
	if model.ValidateTasks(d.Tasks) != nil {
		return remote.WriteResult{}, &remote.Error{Code: remote.CodeBadInput}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := overridePrefix(ns) + d.DateKey
	var stored model.DayOverride
	if _, err := s.load(ctx, key, &stored); err != nil {
		return remote.WriteResult{}, err
	}
	if cur := stored.Meta.Version(); cur != "" && at <= cur {
		return remote.WriteResult{Reason: remote.ReasonStale, UpdatedAt: remote.NullString(cur)}, nil
	}

	if err := s.save(ctx, key, d.Clone()); err != nil {
		return remote.WriteResult{}, err
	}
	s.advanceBeacon(ctx, ns, d.Meta)
	s.logger.Printf("[info] override %s applied at %s from %s", d.DateKey, at, d.Meta.DeviceID)
	return remote.WriteResult{Applied: true, UpdatedAt: remote.NullString(at)}, nil
}

// advanceBeacon moves the global watermark on every applied write. A write
// stamped at or before the current beacon, such as a late edit to a day
// nobody else touched, moves it one millisecond past the old value so peers
// still notice it. Callers hold mu.
func (s *Service) advanceBeacon(ctx context.Context, ns string, m *model.Meta) {
	var b beaconDoc
	if _, err := s.load(ctx, beaconKey(ns), &b); err != nil {
		s.logger.Printf("load beacon: %v", err)
	}
	next := m.Version()
	if next <= b.UpdatedAt {
		prev, err := time.Parse(model.TimestampLayout, b.UpdatedAt)
		if err != nil {
			s.logger.Printf("beacon %q: %v", b.UpdatedAt, err)
		} else {
			next = prev.Add(time.Millisecond).UTC().Format(model.TimestampLayout)
		}
	}
	b = beaconDoc{UpdatedAt: next, DeviceID: m.DeviceID}
	if err := s.save(ctx, beaconKey(ns), b); err != nil {
		s.logger.Printf("save beacon: %v", err)
	}
}

// For binds the service to one token so it can be used as a remote.Authority
// in-process.
func (s *Service) For(token string) remote.Authority {
	return scoped{svc: s, token: token}
}

type scoped struct {
	svc   *Service
	token string
}

func (a scoped) Beacon(ctx context.Context) (remote.Beacon, error) {
	return a.svc.Beacon(ctx, a.token)
}

func (a scoped) ListVersions(ctx context.Context) (remote.Versions, error) {
	return a.svc.ListVersions(ctx, a.token)
}

func (a scoped) ReadSchedule(ctx context.Context) (model.Schedule, error) {
	return a.svc.ReadSchedule(ctx, a.token)
}

func (a scoped) ReadOverride(ctx context.Context, dateKey string) (model.DayOverride, error) {
	return a.svc.ReadOverride(ctx, a.token, dateKey)
}

func (a scoped) WriteSchedule(ctx context.Context, sched model.Schedule) (remote.WriteResult, error) {
	return a.svc.WriteSchedule(ctx, a.token, sched)
}

func (a scoped) WriteOverride(ctx context.Context, d model.DayOverride) (remote.WriteResult, error) {
	return a.svc.WriteOverride(ctx, a.token, d)
}
