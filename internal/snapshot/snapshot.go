// Package snapshot exports the whole planner state as one portable document
// and restores such a document by merging it into local state.
package snapshot

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"weekplan/internal/merge"
	"weekplan/internal/model"
)

// Format tags every document this package writes.
const Format = "weekplan-snapshot/1"

var (
	// ErrNoSnapshot means the input was empty or not a JSON object.
	ErrNoSnapshot = errors.New("no snapshot")
	// ErrMalformedSnapshot means the object did not describe planner state.
	ErrMalformedSnapshot = errors.New("malformed snapshot")
)

type Document struct {
	Format     string                       `json:"format"`
	DeviceID   string                       `json:"deviceId"`
	ExportedAt string                       `json:"exportedAt"`
	Schedule   *model.Schedule              `json:"schedule"`
	Overrides  map[string]model.DayOverride `json:"overrides"`
}

// Source is what Export reads.
type Source interface {
	LoadSchedule(ctx context.Context) (model.Schedule, error)
	ListOverrides(ctx context.Context) (map[string]model.DayOverride, error)
}

// Store is what Import reads and writes.
type Store interface {
	Source
	SaveSchedule(ctx context.Context, s model.Schedule) error
	SaveOverride(ctx context.Context, d model.DayOverride) error
}

// Export captures the current schedule and every known override.
func Export(ctx context.Context, src Source, deviceID string, now time.Time) (Document, error) {
	s, err := src.LoadSchedule(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("load schedule: %w", err)
	}
	days, err := src.ListOverrides(ctx)
	if err != nil {
		return Document{}, fmt.Errorf("list overrides: %w", err)
	}
	overrides := make(map[string]model.DayOverride, len(days))
	for k, d := range days {
		overrides[k] = d.Clone()
	}
	sched := s.Clone()
	return Document{
		Format:     Format,
		DeviceID:   deviceID,
		ExportedAt: model.FormatTimestamp(now),
		Schedule:   &sched,
		Overrides:  overrides,
	}, nil
}

func Encode(doc Document) ([]byte, error) {
	return json.MarshalIndent(doc, "", "  ")
}

// Decode parses and validates a document.
func Decode(data []byte) (Document, error) {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || data[0] != '{' {
		return Document{}, ErrNoSnapshot
	}
	var doc Document
	if err := json.Unmarshal(data, &doc); err != nil {
		return Document{}, fmt.Errorf("%w: %v", ErrMalformedSnapshot, err)
	}
	if err := doc.validate(); err != nil {
		return Document{}, err
	}
	return doc, nil
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrMalformedSnapshot, fmt.Sprintf(format, args...))
}

// validate checks identities and fills dateKeys omitted inside day documents.
func (doc *Document) validate() error {
	if doc.Format != "" && !strings.HasPrefix(doc.Format, "weekplan-snapshot/") {
		return malformed("unknown format %q", doc.Format)
	}
	if doc.Schedule == nil && len(doc.Overrides) == 0 {
		return malformed("nothing to import")
	}
	if doc.Schedule != nil {
		for day, tasks := range doc.Schedule.Week {
			if !model.IsWeekday(day) {
				return malformed("unknown weekday %q", day)
			}
			if err := model.ValidateTasks(tasks); err != nil {
				return malformed("schedule %s: %v", day, err)
			}
		}
	}
	for key, d := range doc.Overrides {
		if _, err := model.ParseDateKey(key); err != nil {
			return malformed("override key %q", key)
		}
		switch d.DateKey {
		case "":
			d.DateKey = key
		case key:
		default:
			return malformed("override %q carries dateKey %q", key, d.DateKey)
		}
		if err := model.ValidateTasks(d.Tasks); err != nil {
			return malformed("override %s: %v", key, err)
		}
		if d.Tasks == nil {
			d.Tasks = []model.Task{}
		}
		doc.Overrides[key] = d
	}
	return nil
}

// Result reports which writes an import attempted and which failed.
type Result struct {
	ScheduleWritten  bool
	OverridesWritten int
	Failed           []string
}

// Import merges doc into st and writes the winners with their Meta as is.
// Individual write failures are collected, not fatal.
func Import(ctx context.Context, st Store, doc Document) (Result, error) {
	var res Result

	local, err := st.LoadSchedule(ctx)
	if err != nil {
		return res, fmt.Errorf("load schedule: %w", err)
	}
	localDays, err := st.ListOverrides(ctx)
	if err != nil {
		return res, fmt.Errorf("list overrides: %w", err)
	}

	if merged := merge.Schedules(&local, doc.Schedule); merged != nil {
		if err := st.SaveSchedule(ctx, *merged); err != nil {
			res.Failed = append(res.Failed, "schedule")
		} else {
			res.ScheduleWritten = true
		}
	}

	days := merge.Overrides(localDays, doc.Overrides)
	for _, key := range merge.DateKeys(days) {
		if err := st.SaveOverride(ctx, days[key]); err != nil {
			res.Failed = append(res.Failed, key)
			continue
		}
		res.OverridesWritten++
	}
	return res, nil
}

// ImportJSON decodes data and imports it.
func ImportJSON(ctx context.Context, st Store, data []byte) (Result, error) {
	doc, err := Decode(data)
	if err != nil {
		return Result{}, err
	}
	return Import(ctx, st, doc)
}
