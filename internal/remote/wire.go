// Package remote describes the contract of the remote authority: the wire
// bodies it exchanges, the Authority interface the sync loop talks to, and an
// HTTP client implementing it.
package remote

import (
	"context"
	"errors"

	"weekplan/internal/model"
)

// Failure codes carried in {ok:false, error:<code>}.
const (
	CodeBadInput     = "bad_input"
	CodeNotFound     = "not_found"
	CodeUnauthorized = "unauthorized"
	CodeInternal     = "internal"
)

// ReasonStale marks a write that lost the last-write-wins check.
const ReasonStale = "stale"

// ErrUnreachable wraps transport failures.
var ErrUnreachable = errors.New("remote unreachable")

// Error is a failure reported by the authority itself.
type Error struct {
	Code string
}

func (e *Error) Error() string {
	return "remote: " + e.Code
}

// HasCode reports whether err is an *Error with the given code.
func HasCode(err error, code string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == code
}

// Status is the envelope shared by every response.
type Status struct {
	OK    bool   `json:"ok"`
	Error string `json:"error,omitempty"`
}

// Beacon is the global watermark. Both fields are null until the first write.
type Beacon struct {
	UpdatedAt *string `json:"updatedAt"`
	DeviceID  *string `json:"deviceId"`
}

// Watermark returns UpdatedAt or "".
func (b Beacon) Watermark() string {
	return deref(b.UpdatedAt)
}

type Version struct {
	UpdatedAt *string `json:"updatedAt"`
}

// Versions is the compact manifest of everything the authority stores.
type Versions struct {
	Schedule  *Version           `json:"schedule"`
	Overrides map[string]Version `json:"overrides"`
}

// ScheduleVersion returns the schedule's updatedAt or "".
func (v Versions) ScheduleVersion() string {
	if v.Schedule == nil {
		return ""
	}
	return deref(v.Schedule.UpdatedAt)
}

// OverrideBody is a day document without its meta.
type OverrideBody struct {
	DateKey string       `json:"dateKey"`
	Tasks   []model.Task `json:"tasks"`
}

type BeaconResponse struct {
	Status
	Beacon
}

type VersionsResponse struct {
	Status
	Versions
}

type ScheduleResponse struct {
	Status
	Schedule model.Week  `json:"schedule"`
	Meta     *model.Meta `json:"meta"`
}

type OverrideResponse struct {
	Status
	Override OverrideBody `json:"override"`
	Meta     *model.Meta  `json:"meta"`
}

type WriteScheduleRequest struct {
	Schedule   model.Week  `json:"schedule"`
	ClientMeta *model.Meta `json:"clientMeta"`
}

type WriteOverrideRequest struct {
	Override   OverrideBody `json:"override"`
	ClientMeta *model.Meta  `json:"clientMeta"`
}

// WriteResult is the outcome of a write. A stale write is a normal result,
// not an error; UpdatedAt then holds the authority's stored version.
type WriteResult struct {
	Applied   bool    `json:"applied"`
	Reason    string  `json:"reason,omitempty"`
	UpdatedAt *string `json:"updatedAt,omitempty"`
}

func (r WriteResult) Stale() bool {
	return !r.Applied && r.Reason == ReasonStale
}

type WriteResponse struct {
	Status
	WriteResult
}

// Authority is the remote arbiter of record, already bound to one auth token.
type Authority interface {
	Beacon(ctx context.Context) (Beacon, error)
	ListVersions(ctx context.Context) (Versions, error)
	ReadSchedule(ctx context.Context) (model.Schedule, error)
	ReadOverride(ctx context.Context, dateKey string) (model.DayOverride, error)
	WriteSchedule(ctx context.Context, s model.Schedule) (WriteResult, error)
	WriteOverride(ctx context.Context, d model.DayOverride) (WriteResult, error)
}

// NullString returns nil for "".
func NullString(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

// ScheduleFrom assembles the schedule carried by a read response.
func (r ScheduleResponse) ScheduleFrom() model.Schedule {
	return model.Schedule{Week: r.Schedule, Meta: r.Meta}.Clone()
}

// OverrideFrom assembles the day carried by a read response.
func (r OverrideResponse) OverrideFrom() model.DayOverride {
	d := model.DayOverride{DateKey: r.Override.DateKey, Tasks: r.Override.Tasks, Meta: r.Meta}
	return d.Clone()
}
