package model

import (
	"sync"
	"time"
)

// TimestampLayout is fixed-width UTC with milliseconds, so string order equals time order.
const TimestampLayout = "2006-01-02T15:04:05.000Z"

// Meta is the provenance envelope stamped on every versioned entity.
type Meta struct {
	CreatedAt  string `json:"createdAt,omitempty"`
	UpdatedAt  string `json:"updatedAt,omitempty"`
	DeviceID   string `json:"deviceId,omitempty"`
	UserAction string `json:"userAction,omitempty"`
}

// Stamp describes one mutation: when, where and why.
type Stamp struct {
	At       string
	DeviceID string
	Action   string
}

// FormatTimestamp renders t in TimestampLayout.
func FormatTimestamp(t time.Time) string {
	return t.UTC().Format(TimestampLayout)
}

// Touch returns the next version of m. CreatedAt survives, everything else is refreshed.
func (m *Meta) Touch(s Stamp) *Meta {
	next := &Meta{
		CreatedAt:  s.At,
		UpdatedAt:  s.At,
		DeviceID:   s.DeviceID,
		UserAction: s.Action,
	}
	if m != nil && m.CreatedAt != "" {
		next.CreatedAt = m.CreatedAt
	}
	return next
}

func (m *Meta) Clone() *Meta {
	if m == nil {
		return nil
	}
	c := *m
	return &c
}

// Version returns UpdatedAt, or "" when m is nil.
func (m *Meta) Version() string {
	if m == nil {
		return ""
	}
	return m.UpdatedAt
}

// Stamper issues stamps for one device. Timestamps it hands out are strictly
// increasing even when the clock stalls or two edits land in the same millisecond.
type Stamper struct {
	deviceID string
	now      func() time.Time

	mu   sync.Mutex
	last time.Time
}

func NewStamper(deviceID string, now func() time.Time) *Stamper {
	if now == nil {
		now = time.Now
	}
	return &Stamper{deviceID: deviceID, now: now}
}

func (s *Stamper) DeviceID() string {
	return s.deviceID
}

// Stamp returns a stamp for the given user action label.
func (s *Stamper) Stamp(action string) Stamp {
	s.mu.Lock()
	defer s.mu.Unlock()

	at := s.now().UTC().Truncate(time.Millisecond)
	if !at.After(s.last) {
		at = s.last.Add(time.Millisecond)
	}
	s.last = at

	return Stamp{At: FormatTimestamp(at), DeviceID: s.deviceID, Action: action}
}
