package model

// Watermarks records, per entity, the highest updatedAt known to be applied
// locally. Beacon is the last applied global remote watermark.
type Watermarks struct {
	Beacon    string            `json:"beacon"`
	Schedule  string            `json:"schedule"`
	Overrides map[string]string `json:"overrides"`
}

func NewWatermarks() Watermarks {
	return Watermarks{Overrides: make(map[string]string)}
}

func (w Watermarks) Clone() Watermarks {
	c := Watermarks{Beacon: w.Beacon, Schedule: w.Schedule, Overrides: make(map[string]string, len(w.Overrides))}
	for k, v := range w.Overrides {
		c.Overrides[k] = v
	}
	return c
}
