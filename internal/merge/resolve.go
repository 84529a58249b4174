// Package merge resolves competing versions of planner entities with
// per-entity last-write-wins on Meta.UpdatedAt.
package merge

import "weekplan/internal/model"

// Side names the winner of a resolution.
type Side int

const (
	Local Side = iota
	Incoming
)

func (s Side) String() string {
	if s == Incoming {
		return "incoming"
	}
	return "local"
}

// Pick compares two optional metas:
//   - neither has updatedAt: local
//   - only one has it: that one
//   - both: strictly greater wins, ties stay local
func Pick(local, incoming *model.Meta) Side {
	l, r := local.Version(), incoming.Version()
	switch {
	case l == "" && r == "":
		return Local
	case l == "":
		return Incoming
	case r == "":
		return Local
	case r > l:
		return Incoming
	default:
		return Local
	}
}

// Versioned is anything stamped with a Meta.
type Versioned interface {
	Version() *model.Meta
}

// Resolve returns the winning version of two competing values.
func Resolve[T Versioned](local, incoming T) T {
	if Pick(local.Version(), incoming.Version()) == Incoming {
		return incoming
	}
	return local
}
