package darray

import (
	"fmt"
	"sort"
)

// ReplicaMode names the consistency mode in which every point may be
// mirrored on several chunks holding identical values.
const ReplicaMode = "replica"

// Mode describes an associative-operator consistency mode. In an op
// mode, chunks may overlap and the logical value at a point is the
// operator's reduction over every chunk covering it, with identity fill
// on cells not otherwise populated.
//
// The replica mode is represented as a nil *Mode.
type Mode struct {
	// Name of the operator ("sum", "prod", "min", "max").
	Name string
	// Combine folds two element values.
	Combine func(a, b float64) float64
	// IdentityOf returns the operator's identity for a data type.
	IdentityOf func(DataType) float64
	// Idempotent operators (min, max) tolerate a contribution being
	// counted more than once. Non-idempotent ones (sum, prod) require
	// the source copy of a propagated region to be reset to identity so
	// it is never counted twice.
	Idempotent bool
}

// replicaMode is the nil-object for the fully replicated regime.
var replicaMode *Mode

func isOpMode(m *Mode) bool { return m != nil }

var modes = map[string]*Mode{
	ReplicaMode: replicaMode,
	"min": {
		Name:       "min",
		Combine:    func(a, b float64) float64 { return min(a, b) },
		IdentityOf: maxValueOf,
		Idempotent: true,
	},
	"max": {
		Name:       "max",
		Combine:    func(a, b float64) float64 { return max(a, b) },
		IdentityOf: minValueOf,
		Idempotent: true,
	},
	"sum": {
		Name:       "sum",
		Combine:    func(a, b float64) float64 { return a + b },
		IdentityOf: zeroValueOf,
		Idempotent: false,
	},
	"prod": {
		Name:       "prod",
		Combine:    func(a, b float64) float64 { return a * b },
		IdentityOf: oneValueOf,
		Idempotent: false,
	},
}

// ModeByName resolves a consistency mode name.
func ModeByName(name string) (*Mode, error) {
	m, ok := modes[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (must be one of %v)", ErrInvalidModeName, name, modeNames())
	}
	return m, nil
}

func modeName(m *Mode) string {
	if m == nil {
		return ReplicaMode
	}
	return m.Name
}

func modeNames() []string {
	names := make([]string, 0, len(modes))
	for name := range modes {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
