package darray

import (
	"errors"
	"math"
	"testing"
)

func TestModeByName(t *testing.T) {
	replica, err := ModeByName(ReplicaMode)
	if err != nil {
		t.Fatal(err)
	}
	if isOpMode(replica) {
		t.Error("replica reported as op mode")
	}
	if modeName(replica) != ReplicaMode {
		t.Errorf("modeName = %q", modeName(replica))
	}

	for _, name := range []string{"sum", "prod", "min", "max"} {
		m, err := ModeByName(name)
		if err != nil {
			t.Fatalf("%s: %v", name, err)
		}
		if !isOpMode(m) {
			t.Errorf("%s not an op mode", name)
		}
		if m.Name != name {
			t.Errorf("Name = %q, want %q", m.Name, name)
		}
	}

	if _, err := ModeByName("mean"); !errors.Is(err, ErrInvalidModeName) {
		t.Errorf("err = %v, want ErrInvalidModeName", err)
	}
}

func TestModeIdempotency(t *testing.T) {
	for name, want := range map[string]bool{"sum": false, "prod": false, "min": true, "max": true} {
		m, err := ModeByName(name)
		if err != nil {
			t.Fatal(err)
		}
		if m.Idempotent != want {
			t.Errorf("%s: Idempotent = %v, want %v", name, m.Idempotent, want)
		}
	}
}

func TestModeIdentities(t *testing.T) {
	tests := []struct {
		mode string
		dt   DataType
		want float64
	}{
		{"sum", Float64, 0},
		{"prod", Float64, 1},
		{"min", Float64, math.Inf(1)},
		{"max", Float64, math.Inf(-1)},
		{"min", Int32, math.MaxInt32},
		{"max", Int32, math.MinInt32},
		{"min", Int64, math.MaxInt64},
		{"max", Int64, math.MinInt64},
	}
	for _, tt := range tests {
		m, err := ModeByName(tt.mode)
		if err != nil {
			t.Fatal(err)
		}
		if got := m.IdentityOf(tt.dt); got != tt.want {
			t.Errorf("%s identity for %s = %v, want %v", tt.mode, tt.dt, got, tt.want)
		}

		// The identity must be neutral under the operator.
		if got := m.Combine(tt.want, 5); got != 5 {
			t.Errorf("%s: combine(identity, 5) = %v", tt.mode, got)
		}
	}
}
