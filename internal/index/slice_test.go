package index

import (
	"errors"
	"math/rand"
	"testing"
)

// positions expands a normalized slice into the set of positions it
// selects, clamped to length.
func positions(s Slice, length int) map[int]bool {
	out := make(map[int]bool)
	stop := min(s.Stop, length)
	for i := s.Start; i < stop; i += s.Step {
		out[i] = true
	}
	return out
}

func TestSliceIntersectionUnitSteps(t *testing.T) {
	tests := []struct {
		name   string
		a, b   Slice
		length int
		want   Slice
		wantOK bool
	}{
		{"disjoint", Span(0, 2), Span(2, 4), 4, Slice{}, false},
		{"identical", Span(1, 3), Span(1, 3), 4, Slice{1, 3, 1}, true},
		{"overlap", Span(0, 3), Span(1, 4), 4, Slice{1, 3, 1}, true},
		{"contained", Span(0, 4), Span(1, 2), 4, Slice{1, 2, 1}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := SliceIntersection(tt.a, tt.b, tt.length)
			if ok != tt.wantOK {
				t.Fatalf("ok = %v, want %v", ok, tt.wantOK)
			}
			if ok && got != tt.want {
				t.Errorf("got %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestSliceIntersectionStrided(t *testing.T) {
	// Steps 2 and 3 from aligned starts intersect with step 6.
	got, ok := SliceIntersection(Strided(0, 12, 2), Strided(0, 12, 3), 12)
	if !ok {
		t.Fatal("expected intersection")
	}
	if got != (Slice{0, 12, 6}) {
		t.Errorf("got %+v, want {0 12 6}", got)
	}

	// Even and odd positions with equal step never meet.
	if _, ok := SliceIntersection(Strided(0, 10, 2), Strided(1, 10, 2), 10); ok {
		t.Error("expected no intersection for incongruent starts")
	}
}

func TestSliceIntersectionMatchesBruteForce(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	for trial := 0; trial < 2000; trial++ {
		length := 1 + rng.Intn(30)
		randSlice := func() Slice {
			start := rng.Intn(length)
			stop := start + 1 + rng.Intn(length-start)
			step := 1 + rng.Intn(5)
			return Strided(start, stop, step)
		}
		a, b := randSlice(), randSlice()

		want := make(map[int]bool)
		pa, pb := positions(a, length), positions(b, length)
		for p := range pa {
			if pb[p] {
				want[p] = true
			}
		}

		got, ok := SliceIntersection(a, b, length)
		if !ok {
			if len(want) != 0 {
				t.Fatalf("a=%+v b=%+v length=%d: reported disjoint, want %v", a, b, length, want)
			}
			continue
		}
		gotSet := positions(got, length)
		if len(gotSet) != len(want) {
			t.Fatalf("a=%+v b=%+v length=%d: got %v, want %v", a, b, length, gotSet, want)
		}
		for p := range want {
			if !gotSet[p] {
				t.Fatalf("a=%+v b=%+v length=%d: missing position %d", a, b, length, p)
			}
		}
	}
}

func TestSliceIntersectionSymmetric(t *testing.T) {
	rng := rand.New(rand.NewSource(11))
	for trial := 0; trial < 2000; trial++ {
		length := 1 + rng.Intn(25)
		randSlice := func() Slice {
			start := rng.Intn(length)
			stop := start + 1 + rng.Intn(length-start)
			step := 1 + rng.Intn(4)
			return Strided(start, stop, step)
		}
		a, b := randSlice(), randSlice()

		ab, okAB := SliceIntersection(a, b, length)
		ba, okBA := SliceIntersection(b, a, length)
		if okAB != okBA {
			t.Fatalf("a=%+v b=%+v: ok %v vs %v", a, b, okAB, okBA)
		}
		if !okAB {
			continue
		}
		pab, pba := positions(ab, length), positions(ba, length)
		if len(pab) != len(pba) {
			t.Fatalf("a=%+v b=%+v: asymmetric result %v vs %v", a, b, pab, pba)
		}
		for p := range pab {
			if !pba[p] {
				t.Fatalf("a=%+v b=%+v: %d selected one way only", a, b, p)
			}
		}
	}
}

func TestForSubslice(t *testing.T) {
	// array[a][c] must select array[sub] for sub contained in a.
	rng := rand.New(rand.NewSource(3))
	for trial := 0; trial < 1000; trial++ {
		length := 4 + rng.Intn(28)
		a := Strided(rng.Intn(3), length-rng.Intn(3), 1+rng.Intn(3))
		b := Strided(rng.Intn(length), length, 1+rng.Intn(3))
		sub, ok := SliceIntersection(a, b, length)
		if !ok {
			continue
		}

		c := ForSubslice(a, sub)

		// Walk a's positions and select with c; must equal sub's positions.
		var aPos []int
		for i := a.Start; i < min(a.Stop, length); i += a.Step {
			aPos = append(aPos, i)
		}
		want := positions(sub, length)
		got := make(map[int]bool)
		for k := c.Start; k < c.Stop && k < len(aPos); k += c.Step {
			got[aPos[k]] = true
		}
		if len(got) != len(want) {
			t.Fatalf("a=%+v sub=%+v c=%+v: got %v, want %v", a, sub, c, got, want)
		}
		for p := range want {
			if !got[p] {
				t.Fatalf("a=%+v sub=%+v c=%+v: missing %d", a, sub, c, p)
			}
		}
	}
}

func TestIntersectionMultiAxis(t *testing.T) {
	shape := Shape{8, 8}
	a := Index{Span(0, 4), Span(0, 8)}
	b := Index{Span(2, 8), Span(4, 8)}

	got, ok := Intersection(a, b, shape)
	if !ok {
		t.Fatal("expected intersection")
	}
	want := Index{Slice{2, 4, 1}, Slice{4, 8, 1}}
	if !got.Equal(want) {
		t.Errorf("got %v, want %v", got, want)
	}

	// Disjoint on one axis empties the whole intersection.
	c := Index{Span(4, 8), Span(0, 8)}
	if _, ok := Intersection(a, c, shape); ok {
		t.Error("expected empty intersection")
	}
}

func TestShapeAfterIndexing(t *testing.T) {
	shape := Shape{10, 7}
	idx := Index{Strided(1, 10, 3), Span(2, 7)}
	got := ShapeAfterIndexing(shape, idx)
	if !got.Equal(Shape{3, 5}) {
		t.Errorf("got %v, want [3 5]", got)
	}
}

func TestNormalize(t *testing.T) {
	shape := Shape{4, 6}

	t.Run("pads missing axes", func(t *testing.T) {
		idx, err := Normalize(shape, Index{Span(1, 3)})
		if err != nil {
			t.Fatal(err)
		}
		want := Index{Slice{1, 3, 1}, Slice{0, 6, 1}}
		if !idx.Equal(want) {
			t.Errorf("got %v, want %v", idx, want)
		}
	})

	t.Run("zero slice selects whole axis", func(t *testing.T) {
		idx, err := Normalize(shape, Index{{}, Span(0, 2)})
		if err != nil {
			t.Fatal(err)
		}
		if !idx.Equal(Index{Slice{0, 4, 1}, Slice{0, 2, 1}}) {
			t.Errorf("got %v", idx)
		}
	})

	t.Run("resolves End", func(t *testing.T) {
		idx, err := Normalize(shape, Index{Slice{Start: 2, Stop: End, Step: 1}})
		if err != nil {
			t.Fatal(err)
		}
		if idx[0] != (Slice{2, 4, 1}) {
			t.Errorf("got %+v", idx[0])
		}
	})

	t.Run("clamps stop", func(t *testing.T) {
		idx, err := Normalize(shape, Index{Span(0, 100)})
		if err != nil {
			t.Fatal(err)
		}
		if idx[0] != (Slice{0, 4, 1}) {
			t.Errorf("got %+v", idx[0])
		}
	})

	malformed := []struct {
		name   string
		region Index
	}{
		{"too many axes", Index{Span(0, 1), Span(0, 1), Span(0, 1)}},
		{"negative step", Index{Strided(0, 4, -1)}},
		{"empty axis", Index{Span(2, 2)}},
		{"out of range", Index{At(4)}},
		{"negative start", Index{Span(-1, 2)}},
	}
	for _, tt := range malformed {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Normalize(shape, tt.region); !errors.Is(err, ErrMalformed) {
				t.Errorf("err = %v, want ErrMalformed", err)
			}
		})
	}
}

func TestSortRegions(t *testing.T) {
	regions := []Index{
		{Span(2, 4), Span(0, 4)},
		{Span(0, 2), Span(2, 4)},
		{Span(0, 2), Span(0, 2)},
	}
	SortRegions(regions)
	if regions[0][0].Start != 0 || regions[0][1].Start != 0 {
		t.Errorf("unexpected first region %v", regions[0])
	}
	if regions[2][0].Start != 2 {
		t.Errorf("unexpected last region %v", regions[2])
	}
}
