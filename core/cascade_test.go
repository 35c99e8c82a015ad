package core

import (
	"math"
	"testing"
)

// toyChain builds one slot with the given flat transmissions over a two
// point grid.
func toyChain(trans ...float64) *Tensors {
	t := NewTensors(1, 1, len(trans), []float64{100e9, 200e9})
	for k, tr := range trans {
		t.Names.Set(0, 0, k, string(rune('A'+k)))
		t.Transmission.Fill(0, 0, k, tr)
		t.Emissivity.Fill(0, 0, k, 1-tr)
		t.Temperature.Set(0, 0, k, 0, 10)
	}
	for i := range t.BandMask {
		t.BandMask[i] = true
	}
	return t
}

func allEqual(t *testing.T, what string, got []float64, want float64) {
	t.Helper()
	for i, g := range got {
		if math.Abs(g-want) > 1e-15 {
			t.Fatalf("%s[%d] = %v, want %v", what, i, g, want)
		}
	}
}

func TestDetectorSideEfficiency(t *testing.T) {
	tr := toyChain(0.9, 0.8, 1.0).Transmission
	allEqual(t, "element 0", DetectorSideEfficiency(tr, 0, 0, 0), 0.8)
	allEqual(t, "element 1", DetectorSideEfficiency(tr, 0, 0, 1), 1.0)
	allEqual(t, "element 2", DetectorSideEfficiency(tr, 0, 0, 2), 1.0)
}

func TestSkySideEfficiency(t *testing.T) {
	tr := toyChain(0.9, 0.8, 1.0).Transmission
	tests := []struct {
		k, m int
		want float64
	}{
		{0, 0, 0},
		{1, 0, 1},
		{1, 1, 0},
		{2, 0, 0.8},
		{2, 1, 1},
		{2, 2, 0},
	}
	for _, tt := range tests {
		allEqual(t, "sky side", SkySideEfficiency(tr, 0, 0, tt.k, tt.m), tt.want)
	}
	// The outermost element never sees anything on its sky side.
	for _, chain := range [][]float64{{0.5}, {0.1, 0.2}, {0.3, 0.6, 0.9, 0.99}} {
		allEqual(t, "element 0 sky side", SkySideEfficiency(toyChain(chain...).Transmission, 0, 0, 0, 0), 0)
	}
}

func TestProductAlongElements(t *testing.T) {
	c := toyChain(0.5, 0.4, 0.25).Transmission
	allEqual(t, "all", c.ProductAlongElements(0, 0, 0, 3), 0.05)
	allEqual(t, "empty", c.ProductAlongElements(0, 0, 2, 2), 1)
	allEqual(t, "past end", c.ProductAlongElements(0, 0, 1, 10), 0.1)
}

func TestOpticalPowers(t *testing.T) {
	ch := toyChain(0.9, 0.8, 1.0)
	tab, err := OpticalPowers(ch)
	if err != nil {
		t.Fatalf("OpticalPowers: %v", err)
	}
	if got := tab.DetectorEfficiency.At(0, 0, 0, 0); math.Abs(got-0.8) > 1e-12 {
		t.Fatalf("element 0 detector efficiency = %v, want 0.8", got)
	}
	if got := tab.SkySidePower.At(0, 0, 0, 0); got != 0 {
		t.Fatalf("element 0 sky-side power = %v, want 0", got)
	}
	// Element 2 is fully transmissive and so emits nothing.
	if got := tab.DetectorPower.At(0, 0, 2, 0); got != 0 {
		t.Fatalf("element 2 detector power = %v, want 0", got)
	}
	for k := 0; k < 2; k++ {
		if tab.DetectorPower.At(0, 0, k, 0) <= 0 {
			t.Fatalf("element %d should deliver power", k)
		}
	}
}

func TestTensorsValidate(t *testing.T) {
	good := toyChain(0.9, 0.8)
	if err := good.Validate(); err != nil {
		t.Fatalf("Validate: %v", err)
	}

	bad := toyChain(0.9, 0.8)
	bad.BandMask = bad.BandMask[:1]
	if err := bad.Validate(); err == nil {
		t.Fatalf("short mask accepted")
	}

	unsorted := NewTensors(1, 1, 1, []float64{2e9, 1e9})
	if err := unsorted.Validate(); err == nil {
		t.Fatalf("decreasing grid accepted")
	}

	mixed := toyChain(0.9, 0.8)
	mixed.Temperature = NewCube(1, 1, 3, 1)
	if err := mixed.Validate(); err == nil {
		t.Fatalf("temperature element mismatch accepted")
	}
}
