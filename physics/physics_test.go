package physics

import (
	"math"
	"testing"

	"gonum.org/v1/gonum/floats"
)

// tailIntegral is ∫_X^∞ x/(e^x-1) dx expanded as Σ e^{-kX}(X/k + 1/k²).
func tailIntegral(X float64) float64 {
	var sum float64
	for k := 1.0; k <= 400; k++ {
		sum += math.Exp(-k*X) * (X/k + 1/(k*k))
	}
	return sum
}

func closedFormPower(lo, hi, temp float64) float64 {
	a := Planck * lo / (Boltzmann * temp)
	b := Planck * hi / (Boltzmann * temp)
	kT := Boltzmann * temp
	return kT * kT / Planck * (tailIntegral(a) - tailIntegral(b))
}

func TestBlackbodyPowerMatchesClosedForm(t *testing.T) {
	freqs := floats.Span(make([]float64, 20001), 100e9, 200e9)
	emis := make([]float64, len(freqs))
	for i := range emis {
		emis[i] = 1
	}
	got := BlackbodyPower(freqs, TCMB, emis)
	want := closedFormPower(100e9, 200e9, TCMB)
	if rel := math.Abs(got-want) / want; rel > 1e-6 {
		t.Fatalf("BlackbodyPower = %g, closed form %g (rel err %g)", got, want, rel)
	}
}

func TestRJLimit(t *testing.T) {
	// At low frequency and high temperature hν·n → kT.
	f := 1e9
	T := 300.0
	got := Planck * f * Occupation(f, T)
	if rel := math.Abs(got-Boltzmann*T) / (Boltzmann * T); rel > 1e-3 {
		t.Fatalf("hν·n = %g, want ~kT = %g", got, Boltzmann*T)
	}
	if Occupation(f, 0) != 0 {
		t.Fatalf("occupation at 0 K should be 0")
	}
}

func TestRJTempInvertsPower(t *testing.T) {
	bw := 30e9
	T := 10.0
	p := Boltzmann * T * bw * 0.5
	if got := RJTemp(p, bw, 0.5); math.Abs(got-T) > 1e-9 {
		t.Fatalf("RJTemp = %v, want %v", got, T)
	}
}

func TestCMBToRJAboveOne(t *testing.T) {
	freqs := floats.Span(make([]float64, 101), 130e9, 170e9)
	f := CMBToRJ(freqs)
	if f <= 1 {
		t.Fatalf("CMBToRJ = %v, want > 1 at 150 GHz", f)
	}
	// dT_RJ/dT_CMB at 150 GHz is about 0.58.
	if inv := 1 / f; inv < 0.5 || inv > 0.65 {
		t.Fatalf("band-averaged dT_RJ/dT_CMB = %v", inv)
	}
}

func TestBandEdges(t *testing.T) {
	freqs := floats.Span(make([]float64, 201), 100e9, 200e9)
	tran := make([]float64, len(freqs))
	for i, f := range freqs {
		if f >= 130e9 && f <= 170e9 {
			tran[i] = 0.8
		}
	}
	// Soft shoulders so the half-power points are well defined.
	for i, f := range freqs {
		if f == 129.5e9 || f == 170.5e9 {
			tran[i] = 0.4
		}
	}
	lo, hi, err := BandEdges(freqs, tran)
	if err != nil {
		t.Fatalf("BandEdges: %v", err)
	}
	if lo != 129.5e9 || hi != 170.5e9 {
		t.Fatalf("BandEdges = (%g, %g), want (129.5e9, 170.5e9)", lo, hi)
	}

	if _, _, err := BandEdges(freqs, make([]float64, len(freqs))); err == nil {
		t.Fatalf("expected ErrNoPeak for an all-zero band")
	}
}

func TestWavelength(t *testing.T) {
	if got := Wavelength(LightC); got != 1 {
		t.Fatalf("Wavelength(c) = %v", got)
	}
}
