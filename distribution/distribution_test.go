package distribution

import (
	"math"
	"math/rand/v2"
	"strings"
	"testing"
)

func TestPDFMoments(t *testing.T) {
	p, err := NewPDF([]float64{3, 1, 2}, []float64{1, 1, 2}, nil)
	if err != nil {
		t.Fatalf("NewPDF: %v", err)
	}
	if got := p.Mean(); math.Abs(got-2) > 1e-12 {
		t.Errorf("Mean = %v, want 2", got)
	}
	if got := p.Median(); got != 2 {
		t.Errorf("Median = %v, want 2", got)
	}
	// Population variance: 0.25*1 + 0.5*0 + 0.25*1 = 0.5
	if got := p.StdDev(); math.Abs(got-math.Sqrt(0.5)) > 1e-12 {
		t.Errorf("StdDev = %v, want %v", got, math.Sqrt(0.5))
	}
}

func TestPDFSampleStaysOnSupport(t *testing.T) {
	p, err := NewPDF([]float64{0.1, 0.2}, []float64{0.3, 0.7}, rand.NewPCG(1, 2))
	if err != nil {
		t.Fatalf("NewPDF: %v", err)
	}
	draws := p.Sample(2000)
	if len(draws) != 2000 {
		t.Fatalf("len = %d", len(draws))
	}
	var high int
	for _, d := range draws {
		switch d {
		case 0.1:
		case 0.2:
			high++
		default:
			t.Fatalf("draw %v not in support", d)
		}
	}
	if frac := float64(high) / 2000; math.Abs(frac-0.7) > 0.05 {
		t.Errorf("fraction of 0.2 draws = %v, want ~0.7", frac)
	}
	if got := p.Sample(0); len(got) != 1 {
		t.Errorf("Sample(0) returned %d draws, want 1", len(got))
	}
}

func TestNewPDFErrors(t *testing.T) {
	tests := []struct {
		name  string
		vals  []float64
		probs []float64
	}{
		{"empty", nil, nil},
		{"length mismatch", []float64{1, 2}, []float64{1}},
		{"zero mass", []float64{1, 2}, []float64{0, 0}},
		{"negative", []float64{1, 2}, []float64{-1, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := NewPDF(tt.vals, tt.probs, nil); err == nil {
				t.Fatalf("expected error")
			}
		})
	}
}

func TestRead(t *testing.T) {
	in := `# value, probability
0.95, 0.25
0.97  0.5

0.99,0.25
`
	p, err := Read(strings.NewReader(in), nil)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if got := p.Mean(); math.Abs(got-0.97) > 1e-12 {
		t.Errorf("Mean = %v, want 0.97", got)
	}
	if _, err := Read(strings.NewReader("1 2 3\n"), nil); err == nil {
		t.Errorf("expected column count error")
	}
}
