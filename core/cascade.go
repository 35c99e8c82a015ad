package core

import (
	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"

	"github.com/signalsfoundry/bolocalc/physics"
)

// DetectorSideEfficiency is the fraction of element k's emission that
// reaches the detector at slot (o, d): the product of every transmission
// downstream of k. The chain ends in an implicit element of transmission 1.
func DetectorSideEfficiency(tran *Cube, o, d, k int) []float64 {
	_, _, nelem, _ := tran.Dims()
	return tran.ProductAlongElements(o, d, k+1, nelem+1)
}

// SkySideEfficiency is the fraction of element m's emission that reaches
// the sky side of element k, for m <= k: the product of transmissions
// strictly between them. An element contributes nothing to its own sky
// side, so m == k gives zero.
func SkySideEfficiency(tran *Cube, o, d, k, m int) []float64 {
	if m >= k {
		_, _, _, nfreq := tran.Dims()
		return make([]float64, nfreq)
	}
	return tran.ProductAlongElements(o, d, m+1, k)
}

// elementPower is the emitted spectrum of element k at slot (o, d).
func elementPower(t *Tensors, o, d, k int) []float64 {
	return physics.BlackbodyPowerSpectrum(t.Freqs, t.Temperature.At(o, d, k, 0), t.Emissivity.Spectrum(o, d, k))
}

// deliveredSpectra returns, for elements from..to-1, the emitted spectrum
// attenuated by everything downstream (transmissions up to the end of the
// chain).
func deliveredSpectra(t *Tensors, o, d, from, to int) [][]float64 {
	out := make([][]float64, 0, to-from)
	for k := from; k < to; k++ {
		p := elementPower(t, o, d, k)
		floats.Mul(p, DetectorSideEfficiency(t.Transmission, o, d, k))
		out = append(out, p)
	}
	return out
}

// bandwidth is the span of the frequency grid.
func bandwidth(freqs []float64) float64 { return freqs[len(freqs)-1] - freqs[0] }

// OpticalTable records, per slot and element, the in-band power arriving
// from the sky side, the in-band power delivered to the detector, and the
// band-averaged efficiency toward the detector. Each cube has a single
// frequency bin.
type OpticalTable struct {
	Names              *Labels
	SkySidePower       *Cube
	DetectorPower      *Cube
	DetectorEfficiency *Cube
}

// OpticalPowers builds the per-element optical table for t.
func OpticalPowers(t *Tensors) (*OpticalTable, error) {
	if err := t.Validate(); err != nil {
		return nil, err
	}
	nobs, ndet, nelem, _ := t.Shape()
	tab := &OpticalTable{
		Names:              t.Names,
		SkySidePower:       NewCube(nobs, ndet, nelem, 1),
		DetectorPower:      NewCube(nobs, ndet, nelem, 1),
		DetectorEfficiency: NewCube(nobs, ndet, nelem, 1),
	}
	mask := t.maskFloat()
	bw := bandwidth(t.Freqs)
	buf := make([]float64, len(t.Freqs))
	for o := 0; o < nobs; o++ {
		for d := 0; d < ndet; d++ {
			pows := make([][]float64, nelem)
			for k := range pows {
				pows[k] = elementPower(t, o, d, k)
			}
			for k := 0; k < nelem; k++ {
				eff := DetectorSideEfficiency(t.Transmission, o, d, k)
				floats.MulTo(buf, eff, mask)
				tab.DetectorEfficiency.Set(o, d, k, 0, integrate.Trapezoidal(t.Freqs, buf)/bw)
				floats.Mul(buf, pows[k])
				tab.DetectorPower.Set(o, d, k, 0, integrate.Trapezoidal(t.Freqs, buf))

				var in float64
				for m := 0; m <= k; m++ {
					floats.MulTo(buf, SkySideEfficiency(t.Transmission, o, d, k, m), mask)
					floats.Mul(buf, pows[m])
					in += integrate.Trapezoidal(t.Freqs, buf)
				}
				tab.SkySidePower.Set(o, d, k, 0, in)
			}
		}
	}
	return tab, nil
}
