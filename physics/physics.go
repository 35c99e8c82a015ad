// Package physics holds the radiometric relations used by the sensitivity
// engine. All quantities are SI: frequencies in Hz, temperatures in K,
// powers in W and spectral densities in W/Hz.
package physics

import (
	"errors"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/integrate"
)

const (
	Planck    = 6.6261e-34 // J s
	Boltzmann = 1.3806e-23 // J/K
	LightC    = 299792458.0
	TCMB      = 2.725 // K
)

// Wavelength returns c/freq.
func Wavelength(freq float64) float64 { return LightC / freq }

// Occupation is the Bose-Einstein mode occupation number at freq and temp.
// It is zero for a non-positive temperature.
func Occupation(freq, temp float64) float64 {
	if temp <= 0 {
		return 0
	}
	return 1 / math.Expm1(Planck*freq/(Boltzmann*temp))
}

// BlackbodyPowerSpectrum returns the single-mode, single-polarisation power
// spectral density h·ν·n(ν,T) weighted by the emissivity spectrum. emis must
// be the same length as freqs.
func BlackbodyPowerSpectrum(freqs []float64, temp float64, emis []float64) []float64 {
	out := make([]float64, len(freqs))
	for i, f := range freqs {
		out[i] = emis[i] * Planck * f * Occupation(f, temp)
	}
	return out
}

// BlackbodyPower integrates BlackbodyPowerSpectrum over freqs.
func BlackbodyPower(freqs []float64, temp float64, emis []float64) float64 {
	return integrate.Trapezoidal(freqs, BlackbodyPowerSpectrum(freqs, temp, emis))
}

// RJTemp converts an in-band power into a Rayleigh-Jeans temperature.
func RJTemp(power, bandwidth, eff float64) float64 {
	return power / (Boltzmann * bandwidth * eff)
}

// RJOverCMB is dT_RJ/dT_CMB at freq for a blackbody at temp.
func RJOverCMB(freq, temp float64) float64 {
	x := Planck * freq / (Boltzmann * temp)
	ex := math.Exp(x)
	return x * x * ex / (math.Expm1(x) * math.Expm1(x))
}

// CMBToRJ is the band-averaged factor dividing a CMB-referenced temperature
// to obtain its Rayleigh-Jeans brightness equivalent.
func CMBToRJ(freqs []float64) float64 {
	spec := make([]float64, len(freqs))
	for i, f := range freqs {
		spec[i] = RJOverCMB(f, TCMB)
	}
	bw := freqs[len(freqs)-1] - freqs[0]
	return bw / integrate.Trapezoidal(freqs, spec)
}

// DifferentialPowerSpectrum is dP/dT_CMB per unit bandwidth for a
// single-mode detector with spectral efficiency eff.
func DifferentialPowerSpectrum(freqs []float64, temp float64, eff []float64) []float64 {
	out := make([]float64, len(freqs))
	for i, f := range freqs {
		x := Planck * f / (Boltzmann * temp)
		em1 := math.Expm1(x)
		out[i] = eff[i] * (Planck * f) * (Planck * f) / (Boltzmann * temp * temp) * math.Exp(x) / (em1 * em1)
	}
	return out
}

// ErrNoPeak is returned by BandEdges for a spectrum with no positive value.
var ErrNoPeak = errors.New("physics: transmission has no positive peak")

// BandEdges finds the frequencies on either side of the peak closest to
// half the peak transmission (the -3 dB points).
func BandEdges(freqs, tran []float64) (lo, hi float64, err error) {
	peakIdx := floats.MaxIdx(tran)
	peak := tran[peakIdx]
	if peak <= 0 {
		return 0, 0, ErrNoPeak
	}
	half := 0.5 * peak

	loIdx := 0
	best := math.Inf(1)
	for i := 0; i < peakIdx; i++ {
		if d := math.Abs(tran[i] - half); d < best {
			best, loIdx = d, i
		}
	}
	hiIdx := peakIdx
	best = math.Inf(1)
	for i := peakIdx; i < len(tran); i++ {
		if d := math.Abs(tran[i] - half); d < best {
			best, hiIdx = d, i
		}
	}
	return freqs[loIdx], freqs[hiIdx], nil
}
