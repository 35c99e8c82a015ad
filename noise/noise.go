// Package noise implements the closed-form detector noise model: photon,
// phonon and readout NEP, and their conversion to NET and map depth.
//
// NEPs are in W/√Hz, NETs in K·√s and map depth in K·arcmin.
package noise

import (
	"math"
	"strings"

	"gonum.org/v1/gonum/integrate"

	"github.com/signalsfoundry/bolocalc/physics"
)

// sumSpectra adds the per-element spectra along the element axis.
func sumSpectra(spectra [][]float64, nfreq int) []float64 {
	total := make([]float64, nfreq)
	for _, s := range spectra {
		for i, v := range s {
			total[i] += v
		}
	}
	return total
}

// PhotonNEP is the photon noise of the summed power spectra reaching a
// detector: shot noise plus the single-mode bunching term.
func PhotonNEP(spectra [][]float64, freqs []float64) float64 {
	p := sumSpectra(spectra, len(freqs))
	integrand := make([]float64, len(freqs))
	for i, f := range freqs {
		integrand[i] = physics.Planck*f*p[i] + p[i]*p[i]
	}
	return math.Sqrt(2 * integrate.Trapezoidal(freqs, integrand))
}

// ModeOverlap describes which elements illuminate neighbouring detectors
// coherently, and how far apart those detectors sit.
type ModeOverlap struct {
	// Correlated marks, per element, whether its bunching noise is shared.
	Correlated []bool
	// Pitch is the detector spacing in units of F·λ.
	Pitch float64
}

// AiryOverlap is the intensity coherence between two points separated by
// pitch F·λ in the focal plane of a uniformly illuminated circular pupil.
func AiryOverlap(pitch float64) float64 {
	x := math.Pi * pitch
	if x == 0 {
		return 1
	}
	a := 2 * math.J1(x) / x
	return a * a
}

// CorrelatedPhotonNEP returns the photon NEP with and without the bunching
// noise that is shared between neighbouring detectors. The shared term only
// raises the effective per-detector noise, so corr >= plain.
func CorrelatedPhotonNEP(spectra [][]float64, freqs []float64, ov ModeOverlap) (plain, corr float64) {
	p := sumSpectra(spectra, len(freqs))
	shared := make([]float64, len(freqs))
	for k, s := range spectra {
		if k < len(ov.Correlated) && ov.Correlated[k] {
			for i, v := range s {
				shared[i] += v
			}
		}
	}
	gamma := AiryOverlap(ov.Pitch)

	base := make([]float64, len(freqs))
	extra := make([]float64, len(freqs))
	for i, f := range freqs {
		base[i] = physics.Planck*f*p[i] + p[i]*p[i]
		extra[i] = gamma * shared[i] * shared[i]
	}
	b := integrate.Trapezoidal(freqs, base)
	e := integrate.Trapezoidal(freqs, extra)
	return math.Sqrt(2 * b), math.Sqrt(2 * (b + e))
}

// ApertureCorrelated marks the sky-side elements and every optic up to and
// including the aperture stop as coherently shared between detectors.
// Without a named stop only the sky-side elements are marked.
func ApertureCorrelated(names []string, skySide int) []bool {
	out := make([]bool, len(names))
	stop := -1
	for i, n := range names {
		u := strings.ToUpper(n)
		if strings.Contains(u, "APERTURE") || strings.Contains(u, "STOP") || strings.Contains(u, "LYOT") {
			stop = i
			break
		}
	}
	for i := range out {
		out[i] = i < skySide || i <= stop
	}
	return out
}

// G is the thermal conductance that gives saturation power psat for carrier
// index n, bath temperature tb and critical temperature tc.
func G(psat, n, tb, tc float64) float64 {
	return psat * (n + 1) * math.Pow(tc, n) / (math.Pow(tc, n+1) - math.Pow(tb, n+1))
}

// Flink is the thermal link noise factor.
func Flink(n, tb, tc float64) float64 {
	r := tb / tc
	return (n + 1) / (2*n + 3) * (1 - math.Pow(r, 2*n+3)) / (1 - math.Pow(r, n+1))
}

// BoloNEP is the phonon noise across the thermal link.
func BoloNEP(flink, g, tc float64) float64 {
	return math.Sqrt(4 * physics.Boltzmann * flink * tc * tc * g)
}

// ReadNEP refers current noise nei to power through a voltage-biased TES
// responsivity sfact/√(R·Pbias).
func ReadNEP(pbias, boloR, nei, sfact float64) float64 {
	if sfact == 0 {
		sfact = 1
	}
	return nei * math.Sqrt(boloR*pbias) / sfact
}

// Quadrature returns √(Σ xᵢ²).
func Quadrature(xs ...float64) float64 {
	var s float64
	for _, x := range xs {
		s += x * x
	}
	return math.Sqrt(s)
}

// DPdT integrates the CMB differential power spectrum for spectral
// efficiency eff.
func DPdT(freqs, eff []float64) float64 {
	return integrate.Trapezoidal(freqs, physics.DifferentialPowerSpectrum(freqs, physics.TCMB, eff))
}

// NETFromNEP converts NEP into a CMB-referenced NET given the end-to-end
// spectral efficiency and an optical coupling factor.
func NETFromNEP(nep float64, freqs, eff []float64, optCoup float64) float64 {
	return nep / (math.Sqrt2 * optCoup * DPdT(freqs, eff))
}

// ArrayNET combines ndet detectors of which a fraction yield work.
func ArrayNET(net, ndet, yield float64) float64 {
	n := ndet * yield
	if n <= 0 {
		return math.Inf(1)
	}
	return net / math.Sqrt(n)
}

// MapDepth spreads an array NET over sky fraction fsky for tobs seconds at
// observing efficiency obsEff and returns the depth in K·arcmin.
func MapDepth(netArr, fsky, tobs, obsEff float64) float64 {
	return math.Sqrt(4*math.Pi*fsky*2*netArr*netArr/(tobs*obsEff)) * (10800 / math.Pi)
}
