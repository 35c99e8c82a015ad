package core

import "fmt"

// Cube is a dense (observation, detector, element, frequency) array.
type Cube struct {
	nobs, ndet, nelem, nfreq int
	data                     []float64
}

// NewCube allocates a zeroed cube.
func NewCube(nobs, ndet, nelem, nfreq int) *Cube {
	return &Cube{
		nobs: nobs, ndet: ndet, nelem: nelem, nfreq: nfreq,
		data: make([]float64, nobs*ndet*nelem*nfreq),
	}
}

// Dims returns the four axis lengths.
func (c *Cube) Dims() (nobs, ndet, nelem, nfreq int) {
	return c.nobs, c.ndet, c.nelem, c.nfreq
}

func (c *Cube) offset(o, d, e int) int {
	if o < 0 || o >= c.nobs || d < 0 || d >= c.ndet || e < 0 || e >= c.nelem {
		panic(fmt.Sprintf("core: cube index (%d,%d,%d) out of range (%d,%d,%d)", o, d, e, c.nobs, c.ndet, c.nelem))
	}
	return ((o*c.ndet+d)*c.nelem + e) * c.nfreq
}

// At returns the value at one frequency bin.
func (c *Cube) At(o, d, e, f int) float64 { return c.data[c.offset(o, d, e)+f] }

// Set stores one value.
func (c *Cube) Set(o, d, e, f int, v float64) { c.data[c.offset(o, d, e)+f] = v }

// Spectrum returns the frequency axis at (o, d, e). The slice shares
// storage with the cube.
func (c *Cube) Spectrum(o, d, e int) []float64 {
	off := c.offset(o, d, e)
	return c.data[off : off+c.nfreq : off+c.nfreq]
}

// SetSpectrum copies spec into (o, d, e); its length must match the
// frequency axis.
func (c *Cube) SetSpectrum(o, d, e int, spec []float64) error {
	if len(spec) != c.nfreq {
		return fmt.Errorf("%w: spectrum has %d bins, cube has %d", ErrShape, len(spec), c.nfreq)
	}
	copy(c.Spectrum(o, d, e), spec)
	return nil
}

// Fill sets every frequency bin of (o, d, e) to v.
func (c *Cube) Fill(o, d, e int, v float64) {
	s := c.Spectrum(o, d, e)
	for i := range s {
		s[i] = v
	}
}

// ProductAlongElements multiplies spectra of elements from..to-1 at slot
// (o, d). Indices at or past the last element contribute 1, and an empty
// range gives all ones.
func (c *Cube) ProductAlongElements(o, d, from, to int) []float64 {
	out := make([]float64, c.nfreq)
	for i := range out {
		out[i] = 1
	}
	if from < 0 {
		from = 0
	}
	if to > c.nelem {
		to = c.nelem
	}
	for e := from; e < to; e++ {
		s := c.Spectrum(o, d, e)
		for i := range out {
			out[i] *= s[i]
		}
	}
	return out
}

// Labels holds element names indexed (observation, detector, element).
type Labels struct {
	nobs, ndet, nelem int
	names             []string
}

// NewLabels allocates an empty label grid.
func NewLabels(nobs, ndet, nelem int) *Labels {
	return &Labels{nobs: nobs, ndet: ndet, nelem: nelem, names: make([]string, nobs*ndet*nelem)}
}

func (l *Labels) Dims() (nobs, ndet, nelem int) { return l.nobs, l.ndet, l.nelem }

func (l *Labels) At(o, d, e int) string { return l.names[(o*l.ndet+d)*l.nelem+e] }

func (l *Labels) Set(o, d, e int, name string) { l.names[(o*l.ndet+d)*l.nelem+e] = name }

// Row returns a copy of the element names at (o, d).
func (l *Labels) Row(o, d int) []string {
	off := (o*l.ndet + d) * l.nelem
	return append([]string(nil), l.names[off:off+l.nelem]...)
}

// Tensors is everything the sensitivity engine needs about one channel's
// optical chain. Elements are ordered sky first, detector last.
type Tensors struct {
	Names        *Labels
	Emissivity   *Cube
	Transmission *Cube
	// Temperature has a single frequency bin.
	Temperature *Cube
	Freqs       []float64
	BandMask    []bool
}

// NewTensors allocates tensors for nobs × ndet slots of nelem elements over
// freqs.
func NewTensors(nobs, ndet, nelem int, freqs []float64) *Tensors {
	return &Tensors{
		Names:        NewLabels(nobs, ndet, nelem),
		Emissivity:   NewCube(nobs, ndet, nelem, len(freqs)),
		Transmission: NewCube(nobs, ndet, nelem, len(freqs)),
		Temperature:  NewCube(nobs, ndet, nelem, 1),
		Freqs:        append([]float64(nil), freqs...),
		BandMask:     make([]bool, len(freqs)),
	}
}

// Shape returns (nobs, ndet, nelem, nfreq).
func (t *Tensors) Shape() (nobs, ndet, nelem, nfreq int) {
	nobs, ndet, nelem, _ = t.Emissivity.Dims()
	return nobs, ndet, nelem, len(t.Freqs)
}

// Validate checks that every component agrees on shape and that the
// frequency grid is usable for quadrature.
func (t *Tensors) Validate() error {
	if t == nil || t.Names == nil || t.Emissivity == nil || t.Transmission == nil || t.Temperature == nil {
		return fmt.Errorf("%w: missing component", ErrShape)
	}
	nobs, ndet, nelem, nfreq := t.Emissivity.Dims()
	if nobs == 0 || ndet == 0 || nelem == 0 {
		return fmt.Errorf("%w: empty tensors (%d,%d,%d)", ErrShape, nobs, ndet, nelem)
	}
	if nfreq != len(t.Freqs) || len(t.BandMask) != len(t.Freqs) {
		return fmt.Errorf("%w: %d frequency bins, %d freqs, %d mask entries", ErrShape, nfreq, len(t.Freqs), len(t.BandMask))
	}
	if len(t.Freqs) < 2 {
		return fmt.Errorf("%w: need at least two frequencies", ErrShape)
	}
	for i := 1; i < len(t.Freqs); i++ {
		if t.Freqs[i] <= t.Freqs[i-1] {
			return fmt.Errorf("%w: frequencies not increasing at %d", ErrShape, i)
		}
	}
	to, td, te, tf := t.Transmission.Dims()
	if to != nobs || td != ndet || te != nelem || tf != nfreq {
		return fmt.Errorf("%w: transmission (%d,%d,%d,%d) vs emissivity (%d,%d,%d,%d)", ErrShape, to, td, te, tf, nobs, ndet, nelem, nfreq)
	}
	po, pd, pe, pf := t.Temperature.Dims()
	if po != nobs || pd != ndet || pe != nelem || pf != 1 {
		return fmt.Errorf("%w: temperature (%d,%d,%d,%d)", ErrShape, po, pd, pe, pf)
	}
	lo, ld, le := t.Names.Dims()
	if lo != nobs || ld != ndet || le != nelem {
		return fmt.Errorf("%w: names (%d,%d,%d)", ErrShape, lo, ld, le)
	}
	return nil
}

// maskFloat returns the band mask as 0/1 weights.
func (t *Tensors) maskFloat() []float64 {
	out := make([]float64, len(t.BandMask))
	for i, m := range t.BandMask {
		if m {
			out[i] = 1
		}
	}
	return out
}
