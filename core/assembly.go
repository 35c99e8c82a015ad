package core

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"
	"gonum.org/v1/gonum/interp"

	"github.com/signalsfoundry/bolocalc/model"
	"github.com/signalsfoundry/bolocalc/physics"
)

const (
	// gridHalfWidth is the half-width of the frequency grid in units of
	// the channel bandwidth.
	gridHalfWidth = 0.65
	// DefaultFreqResolution is the grid step used when none is configured.
	DefaultFreqResolution = 0.1e9

	detectorElement = "Detector"
)

// AssemblyOptions controls how a channel is turned into tensors.
type AssemblyOptions struct {
	NObs int
	NDet int
	// Sample draws every parameter; otherwise averages are used.
	Sample bool
	// FreqResolution is the grid step in Hz.
	FreqResolution float64
}

func (o AssemblyOptions) withDefaults() AssemblyOptions {
	if o.NObs < 1 {
		o.NObs = 1
	}
	if o.NDet < 1 {
		o.NDet = 1
	}
	if o.FreqResolution <= 0 {
		o.FreqResolution = DefaultFreqResolution
	}
	return o
}

// FrequencyGrid spans bc·(1 ± 0.65·fbw) in steps of res. The grid always
// has at least two points.
func FrequencyGrid(bc, fbw, res float64) []float64 {
	lo := bc * (1 - gridHalfWidth*fbw)
	hi := bc * (1 + gridHalfWidth*fbw)
	n := int(math.Floor((hi-lo)/res)) + 1
	if n < 2 {
		return []float64{lo, hi}
	}
	return floats.Span(make([]float64, n), lo, lo+float64(n-1)*res)
}

// passband returns the detector band transmission on freqs and the
// in-band mask. A measured band is interpolated and its half-power edges
// bound the mask; otherwise the band is a top hat.
func passband(freqs []float64, bc, fbw float64, measured *Band) ([]float64, []bool, error) {
	spec := make([]float64, len(freqs))
	mask := make([]bool, len(freqs))
	if measured == nil {
		half := bc * fbw / 2
		for i, f := range freqs {
			if math.Abs(f-bc) <= half {
				spec[i], mask[i] = 1, true
			}
		}
		return spec, mask, nil
	}

	if err := measured.Validate(); err != nil {
		return nil, nil, err
	}
	var pl interp.PiecewiseLinear
	if err := pl.Fit(measured.Freqs, measured.Transmission); err != nil {
		return nil, nil, fmt.Errorf("fit band: %w", err)
	}
	first, last := measured.Freqs[0], measured.Freqs[len(measured.Freqs)-1]
	for i, f := range freqs {
		if f >= first && f <= last {
			spec[i] = pl.Predict(f)
		}
	}
	lo, hi, err := physics.BandEdges(freqs, spec)
	if err != nil {
		return nil, nil, err
	}
	for i, f := range freqs {
		mask[i] = f >= lo && f <= hi
	}
	return spec, mask, nil
}

// Assemble samples ch into tensors and engine inputs. Each detector slot
// gets its own draw of the detector parameters; each (observation,
// detector) slot gets its own draw of every element.
func Assemble(ch *Channel, opts AssemblyOptions) (*Tensors, ChannelInputs, error) {
	opts = opts.withDefaults()
	fail := func(err error) (*Tensors, ChannelInputs, error) {
		return nil, ChannelInputs{}, fmt.Errorf("channel %s: %w", ch.Name, err)
	}

	scalar := func(id model.ParamID, sample bool) (float64, error) {
		v := ch.Params.Draw(id, ch.Band, sample)
		x, ok := v.Float()
		if !ok {
			return 0, paramErr(id.Name(), v.String(), ErrNotApplicable)
		}
		return x, nil
	}

	bc, err := scalar(model.ParamBandCenter, false)
	if err != nil {
		return fail(err)
	}
	fbw, err := scalar(model.ParamFractionalBW, false)
	if err != nil {
		return fail(err)
	}
	freqs := FrequencyGrid(bc, fbw, opts.FreqResolution)
	band, mask, err := passband(freqs, bc, fbw, ch.Passband)
	if err != nil {
		return fail(err)
	}

	in := ChannelInputs{
		Name:                ch.Name,
		BandCenter:          bc,
		Site:                ch.Site(),
		InternalForegrounds: ch.InternalForegrounds(),
		Correlations:        ch.Correlations(),
		Detectors:           make([]Detector, opts.NDet),
	}
	for _, f := range []struct {
		id  model.ParamID
		dst *float64
	}{
		{model.ParamYield, &in.Yield},
		{model.ParamOpticalCoupling, &in.OpticalCoupling},
		{model.ParamNETMargin, &in.NETMargin},
		{model.ParamSkyFraction, &in.SkyFraction},
		{model.ParamObservationTime, &in.ObservationTime},
		{model.ParamObservationEfficiency, &in.ObservationEfficiency},
	} {
		if *f.dst, err = scalar(f.id, opts.Sample); err != nil {
			return fail(err)
		}
	}
	if in.Correlations {
		if in.PixelSize, err = scalar(model.ParamPixelSize, opts.Sample); err != nil {
			return fail(err)
		}
		if in.FNumber, err = scalar(model.ParamFNumber, opts.Sample); err != nil {
			return fail(err)
		}
	}
	in.NumDetectors = 1
	for _, id := range []model.ParamID{model.ParamDetPerWafer, model.ParamWafersPerOT, model.ParamNumOT} {
		x, err := scalar(id, false)
		if err != nil {
			return fail(err)
		}
		in.NumDetectors *= x
	}

	nelem := len(ch.Elements) + 1
	t := NewTensors(opts.NObs, opts.NDet, nelem, freqs)
	copy(t.BandMask, mask)

	for d := 0; d < opts.NDet; d++ {
		det := ResolveDetector(ch.Params, ch.Band, opts.Sample)
		if _, ok := det.DetEff.Float(); !ok {
			return fail(paramErr(model.ParamDetEff.Name(), det.DetEff.String(), ErrNotApplicable))
		}
		if _, ok := det.BathTemp.Float(); !ok {
			return fail(paramErr(model.ParamBathTemp.Name(), det.BathTemp.String(), ErrNotApplicable))
		}
		in.Detectors[d] = det
	}

	for o := 0; o < opts.NObs; o++ {
		for d := 0; d < opts.NDet; d++ {
			for k, el := range ch.Elements {
				if err := fillElement(t, o, d, k, el, ch.Band, opts.Sample); err != nil {
					return fail(err)
				}
			}
			det := in.Detectors[d]
			eff, _ := det.DetEff.Float()
			tb, _ := det.BathTemp.Float()
			k := nelem - 1
			t.Names.Set(o, d, k, detectorElement)
			t.Temperature.Set(o, d, k, 0, tb)
			t.Emissivity.Fill(o, d, k, 1-eff)
			tran := t.Transmission.Spectrum(o, d, k)
			for i := range tran {
				tran[i] = eff * band[i]
			}
		}
	}
	return t, in, nil
}

func fillElement(t *Tensors, o, d, k int, el OpticalElement, band int, sample bool) error {
	get := func(id model.ParamID) (float64, error) {
		v := el.Params.Draw(id, band, sample)
		x, ok := v.Float()
		if !ok {
			return 0, paramErrf(el.Name+" "+id.Name(), v.String(), ErrNotApplicable, "element value")
		}
		return x, nil
	}
	temp, err := get(model.ParamElementTemperature)
	if err != nil {
		return err
	}
	emis, err := get(model.ParamElementEmissivity)
	if err != nil {
		return err
	}
	tran, err := get(model.ParamElementTransmission)
	if err != nil {
		return err
	}
	t.Names.Set(o, d, k, el.Name)
	t.Temperature.Set(o, d, k, 0, temp)
	t.Emissivity.Fill(o, d, k, emis)
	t.Transmission.Fill(o, d, k, tran)
	return nil
}

// EvaluateChannel assembles ch and runs it through the engine.
func (s *Sensitivity) EvaluateChannel(ctx context.Context, ch *Channel, opts AssemblyOptions) (*ChannelResult, error) {
	t, in, err := Assemble(ch, opts)
	if err != nil {
		return nil, err
	}
	return s.Evaluate(ctx, t, in)
}

// EvaluateOptics assembles ch and returns its per-element optical table.
func EvaluateOptics(ch *Channel, opts AssemblyOptions) (*OpticalTable, error) {
	t, _, err := Assemble(ch, opts)
	if err != nil {
		return nil, err
	}
	return OpticalPowers(t)
}
