package core

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"gonum.org/v1/gonum/integrate"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/signalsfoundry/bolocalc/internal/logging"
	"github.com/signalsfoundry/bolocalc/model"
	"github.com/signalsfoundry/bolocalc/noise"
	"github.com/signalsfoundry/bolocalc/physics"
)

const tracerName = "github.com/signalsfoundry/bolocalc/core"

// ChannelInputs carries everything Evaluate needs besides the tensors:
// one Detector per detector slot and the channel, camera and telescope
// scalars, all in SI.
type ChannelInputs struct {
	Name      string
	Detectors []Detector

	NumDetectors          float64
	Yield                 float64
	PixelSize             float64
	BandCenter            float64
	FNumber               float64
	OpticalCoupling       float64
	NETMargin             float64
	SkyFraction           float64
	ObservationTime       float64
	ObservationEfficiency float64

	Site                model.Site
	InternalForegrounds bool
	Correlations        bool
}

// ChannelResult holds one nobs × ndet matrix per derived quantity.
type ChannelResult struct {
	Channel string

	TelescopeEfficiency *mat.Dense
	OpticalPower        *mat.Dense
	TelescopeRJTemp     *mat.Dense
	SkyRJTemp           *mat.Dense
	PhotonNEP           *mat.Dense
	PhotonNEPCorr       *mat.Dense
	BoloNEP             *mat.Dense
	ReadNEP             *mat.Dense
	NEP                 *mat.Dense
	NEPCorr             *mat.Dense
	NET                 *mat.Dense
	NETCorr             *mat.Dense
	NETRJ               *mat.Dense
	NETCorrRJ           *mat.Dense
	NETArr              *mat.Dense
	NETArrCorr          *mat.Dense
	NETArrRJ            *mat.Dense
	NETArrCorrRJ        *mat.Dense
	CorrDegradation     *mat.Dense
	MapDepth            *mat.Dense
	MapDepthRJ          *mat.Dense
}

func newChannelResult(name string, nobs, ndet int) *ChannelResult {
	m := func() *mat.Dense { return mat.NewDense(nobs, ndet, nil) }
	return &ChannelResult{
		Channel:             name,
		TelescopeEfficiency: m(), OpticalPower: m(), TelescopeRJTemp: m(), SkyRJTemp: m(),
		PhotonNEP: m(), PhotonNEPCorr: m(), BoloNEP: m(), ReadNEP: m(), NEP: m(), NEPCorr: m(),
		NET: m(), NETCorr: m(), NETRJ: m(), NETCorrRJ: m(),
		NETArr: m(), NETArrCorr: m(), NETArrRJ: m(), NETArrCorrRJ: m(),
		CorrDegradation: m(), MapDepth: m(), MapDepthRJ: m(),
	}
}

// Dims returns (nobs, ndet).
func (r *ChannelResult) Dims() (nobs, ndet int) { return r.NEP.Dims() }

// SlotRecord is one (observation, detector) row of a ChannelResult.
type SlotRecord struct {
	Observation         int     `json:"observation"`
	Detector            int     `json:"detector"`
	TelescopeEfficiency float64 `json:"telescope_efficiency"`
	OpticalPower        float64 `json:"optical_power"`
	TelescopeRJTemp     float64 `json:"telescope_rj_temp"`
	SkyRJTemp           float64 `json:"sky_rj_temp"`
	PhotonNEP           float64 `json:"photon_nep"`
	PhotonNEPCorr       float64 `json:"photon_nep_corr"`
	BoloNEP             float64 `json:"bolo_nep"`
	ReadNEP             float64 `json:"read_nep"`
	NEP                 float64 `json:"nep"`
	NEPCorr             float64 `json:"nep_corr"`
	NET                 float64 `json:"net"`
	NETCorr             float64 `json:"net_corr"`
	NETRJ               float64 `json:"net_rj"`
	NETCorrRJ           float64 `json:"net_corr_rj"`
	NETArr              float64 `json:"net_arr"`
	NETArrCorr          float64 `json:"net_arr_corr"`
	NETArrRJ            float64 `json:"net_arr_rj"`
	NETArrCorrRJ        float64 `json:"net_arr_corr_rj"`
	CorrDegradation     float64 `json:"corr_degradation"`
	MapDepth            float64 `json:"map_depth"`
	MapDepthRJ          float64 `json:"map_depth_rj"`
}

// Record flattens slot (o, d).
func (r *ChannelResult) Record(o, d int) SlotRecord {
	return SlotRecord{
		Observation:         o,
		Detector:            d,
		TelescopeEfficiency: r.TelescopeEfficiency.At(o, d),
		OpticalPower:        r.OpticalPower.At(o, d),
		TelescopeRJTemp:     r.TelescopeRJTemp.At(o, d),
		SkyRJTemp:           r.SkyRJTemp.At(o, d),
		PhotonNEP:           r.PhotonNEP.At(o, d),
		PhotonNEPCorr:       r.PhotonNEPCorr.At(o, d),
		BoloNEP:             r.BoloNEP.At(o, d),
		ReadNEP:             r.ReadNEP.At(o, d),
		NEP:                 r.NEP.At(o, d),
		NEPCorr:             r.NEPCorr.At(o, d),
		NET:                 r.NET.At(o, d),
		NETCorr:             r.NETCorr.At(o, d),
		NETRJ:               r.NETRJ.At(o, d),
		NETCorrRJ:           r.NETCorrRJ.At(o, d),
		NETArr:              r.NETArr.At(o, d),
		NETArrCorr:          r.NETArrCorr.At(o, d),
		NETArrRJ:            r.NETArrRJ.At(o, d),
		NETArrCorrRJ:        r.NETArrCorrRJ.At(o, d),
		CorrDegradation:     r.CorrDegradation.At(o, d),
		MapDepth:            r.MapDepth.At(o, d),
		MapDepthRJ:          r.MapDepthRJ.At(o, d),
	}
}

// Records flattens every slot, observation-major.
func (r *ChannelResult) Records() []SlotRecord {
	nobs, ndet := r.Dims()
	out := make([]SlotRecord, 0, nobs*ndet)
	for o := 0; o < nobs; o++ {
		for d := 0; d < ndet; d++ {
			out = append(out, r.Record(o, d))
		}
	}
	return out
}

// EvaluationRecorder receives per-evaluation outcomes, typically a
// Prometheus collector.
type EvaluationRecorder interface {
	ObserveEvaluation(channel string, elapsed time.Duration, err error)
	ObserveReadoutFallback(channel string)
}

// SensitivityOption customises a Sensitivity engine.
type SensitivityOption func(*Sensitivity)

// WithLogger attaches a logger.
func WithLogger(l logging.Logger) SensitivityOption {
	return func(s *Sensitivity) {
		if l != nil {
			s.log = l
		}
	}
}

// WithRecorder attaches an evaluation recorder.
func WithRecorder(r EvaluationRecorder) SensitivityOption {
	return func(s *Sensitivity) {
		s.recorder = r
	}
}

// Sensitivity turns a channel's optical chain into its noise budget. It
// holds no per-evaluation state and may be shared between goroutines.
type Sensitivity struct {
	log      logging.Logger
	recorder EvaluationRecorder
	tracer   trace.Tracer
}

// NewSensitivity builds an engine.
func NewSensitivity(opts ...SensitivityOption) *Sensitivity {
	s := &Sensitivity{log: logging.Noop(), tracer: otel.Tracer(tracerName)}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

// Evaluate computes the full noise budget of every (observation, detector)
// slot in t.
func (s *Sensitivity) Evaluate(ctx context.Context, t *Tensors, in ChannelInputs) (res *ChannelResult, err error) {
	start := time.Now()
	ctx, span := s.tracer.Start(ctx, "Sensitivity/Evaluate", trace.WithAttributes(
		attribute.String("channel", in.Name),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		if s.recorder != nil {
			s.recorder.ObserveEvaluation(in.Name, time.Since(start), err)
		}
	}()

	if err := t.Validate(); err != nil {
		return nil, fmt.Errorf("channel %s: %w", in.Name, err)
	}
	nobs, ndet, nelem, nfreq := t.Shape()
	span.SetAttributes(
		attribute.Int("nobs", nobs),
		attribute.Int("ndet", ndet),
		attribute.Int("nelem", nelem),
		attribute.Int("nfreq", nfreq),
	)
	if len(in.Detectors) != ndet {
		return nil, fmt.Errorf("channel %s: %w: %d detectors for %d detector slots", in.Name, ErrShape, len(in.Detectors), ndet)
	}
	log := s.log.With(logging.String("channel", in.Name))
	log.Debug(ctx, "evaluating channel",
		logging.Int("nobs", nobs), logging.Int("ndet", ndet), logging.Int("nelem", nelem))

	nsky := model.SkySideCount(in.Site, in.InternalForegrounds)
	if nsky > nelem {
		nsky = nelem
	}
	freqs := t.Freqs
	bw := bandwidth(freqs)
	rjFactor := physics.CMBToRJ(freqs)

	var overlapPitch float64
	if in.Correlations {
		if in.FNumber <= 0 || in.BandCenter <= 0 {
			return nil, fmt.Errorf("channel %s: correlations need a positive f-number and band center", in.Name)
		}
		overlapPitch = in.PixelSize / (in.FNumber * physics.Wavelength(in.BandCenter))
	}

	res = newChannelResult(in.Name, nobs, ndet)
	readMissing := false
	for o := 0; o < nobs; o++ {
		for d := 0; d < ndet; d++ {
			delivered := deliveredSpectra(t, o, d, 0, nelem)
			var popt, skyPow, telPow float64
			for k, spec := range delivered {
				p := integrate.Trapezoidal(freqs, spec)
				popt += p
				if k < nsky {
					skyPow += p
				} else {
					telPow += p
				}
			}
			telEff := integrate.Trapezoidal(freqs, t.Transmission.ProductAlongElements(o, d, nsky, nelem)) / bw
			res.OpticalPower.Set(o, d, popt)
			res.TelescopeEfficiency.Set(o, d, telEff)
			res.TelescopeRJTemp.Set(o, d, physics.RJTemp(telPow, bw, telEff))
			res.SkyRJTemp.Set(o, d, physics.RJTemp(skyPow, bw, telEff))

			var ph, phCorr float64
			if in.Correlations {
				ph, phCorr = noise.CorrelatedPhotonNEP(delivered, freqs, noise.ModeOverlap{
					Correlated: noise.ApertureCorrelated(t.Names.Row(o, d), nsky),
					Pitch:      overlapPitch,
				})
			} else {
				ph = noise.PhotonNEP(delivered, freqs)
				phCorr = ph
			}
			res.PhotonNEP.Set(o, d, ph)
			res.PhotonNEPCorr.Set(o, d, phCorr)

			det := in.Detectors[d]
			bolo, err := boloNEP(popt, det)
			if err != nil {
				return nil, fmt.Errorf("channel %s detector %d: %w", in.Name, d, err)
			}
			res.BoloNEP.Set(o, d, bolo)

			read := readNEP(popt, det)
			if x, ok := read.Float(); ok {
				res.ReadNEP.Set(o, d, x)
			} else {
				readMissing = true
			}
		}
	}

	if readMissing {
		log.Info(ctx, "readout NEP not derivable, using fractional inflation of photon and bolometer NEP")
		if s.recorder != nil {
			s.recorder.ObserveReadoutFallback(in.Name)
		}
		for d := 0; d < ndet; d++ {
			frac, ok := in.Detectors[d].ReadNoiseFrac.Float()
			if !ok {
				return nil, fmt.Errorf("channel %s detector %d: %w", in.Name, d,
					paramErrf(model.ParamReadNoiseFrac.Name(), model.TokenNotApplicable, ErrNotApplicable, "needed when readout NEP cannot be derived"))
			}
			scale := math.Sqrt((1+frac)*(1+frac) - 1)
			for o := 0; o < nobs; o++ {
				res.ReadNEP.Set(o, d, scale*noise.Quadrature(res.PhotonNEP.At(o, d), res.BoloNEP.At(o, d)))
			}
		}
	}

	for o := 0; o < nobs; o++ {
		for d := 0; d < ndet; d++ {
			bolo, read := res.BoloNEP.At(o, d), res.ReadNEP.At(o, d)
			nep := noise.Quadrature(res.PhotonNEP.At(o, d), bolo, read)
			nepCorr := noise.Quadrature(res.PhotonNEPCorr.At(o, d), bolo, read)
			res.NEP.Set(o, d, nep)
			res.NEPCorr.Set(o, d, nepCorr)

			eff := t.Transmission.ProductAlongElements(o, d, 0, nelem)
			net := noise.NETFromNEP(nep, freqs, eff, in.OpticalCoupling) * in.NETMargin
			netCorr := noise.NETFromNEP(nepCorr, freqs, eff, in.OpticalCoupling) * in.NETMargin
			res.NET.Set(o, d, net)
			res.NETCorr.Set(o, d, netCorr)
			res.NETRJ.Set(o, d, net/rjFactor)
			res.NETCorrRJ.Set(o, d, netCorr/rjFactor)

			arr := func(x float64) float64 { return noise.ArrayNET(x, in.NumDetectors, in.Yield) }
			res.NETArr.Set(o, d, arr(net))
			res.NETArrCorr.Set(o, d, arr(netCorr))
			res.NETArrRJ.Set(o, d, arr(net/rjFactor))
			res.NETArrCorrRJ.Set(o, d, arr(netCorr/rjFactor))

			res.CorrDegradation.Set(o, d, netCorr/net)

			depth := func(x float64) float64 {
				return noise.MapDepth(x, in.SkyFraction, in.ObservationTime, in.ObservationEfficiency)
			}
			res.MapDepth.Set(o, d, depth(res.NETArrCorr.At(o, d)))
			res.MapDepthRJ.Set(o, d, depth(res.NETArrCorrRJ.At(o, d)))
		}
	}

	log.Debug(ctx, "channel evaluated",
		logging.Float("nep_median", median(res.NEP)),
		logging.Float("net_arr_median", median(res.NETArr)))
	return res, nil
}

// boloNEP derives G from G, Psat or PsatFactor × Popt, and Flink from
// Flink or the carrier index and temperatures.
func boloNEP(popt float64, det Detector) (float64, error) {
	need := func(v model.Value, id model.ParamID) (float64, error) {
		x, ok := v.Float()
		if !ok {
			return 0, paramErr(id.Name(), v.String(), ErrNotApplicable)
		}
		return x, nil
	}
	tc, err := need(det.Tc, model.ParamTc)
	if err != nil {
		return 0, err
	}

	g, ok := det.G.Float()
	if !ok {
		n, err := need(det.CarrierIndex, model.ParamCarrierIndex)
		if err != nil {
			return 0, err
		}
		tb, err := need(det.BathTemp, model.ParamBathTemp)
		if err != nil {
			return 0, err
		}
		psat, ok := det.Psat.Float()
		if !ok {
			fact, err := need(det.PsatFactor, model.ParamPsatFactor)
			if err != nil {
				return 0, err
			}
			psat = fact * popt
		}
		g = noise.G(psat, n, tb, tc)
	}

	flink, ok := det.Flink.Float()
	if !ok {
		n, err := need(det.CarrierIndex, model.ParamCarrierIndex)
		if err != nil {
			return 0, err
		}
		tb, err := need(det.BathTemp, model.ParamBathTemp)
		if err != nil {
			return 0, err
		}
		flink = noise.Flink(n, tb, tc)
	}
	return noise.BoloNEP(flink, g, tc), nil
}

// readNEP is NA unless the SQUID NEI and bolometer resistance are known.
// Bias power is Psat − Popt (zero NEP once saturated) or, without Psat,
// (PsatFactor − 1) × Popt.
func readNEP(popt float64, det Detector) model.Value {
	nei, ok := det.SquidNEI.Float()
	if !ok {
		return model.NotApplicable
	}
	r, ok := det.BoloResistance.Float()
	if !ok {
		return model.NotApplicable
	}
	sfact := det.ResponsivityFactor.Or(1)

	var pbias float64
	if psat, ok := det.Psat.Float(); ok {
		if popt >= psat {
			return model.Known(0)
		}
		pbias = psat - popt
	} else {
		fact, ok := det.PsatFactor.Float()
		if !ok {
			return model.NotApplicable
		}
		pbias = (fact - 1) * popt
	}
	return model.Known(noise.ReadNEP(pbias, r, nei, sfact))
}

// median of every entry of m, for logging.
func median(m *mat.Dense) float64 {
	r, c := m.Dims()
	vals := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		vals = append(vals, m.RawRowView(i)...)
	}
	if len(vals) == 0 {
		return math.NaN()
	}
	sort.Float64s(vals)
	return stat.Quantile(0.5, stat.Empirical, vals, nil)
}
