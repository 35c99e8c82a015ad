package core

import "github.com/signalsfoundry/bolocalc/model"

// Detector is one detector's resolved parameters in SI. Any field may be
// NA; the engine falls back where it can.
type Detector struct {
	BandCenter         model.Value
	FractionalBW       model.Value
	DetEff             model.Value
	Psat               model.Value
	PsatFactor         model.Value
	CarrierIndex       model.Value
	Tc                 model.Value
	TcFraction         model.Value
	BathTemp           model.Value
	G                  model.Value
	Flink              model.Value
	SquidNEI           model.Value
	BoloResistance     model.Value
	ReadNoiseFrac      model.Value
	ResponsivityFactor model.Value
}

// ResolveDetector draws (or averages, when sample is false) every detector
// parameter of set for band. A missing Tc is taken as TcFraction × BathTemp.
func ResolveDetector(set *ParamSet, band int, sample bool) Detector {
	draw := func(id model.ParamID) model.Value { return set.Draw(id, band, sample) }
	det := Detector{
		BandCenter:         draw(model.ParamBandCenter),
		FractionalBW:       draw(model.ParamFractionalBW),
		DetEff:             draw(model.ParamDetEff),
		Psat:               draw(model.ParamPsat),
		PsatFactor:         draw(model.ParamPsatFactor),
		CarrierIndex:       draw(model.ParamCarrierIndex),
		Tc:                 draw(model.ParamTc),
		TcFraction:         draw(model.ParamTcFraction),
		BathTemp:           draw(model.ParamBathTemp),
		G:                  draw(model.ParamG),
		Flink:              draw(model.ParamFlink),
		SquidNEI:           draw(model.ParamSquidNEI),
		BoloResistance:     draw(model.ParamBoloResistance),
		ReadNoiseFrac:      draw(model.ParamReadNoiseFrac),
		ResponsivityFactor: draw(model.ParamResponsivityFactor),
	}
	if !det.Tc.IsKnown() {
		if frac, ok := det.TcFraction.Float(); ok {
			if tb, ok := det.BathTemp.Float(); ok {
				det.Tc = model.Known(frac * tb)
			}
		}
	}
	return det
}
