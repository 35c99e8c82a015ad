package model

import (
	"fmt"
	"math"
	"strings"
)

// ParamID enumerates every configurable parameter the calculator knows.
type ParamID int

const (
	ParamUnknown ParamID = iota

	// Simulation-wide switches.
	ParamInternalForegrounds
	ParamCorrelations

	// Telescope.
	ParamSite
	ParamSkyFraction
	ParamObservationTime
	ParamObservationEfficiency
	ParamNETMargin

	// Camera.
	ParamOpticalCoupling
	ParamFNumber
	ParamBathTemp

	// Channel.
	ParamDetPerWafer
	ParamWafersPerOT
	ParamNumOT
	ParamYield
	ParamPixelSize
	ParamWaistFactor

	// Detector.
	ParamBandCenter
	ParamFractionalBW
	ParamDetEff
	ParamPsat
	ParamPsatFactor
	ParamCarrierIndex
	ParamTc
	ParamTcFraction
	ParamSquidNEI
	ParamBoloResistance
	ParamReadNoiseFrac
	ParamFlink
	ParamG
	ParamResponsivityFactor

	// Optical elements.
	ParamElementTemperature
	ParamElementEmissivity
	ParamElementTransmission

	paramCount
)

// StandardParam describes the unit, bounds and kind of a known parameter.
// Min and Max are in the declared unit; NaN means unbounded.
type StandardParam struct {
	ID   ParamID
	Key  string // internal key, e.g. "psat"
	Name string // display name as written in configuration, e.g. "Psat"
	Unit string
	Min  float64
	Max  float64
	Kind Kind
}

var none = math.NaN()

var standardParams = [paramCount]StandardParam{
	ParamInternalForegrounds: {Key: "infg", Name: "Internal Foregrounds", Unit: "NA", Min: none, Max: none, Kind: KindBool},
	ParamCorrelations:        {Key: "corr", Name: "Correlations", Unit: "NA", Min: none, Max: none, Kind: KindBool},

	ParamSite:                  {Key: "site", Name: "Site", Unit: "NA", Min: none, Max: none, Kind: KindString},
	ParamSkyFraction:           {Key: "fsky", Name: "Sky Fraction", Unit: "NA", Min: 0, Max: 1, Kind: KindFloat},
	ParamObservationTime:       {Key: "tobs", Name: "Observation Time", Unit: "yr", Min: 0, Max: none, Kind: KindFloat},
	ParamObservationEfficiency: {Key: "obs_eff", Name: "Observation Efficiency", Unit: "NA", Min: 0, Max: 1, Kind: KindFloat},
	ParamNETMargin:             {Key: "net_mgn", Name: "NET Margin", Unit: "NA", Min: 0, Max: none, Kind: KindFloat},

	ParamOpticalCoupling: {Key: "opt_coup", Name: "Optical Coupling", Unit: "NA", Min: 0, Max: 1, Kind: KindFloat},
	ParamFNumber:         {Key: "fnum", Name: "F Number", Unit: "NA", Min: 0, Max: none, Kind: KindFloat},
	ParamBathTemp:        {Key: "tb", Name: "Bath Temp", Unit: "K", Min: 0, Max: none, Kind: KindFloat},

	ParamDetPerWafer: {Key: "det_per_waf", Name: "Num Det per Wafer", Unit: "NA", Min: 0, Max: none, Kind: KindFloat},
	ParamWafersPerOT: {Key: "waf_per_ot", Name: "Num Waf per OT", Unit: "NA", Min: 0, Max: none, Kind: KindFloat},
	ParamNumOT:       {Key: "ot", Name: "Num OT", Unit: "NA", Min: 0, Max: none, Kind: KindFloat},
	ParamYield:       {Key: "yield", Name: "Yield", Unit: "NA", Min: 0, Max: 1, Kind: KindFloat},
	ParamPixelSize:   {Key: "pix_sz", Name: "Pixel Size", Unit: "mm", Min: 0, Max: none, Kind: KindFloat},
	ParamWaistFactor: {Key: "wf", Name: "Waist Factor", Unit: "NA", Min: 0, Max: none, Kind: KindFloat},

	ParamBandCenter:         {Key: "bc", Name: "Band Center", Unit: "GHz", Min: 0, Max: none, Kind: KindFloat},
	ParamFractionalBW:       {Key: "fbw", Name: "Fractional BW", Unit: "NA", Min: 0, Max: 2, Kind: KindFloat},
	ParamDetEff:             {Key: "det_eff", Name: "Det Eff", Unit: "NA", Min: 0, Max: 1, Kind: KindFloat},
	ParamPsat:               {Key: "psat", Name: "Psat", Unit: "pW", Min: 0, Max: none, Kind: KindFloat},
	ParamPsatFactor:         {Key: "psat_fact", Name: "Psat Factor", Unit: "NA", Min: 0, Max: none, Kind: KindFloat},
	ParamCarrierIndex:       {Key: "n", Name: "Carrier Index", Unit: "NA", Min: 0, Max: none, Kind: KindFloat},
	ParamTc:                 {Key: "tc", Name: "Tc", Unit: "K", Min: 0, Max: none, Kind: KindFloat},
	ParamTcFraction:         {Key: "tc_frac", Name: "Tc Fraction", Unit: "NA", Min: 0, Max: none, Kind: KindFloat},
	ParamSquidNEI:           {Key: "nei", Name: "SQUID NEI", Unit: "pA/rtHz", Min: 0, Max: none, Kind: KindFloat},
	ParamBoloResistance:     {Key: "bolo_r", Name: "Bolo Resistance", Unit: "Ohm", Min: 0, Max: none, Kind: KindFloat},
	ParamReadNoiseFrac:      {Key: "read_frac", Name: "Read Noise Frac", Unit: "NA", Min: 0, Max: none, Kind: KindFloat},
	ParamFlink:              {Key: "flink", Name: "Flink", Unit: "NA", Min: 0, Max: none, Kind: KindFloat},
	ParamG:                  {Key: "g", Name: "G", Unit: "pW/K", Min: 0, Max: none, Kind: KindFloat},
	ParamResponsivityFactor: {Key: "sfact", Name: "Responsivity Factor", Unit: "NA", Min: 0, Max: none, Kind: KindFloat},

	ParamElementTemperature:  {Key: "temp", Name: "Temperature", Unit: "K", Min: 0, Max: none, Kind: KindFloat},
	ParamElementEmissivity:   {Key: "emis", Name: "Emissivity", Unit: "NA", Min: 0, Max: 1, Kind: KindFloat},
	ParamElementTransmission: {Key: "tran", Name: "Transmission", Unit: "NA", Min: 0, Max: 1, Kind: KindFloat},
}

var (
	paramsByKey  = make(map[string]ParamID, paramCount)
	paramsByName = make(map[string]ParamID, paramCount)
)

func init() {
	for id := ParamID(1); id < paramCount; id++ {
		sp := &standardParams[id]
		if sp.Key == "" {
			panic(fmt.Sprintf("model: parameter %d has no descriptor", id))
		}
		sp.ID = id
		paramsByKey[sp.Key] = id
		paramsByName[normalizeName(sp.Name)] = id
	}
}

// normalizeName drops spaces and upper-cases, so "Num Det per Wafer" and
// "NUMDETPERWAFER" resolve identically.
func normalizeName(s string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(s), " ", ""))
}

// Standard returns the descriptor for id.
func (id ParamID) Standard() (StandardParam, bool) {
	if id <= ParamUnknown || id >= paramCount {
		return StandardParam{}, false
	}
	return standardParams[id], true
}

// Key returns the internal key for id.
func (id ParamID) Key() string {
	sp, ok := id.Standard()
	if !ok {
		return ""
	}
	return sp.Key
}

// Name returns the display name for id.
func (id ParamID) Name() string {
	sp, ok := id.Standard()
	if !ok {
		return ""
	}
	return sp.Name
}

func (id ParamID) String() string {
	if name := id.Name(); name != "" {
		return name
	}
	return fmt.Sprintf("ParamID(%d)", int(id))
}

// LookupParam resolves either an internal key ("psat") or a display name
// ("Psat", "Num Det per Wafer"; case and spaces ignored).
func LookupParam(s string) (ParamID, bool) {
	if id, ok := paramsByKey[strings.TrimSpace(s)]; ok {
		return id, true
	}
	id, ok := paramsByName[normalizeName(s)]
	return id, ok
}

// StandardParams lists every descriptor in enumeration order.
func StandardParams() []StandardParam {
	out := make([]StandardParam, 0, paramCount-1)
	for id := ParamID(1); id < paramCount; id++ {
		out = append(out, standardParams[id])
	}
	return out
}
