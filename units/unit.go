// Package units converts configuration literals into SI base units.
package units

import (
	"fmt"
	"strconv"
	"strings"
)

// Unit scales values written in a named unit to SI.
type Unit struct {
	Name  string
	scale float64
}

const secondsPerYear = 365.25 * 24 * 60 * 60

var known = map[string]float64{
	"NA":      1,
	"Hz":      1,
	"MHz":     1e6,
	"GHz":     1e9,
	"m":       1,
	"mm":      1e-3,
	"um":      1e-6,
	"W":       1,
	"pW":      1e-12,
	"pW/K":    1e-12,
	"aW/rtHz": 1e-18,
	"pA/rtHz": 1e-12,
	"K":       1,
	"mK":      1e-3,
	"uK-rts":  1e-6,
	"uK-amin": 1e-6,
	"Ohm":     1,
	"mOhm":    1e-3,
	"%":       1e-2,
	"pct":     1e-2,
	"s":       1,
	"hr":      3600,
	"yr":      secondsPerYear,
	"deg":     1,
}

// Dimensionless is the "NA" unit.
var Dimensionless = Unit{Name: "NA", scale: 1}

// Lookup returns the unit with the given name. An empty name is
// dimensionless.
func Lookup(name string) (Unit, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Dimensionless, nil
	}
	scale, ok := known[name]
	if !ok {
		return Unit{}, fmt.Errorf("unknown unit %q", name)
	}
	return Unit{Name: name, scale: scale}, nil
}

// MustLookup is Lookup for names fixed at compile time.
func MustLookup(name string) Unit {
	u, err := Lookup(name)
	if err != nil {
		panic(err)
	}
	return u
}

// ToSI converts v from this unit into SI.
func (u Unit) ToSI(v float64) float64 {
	if u.scale == 0 {
		return v
	}
	return v * u.scale
}

// ToSISlice converts each element of vs into SI.
func (u Unit) ToSISlice(vs []float64) []float64 {
	out := make([]float64, len(vs))
	for i, v := range vs {
		out[i] = u.ToSI(v)
	}
	return out
}

// FromSI converts an SI value back into this unit.
func (u Unit) FromSI(v float64) float64 {
	if u.scale == 0 {
		return v
	}
	return v / u.scale
}

func (u Unit) String() string {
	if u.Name == "" {
		return "NA"
	}
	return u.Name
}

// FormatSI renders an SI value in this unit, e.g. "3 pW".
func (u Unit) FormatSI(v float64) string {
	s := strconv.FormatFloat(u.FromSI(v), 'g', 6, 64)
	if u.Name == "" || u.Name == "NA" {
		return s
	}
	return s + " " + u.Name
}
