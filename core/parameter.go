package core

import (
	"fmt"
	"math"
	"math/rand/v2"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat/distuv"

	"github.com/signalsfoundry/bolocalc/distribution"
	"github.com/signalsfoundry/bolocalc/model"
	"github.com/signalsfoundry/bolocalc/units"
)

// ParamSpec carries what a Parameter needs besides its value. Min and Max
// are in SI; NaN leaves that side unbounded.
type ParamSpec struct {
	Name string
	Unit units.Unit
	Min  float64
	Max  float64
	Kind model.Kind
}

// SpecFor builds the spec of a standard parameter, converting its bounds
// to SI.
func SpecFor(id model.ParamID) ParamSpec {
	sp, ok := id.Standard()
	if !ok {
		return ParamSpec{Name: id.String(), Unit: units.Dimensionless, Min: math.NaN(), Max: math.NaN()}
	}
	u := units.MustLookup(sp.Unit)
	spec := ParamSpec{Name: sp.Name, Unit: u, Min: math.NaN(), Max: math.NaN(), Kind: sp.Kind}
	if !math.IsNaN(sp.Min) {
		spec.Min = u.ToSI(sp.Min)
	}
	if !math.IsNaN(sp.Max) {
		spec.Max = u.ToSI(sp.Max)
	}
	return spec
}

// slot is one band's worth of float content. When dist is set the moments
// are cached from it in SI.
type slot struct {
	avg  model.Value
	med  model.Value
	std  model.Value
	dist distribution.Distribution
}

// Parameter is a single configurable quantity. Float parameters hold a
// scalar, a per-band vector, a distribution or a sentinel; the other kinds
// hold their plain value.
type Parameter struct {
	spec ParamSpec

	// float kind
	slots     []slot
	multiBand bool

	// other kinds
	b    bool
	i    int
	s    string
	list []string

	src rand.Source
}

// SampleOptions tunes Sample. Nil bounds fall back to the parameter's own.
type SampleOptions struct {
	Min  *float64
	Max  *float64
	Null bool
}

// NewParameter parses literal according to desc.Kind. bandIDs is only
// consulted for float lists.
func NewParameter(desc ParamSpec, literal string, bandIDs []string) (*Parameter, error) {
	return newParameter(desc, literal, nil, bandIDs)
}

// NewLookupParameter is NewParameter where PDF markers in the literal are
// resolved against lookup, keyed by band id or ALL.
func NewLookupParameter(desc ParamSpec, literal string, lookup map[string]distribution.Distribution, bandIDs []string) (*Parameter, error) {
	norm := make(map[string]distribution.Distribution, len(lookup))
	for k, d := range lookup {
		norm[strings.ToUpper(strings.TrimSpace(k))] = d
	}
	return newParameter(desc, literal, norm, bandIDs)
}

// NewDistributionParameter wraps d. Its moments and draws are taken to be
// in desc.Unit.
func NewDistributionParameter(desc ParamSpec, d distribution.Distribution) (*Parameter, error) {
	if desc.Kind != model.KindFloat {
		return nil, paramErrf(desc.Name, "", ErrKindMismatch, "distribution for %s parameter", desc.Kind)
	}
	if d == nil {
		return nil, paramErr(desc.Name, "", ErrMissingDistribution)
	}
	p := &Parameter{spec: desc, slots: []slot{distSlot(desc.Unit, d)}}
	if err := p.checkRange(); err != nil {
		return nil, err
	}
	return p, nil
}

func distSlot(u units.Unit, d distribution.Distribution) slot {
	return slot{
		avg:  model.Known(u.ToSI(d.Mean())),
		med:  model.Known(u.ToSI(d.Median())),
		std:  model.Known(u.ToSI(d.StdDev())),
		dist: d,
	}
}

func newParameter(desc ParamSpec, literal string, lookup map[string]distribution.Distribution, bandIDs []string) (*Parameter, error) {
	if !desc.Kind.Valid() {
		return nil, paramErrf(desc.Name, literal, ErrUnsupportedKind, "%s", desc.Kind)
	}
	p := &Parameter{spec: desc}
	lit := strings.TrimSpace(literal)

	switch desc.Kind {
	case model.KindBool:
		switch strings.ToLower(lit) {
		case "true":
			p.b = true
		case "false":
		default:
			return nil, paramErrf(desc.Name, literal, ErrKindMismatch, "want true or false")
		}
		return p, nil
	case model.KindInt:
		n, err := strconv.Atoi(lit)
		if err != nil {
			return nil, paramErrf(desc.Name, literal, ErrKindMismatch, "want an integer")
		}
		p.i = n
		if err := p.checkRange(); err != nil {
			return nil, err
		}
		return p, nil
	case model.KindString:
		p.s = lit
		return p, nil
	case model.KindList:
		items, err := parseListLiteral(desc.Name, lit)
		if err != nil {
			return nil, err
		}
		p.list = items
		return p, nil
	}

	if v, ok := model.ParseSentinel(lit); ok {
		p.slots = []slot{{avg: v, med: v, std: model.NotApplicable}}
		return p, nil
	}
	fl, err := parseFloatLiteral(desc.Name, lit)
	if err != nil {
		return nil, err
	}
	p.multiBand = fl.list
	p.slots = make([]slot, len(fl.means))
	for i := range fl.means {
		s, err := p.parseSlot(fl.means[i], fl.stds[i], i, lookup, bandIDs, literal)
		if err != nil {
			return nil, err
		}
		p.slots[i] = s
	}
	if err := p.checkRange(); err != nil {
		return nil, err
	}
	return p, nil
}

func (p *Parameter) parseSlot(meanTok, stdTok string, idx int, lookup map[string]distribution.Distribution, bandIDs []string, literal string) (slot, error) {
	name := p.spec.Name
	if isPDFMarker(meanTok) {
		key := allBands
		if p.multiBand {
			if idx >= len(bandIDs) {
				return slot{}, paramErrf(name, literal, ErrMissingDistribution, "no band id for entry %d", idx+1)
			}
			key = strings.ToUpper(strings.TrimSpace(bandIDs[idx]))
		}
		d, ok := lookup[key]
		if !ok {
			d, ok = lookup[allBands]
		}
		if !ok || d == nil {
			return slot{}, paramErrf(name, literal, ErrMissingDistribution, "band %q", key)
		}
		return distSlot(p.spec.Unit, d), nil
	}
	if v, ok := model.ParseSentinel(meanTok); ok {
		return slot{avg: v, med: v, std: model.NotApplicable}, nil
	}
	m, ok := parseNumber(meanTok)
	if !ok {
		return slot{}, paramErrf(name, literal, ErrUnparseable, "%q", meanTok)
	}
	s := slot{avg: model.Known(p.spec.Unit.ToSI(m))}
	s.med = s.avg
	if v, ok := model.ParseSentinel(stdTok); ok {
		s.std = v
		return s, nil
	}
	sd, ok := parseNumber(stdTok)
	if !ok {
		return slot{}, paramErrf(name, literal, ErrUnparseable, "std %q", stdTok)
	}
	s.std = model.Known(p.spec.Unit.ToSI(sd))
	return s, nil
}

// checkValue rejects an SI value outside the parameter bounds.
func (p *Parameter) checkValue(x float64) error {
	if !math.IsNaN(p.spec.Min) && x < p.spec.Min {
		return paramErrf(p.spec.Name, p.spec.Unit.FormatSI(x), ErrOutOfRange, "below minimum %s", p.spec.Unit.FormatSI(p.spec.Min))
	}
	if !math.IsNaN(p.spec.Max) && x > p.spec.Max {
		return paramErrf(p.spec.Name, p.spec.Unit.FormatSI(x), ErrOutOfRange, "above maximum %s", p.spec.Unit.FormatSI(p.spec.Max))
	}
	return nil
}

func (p *Parameter) checkRange() error {
	check := p.checkValue
	switch p.spec.Kind {
	case model.KindInt:
		return check(float64(p.i))
	case model.KindFloat:
		for _, s := range p.slots {
			if x, ok := s.avg.Float(); ok {
				if err := check(x); err != nil {
					return err
				}
			}
		}
	}
	return nil
}

// WithSource pins the random source used by Sample and returns p.
// Distribution-backed slots that can be reseeded draw from src too.
func (p *Parameter) WithSource(src rand.Source) *Parameter {
	p.src = src
	for _, s := range p.slots {
		if r, ok := s.dist.(interface{ Reseed(rand.Source) }); ok {
			r.Reseed(src)
		}
	}
	return p
}

func (p *Parameter) Name() string      { return p.spec.Name }
func (p *Parameter) Unit() units.Unit  { return p.spec.Unit }
func (p *Parameter) Kind() model.Kind  { return p.spec.Kind }
func (p *Parameter) Spec() ParamSpec   { return p.spec }
func (p *Parameter) IsMultiBand() bool { return p.multiBand }
func (p *Parameter) Bool() bool        { return p.b }
func (p *Parameter) Int() int          { return p.i }
func (p *Parameter) Str() string       { return p.s }
func (p *Parameter) List() []string    { return append([]string(nil), p.list...) }

// Bands is the number of per-band entries, 1 for anything but a list.
func (p *Parameter) Bands() int {
	if p.spec.Kind != model.KindFloat {
		return 1
	}
	return len(p.slots)
}

// IsDistribution reports whether the band's value is distribution-backed.
func (p *Parameter) IsDistribution(band int) bool {
	s := p.slotFor(band)
	return s != nil && s.dist != nil
}

// CheckBand reports ErrOutOfRange when a per-band float parameter has no
// entry for band. Single-valued and non-float parameters cover every band.
func (p *Parameter) CheckBand(band int) error {
	if p.spec.Kind != model.KindFloat || !p.multiBand {
		return nil
	}
	if p.slotFor(band) == nil {
		return paramErrf(p.spec.Name, p.String(), ErrOutOfRange,
			"band %d not covered by %d entries", band, len(p.slots))
	}
	return nil
}

// slotFor picks the 1-indexed band slot. Non-list parameters ignore band.
// Nil means band is out of range.
func (p *Parameter) slotFor(band int) *slot {
	if len(p.slots) == 0 {
		return nil
	}
	if !p.multiBand {
		return &p.slots[0]
	}
	if band < 1 || band > len(p.slots) {
		return nil
	}
	return &p.slots[band-1]
}

// Fetch returns the average, median and standard deviation for band. Bool
// and int kinds report their value as (v, v, NA); string and list kinds,
// and bands out of range, report NA throughout. Use CheckBand to tell an
// out-of-range band apart from an NA value.
func (p *Parameter) Fetch(band int) (avg, med, std model.Value) {
	switch p.spec.Kind {
	case model.KindBool:
		v := model.Known(0)
		if p.b {
			v = model.Known(1)
		}
		return v, v, model.NotApplicable
	case model.KindInt:
		v := model.Known(float64(p.i))
		return v, v, model.NotApplicable
	case model.KindFloat:
		if s := p.slotFor(band); s != nil {
			return s.avg, s.med, s.std
		}
	}
	return model.NotApplicable, model.NotApplicable, model.NotApplicable
}

func (p *Parameter) Avg(band int) model.Value {
	a, _, _ := p.Fetch(band)
	return a
}

func (p *Parameter) Med(band int) model.Value {
	_, m, _ := p.Fetch(band)
	return m
}

func (p *Parameter) Std(band int) model.Value {
	_, _, s := p.Fetch(band)
	return s
}

// Sample draws max(n, 1) values for band. Sentinels are returned as they
// are, distribution-backed values come straight from the distribution, and
// a non-positive spread returns the average unperturbed. Gaussian draws are
// clamped to the bounds. Bands out of range draw NA, as in Fetch.
func (p *Parameter) Sample(band, n int, opts SampleOptions) []model.Value {
	if n < 1 {
		n = 1
	}
	out := make([]model.Value, n)
	avg, _, std := p.Fetch(band)
	fill := func(v model.Value) []model.Value {
		for i := range out {
			out[i] = v
		}
		return out
	}
	if avg.IsSentinel() {
		return fill(avg)
	}
	if s := p.slotFor(band); s != nil && s.dist != nil {
		for i, x := range s.dist.Sample(n) {
			out[i] = model.Known(p.spec.Unit.ToSI(x))
		}
		return out
	}
	mean, _ := avg.Float()
	sigma, ok := std.Float()
	if !ok || sigma <= 0 {
		return fill(avg)
	}
	if opts.Null {
		mean = 0
	}

	lo, hi := p.spec.Min, p.spec.Max
	if opts.Min != nil {
		lo = *opts.Min
	}
	if opts.Max != nil {
		hi = *opts.Max
	}
	g := distuv.Normal{Mu: mean, Sigma: sigma, Src: p.src}
	for i := range out {
		x := g.Rand()
		if !math.IsNaN(lo) && x < lo {
			x = lo
		}
		if !math.IsNaN(hi) && x > hi {
			x = hi
		}
		out[i] = model.Known(x)
	}
	return out
}

// SampleOne is Sample with n = 1.
func (p *Parameter) SampleOne(band int, opts SampleOptions) model.Value {
	return p.Sample(band, 1, opts)[0]
}

// Change dispatches on the dynamic type of v: strings and sentinels go
// through ChangeString, numbers through ChangeFloat (or the int/bool
// setters for those kinds). A model.Value is taken as SI, like Fetch
// returns it. std is only used for numbers.
func (p *Parameter) Change(v any, std *float64, band int) (bool, error) {
	switch x := v.(type) {
	case string:
		return p.ChangeString(x, band)
	case model.Value:
		// Values are SI; ChangeFloat takes the parameter's unit.
		if f, ok := x.Float(); ok {
			f = p.spec.Unit.FromSI(f)
			return p.ChangeFloat(&f, std, band)
		}
		return p.ChangeString(x.Token(), band)
	case float64:
		return p.changeNumber(x, std, band)
	case float32:
		return p.changeNumber(float64(x), std, band)
	case int:
		return p.changeNumber(float64(x), std, band)
	case bool:
		if p.spec.Kind != model.KindBool {
			return false, paramErrf(p.spec.Name, strconv.FormatBool(x), ErrUnsupportedChange, "bool for %s parameter", p.spec.Kind)
		}
		changed := p.b != x
		p.b = x
		return changed, nil
	default:
		return false, paramErrf(p.spec.Name, fmt.Sprint(v), ErrUnsupportedChange, "%T", v)
	}
}

func (p *Parameter) changeNumber(x float64, std *float64, band int) (bool, error) {
	switch p.spec.Kind {
	case model.KindFloat:
		return p.ChangeFloat(&x, std, band)
	case model.KindInt:
		if x != math.Trunc(x) {
			return false, paramErrf(p.spec.Name, fmt.Sprint(x), ErrKindMismatch, "want an integer")
		}
		changed := p.i != int(x)
		p.i = int(x)
		return changed, nil
	default:
		return false, paramErrf(p.spec.Name, fmt.Sprint(x), ErrUnsupportedChange, "number for %s parameter", p.spec.Kind)
	}
}

// ChangeString replaces the value with s when it differs case-insensitively.
// On a float parameter s must be a sentinel or a number in the parameter's
// unit.
func (p *Parameter) ChangeString(s string, band int) (bool, error) {
	s = strings.TrimSpace(s)
	switch p.spec.Kind {
	case model.KindString:
		if strings.EqualFold(p.s, s) {
			return false, nil
		}
		p.s = s
		return true, nil
	case model.KindBool:
		b, err := strconv.ParseBool(strings.ToLower(s))
		if err != nil {
			return false, paramErrf(p.spec.Name, s, ErrKindMismatch, "want true or false")
		}
		return p.Change(b, nil, band)
	case model.KindInt:
		n, err := strconv.Atoi(s)
		if err != nil {
			return false, paramErrf(p.spec.Name, s, ErrKindMismatch, "want an integer")
		}
		return p.Change(n, nil, band)
	case model.KindList:
		items, err := parseListLiteral(p.spec.Name, s)
		if err != nil {
			return false, err
		}
		if strings.EqualFold(strings.Join(items, ","), strings.Join(p.list, ",")) {
			return false, nil
		}
		p.list = items
		return true, nil
	}

	if v, ok := model.ParseSentinel(s); ok {
		sl := p.slotFor(band)
		if sl == nil {
			return false, paramErrf(p.spec.Name, s, ErrOutOfRange, "band %d", band)
		}
		if sl.dist == nil && sl.avg.Token() == v.Token() {
			return false, nil
		}
		*sl = slot{avg: v, med: v, std: model.NotApplicable}
		return true, nil
	}
	x, ok := parseNumber(s)
	if !ok {
		return false, paramErr(p.spec.Name, s, ErrUnparseable)
	}
	return p.ChangeFloat(&x, nil, band)
}

// ChangeFloat sets the average and, when given, the spread of band. Both
// are in the parameter's unit. A change commits only when the new value
// differs from the old at five significant figures; a sentinel slot always
// takes the new value.
func (p *Parameter) ChangeFloat(avg, std *float64, band int) (bool, error) {
	if p.spec.Kind != model.KindFloat {
		if avg == nil {
			return false, paramErr(p.spec.Name, "", ErrUnsupportedChange)
		}
		return p.changeNumber(*avg, nil, band)
	}
	sl := p.slotFor(band)
	if sl == nil {
		return false, paramErrf(p.spec.Name, "", ErrOutOfRange, "band %d", band)
	}

	changed := false
	if avg != nil {
		a := p.spec.Unit.ToSI(*avg)
		if err := p.checkValue(a); err != nil {
			return false, err
		}
		if sl.avg.IsSentinel() {
			*sl = slot{avg: model.Known(a), med: model.Known(a), std: model.Known(0)}
			changed = true
		} else if old, _ := sl.avg.Float(); !sameSigFigs(a, old) {
			sl.avg, sl.med, sl.dist = model.Known(a), model.Known(a), nil
			changed = true
		}
	}
	if std != nil && sl.avg.IsKnown() {
		s := p.spec.Unit.ToSI(*std)
		old, ok := sl.std.Float()
		if !ok || !sameSigFigs(s, old) {
			sl.std, sl.dist = model.Known(s), nil
			changed = true
		}
	}
	return changed, nil
}

// sameSigFigs compares a and b rounded to five significant figures.
// Signed zeros compare equal.
func sameSigFigs(a, b float64) bool {
	if a == 0 {
		a = 0
	}
	if b == 0 {
		b = 0
	}
	return strconv.FormatFloat(a, 'e', 4, 64) == strconv.FormatFloat(b, 'e', 4, 64)
}

// String renders the parameter back in literal form, in its own unit.
func (p *Parameter) String() string {
	switch p.spec.Kind {
	case model.KindBool:
		return strconv.FormatBool(p.b)
	case model.KindInt:
		return strconv.Itoa(p.i)
	case model.KindString:
		return p.s
	case model.KindList:
		return "[" + strings.Join(p.list, ", ") + "]"
	}
	means := make([]string, len(p.slots))
	stds := make([]string, len(p.slots))
	spread := false
	for i, s := range p.slots {
		means[i] = s.avg.Map(p.spec.Unit.FromSI).String()
		if s.dist != nil {
			means[i] = pdfMarker
		}
		stds[i] = s.std.Map(p.spec.Unit.FromSI).String()
		if x, ok := s.std.Float(); ok && x > 0 && s.dist == nil {
			spread = true
		}
	}
	if !p.multiBand {
		if spread {
			return means[0] + " " + spreadDelimiter + " " + stds[0]
		}
		return means[0]
	}
	out := "[" + strings.Join(means, ", ") + "]"
	if spread {
		out += " " + spreadDelimiter + " [" + strings.Join(stds, ", ") + "]"
	}
	return out
}
