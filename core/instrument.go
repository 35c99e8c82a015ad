package core

import (
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/signalsfoundry/bolocalc/distribution"
	"github.com/signalsfoundry/bolocalc/model"
	"github.com/signalsfoundry/bolocalc/units"
)

// Instrument is a loaded instrument file: shared telescope and camera
// parameters plus one Channel per band.
type Instrument struct {
	Global    *ParamSet
	Telescope *ParamSet
	Camera    *ParamSet
	Channels  []*Channel
}

// Channel returns the channel with the given name (case-insensitive).
func (in *Instrument) Channel(name string) (*Channel, bool) {
	for _, ch := range in.Channels {
		if strings.EqualFold(ch.Name, name) {
			return ch, true
		}
	}
	return nil, false
}

// Seed gives every parameter its own PCG stream derived from seed, so
// sampled runs repeat exactly. Parameters shared between channels are
// seeded once.
func (in *Instrument) Seed(seed uint64) {
	seen := make(map[*Parameter]bool)
	var stream uint64
	visit := func(set *ParamSet) {
		for _, id := range set.IDs() {
			p, _ := set.Get(id)
			if p == nil || seen[p] {
				continue
			}
			seen[p] = true
			stream++
			p.WithSource(rand.NewPCG(seed, stream))
		}
	}
	for _, set := range []*ParamSet{in.Global, in.Telescope, in.Camera} {
		visit(set)
	}
	for _, ch := range in.Channels {
		visit(ch.Params)
		for _, el := range ch.Elements {
			visit(el.Params)
		}
	}
}

// internal YAML shapes – keep them unexported so we're free to evolve them.
type instrumentYAML struct {
	Site                string                      `yaml:"site"`
	InternalForegrounds bool                        `yaml:"internal_foregrounds"`
	Correlations        bool                        `yaml:"correlations"`
	Telescope           map[string]string           `yaml:"telescope"`
	Camera              map[string]string           `yaml:"camera"`
	Distributions       map[string]distributionYAML `yaml:"distributions"`
	Elements            []elementYAML               `yaml:"elements"`
	Channels            []channelYAML               `yaml:"channels"`
}

type distributionYAML struct {
	// Points are [value, probability] pairs in the parameter's unit.
	Points [][]float64 `yaml:"points"`
	// File is a two-column text file, relative to the instrument file.
	File string `yaml:"file"`
}

type elementYAML struct {
	Name         string `yaml:"name"`
	Temperature  string `yaml:"temperature"`
	Emissivity   string `yaml:"emissivity"`
	Transmission string `yaml:"transmission"`
	// PDF resolves PDF markers: field (temperature, emissivity or
	// transmission) → band id or ALL → distribution name.
	PDF map[string]map[string]string `yaml:"pdf"`
}

type channelYAML struct {
	Name   string            `yaml:"name"`
	BandID string            `yaml:"band_id"`
	Params map[string]string `yaml:"params"`
	// PDF maps a parameter name to a distribution name for PDF markers.
	PDF map[string]string `yaml:"pdf"`
	// Band is an optional measured passband as [GHz, transmission] pairs.
	Band [][]float64 `yaml:"band"`
	// Elements replaces the instrument-wide chain for this channel.
	Elements []elementYAML `yaml:"elements"`
}

// LoadInstrumentFile reads an instrument file from disk. Distribution
// files are resolved relative to it.
func LoadInstrumentFile(path string) (*Instrument, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open instrument: %w", err)
	}
	defer f.Close()
	return loadInstrument(f, filepath.Dir(path))
}

// LoadInstrument parses an instrument from r. Relative distribution files
// are resolved against the working directory.
func LoadInstrument(r io.Reader) (*Instrument, error) {
	return loadInstrument(r, "")
}

func loadInstrument(r io.Reader, baseDir string) (*Instrument, error) {
	if r == nil {
		return nil, errors.New("nil reader")
	}
	var raw instrumentYAML
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&raw); err != nil {
		return nil, fmt.Errorf("decode instrument: %w", err)
	}
	if len(raw.Channels) == 0 {
		return nil, errors.New("instrument has no channels")
	}

	dists := make(map[string]distribution.Distribution, len(raw.Distributions))
	for name, d := range raw.Distributions {
		pdf, err := buildDistribution(d, baseDir)
		if err != nil {
			return nil, fmt.Errorf("distribution %q: %w", name, err)
		}
		dists[name] = pdf
	}

	bandIDs := make([]string, len(raw.Channels))
	for i, ch := range raw.Channels {
		bandIDs[i] = ch.BandID
		if bandIDs[i] == "" {
			bandIDs[i] = strconv.Itoa(i + 1)
		}
	}

	inst := &Instrument{
		Global:    NewParamSet(),
		Telescope: NewParamSet(),
		Camera:    NewParamSet(),
	}
	site := raw.Site
	if site == "" {
		site = model.SiteGround.String()
	}
	for _, g := range []struct {
		id  model.ParamID
		lit string
	}{
		{model.ParamSite, site},
		{model.ParamInternalForegrounds, strconv.FormatBool(raw.InternalForegrounds)},
		{model.ParamCorrelations, strconv.FormatBool(raw.Correlations)},
	} {
		p, err := NewParameter(SpecFor(g.id), g.lit, nil)
		if err != nil {
			return nil, err
		}
		inst.Global.Set(g.id, p)
	}
	if err := fillParams(inst.Telescope, raw.Telescope, bandIDs, nil); err != nil {
		return nil, fmt.Errorf("telescope: %w", err)
	}
	if err := fillParams(inst.Camera, raw.Camera, bandIDs, nil); err != nil {
		return nil, fmt.Errorf("camera: %w", err)
	}

	for i, rc := range raw.Channels {
		name := rc.Name
		if name == "" {
			name = bandIDs[i]
		}
		ch := &Channel{
			Name:   name,
			BandID: bandIDs[i],
			Band:   i + 1,
			Params: NewParamSet(),
		}
		for _, set := range []*ParamSet{inst.Global, inst.Telescope, inst.Camera} {
			for _, id := range set.IDs() {
				p, _ := set.Get(id)
				ch.Params.Set(id, p)
			}
		}
		lookups := make(map[string]map[string]distribution.Distribution, len(rc.PDF))
		for param, dname := range rc.PDF {
			d, ok := dists[dname]
			if !ok {
				return nil, fmt.Errorf("channel %s: %w", name, paramErrf(param, dname, ErrMissingDistribution, "unknown distribution"))
			}
			lookups[strings.ToUpper(param)] = map[string]distribution.Distribution{allBands: d, bandIDs[i]: d}
		}
		if err := fillParams(ch.Params, rc.Params, bandIDs, lookups); err != nil {
			return nil, fmt.Errorf("channel %s: %w", name, err)
		}

		elems := raw.Elements
		if len(rc.Elements) > 0 {
			elems = rc.Elements
		}
		for _, e := range elems {
			el, err := buildElement(e, bandIDs, dists)
			if err != nil {
				return nil, fmt.Errorf("channel %s: %w", name, err)
			}
			ch.Elements = append(ch.Elements, el)
		}

		if len(rc.Band) > 0 {
			b := &Band{}
			ghz := units.MustLookup("GHz")
			for j, row := range rc.Band {
				if len(row) != 2 {
					return nil, fmt.Errorf("channel %s: band row %d: %w: want [GHz, transmission]", name, j+1, ErrShape)
				}
				b.Freqs = append(b.Freqs, ghz.ToSI(row[0]))
				b.Transmission = append(b.Transmission, row[1])
			}
			if err := b.Validate(); err != nil {
				return nil, fmt.Errorf("channel %s: %w", name, err)
			}
			ch.Passband = b
		}
		if err := checkBands(ch); err != nil {
			return nil, fmt.Errorf("channel %s: %w", name, err)
		}
		inst.Channels = append(inst.Channels, ch)
	}
	return inst, nil
}

// checkBands makes sure every per-band list covers the channel's band, so
// a short list fails at load time instead of reading as NA.
func checkBands(ch *Channel) error {
	if err := ch.Params.CheckBand(ch.Band); err != nil {
		return err
	}
	for _, el := range ch.Elements {
		if err := el.Params.CheckBand(ch.Band); err != nil {
			return err
		}
	}
	return nil
}

// fillParams parses literals keyed by parameter key or display name into
// set. lookups, keyed by the upper-cased name as written, supplies
// distributions for PDF markers.
func fillParams(set *ParamSet, lits map[string]string, bandIDs []string, lookups map[string]map[string]distribution.Distribution) error {
	for key, lit := range lits {
		id, ok := model.LookupParam(key)
		if !ok {
			return paramErr(key, lit, ErrUnknownParameter)
		}
		var (
			p   *Parameter
			err error
		)
		if lk, ok := lookups[strings.ToUpper(key)]; ok {
			p, err = NewLookupParameter(SpecFor(id), lit, lk, bandIDs)
		} else {
			p, err = NewParameter(SpecFor(id), lit, bandIDs)
		}
		if err != nil {
			return err
		}
		set.Set(id, p)
	}
	return nil
}

func buildElement(e elementYAML, bandIDs []string, dists map[string]distribution.Distribution) (OpticalElement, error) {
	if e.Name == "" {
		return OpticalElement{}, errors.New("optical element without a name")
	}
	lookups, err := elementLookups(e, bandIDs, dists)
	if err != nil {
		return OpticalElement{}, err
	}
	el := OpticalElement{Name: e.Name, Params: NewParamSet()}
	for _, f := range []struct {
		id  model.ParamID
		lit string
	}{
		{model.ParamElementTemperature, e.Temperature},
		{model.ParamElementEmissivity, e.Emissivity},
		{model.ParamElementTransmission, e.Transmission},
	} {
		spec := SpecFor(f.id)
		spec.Name = e.Name + " " + spec.Name
		var p *Parameter
		if lk, ok := lookups[f.id]; ok {
			p, err = NewLookupParameter(spec, f.lit, lk, bandIDs)
		} else {
			p, err = NewParameter(spec, f.lit, bandIDs)
		}
		if err != nil {
			return OpticalElement{}, err
		}
		el.Params.Set(f.id, p)
	}
	return el, nil
}

func elementLookups(e elementYAML, bandIDs []string, dists map[string]distribution.Distribution) (map[model.ParamID]map[string]distribution.Distribution, error) {
	out := make(map[model.ParamID]map[string]distribution.Distribution, len(e.PDF))
	for field, byBand := range e.PDF {
		id, ok := model.LookupParam(field)
		switch id {
		case model.ParamElementTemperature, model.ParamElementEmissivity, model.ParamElementTransmission:
		default:
			ok = false
		}
		if !ok {
			return nil, paramErrf(e.Name+" "+field, "", ErrUnknownParameter, "not an element field")
		}
		name := e.Name + " " + id.Name()
		lk := make(map[string]distribution.Distribution, len(byBand))
		for band, dname := range byBand {
			if !knownBand(band, bandIDs) {
				return nil, paramErrf(name, dname, ErrMissingDistribution, "unknown band %q", band)
			}
			d, ok := dists[dname]
			if !ok {
				return nil, paramErrf(name, dname, ErrMissingDistribution, "unknown distribution")
			}
			lk[band] = d
		}
		out[id] = lk
	}
	return out, nil
}

func knownBand(band string, bandIDs []string) bool {
	band = strings.TrimSpace(band)
	if strings.EqualFold(band, allBands) {
		return true
	}
	for _, id := range bandIDs {
		if strings.EqualFold(band, strings.TrimSpace(id)) {
			return true
		}
	}
	return false
}

func buildDistribution(d distributionYAML, baseDir string) (distribution.Distribution, error) {
	if d.File != "" {
		path := d.File
		if !filepath.IsAbs(path) && baseDir != "" {
			path = filepath.Join(baseDir, path)
		}
		f, err := os.Open(path)
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return distribution.Read(f, nil)
	}
	vals := make([]float64, len(d.Points))
	probs := make([]float64, len(d.Points))
	for i, pt := range d.Points {
		if len(pt) != 2 {
			return nil, fmt.Errorf("point %d: want [value, probability]", i+1)
		}
		vals[i], probs[i] = pt[0], pt[1]
	}
	return distribution.NewPDF(vals, probs, nil)
}
