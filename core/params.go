package core

import (
	"fmt"
	"sort"

	"github.com/signalsfoundry/bolocalc/model"
)

// ParamSet is the collection of standard parameters attached to one
// configuration entity (telescope, camera or channel).
type ParamSet struct {
	params map[model.ParamID]*Parameter
}

// NewParamSet returns an empty set.
func NewParamSet() *ParamSet {
	return &ParamSet{params: make(map[model.ParamID]*Parameter)}
}

// Set stores p under id, replacing any previous parameter.
func (s *ParamSet) Set(id model.ParamID, p *Parameter) {
	s.params[id] = p
}

// Get returns the parameter for id.
func (s *ParamSet) Get(id model.ParamID) (*Parameter, bool) {
	if s == nil {
		return nil, false
	}
	p, ok := s.params[id]
	return p, ok
}

// IDs lists the parameters present, in enumeration order.
func (s *ParamSet) IDs() []model.ParamID {
	if s == nil {
		return nil
	}
	ids := make([]model.ParamID, 0, len(s.params))
	for id := range s.params {
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// CheckBand reports the first parameter with no entry for band.
func (s *ParamSet) CheckBand(band int) error {
	for _, id := range s.IDs() {
		if err := s.params[id].CheckBand(band); err != nil {
			return err
		}
	}
	return nil
}

// Median returns the median of id for band, or NA when it is absent.
func (s *ParamSet) Median(id model.ParamID, band int) model.Value {
	p, ok := s.Get(id)
	if !ok {
		return model.NotApplicable
	}
	return p.Med(band)
}

// Draw returns one sample of id for band when sample is set, otherwise its
// average. Absent parameters read as NA.
func (s *ParamSet) Draw(id model.ParamID, band int, sample bool) model.Value {
	p, ok := s.Get(id)
	if !ok {
		return model.NotApplicable
	}
	if sample {
		return p.SampleOne(band, SampleOptions{})
	}
	return p.Avg(band)
}

// Change sets the parameter named by key, either its internal key ("psat")
// or its display name ("Psat"), and reports whether a commit happened.
func (s *ParamSet) Change(key string, v any) (bool, error) {
	return s.ChangeBand(key, v, 1)
}

// ChangeBand is Change for one band of a per-band parameter.
func (s *ParamSet) ChangeBand(key string, v any, band int) (bool, error) {
	id, ok := model.LookupParam(key)
	if !ok {
		return false, paramErr(key, fmt.Sprint(v), ErrUnknownParameter)
	}
	p, ok := s.Get(id)
	if !ok {
		return false, paramErrf(key, fmt.Sprint(v), ErrUnknownParameter, "%s is not set here", id.Name())
	}
	return p.Change(v, nil, band)
}
