package core

import (
	"fmt"
	"sort"

	"github.com/signalsfoundry/bolocalc/model"
)

// OpticalElement is one link of the optical chain. Its parameter set holds
// temperature, emissivity and transmission.
type OpticalElement struct {
	Name   string
	Params *ParamSet
}

// Band is a measured passband: transmission against frequency in Hz,
// strictly increasing.
type Band struct {
	Freqs        []float64
	Transmission []float64
}

// Validate checks the band is usable for interpolation.
func (b *Band) Validate() error {
	if len(b.Freqs) < 2 || len(b.Freqs) != len(b.Transmission) {
		return fmt.Errorf("%w: band has %d frequencies and %d transmissions", ErrShape, len(b.Freqs), len(b.Transmission))
	}
	if !sort.Float64sAreSorted(b.Freqs) {
		return fmt.Errorf("%w: band frequencies not increasing", ErrShape)
	}
	for i := 1; i < len(b.Freqs); i++ {
		if b.Freqs[i] == b.Freqs[i-1] {
			return fmt.Errorf("%w: repeated band frequency %g", ErrShape, b.Freqs[i])
		}
	}
	return nil
}

// Channel is one observing band of a camera. Params carries the channel's
// own parameters together with the camera, telescope and simulation-wide
// ones it inherits; inherited parameters are shared with sibling channels.
type Channel struct {
	Name   string
	BandID string
	// Band is the 1-indexed position used for per-band parameter lists.
	Band     int
	Params   *ParamSet
	Elements []OpticalElement
	// Passband is optional; without it the band is a top hat of width
	// FractionalBW around BandCenter.
	Passband *Band
}

// Site reads the site parameter, defaulting to ground.
func (c *Channel) Site() model.Site {
	if p, ok := c.Params.Get(model.ParamSite); ok {
		return model.ParseSite(p.Str())
	}
	return model.SiteGround
}

func (c *Channel) flag(id model.ParamID) bool {
	if p, ok := c.Params.Get(id); ok {
		return p.Bool()
	}
	return false
}

// InternalForegrounds reports whether foreground layers are modelled.
func (c *Channel) InternalForegrounds() bool { return c.flag(model.ParamInternalForegrounds) }

// Correlations reports whether correlated photon noise is computed.
func (c *Channel) Correlations() bool { return c.flag(model.ParamCorrelations) }
