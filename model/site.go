package model

import "strings"

// Site indicates where a telescope observes from.
type Site int

const (
	SiteGround Site = iota // any terrestrial site; atmosphere sits between sky and telescope
	SiteSpace
)

// ParseSite maps a site name to a Site. Only "space" selects SiteSpace;
// every named terrestrial site (Atacama, Pole, McMurdo, ...) is ground.
func ParseSite(name string) Site {
	if strings.EqualFold(strings.TrimSpace(name), "space") {
		return SiteSpace
	}
	return SiteGround
}

func (s Site) String() string {
	if s == SiteSpace {
		return "space"
	}
	return "ground"
}

// SkySideCount returns the number of leading sky-side elements in an optical
// chain. Ground chains carry CMB and atmosphere; space chains carry only the
// CMB. Internal foreground layering adds two more layers in both cases.
func SkySideCount(site Site, internalForegrounds bool) int {
	switch {
	case site == SiteSpace && internalForegrounds:
		return 3
	case site == SiteSpace:
		return 1
	case internalForegrounds:
		return 4
	default:
		return 2
	}
}
