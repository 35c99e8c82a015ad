package model

import "testing"

func TestEveryParamHasDescriptor(t *testing.T) {
	for id := ParamID(1); id < paramCount; id++ {
		sp, ok := id.Standard()
		if !ok {
			t.Fatalf("no descriptor for %d", id)
		}
		if sp.ID != id {
			t.Errorf("descriptor for %s carries ID %d", sp.Name, sp.ID)
		}
		if !sp.Kind.Valid() {
			t.Errorf("%s has invalid kind %v", sp.Name, sp.Kind)
		}
	}
}

func TestLookupParamByKeyAndName(t *testing.T) {
	tests := []struct {
		in   string
		want ParamID
	}{
		{"psat", ParamPsat},
		{"Psat", ParamPsat},
		{"PSAT", ParamPsat},
		{"Num Det per Wafer", ParamDetPerWafer},
		{"numdetperwafer", ParamDetPerWafer},
		{"det_per_waf", ParamDetPerWafer},
		{"SQUID NEI", ParamSquidNEI},
		{" Responsivity Factor ", ParamResponsivityFactor},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, ok := LookupParam(tt.in)
			if !ok || got != tt.want {
				t.Fatalf("LookupParam(%q) = %v, %v; want %v", tt.in, got, ok, tt.want)
			}
		})
	}

	if _, ok := LookupParam("not a parameter"); ok {
		t.Fatalf("expected unknown name to fail lookup")
	}
}

func TestKeyNameRoundTrip(t *testing.T) {
	for _, sp := range StandardParams() {
		byKey, ok := LookupParam(sp.Key)
		if !ok || byKey != sp.ID {
			t.Errorf("key %q resolved to %v", sp.Key, byKey)
		}
		byName, ok := LookupParam(sp.Name)
		if !ok || byName != sp.ID {
			t.Errorf("name %q resolved to %v", sp.Name, byName)
		}
	}
}

func TestValueSentinels(t *testing.T) {
	var zero Value
	if !zero.IsNotApplicable() {
		t.Fatalf("zero Value should be NotApplicable")
	}

	for _, in := range []string{"NA", " na ", "Na"} {
		v, ok := ParseSentinel(in)
		if !ok || !v.IsNotApplicable() {
			t.Errorf("ParseSentinel(%q) = %v, %v", in, v, ok)
		}
	}
	v, ok := ParseSentinel("band")
	if !ok || !v.IsDeferredToBand() || v.String() != "BAND" {
		t.Errorf("ParseSentinel(band) = %v, %v", v, ok)
	}
	if _, ok := ParseSentinel("1.5"); ok {
		t.Errorf("number parsed as sentinel")
	}

	if got := NotApplicable.Map(func(x float64) float64 { return x + 1 }); !got.IsNotApplicable() {
		t.Errorf("Map changed a sentinel: %v", got)
	}
	if got := Known(2).Map(func(x float64) float64 { return x * 2 }); got.Or(0) != 4 {
		t.Errorf("Map on known = %v, want 4", got)
	}
}

func TestSkySideCount(t *testing.T) {
	tests := []struct {
		site Site
		infg bool
		want int
	}{
		{SiteSpace, false, 1},
		{SiteGround, false, 2},
		{SiteSpace, true, 3},
		{SiteGround, true, 4},
	}
	for _, tt := range tests {
		if got := SkySideCount(tt.site, tt.infg); got != tt.want {
			t.Errorf("SkySideCount(%v, %v) = %d, want %d", tt.site, tt.infg, got, tt.want)
		}
	}
	if ParseSite("Atacama") != SiteGround || ParseSite("SPACE") != SiteSpace {
		t.Errorf("ParseSite mapping wrong")
	}
}
