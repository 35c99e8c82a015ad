package main

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/signalsfoundry/bolocalc/core"
)

const exampleInstrument = "../../examples/instrument.yaml"

type decodedSummary struct {
	Channel string `json:"channel"`
	Slots   int    `json:"slots"`
	Metrics []struct {
		Name   string   `json:"name"`
		Unit   string   `json:"unit"`
		Median *float64 `json:"median"`
		Std    *float64 `json:"std"`
	} `json:"metrics"`
	Optics []struct {
		Element            string   `json:"element"`
		DetectorPower      *float64 `json:"detector_power_pw"`
		DetectorEfficiency *float64 `json:"detector_efficiency"`
	} `json:"optics"`
}

func (s decodedSummary) median(t *testing.T, name string) *float64 {
	t.Helper()
	for _, m := range s.Metrics {
		if m.Name == name {
			return m.Median
		}
	}
	t.Fatalf("%s: metric %q missing", s.Channel, name)
	return nil
}

func execute(t *testing.T, args ...string) (string, string, error) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	cmd := newRootCmd()
	cmd.SetOut(&stdout)
	cmd.SetErr(&stderr)
	cmd.SetArgs(args)
	err := cmd.Execute()
	return stdout.String(), stderr.String(), err
}

func evaluateJSON(t *testing.T, args ...string) []decodedSummary {
	t.Helper()
	out, stderr, err := execute(t, append([]string{"evaluate", "--json", "-f", exampleInstrument}, args...)...)
	if err != nil {
		t.Fatalf("evaluate: %v\n%s", err, stderr)
	}
	var sums []decodedSummary
	if err := json.Unmarshal([]byte(out), &sums); err != nil {
		t.Fatalf("decode output: %v\n%s", err, out)
	}
	return sums
}

func TestVersionCmd(t *testing.T) {
	out, _, err := execute(t, "version")
	if err != nil {
		t.Fatalf("version: %v", err)
	}
	if !strings.Contains(out, version) {
		t.Fatalf("version output %q missing %q", out, version)
	}

	out, _, err = execute(t, "version", "--json")
	if err != nil {
		t.Fatalf("version --json: %v", err)
	}
	var v map[string]string
	if err := json.Unmarshal([]byte(out), &v); err != nil || v["version"] != version {
		t.Fatalf("version --json = %q (%v)", out, err)
	}
}

func TestParamsCmd(t *testing.T) {
	out, _, err := execute(t, "params", "--json")
	if err != nil {
		t.Fatalf("params: %v", err)
	}
	var infos []paramInfo
	if err := json.Unmarshal([]byte(out), &infos); err != nil {
		t.Fatalf("decode params: %v", err)
	}
	var psat *paramInfo
	for i := range infos {
		if infos[i].Key == "psat" {
			psat = &infos[i]
		}
	}
	if psat == nil || psat.Unit != "pW" || psat.Name != "Psat" {
		t.Fatalf("psat entry = %+v", psat)
	}
	if psat.Min == nil || *psat.Min != 0 || psat.Max != nil {
		t.Fatalf("psat bounds = %v, %v; want 0 and unbounded", psat.Min, psat.Max)
	}

	out, _, err = execute(t, "params")
	if err != nil {
		t.Fatalf("params table: %v", err)
	}
	for _, want := range []string{"Key", "psat", "Bolo Resistance", "pA/rtHz"} {
		if !strings.Contains(out, want) {
			t.Fatalf("params table missing %q:\n%s", want, out)
		}
	}
}

func TestEvaluateTable(t *testing.T) {
	out, stderr, err := execute(t, "evaluate", "-f", exampleInstrument, "--optics")
	if err != nil {
		t.Fatalf("evaluate: %v\n%s", err, stderr)
	}
	for _, want := range []string{"MF1", "MF2", "NET Arr", "uK-rts", "Map Depth", "Aperture Stop", "Detector"} {
		if !strings.Contains(out, want) {
			t.Fatalf("output missing %q:\n%s", want, out)
		}
	}
	if strings.Contains(out, "level=") {
		t.Fatalf("log lines leaked onto stdout:\n%s", out)
	}
}

func TestEvaluateJSON(t *testing.T) {
	sums := evaluateJSON(t, "--nobs", "3", "--ndet", "2")
	if len(sums) != 2 || sums[0].Channel != "MF1" || sums[1].Channel != "MF2" {
		t.Fatalf("channels = %+v, want MF1 then MF2", sums)
	}
	for _, s := range sums {
		if s.Slots != 6 {
			t.Fatalf("%s slots = %d, want 6", s.Channel, s.Slots)
		}
		popt := s.median(t, "Popt")
		net := s.median(t, "NET")
		arr := s.median(t, "NET Arr")
		if popt == nil || *popt <= 0 || *popt > 100 {
			t.Fatalf("%s Popt = %v pW, want a positive few-pW value", s.Channel, popt)
		}
		if net == nil || arr == nil || *arr <= 0 || *arr >= *net {
			t.Fatalf("%s array NET %v should be positive and below NET %v", s.Channel, arr, net)
		}
	}
}

func TestEvaluateSelectsChannels(t *testing.T) {
	sums := evaluateJSON(t, "--channel", "mf2")
	if len(sums) != 1 || sums[0].Channel != "MF2" {
		t.Fatalf("channels = %+v, want only MF2", sums)
	}

	_, _, err := execute(t, "evaluate", "-f", exampleInstrument, "--channel", "HF9")
	if err == nil {
		t.Fatalf("unknown channel accepted")
	}
}

func TestEvaluateSetChangesParameters(t *testing.T) {
	base := evaluateJSON(t)
	zero := evaluateJSON(t, "--set", "MF1:yield=0", "--set", "*:Sky Fraction=0.4")

	if got := zero[0].median(t, "NET Arr"); got != nil {
		t.Fatalf("MF1 array NET with zero yield = %v, want null", *got)
	}
	if got, want := *zero[0].median(t, "NET"), *base[0].median(t, "NET"); got != want {
		t.Fatalf("MF1 NET changed with yield: %v vs %v", got, want)
	}
	// Map depth scales with sqrt(fsky).
	got := *zero[1].median(t, "Map Depth") / *base[1].median(t, "Map Depth")
	if math.Abs(got-2) > 1e-9 {
		t.Fatalf("MF2 map depth ratio = %v, want 2", got)
	}
}

func TestEvaluateSetErrors(t *testing.T) {
	tests := []struct {
		name string
		set  string
		want error
	}{
		{"unknown parameter", "MF1:bogus=1", core.ErrUnknownParameter},
		{"out of range", "MF1:yield=1.5", core.ErrOutOfRange},
		{"unparseable", "MF2:psat=lots", core.ErrUnparseable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, stderr, err := execute(t, "evaluate", "-f", exampleInstrument, "--set", tt.set)
			if !errors.Is(err, tt.want) {
				t.Fatalf("err = %v, want %v", err, tt.want)
			}
			if !strings.Contains(stderr, "evaluation aborted") {
				t.Fatalf("failure not logged:\n%s", stderr)
			}
		})
	}

	if _, _, err := execute(t, "evaluate", "-f", exampleInstrument, "--set", "MF1-yield"); err == nil {
		t.Fatalf("malformed --set accepted")
	}
}

func TestParseSet(t *testing.T) {
	tests := []struct {
		in      string
		want    paramChange
		wantErr bool
	}{
		{in: "MF1:psat=12", want: paramChange{channel: "MF1", key: "psat", value: "12"}},
		{in: "*: Bolo Resistance = 0.008", want: paramChange{channel: "*", key: "Bolo Resistance", value: "0.008"}},
		{in: "MF1:tc=NA", want: paramChange{channel: "MF1", key: "tc", value: "NA"}},
		{in: "psat=12", wantErr: true},
		{in: "MF1:psat", wantErr: true},
		{in: "MF1:psat=", wantErr: true},
		{in: ":psat=1", wantErr: true},
	}
	for _, tt := range tests {
		got, err := parseSet(tt.in)
		if tt.wantErr {
			if err == nil {
				t.Fatalf("parseSet(%q) accepted", tt.in)
			}
			continue
		}
		if err != nil {
			t.Fatalf("parseSet(%q): %v", tt.in, err)
		}
		if got != tt.want {
			t.Fatalf("parseSet(%q) = %+v, want %+v", tt.in, got, tt.want)
		}
	}
}

func TestEvaluateSeedRepeats(t *testing.T) {
	args := []string{"evaluate", "--json", "-f", exampleInstrument, "--sample", "--nobs", "4", "--seed", "11"}
	first, _, err := execute(t, args...)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, _, err := execute(t, args...)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}
	if first != second {
		t.Fatalf("seeded runs differ:\n%s\n---\n%s", first, second)
	}
}

func TestEvaluateWritesMetrics(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bolocalc.prom")
	_, stderr, err := execute(t, "evaluate", "-f", exampleInstrument,
		"--set", "MF2:psat=12", "--metrics-file", path)
	if err != nil {
		t.Fatalf("evaluate: %v\n%s", err, stderr)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read metrics: %v", err)
	}
	text := string(data)
	for _, want := range []string{
		`bolocalc_evaluations_total{channel="MF1",outcome="ok"} 1`,
		`bolocalc_evaluations_total{channel="MF2",outcome="ok"} 1`,
		`bolocalc_parameter_changes_total{parameter="Psat"} 1`,
		`bolocalc_readout_fallbacks_total{channel="MF1"} 1`,
		"bolocalc_channels 2",
	} {
		if !strings.Contains(text, want) {
			t.Fatalf("metrics missing %q:\n%s", want, text)
		}
	}
}
