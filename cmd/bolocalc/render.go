package main

import (
	"encoding/json"
	"math"
	"sort"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"gonum.org/v1/gonum/mat"
	"gonum.org/v1/gonum/stat"

	"github.com/signalsfoundry/bolocalc/core"
	"github.com/signalsfoundry/bolocalc/units"
)

// number marshals non-finite values as null.
type number float64

func (n number) MarshalJSON() ([]byte, error) {
	x := float64(n)
	if math.IsNaN(x) || math.IsInf(x, 0) {
		return []byte("null"), nil
	}
	return json.Marshal(x)
}

func (n number) String() string {
	return strconv.FormatFloat(float64(n), 'g', 4, 64)
}

type metricSummary struct {
	Name   string `json:"name"`
	Unit   string `json:"unit"`
	Median number `json:"median"`
	Std    number `json:"std"`
}

type channelSummary struct {
	Channel string          `json:"channel"`
	Slots   int             `json:"slots"`
	Metrics []metricSummary `json:"metrics"`
	Optics  []elementRow    `json:"optics,omitempty"`
}

type elementRow struct {
	Element            string `json:"element"`
	SkySidePower       number `json:"sky_side_power_pw"`
	DetectorPower      number `json:"detector_power_pw"`
	DetectorEfficiency number `json:"detector_efficiency"`
}

type reportedMetric struct {
	name  string
	unit  string
	field func(*core.ChannelResult) *mat.Dense
}

var reportedMetrics = []reportedMetric{
	{"Popt", "pW", func(r *core.ChannelResult) *mat.Dense { return r.OpticalPower }},
	{"Tel Eff", "NA", func(r *core.ChannelResult) *mat.Dense { return r.TelescopeEfficiency }},
	{"NEP Photon", "aW/rtHz", func(r *core.ChannelResult) *mat.Dense { return r.PhotonNEP }},
	{"NEP Bolo", "aW/rtHz", func(r *core.ChannelResult) *mat.Dense { return r.BoloNEP }},
	{"NEP Read", "aW/rtHz", func(r *core.ChannelResult) *mat.Dense { return r.ReadNEP }},
	{"NEP", "aW/rtHz", func(r *core.ChannelResult) *mat.Dense { return r.NEP }},
	{"NET", "uK-rts", func(r *core.ChannelResult) *mat.Dense { return r.NET }},
	{"NET RJ", "uK-rts", func(r *core.ChannelResult) *mat.Dense { return r.NETRJ }},
	{"NET Arr", "uK-rts", func(r *core.ChannelResult) *mat.Dense { return r.NETArrCorr }},
	{"NET Arr RJ", "uK-rts", func(r *core.ChannelResult) *mat.Dense { return r.NETArrCorrRJ }},
	{"Corr Factor", "NA", func(r *core.ChannelResult) *mat.Dense { return r.CorrDegradation }},
	{"Map Depth", "uK-amin", func(r *core.ChannelResult) *mat.Dense { return r.MapDepth }},
	{"Map Depth RJ", "uK-amin", func(r *core.ChannelResult) *mat.Dense { return r.MapDepthRJ }},
}

// medianStd reduces every slot of m to its median and standard deviation.
func medianStd(m *mat.Dense, unit units.Unit) (number, number) {
	r, c := m.Dims()
	xs := make([]float64, 0, r*c)
	for i := 0; i < r; i++ {
		for j := 0; j < c; j++ {
			xs = append(xs, unit.FromSI(m.At(i, j)))
		}
	}
	return reduce(xs)
}

func reduce(xs []float64) (number, number) {
	if len(xs) == 0 {
		return number(math.NaN()), number(math.NaN())
	}
	sort.Float64s(xs)
	med := stat.Quantile(0.5, stat.Empirical, xs, nil)
	if len(xs) < 2 {
		return number(med), 0
	}
	return number(med), number(stat.StdDev(xs, nil))
}

func summarize(res *core.ChannelResult) channelSummary {
	nobs, ndet := res.Dims()
	sum := channelSummary{Channel: res.Channel, Slots: nobs * ndet}
	for _, m := range reportedMetrics {
		u := units.MustLookup(m.unit)
		med, std := medianStd(m.field(res), u)
		sum.Metrics = append(sum.Metrics, metricSummary{Name: m.name, Unit: m.unit, Median: med, Std: std})
	}
	return sum
}

// summarizeOptics reports each element's median over slots. Element order
// is taken from the first slot.
func summarizeOptics(tab *core.OpticalTable) []elementRow {
	nobs, ndet, nelem := tab.Names.Dims()
	pw := units.MustLookup("pW")
	names := tab.Names.Row(0, 0)
	rows := make([]elementRow, 0, nelem)
	column := func(c *core.Cube, k int, u units.Unit) number {
		xs := make([]float64, 0, nobs*ndet)
		for o := 0; o < nobs; o++ {
			for d := 0; d < ndet; d++ {
				xs = append(xs, u.FromSI(c.At(o, d, k, 0)))
			}
		}
		med, _ := reduce(xs)
		return med
	}
	for k := 0; k < nelem; k++ {
		rows = append(rows, elementRow{
			Element:            names[k],
			SkySidePower:       column(tab.SkySidePower, k, pw),
			DetectorPower:      column(tab.DetectorPower, k, pw),
			DetectorEfficiency: column(tab.DetectorEfficiency, k, units.Dimensionless),
		})
	}
	return rows
}

func renderSummary(sum channelSummary) string {
	rows := make([][]string, 0, len(sum.Metrics))
	for _, m := range sum.Metrics {
		rows = append(rows, []string{m.Name, m.Median.String(), m.Std.String(), m.Unit})
	}
	header := lipgloss.NewStyle().Bold(true).Render(sum.Channel) +
		" (" + strconv.Itoa(sum.Slots) + " slots)"
	return header + "\n" + renderTable([]string{"Quantity", "Median", "Std", "Unit"}, rows)
}

func renderOptics(channel string, rows []elementRow) string {
	out := make([][]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, []string{r.Element, r.SkySidePower.String(), r.DetectorPower.String(), r.DetectorEfficiency.String()})
	}
	header := lipgloss.NewStyle().Bold(true).Render(channel) + " optics"
	return header + "\n" + renderTable([]string{"Element", "Sky-side [pW]", "At detector [pW]", "Eff to detector"}, out)
}

func renderTable(headers []string, rows [][]string) string {
	t := table.New().
		Border(lipgloss.NormalBorder()).
		StyleFunc(func(row, col int) lipgloss.Style {
			s := lipgloss.NewStyle().Padding(0, 1)
			switch {
			case row == table.HeaderRow:
				return s.Bold(true)
			case col > 0:
				return s.Align(lipgloss.Right)
			default:
				return s
			}
		}).
		Headers(headers...).
		Rows(rows...)
	return t.String()
}
