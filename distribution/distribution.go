// Package distribution provides the empirical probability distributions that
// parameters may be drawn from instead of a mean and spread.
package distribution

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"math/rand/v2"
	"sort"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/stat"
	"gonum.org/v1/gonum/stat/distuv"
)

// Distribution is any sampleable distribution with known moments.
type Distribution interface {
	Mean() float64
	Median() float64
	StdDev() float64
	// Sample returns n independent draws; n < 1 is treated as 1.
	Sample(n int) []float64
}

// PDF is a discrete empirical distribution defined by values and their
// relative probabilities.
type PDF struct {
	vals  []float64
	probs []float64
	cat   distuv.Categorical

	mean   float64
	median float64
	std    float64
}

// NewPDF builds a PDF from parallel value/probability slices. Probabilities
// need not be normalised. A nil src draws from the process-wide source.
func NewPDF(vals, probs []float64, src rand.Source) (*PDF, error) {
	if len(vals) == 0 {
		return nil, errors.New("distribution: no values")
	}
	if len(vals) != len(probs) {
		return nil, fmt.Errorf("distribution: %d values but %d probabilities", len(vals), len(probs))
	}

	idx := make([]int, len(vals))
	for i := range idx {
		idx[i] = i
	}
	sort.SliceStable(idx, func(a, b int) bool { return vals[idx[a]] < vals[idx[b]] })

	p := &PDF{
		vals:  make([]float64, len(vals)),
		probs: make([]float64, len(vals)),
	}
	var total float64
	for i, j := range idx {
		if probs[j] < 0 {
			return nil, fmt.Errorf("distribution: negative probability %g for value %g", probs[j], vals[j])
		}
		p.vals[i] = vals[j]
		p.probs[i] = probs[j]
		total += probs[j]
	}
	if total <= 0 {
		return nil, errors.New("distribution: probabilities sum to zero")
	}
	for i := range p.probs {
		p.probs[i] /= total
	}

	p.mean, p.std = stat.PopMeanStdDev(p.vals, p.probs)
	p.median = stat.Quantile(0.5, stat.Empirical, p.vals, p.probs)
	p.cat = distuv.NewCategorical(p.probs, src)
	return p, nil
}

func (p *PDF) Mean() float64   { return p.mean }
func (p *PDF) Median() float64 { return p.median }
func (p *PDF) StdDev() float64 { return p.std }

// Sample draws n values.
func (p *PDF) Sample(n int) []float64 {
	if n < 1 {
		n = 1
	}
	out := make([]float64, n)
	for i := range out {
		out[i] = p.vals[int(p.cat.Rand())]
	}
	return out
}

// Reseed replaces the random source used by Sample.
func (p *PDF) Reseed(src rand.Source) { p.cat = distuv.NewCategorical(p.probs, src) }

// Values returns a copy of the support, sorted ascending.
func (p *PDF) Values() []float64 { return append([]float64(nil), p.vals...) }

// Read parses a two-column PDF: one "value probability" pair per line,
// separated by whitespace or a comma. Blank lines and lines starting with
// '#' are skipped.
func Read(r io.Reader, src rand.Source) (*PDF, error) {
	var vals, probs []float64
	sc := bufio.NewScanner(r)
	line := 0
	for sc.Scan() {
		line++
		text := strings.TrimSpace(sc.Text())
		if text == "" || strings.HasPrefix(text, "#") {
			continue
		}
		fields := strings.FieldsFunc(text, func(r rune) bool {
			return r == ',' || r == ' ' || r == '\t'
		})
		if len(fields) != 2 {
			return nil, fmt.Errorf("distribution: line %d: want 2 columns, got %d", line, len(fields))
		}
		v, err := strconv.ParseFloat(fields[0], 64)
		if err != nil {
			return nil, fmt.Errorf("distribution: line %d: value: %w", line, err)
		}
		pr, err := strconv.ParseFloat(fields[1], 64)
		if err != nil {
			return nil, fmt.Errorf("distribution: line %d: probability: %w", line, err)
		}
		vals = append(vals, v)
		probs = append(probs, pr)
	}
	if err := sc.Err(); err != nil {
		return nil, fmt.Errorf("distribution: read: %w", err)
	}
	return NewPDF(vals, probs, src)
}
