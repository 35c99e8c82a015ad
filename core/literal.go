package core

import (
	"regexp"
	"strconv"
	"strings"
)

const (
	spreadDelimiter = "+/-"
	pdfMarker       = "PDF"
	allBands        = "ALL"
)

// floatLiteral is the parsed, unit-free form of a float parameter literal.
// means and stds have equal length; list reports whether the literal was
// written in bracket form.
type floatLiteral struct {
	means []string
	stds  []string
	list  bool
}

var bareWord = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_.\-]*$`)

// splitList parses "[a, b, c]" into trimmed tokens. Nesting, empty entries
// and anything outside the brackets are rejected.
func splitList(s string) ([]string, bool) {
	s = strings.TrimSpace(s)
	if len(s) < 2 || s[0] != '[' || s[len(s)-1] != ']' {
		return nil, false
	}
	body := s[1 : len(s)-1]
	if strings.ContainsAny(body, "[]") {
		return nil, false
	}
	if strings.TrimSpace(body) == "" {
		return []string{}, true
	}
	parts := strings.Split(body, ",")
	for i, p := range parts {
		p = strings.TrimSpace(p)
		if p == "" {
			return nil, false
		}
		parts[i] = p
	}
	return parts, true
}

// parseFloatLiteral accepts "m", "m +/- s", "[m1, ...]" and
// "[m1, ...] +/- [s1, ...]". Token validation happens later.
func parseFloatLiteral(name, lit string) (floatLiteral, error) {
	lit = strings.TrimSpace(lit)
	if lit == "" {
		return floatLiteral{}, paramErr(name, lit, ErrUnparseable)
	}
	meanPart, stdPart, hasStd := strings.Cut(lit, spreadDelimiter)
	if hasStd && strings.Contains(stdPart, spreadDelimiter) {
		return floatLiteral{}, paramErr(name, lit, ErrUnparseable)
	}
	meanPart = strings.TrimSpace(meanPart)
	stdPart = strings.TrimSpace(stdPart)

	var out floatLiteral
	if strings.HasPrefix(meanPart, "[") {
		means, ok := splitList(meanPart)
		if !ok || len(means) == 0 {
			return floatLiteral{}, paramErr(name, lit, ErrUnparseable)
		}
		out.list = true
		out.means = means
		if !hasStd {
			out.stds = make([]string, len(means))
			for i := range out.stds {
				out.stds[i] = "0"
			}
			return out, nil
		}
		if !strings.HasPrefix(stdPart, "[") {
			return floatLiteral{}, paramErrf(name, lit, ErrLengthMismatch, "%d means but a scalar std", len(means))
		}
		stds, ok := splitList(stdPart)
		if !ok {
			return floatLiteral{}, paramErr(name, lit, ErrUnparseable)
		}
		if len(stds) != len(means) {
			return floatLiteral{}, paramErrf(name, lit, ErrLengthMismatch, "%d means but %d stds", len(means), len(stds))
		}
		out.stds = stds
		return out, nil
	}

	if hasStd && strings.HasPrefix(stdPart, "[") {
		return floatLiteral{}, paramErrf(name, lit, ErrLengthMismatch, "scalar mean but a std list")
	}
	if meanPart == "" || (hasStd && stdPart == "") {
		return floatLiteral{}, paramErr(name, lit, ErrUnparseable)
	}
	out.means = []string{meanPart}
	out.stds = []string{"0"}
	if hasStd {
		out.stds[0] = stdPart
	}
	return out, nil
}

func isPDFMarker(tok string) bool {
	return strings.EqualFold(strings.TrimSpace(tok), pdfMarker)
}

func parseNumber(tok string) (float64, bool) {
	x, err := strconv.ParseFloat(strings.TrimSpace(tok), 64)
	return x, err == nil
}

// parseListLiteral accepts a bracketed list whose entries are numbers or
// bare words.
func parseListLiteral(name, lit string) ([]string, error) {
	items, ok := splitList(lit)
	if !ok {
		return nil, paramErr(name, lit, ErrKindMismatch)
	}
	for _, it := range items {
		if _, num := parseNumber(it); num {
			continue
		}
		if !bareWord.MatchString(it) {
			return nil, paramErrf(name, lit, ErrKindMismatch, "list entry %q", it)
		}
	}
	return items, nil
}
