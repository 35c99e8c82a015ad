package model

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// valueTag distinguishes numeric content from the sentinel markers. The zero
// tag is NotApplicable so that an unset Value never reads as a silent zero.
type valueTag uint8

const (
	tagNotApplicable valueTag = iota
	tagDeferredToBand
	tagKnown
)

// Sentinel tokens as they appear in configuration text.
const (
	TokenNotApplicable  = "NA"
	TokenDeferredToBand = "BAND"
)

// Value is a physical quantity that is either a known number or one of the
// sentinels "not applicable" and "defined per band elsewhere".
type Value struct {
	tag valueTag
	x   float64
}

var (
	// NotApplicable marks a quantity that is intentionally absent.
	NotApplicable = Value{tag: tagNotApplicable}
	// DeferredToBand marks a quantity that is supplied per band elsewhere.
	DeferredToBand = Value{tag: tagDeferredToBand}
)

// Known wraps a number.
func Known(x float64) Value { return Value{tag: tagKnown, x: x} }

// ParseSentinel recognises "NA" and "BAND" case-insensitively after trimming.
func ParseSentinel(s string) (Value, bool) {
	switch strings.ToUpper(strings.TrimSpace(s)) {
	case TokenNotApplicable:
		return NotApplicable, true
	case TokenDeferredToBand:
		return DeferredToBand, true
	default:
		return Value{}, false
	}
}

// IsKnown reports whether v carries a number.
func (v Value) IsKnown() bool { return v.tag == tagKnown }

// IsSentinel reports whether v is NotApplicable or DeferredToBand.
func (v Value) IsSentinel() bool { return v.tag != tagKnown }

// IsNotApplicable reports whether v is the "NA" sentinel.
func (v Value) IsNotApplicable() bool { return v.tag == tagNotApplicable }

// IsDeferredToBand reports whether v is the "BAND" sentinel.
func (v Value) IsDeferredToBand() bool { return v.tag == tagDeferredToBand }

// Float returns the number and true, or 0 and false for a sentinel.
func (v Value) Float() (float64, bool) {
	if v.tag != tagKnown {
		return 0, false
	}
	return v.x, true
}

// Or returns the number, or def when v is a sentinel.
func (v Value) Or(def float64) float64 {
	if v.tag != tagKnown {
		return def
	}
	return v.x
}

// Map applies fn to a known number and passes sentinels through unchanged.
func (v Value) Map(fn func(float64) float64) Value {
	if v.tag != tagKnown {
		return v
	}
	return Known(fn(v.x))
}

// Token returns the sentinel token, or "" for a known number.
func (v Value) Token() string {
	switch v.tag {
	case tagNotApplicable:
		return TokenNotApplicable
	case tagDeferredToBand:
		return TokenDeferredToBand
	default:
		return ""
	}
}

func (v Value) String() string {
	if v.tag == tagKnown {
		return strconv.FormatFloat(v.x, 'g', -1, 64)
	}
	return v.Token()
}

// MarshalJSON renders known values as numbers and sentinels as their token.
// Non-finite numbers have no JSON form and render as null.
func (v Value) MarshalJSON() ([]byte, error) {
	if v.tag == tagKnown {
		if math.IsNaN(v.x) || math.IsInf(v.x, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(v.x)
	}
	return json.Marshal(v.Token())
}
