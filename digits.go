package numus

import (
	"math"
	"sort"
)

// Phi is the golden ratio.
const Phi = 1.618033988749895

// DefaultSource is the digit source used when a name is empty or unknown.
const DefaultSource = "pi"

// digitStrings are the first 100 decimal digits of each named constant. They
// are never modified.
var digitStrings = map[string]string{
	"pi":     "3141592653589793238462643383279502884197169399375105820974944592307816406286208998628034825342117067",
	"golden": "1618033988749894848204586834365638117720309179805762862135448622705260462818902449707207204189391137",
	"e":      "2718281828459045235360287471352662497757247093699959574966967627724076630353547594571382178525166427",
	"sqrt2":  "1414213562373095048801688724209698078569671875376948073176679737990732478462107038850387534327641573",
	"euler":  "0577215664901532860606512090082402431042159335939923598805767234884867726777664670936947063291746749",
}

// ratios are the constants themselves, for phase stepping.
var ratios = map[string]float64{
	"pi":     math.Pi,
	"golden": Phi,
	"e":      math.E,
	"sqrt2":  math.Sqrt2,
	"euler":  0.5772156649015329,
}

// Digits returns the digit string of the named constant, falling back to
// DefaultSource for empty or unknown names.
func Digits(name string) string {
	if d, ok := digitStrings[name]; ok {
		return d
	}
	return digitStrings[DefaultSource]
}

// SourceNames returns the known digit source names in sorted order.
func SourceNames() []string {
	ret := make([]string, 0, len(digitStrings))
	for k := range digitStrings {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}

// IsSource reports whether name is a known digit source.
func IsSource(name string) bool {
	_, ok := digitStrings[name]
	return ok
}

// Digit returns the digit 0..9 at index of the named source. The index wraps
// modulo the digit string length and may be negative.
func Digit(name string, index int) int {
	d := Digits(name)
	return int(d[mod(index, len(d))] - '0')
}

// Draw maps the digit at index of the named source to [min, max]:
// min + digit/9 * (max-min). It is a pure function; the same arguments always
// return the same value.
func Draw(name string, index int, min, max float64) float64 {
	return mapDigit(Digit(name, index), min, max)
}

func mapDigit(digit int, min, max float64) float64 {
	return min + float64(digit)/9*(max-min)
}

// Phase returns the fractional part of index * ratio of the named constant,
// a low-discrepancy value in [0,1).
func Phase(name string, index int) float64 {
	r, ok := ratios[name]
	if !ok {
		r = ratios[DefaultSource]
	}
	_, frac := math.Modf(float64(index) * r)
	if frac < 0 {
		frac += 1
	}
	return frac
}

// PhaseDraw maps Phase(name, index) to [min, max).
func PhaseDraw(name string, index int, min, max float64) float64 {
	return min + Phase(name, index)*(max-min)
}

// DigitSource is a cursor over a named digit string that advances on every
// draw. A DigitSource is not safe for concurrent use; give each track its own.
type DigitSource struct {
	name   string
	digits string
	cursor int
}

// NewDigitSource returns a source positioned at the first digit of the named
// constant.
func NewDigitSource(name string) *DigitSource {
	if !IsSource(name) {
		name = DefaultSource
	}
	return &DigitSource{name: name, digits: digitStrings[name]}
}

func (s *DigitSource) Name() string { return s.name }

// NextDigit returns the digit under the cursor and advances the cursor.
func (s *DigitSource) NextDigit() int {
	d := int(s.digits[s.cursor] - '0')
	s.cursor = (s.cursor + 1) % len(s.digits)
	return d
}

// Next returns the next digit mapped to [min, max].
func (s *DigitSource) Next(min, max float64) float64 {
	return mapDigit(s.NextDigit(), min, max)
}

// Offset shifts the cursor by int(cycle*φ*10), so each cycle of a looping
// performance reads a different part of the digit string.
func (s *DigitSource) Offset(cycle int) {
	off := int(float64(cycle) * Phi * 10)
	s.cursor = mod(s.cursor+off, len(s.digits))
}
