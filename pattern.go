package numus

import "strings"

// Pattern represents a rhythmic on/off pattern, in practice just a slice of
// booleans, but provides convenience functions that return false (rest) for
// indices out of bounds of the slice and wrap around when the pattern is
// looped. Patterns are treated as read-only once generated.
type Pattern []bool

// Euclid generates a pattern of length steps with pulses as evenly distributed
// as possible, using Bjorklund's algorithm. The result is rotated left by
// rotation (mod steps), so Euclid(s, p, r)[i] == Euclid(s, p, 0)[(i+r) mod s].
// A non-positive steps returns an empty pattern, pulses <= 0 returns all
// rests and pulses >= steps returns all hits.
func Euclid(steps, pulses, rotation int) Pattern {
	if steps <= 0 {
		return Pattern{}
	}
	var ret Pattern
	switch {
	case pulses <= 0:
		ret = make(Pattern, steps)
	case pulses >= steps:
		ret = make(Pattern, steps)
		for i := range ret {
			ret[i] = true
		}
	default:
		ret = bjorklund(steps, pulses)
	}
	return ret.Rotate(rotation)
}

// bjorklund builds the maximally even distribution by repeatedly splitting
// the remainder buckets, then concatenating the bucket patterns back
// according to the recorded counts. The result always starts with a pulse.
func bjorklund(steps, pulses int) Pattern {
	counts := make([]int, 0, steps)
	remainders := []int{pulses}
	divisor := steps - pulses
	level := 0
	for {
		counts = append(counts, divisor/remainders[level])
		remainders = append(remainders, divisor%remainders[level])
		divisor = remainders[level]
		level++
		if remainders[level] <= 1 {
			break
		}
	}
	counts = append(counts, divisor)
	ret := make(Pattern, 0, steps)
	var build func(level int)
	build = func(level int) {
		switch level {
		case -1:
			ret = append(ret, false)
		case -2:
			ret = append(ret, true)
		default:
			for i := 0; i < counts[level]; i++ {
				build(level - 1)
			}
			if remainders[level] != 0 {
				build(level - 2)
			}
		}
	}
	build(level)
	for i, v := range ret {
		if v {
			return ret.Rotate(i)
		}
	}
	return ret
}

// Rotate returns a new pattern rotated left by n steps. Negative n rotates to
// the right.
func (p Pattern) Rotate(n int) Pattern {
	ret := make(Pattern, len(p))
	if len(p) == 0 {
		return ret
	}
	n = mod(n, len(p))
	copy(ret, p[n:])
	copy(ret[len(p)-n:], p[:n])
	return ret
}

// At returns the value at index, wrapping the index so that the pattern loops.
func (p Pattern) At(index int) bool {
	if len(p) == 0 {
		return false
	}
	return p[mod(index, len(p))]
}

// Pulses returns the number of hits in the pattern.
func (p Pattern) Pulses() int {
	ret := 0
	for _, v := range p {
		if v {
			ret++
		}
	}
	return ret
}

// String renders hits as 'x' and rests as '.', e.g. "x..x..x."
func (p Pattern) String() string {
	var b strings.Builder
	for _, v := range p {
		if v {
			b.WriteByte('x')
		} else {
			b.WriteByte('.')
		}
	}
	return b.String()
}

// ParsePattern is the inverse of String: 'x', 'X' and '1' are hits, anything
// else is a rest.
func ParsePattern(s string) Pattern {
	ret := make(Pattern, 0, len(s))
	for _, c := range s {
		ret = append(ret, c == 'x' || c == 'X' || c == '1')
	}
	return ret
}

func mod(a, b int) int {
	return (a%b + b) % b
}
