package numus

import "sort"

// builtinPatterns is the read-only library of named rhythms. The Euclidean
// ones are generated once at init, the rest are written out.
var builtinPatterns = map[string]Pattern{
	"four_on_floor": Euclid(16, 4, 0),
	"offbeat_hat":   Euclid(16, 4, -2),
	"eighth_hat":    Euclid(16, 8, 0),
	"backbeat":      ParsePattern("....x.......x..."),
	"tresillo":      Euclid(8, 3, 0),
	"cinquillo":     Euclid(8, 5, 0),
	"bossa":         Euclid(16, 5, 0),
	"perc_5_16":     Euclid(16, 5, 0),
	"tremolo_7_32":  Euclid(32, 7, 0),
	"clave_son":     ParsePattern("x..x..x...x.x..."),
	"rumba":         ParsePattern("x..x...x..x.x..."),
	"gallop":        ParsePattern("x.xxx.xxx.xxx.xx"),
	"half_time":     ParsePattern("x.......x......."),
	"silence":       Euclid(16, 0, 0),
}

// LookupPattern returns a copy of the named pattern from the built-in library.
func LookupPattern(name string) (Pattern, bool) {
	p, ok := builtinPatterns[name]
	if !ok {
		return nil, false
	}
	return append(Pattern{}, p...), true
}

// PatternNames returns the names of the built-in patterns in sorted order.
func PatternNames() []string {
	ret := make([]string, 0, len(builtinPatterns))
	for k := range builtinPatterns {
		ret = append(ret, k)
	}
	sort.Strings(ret)
	return ret
}
