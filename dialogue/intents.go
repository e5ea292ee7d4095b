package dialogue

import (
	"strings"
	"unicode"
)

// normalize lower-cases text and reduces it to space separated words.
// An empty result means the transcript carried nothing usable.
func normalize(text string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(text) {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
		} else {
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

// hasPhrase matches whole words only, so "bus" does not match "minibus".
func hasPhrase(norm, phrase string) bool {
	return strings.Contains(" "+norm+" ", " "+phrase+" ")
}

func hasAny(norm string, phrases ...string) bool {
	for _, p := range phrases {
		if hasPhrase(norm, p) {
			return true
		}
	}
	return false
}

var (
	restartWords = []string{"start over", "restart", "edit", "change"}
	submitWords  = []string{"submit", "yes", "confirm"}
	doneWords    = []string{"done", "next", "finish", "finished"}
)

// Vehicle is one entry of the spoken vehicle-type table.
type Vehicle struct {
	Phrase string
	Type   string
}

// vehicles is ordered: multi-word phrases come before the single words they
// contain and the first entry found in the transcript wins.
var vehicles = []Vehicle{
	{"boda boda", "motorcycle"},
	{"tuku tuku", "tuku"},
	{"tuk tuk", "tuku"},
	{"pick up", "pickup"},
	{"saloon", "saloon"},
	{"salon", "saloon"},
	{"sedan", "saloon"},
	{"suv", "suv"},
	{"matatu", "matatu"},
	{"minibus", "matatu"},
	{"coaster", "coaster"},
	{"taxi", "taxi"},
	{"cab", "taxi"},
	{"pickup", "pickup"},
	{"motorcycle", "motorcycle"},
	{"motorbike", "motorcycle"},
	{"boda", "motorcycle"},
	{"bike", "motorcycle"},
	{"tuku", "tuku"},
	{"bus", "bus"},
	{"truck", "truck"},
	{"lorry", "truck"},
	{"van", "van"},
	{"car", "car"},
	{"vehicle", "car"},
}

var vehicleNames = map[string]string{
	"motorcycle": "boda boda",
	"tuku":       "tuku tuku",
	"pickup":     "pickup",
	"saloon":     "saloon",
	"suv":        "SUV",
	"matatu":     "matatu",
	"coaster":    "coaster",
	"taxi":       "taxi",
	"bus":        "bus",
	"truck":      "truck",
	"van":        "van",
	"car":        "car",
}

// VehicleName is the spoken name of a canonical vehicle type.
func VehicleName(vehicleType string) string {
	if n, ok := vehicleNames[vehicleType]; ok {
		return n
	}
	return vehicleType
}

func matchVehicle(norm string) (string, bool) {
	for _, v := range vehicles {
		if hasPhrase(norm, v.Phrase) {
			return v.Type, true
		}
	}
	return "", false
}

func matchWake(norm string, phrases []string) bool {
	for _, p := range phrases {
		p = normalize(p)
		if p != "" && strings.Contains(norm, p) {
			return true
		}
	}
	return false
}

var stopWords = map[string]bool{
	"and": true, "but": true, "the": true, "was": true, "were": true,
	"could": true, "while": true, "most": true, "more": true, "with": true,
	"during": true, "not": true, "too": true, "better": true, "caused": true,
}

func keywords(option string) []string {
	var out []string
	for _, w := range strings.Fields(normalize(option)) {
		if len(w) >= 4 && !stopWords[w] {
			out = append(out, w)
		}
	}
	return out
}

// matchComment finds the option the transcript refers to: a full substring
// match wins outright, otherwise the option with the largest share of its
// keywords heard. Equal shares go to the option with more hits, then to the
// earlier option.
func matchComment(norm string, list []string) (int, bool) {
	best, bestHits, bestTotal := -1, 0, 1
	for i, opt := range list {
		o := normalize(opt)
		if strings.Contains(norm, o) {
			return i, true
		}
		keys := keywords(opt)
		hits := 0
		for _, k := range keys {
			if hasPhrase(norm, k) {
				hits++
			}
		}
		if hits == 0 {
			continue
		}
		// hits/len(keys) against bestHits/bestTotal without division.
		lhs, rhs := hits*bestTotal, bestHits*len(keys)
		if best < 0 || lhs > rhs || (lhs == rhs && hits > bestHits) {
			best, bestHits, bestTotal = i, hits, len(keys)
		}
	}
	return best, best >= 0
}

var ordinals = map[string]int{
	"1": 1, "2": 2, "3": 3, "4": 4, "5": 5, "6": 6,
	"one": 1, "two": 2, "three": 3, "four": 4, "five": 5, "six": 6,
	"first": 1, "second": 2, "third": 3, "fourth": 4, "fifth": 5, "sixth": 6,
}

// matchOrdinal accepts "number two", "second" or a bare "2".
func matchOrdinal(norm string, n int) (int, bool) {
	words := strings.Fields(norm)
	if len(words) == 0 || len(words) > 3 {
		return 0, false
	}
	for _, w := range words {
		if w == "number" || w == "option" || w == "the" {
			continue
		}
		idx, ok := ordinals[w]
		if !ok || idx > n {
			return 0, false
		}
		return idx - 1, true
	}
	return 0, false
}

// matchOther extracts the free text spoken after "other".
func matchOther(text string) (string, bool) {
	t := strings.TrimSpace(text)
	words := strings.Fields(normalize(t))
	if len(words) == 0 || words[0] != "other" {
		return "", false
	}
	idx := strings.Index(strings.ToLower(t), "other")
	rest := strings.TrimLeft(t[idx+len("other"):], " :,.-")
	return strings.TrimSpace(rest), true
}
