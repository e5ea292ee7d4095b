package dialogue

import (
	"math"
	"regexp"
	"strconv"
	"strings"
)

const (
	minScore = 1
	maxScore = 5
)

var (
	decimalComma = regexp.MustCompile(`(\d),(\d)`)
	scoreToken   = regexp.MustCompile(`[a-z0-9.]+`)
)

var numberWords = map[string]float64{
	"zero": 0, "one": 1, "two": 2, "three": 3, "four": 4, "five": 5,
}

var halfSuffixes = [][]string{
	{"and", "a", "half"},
	{"and", "half"},
	{"a", "half"},
	{"half"},
	{"point", "five"},
	{"point", "5"},
	{".5"},
}

// ParseScore extracts a 1-5 star score from a transcript. Halves are
// accepted as digits ("4.5", "4,5") or words ("four and a half", "three point
// five"); the result is rounded to the nearest half star.
func ParseScore(text string) (float64, bool) {
	lower := decimalComma.ReplaceAllString(strings.ToLower(text), "$1.$2")
	var tokens []string
	for _, t := range scoreToken.FindAllString(lower, -1) {
		t = strings.TrimRight(t, ".")
		if t != "" {
			tokens = append(tokens, t)
		}
	}

	for i, tok := range tokens {
		v, ok := baseNumber(tok)
		if !ok {
			continue
		}
		if v == math.Trunc(v) && hasHalfSuffix(tokens[i+1:]) {
			v += 0.5
		}
		v = math.Round(v*2) / 2
		if v < minScore || v > maxScore {
			return 0, false
		}
		return v, true
	}
	return 0, false
}

func baseNumber(tok string) (float64, bool) {
	if v, ok := numberWords[tok]; ok {
		return v, true
	}
	if tok[0] < '0' || tok[0] > '9' {
		return 0, false
	}
	v, err := strconv.ParseFloat(tok, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func hasHalfSuffix(rest []string) bool {
	for _, suffix := range halfSuffixes {
		if len(rest) < len(suffix) {
			continue
		}
		match := true
		for j, w := range suffix {
			if rest[j] != w {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
