package form

import (
	"regexp"
	"strings"
)

var digitWords = map[string]string{
	"ZERO": "0", "ONE": "1", "TWO": "2", "THREE": "3", "FOUR": "4",
	"FIVE": "5", "SIX": "6", "SEVEN": "7", "EIGHT": "8", "NINE": "9",
}

var (
	plateFillers = regexp.MustCompile(`\b(THE|AND|SPACE|DASH)\b`)
	plateDigits  = regexp.MustCompile(`\b(ZERO|ONE|TWO|THREE|FOUR|FIVE|SIX|SEVEN|EIGHT|NINE)\b`)
	plateJunk    = regexp.MustCompile(`[^A-Z0-9]`)
)

// NormalizePlate turns a typed or spoken plate ("k a a one two three a")
// into its compact form ("KAA123A").
func NormalizePlate(text string) string {
	p := strings.ToUpper(text)
	p = plateFillers.ReplaceAllString(p, " ")
	p = plateDigits.ReplaceAllStringFunc(p, func(w string) string { return digitWords[w] })
	return plateJunk.ReplaceAllString(p, "")
}
