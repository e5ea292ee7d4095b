// Package options maps a rating score to the comment chips offered for it.
package options

// Band identifies one of the three fixed comment sets.
type Band string

const (
	BandCritical Band = "critical"
	BandNeutral  Band = "neutral"
	BandPositive Band = "positive"
)

// Other is the chip that opens the free-text comment field.
const Other = "Other"

var critical = []string{
	"Drove too fast or recklessly",
	"Ignored traffic rules",
	"Sudden braking or jerky driving",
	"Car was unclean or uncomfortable",
	"Driver was late or caused delays",
	"Distracted while driving",
}

var neutral = []string{
	"Decent driving but could improve",
	"Followed most traffic rules",
	"Car cleanliness could be better",
	"Minor delays during the trip",
	"Driving was okay but not outstanding",
}

var positive = []string{
	"Polite and professional driver",
	"Smooth and safe driving",
	"Followed traffic rules",
	"Clean and comfortable car",
	"Punctual and timely",
	"Attentive to road conditions",
}

// BandFor returns the band a score falls into.
func BandFor(score float64) Band {
	switch {
	case score <= 2.5:
		return BandCritical
	case score <= 4:
		return BandNeutral
	default:
		return BandPositive
	}
}

// ForScore returns the ordered comment list for a score. The returned slice
// is a copy and may be modified by the caller.
func ForScore(score float64) []string {
	return ForBand(BandFor(score))
}

// ForBand returns the ordered comment list for a band.
func ForBand(b Band) []string {
	var src []string
	switch b {
	case BandCritical:
		src = critical
	case BandNeutral:
		src = neutral
	default:
		src = positive
	}
	out := make([]string, len(src))
	copy(out, src)
	return out
}

// Chips returns the comment list as rendered in the form, with the trailing
// "Other" chip.
func Chips(score float64) []string {
	return append(ForScore(score), Other)
}

// Contains reports whether comment belongs to the list for score.
func Contains(score float64, comment string) bool {
	for _, c := range ForScore(score) {
		if c == comment {
			return true
		}
	}
	return false
}
