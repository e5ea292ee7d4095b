package options

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestBandFor(t *testing.T) {
	cases := []struct {
		score float64
		want  Band
	}{
		{1, BandCritical},
		{2.0, BandCritical},
		{2.5, BandCritical},
		{3.0, BandNeutral},
		{4.0, BandNeutral},
		{4.5, BandPositive},
		{4.8, BandPositive},
		{5, BandPositive},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, BandFor(c.score), "score %v", c.score)
	}
}

func TestForScore_Deterministic(t *testing.T) {
	assert.Equal(t, ForScore(3.0), ForScore(3.0))
	assert.Contains(t, ForScore(2.0), "Ignored traffic rules")
	assert.Contains(t, ForScore(3.0), "Followed most traffic rules")
	assert.Contains(t, ForScore(4.8), "Polite and professional driver")
}

func TestForScore_ReturnsCopy(t *testing.T) {
	list := ForScore(5)
	list[0] = "mutated"
	assert.Equal(t, "Polite and professional driver", ForScore(5)[0])
}

func TestChips_AppendsOther(t *testing.T) {
	chips := Chips(3)
	assert.Equal(t, Other, chips[len(chips)-1])
	assert.Len(t, chips, len(ForScore(3))+1)
}

func TestContains(t *testing.T) {
	assert.True(t, Contains(4.5, "Punctual and timely"))
	assert.False(t, Contains(2, "Punctual and timely"))
}
