package dialogue

import (
	"strconv"
	"strings"

	"github.com/EasterCompany/dex-voice-rating/options"
)

// Draft is the in-progress, unsubmitted rating.
type Draft struct {
	VehicleType      string
	Score            float64 // zero means no score yet
	SelectedComments []string
	FreeTextComment  string
	PlateNumber      string
}

// Clone returns a deep copy of the draft.
func (d Draft) Clone() Draft {
	c := d
	if d.SelectedComments != nil {
		c.SelectedComments = append([]string(nil), d.SelectedComments...)
	}
	return c
}

// HasScore reports whether a score has been recorded.
func (d Draft) HasScore() bool {
	return d.Score > 0
}

// Options returns the comment list for the current score, or nil without one.
func (d Draft) Options() []string {
	if !d.HasScore() {
		return nil
	}
	return options.ForScore(d.Score)
}

// SetScore records a new score. Comments that do not belong to the new
// score's band are dropped; a zero score clears them all.
func (d *Draft) SetScore(score float64) {
	if score <= 0 {
		d.Score = 0
		d.SelectedComments = nil
		return
	}
	d.Score = score
	kept := d.SelectedComments[:0:0]
	for _, c := range d.SelectedComments {
		if options.Contains(score, c) {
			kept = append(kept, c)
		}
	}
	d.SelectedComments = kept
}

// Select adds a comment to the selection. It reports false when the comment
// was already selected.
func (d *Draft) Select(comment string) bool {
	for _, c := range d.SelectedComments {
		if c == comment {
			return false
		}
	}
	d.SelectedComments = append(d.SelectedComments, comment)
	return true
}

// HasComments reports whether any system or free-text comment is present.
func (d Draft) HasComments() bool {
	return len(d.SelectedComments) > 0 || strings.TrimSpace(d.FreeTextComment) != ""
}

// SystemComments joins the selected comments the way the form stores them.
func (d Draft) SystemComments() string {
	return strings.Join(d.SelectedComments, ", ")
}

// Reasons is the spoken list of everything the user picked.
func (d Draft) Reasons() string {
	parts := append([]string(nil), d.SelectedComments...)
	if t := strings.TrimSpace(d.FreeTextComment); t != "" {
		parts = append(parts, "Other: "+t)
	}
	return strings.Join(parts, ", ")
}

// ScoreText formats the score without trailing zeros, e.g. "4" or "4.5".
func (d Draft) ScoreText() string {
	if !d.HasScore() {
		return ""
	}
	return strconv.FormatFloat(d.Score, 'f', -1, 64)
}

// Missing lists the fields that still block submission, in form order.
func (d Draft) Missing() []string {
	var missing []string
	if d.VehicleType == "" {
		missing = append(missing, "vehicle type")
	}
	if strings.TrimSpace(d.PlateNumber) == "" {
		missing = append(missing, "plate number")
	}
	if !d.HasScore() {
		missing = append(missing, "score")
	}
	if !d.HasComments() {
		missing = append(missing, "comment")
	}
	return missing
}

// Complete reports whether the draft can be submitted.
func (d Draft) Complete() bool {
	return len(d.Missing()) == 0
}
