// Package dialogue implements the multi-turn voice rating conversation as a
// pure reducer: (snapshot, event) -> (snapshot, effects). All I/O lives in the
// engine that executes the effects.
package dialogue

import (
	"fmt"
	"strings"
	"sync"

	"github.com/EasterCompany/dex-voice-rating/options"
)

const (
	promptGreeting      = "Welcome to voice rating. Which vehicle type would you like to rate? For example saloon, matatu, bus, taxi or boda boda."
	promptTypeRetry     = "Sorry, I didn't catch the vehicle type. Please say saloon, matatu, bus, taxi, truck or boda boda."
	promptScore         = "You selected %s. How many stars from one to five would you give? You can say halves, like three and a half."
	promptScoreRetry    = "Please say a score between one and five, for example four, or three and a half."
	promptComments      = "You gave %s stars. Which of these applied: %s. Say each one you want, then say done."
	promptCommentAdded  = "Added %s. Say another, or say done."
	promptCommentRetry  = "I didn't match that to a comment. The options are: %s. Say done when finished."
	promptOtherEmpty    = "Say other, followed by your comment."
	promptOtherAdded    = "Noted your comment. Say another, or say done."
	promptNeedComment   = "Please choose at least one comment before saying done."
	promptSummary       = "You are rating plate %s, with %s stars, because: %s. Say Submit to continue or Start over to restart."
	promptConfirmRetry  = "Please say Submit to continue, or Start over to restart."
	promptRestart       = "Okay, starting over. Which vehicle type would you like to rate?"
	promptSubmitted     = "Thank you. Your rating has been submitted."
	promptSubmitFailed  = "Sorry, the rating could not be submitted. Say Submit to try again, or Start over to restart."
	plateNotEntered     = "not entered"
	defaultWakePhrase   = "rating"
	optionListSeparator = "; "
)

// Rules configures the parts of intent matching that vary per deployment.
type Rules struct {
	WakePhrases []string
}

// DefaultRules returns the wake phrases the rating app ships with.
func DefaultRules() Rules {
	return Rules{WakePhrases: []string{defaultWakePhrase, "rating app", "hey rating", "my app"}}
}

// Snapshot is the complete machine state.
type Snapshot struct {
	State      State
	Draft      Draft
	Submitting bool
}

// Reduce applies one event to a snapshot. It never panics and never fails:
// anything it cannot interpret becomes a re-prompt or is ignored.
func Reduce(s Snapshot, ev Event, rules Rules) (Snapshot, []Effect) {
	s.Draft = s.Draft.Clone()
	switch e := ev.(type) {
	case Heard:
		return heard(s, e.Text, rules)
	case Submitted:
		return submitted(s, e.Err)
	case PlateEdited:
		s.Draft.PlateNumber = strings.TrimSpace(e.Plate)
		return s, []Effect{SyncForm{Draft: s.Draft.Clone()}}
	case ScoreEdited:
		if e.Score < 0 || e.Score > maxScore {
			return s, nil
		}
		s.Draft.SetScore(e.Score)
		return s, []Effect{SyncForm{Draft: s.Draft.Clone()}}
	}
	return s, nil
}

func heard(s Snapshot, text string, rules Rules) (Snapshot, []Effect) {
	norm := normalize(text)
	if norm == "" || s.Submitting {
		return s, nil
	}

	switch s.State {
	case Idle:
		if !matchWake(norm, rules.WakePhrases) {
			return s, nil
		}
		s.State = AwaitType
		return s, []Effect{NotifyWake{}, Speak{Text: promptGreeting}}

	case AwaitConfirm:
		if hasAny(norm, submitWords...) {
			s.State = Idle
			s.Submitting = true
			d := s.Draft.Clone()
			return s, []Effect{SyncForm{Draft: d}, SubmitForm{Draft: d}}
		}
		if hasAny(norm, restartWords...) {
			return restart(s)
		}
		return s, say(promptConfirmRetry)
	}

	if hasAny(norm, restartWords...) {
		return restart(s)
	}

	switch s.State {
	case AwaitType:
		vt, ok := matchVehicle(norm)
		if !ok {
			return s, say(promptTypeRetry)
		}
		s.Draft.VehicleType = vt
		s.State = AwaitScore
		return s, []Effect{SyncForm{Draft: s.Draft.Clone()}, Speak{Text: fmt.Sprintf(promptScore, VehicleName(vt))}}

	case AwaitScore:
		score, ok := ParseScore(text)
		if !ok {
			return s, say(promptScoreRetry)
		}
		s.Draft.SetScore(score)
		s.State = AwaitComment
		list := strings.Join(options.ForScore(score), optionListSeparator)
		return s, []Effect{SyncForm{Draft: s.Draft.Clone()}, Speak{Text: fmt.Sprintf(promptComments, s.Draft.ScoreText(), list)}}

	case AwaitComment:
		return comment(s, text, norm)
	}
	return s, nil
}

func comment(s Snapshot, text, norm string) (Snapshot, []Effect) {
	if hasAny(norm, doneWords...) {
		if !s.Draft.HasComments() {
			return s, say(promptNeedComment)
		}
		s.State = AwaitConfirm
		return s, say(summary(s.Draft))
	}

	if free, ok := matchOther(text); ok {
		if free == "" {
			return s, say(promptOtherEmpty)
		}
		s.Draft.FreeTextComment = free
		return s, []Effect{SyncForm{Draft: s.Draft.Clone()}, Speak{Text: promptOtherAdded}}
	}

	list := s.Draft.Options()
	idx, ok := matchOrdinal(norm, len(list))
	if !ok {
		idx, ok = matchComment(norm, list)
	}
	if !ok {
		return s, say(fmt.Sprintf(promptCommentRetry, strings.Join(list, optionListSeparator)))
	}
	picked := list[idx]
	if !s.Draft.Select(picked) {
		return s, say(fmt.Sprintf(promptCommentAdded, picked))
	}
	return s, []Effect{SyncForm{Draft: s.Draft.Clone()}, Speak{Text: fmt.Sprintf(promptCommentAdded, picked)}}
}

func submitted(s Snapshot, err error) (Snapshot, []Effect) {
	if !s.Submitting {
		return s, nil
	}
	s.Submitting = false
	if err != nil {
		s.State = AwaitConfirm
		return s, say(promptSubmitFailed)
	}
	s.State = Idle
	s.Draft = Draft{}
	return s, []Effect{SyncForm{Draft: Draft{}}, Speak{Text: promptSubmitted}}
}

func restart(s Snapshot) (Snapshot, []Effect) {
	s.State = AwaitType
	s.Draft = Draft{}
	return s, []Effect{SyncForm{Draft: Draft{}}, Speak{Text: promptRestart}}
}

func summary(d Draft) string {
	plate := d.PlateNumber
	if plate == "" {
		plate = plateNotEntered
	}
	return fmt.Sprintf(promptSummary, plate, d.ScoreText(), d.Reasons())
}

func say(text string) []Effect {
	return []Effect{Speak{Text: text}}
}

// Machine owns one conversation. It is safe for concurrent use, though the
// engine drives it from a single goroutine.
type Machine struct {
	mu    sync.RWMutex
	snap  Snapshot
	rules Rules
}

// NewMachine creates a machine in the IDLE state with an empty draft.
func NewMachine(rules Rules) *Machine {
	if len(rules.WakePhrases) == 0 {
		rules = DefaultRules()
	}
	return &Machine{rules: rules}
}

// Dispatch applies an event and returns the effects to execute, in order.
func (m *Machine) Dispatch(ev Event) []Effect {
	m.mu.Lock()
	defer m.mu.Unlock()
	next, effects := Reduce(m.snap, ev, m.rules)
	m.snap = next
	return effects
}

// Snapshot returns a copy of the current state.
func (m *Machine) Snapshot() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	s := m.snap
	s.Draft = s.Draft.Clone()
	return s
}

// State returns the current dialogue state.
func (m *Machine) State() State {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snap.State
}
