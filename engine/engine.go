// Package engine connects recognized speech to the dialogue machine and
// executes the effects it asks for, one transcript at a time.
package engine

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/EasterCompany/dex-voice-rating/dialogue"
	"github.com/EasterCompany/dex-voice-rating/form"
	logger "github.com/EasterCompany/dex-voice-rating/log"
	"github.com/EasterCompany/dex-voice-rating/metrics"
	"github.com/EasterCompany/dex-voice-rating/options"
	"github.com/EasterCompany/dex-voice-rating/session"
	"github.com/EasterCompany/dex-voice-rating/speech"
)

// MsgVoiceUnsupported is shown when recognition cannot run; the manual form
// keeps working.
const MsgVoiceUnsupported = "Voice not supported on this device."

// Form is the rating form the engine mirrors the draft into.
type Form interface {
	Apply(d dialogue.Draft)
	SetLocation(location string)
	Submit(ctx context.Context) (string, error)
}

// Session is the live voice session: it takes the wake event and relayed
// commands, and mutes recognition while the device speaks.
type Session interface {
	Session() (session.Info, bool)
	NotifyWake(ctx context.Context, id string) error
	Command(ctx context.Context, text string) error
	Pause()
	Resume()
}

// Status is a user-facing snapshot of what the engine is doing. Chips are
// the comment options offered for the current score.
type Status struct {
	State         string    `json:"state"`
	Message       string    `json:"message"`
	Voice         bool      `json:"voice"`
	Chips         []string  `json:"chips,omitempty"`
	SubmitEnabled bool      `json:"submit_enabled"`
	At            time.Time `json:"at"`
}

// Options configures an Engine.
type Options struct {
	Rules    dialogue.Rules
	OnStatus func(Status)
}

// Engine runs one conversation. Transcripts and manual edits are serialized:
// every effect of one event finishes before the next event is dispatched.
type Engine struct {
	machine  *dialogue.Machine
	speaker  speech.Synthesizer
	form     Form
	sess     Session
	onStatus func(Status)

	mu           sync.Mutex
	voice        bool
	confirmation string
}

// New returns an engine with voice enabled. sess may be nil when there is
// no backend session.
func New(speaker speech.Synthesizer, f Form, sess Session, opts Options) *Engine {
	if opts.OnStatus == nil {
		opts.OnStatus = func(Status) {}
	}
	return &Engine{
		machine:  dialogue.NewMachine(opts.Rules),
		speaker:  speaker,
		form:     f,
		sess:     sess,
		onStatus: opts.OnStatus,
		voice:    true,
	}
}

// Run feeds transcripts to the machine until ctx is done or the channel
// closes.
func (e *Engine) Run(ctx context.Context, transcripts <-chan speech.Transcript) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case t, ok := <-transcripts:
			if !ok {
				return nil
			}
			metrics.RecordTranscript()
			e.Hear(ctx, t.Text)
		}
	}
}

// Hear handles one transcript.
func (e *Engine) Hear(ctx context.Context, text string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if !e.voice {
		return
	}
	if e.sess != nil && e.machine.State() != dialogue.Idle {
		if err := e.sess.Command(ctx, text); err != nil {
			logger.Error("Could not relay command", err)
		}
	}
	e.dispatch(ctx, dialogue.Heard{Text: text})
}

// SetPlate records a manually typed plate, normalized to plate form.
func (e *Engine) SetPlate(ctx context.Context, raw string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dispatch(ctx, dialogue.PlateEdited{Plate: form.NormalizePlate(raw)})
}

// SetScore records a manual change of the star widget.
func (e *Engine) SetScore(ctx context.Context, score float64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.dispatch(ctx, dialogue.ScoreEdited{Score: score})
}

// SetLocation fills the location field from an external provider.
func (e *Engine) SetLocation(location string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.form.SetLocation(location)
}

// DisableVoice stops transcript handling after err; the form stays usable
// through the manual setters.
func (e *Engine) DisableVoice(err error) {
	logger.Error("Voice disabled", err)
	e.mu.Lock()
	defer e.mu.Unlock()
	e.voice = false
	e.report(MsgVoiceUnsupported)
}

// Report publishes a status message from outside the dialogue.
func (e *Engine) Report(msg string) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.report(msg)
}

// Snapshot returns the current dialogue state and draft.
func (e *Engine) Snapshot() dialogue.Snapshot {
	return e.machine.Snapshot()
}

// Confirmation is the URL of the last successful submission.
func (e *Engine) Confirmation() string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.confirmation
}

func (e *Engine) dispatch(ctx context.Context, ev dialogue.Event) {
	from := e.machine.State()
	effects := e.machine.Dispatch(ev)
	to := e.machine.State()
	metrics.RecordTransition(from.String(), to.String())
	if from != to || syncsForm(effects) {
		e.report("")
	}
	e.execute(ctx, effects)
}

func syncsForm(effects []dialogue.Effect) bool {
	for _, eff := range effects {
		if _, ok := eff.(dialogue.SyncForm); ok {
			return true
		}
	}
	return false
}

func (e *Engine) execute(ctx context.Context, effects []dialogue.Effect) {
	for _, eff := range effects {
		switch eff := eff.(type) {
		case dialogue.Speak:
			metrics.RecordEffect("speak")
			e.speak(ctx, eff.Text)
		case dialogue.SyncForm:
			metrics.RecordEffect("sync_form")
			e.form.Apply(eff.Draft)
		case dialogue.SubmitForm:
			metrics.RecordEffect("submit_form")
			e.form.Apply(eff.Draft)
			url, err := e.form.Submit(ctx)
			metrics.RecordSubmission(err)
			if err != nil {
				logger.Error("Rating submission failed", err)
				e.report(fmt.Sprintf("Submission failed: %v", err))
			} else {
				e.confirmation = url
				e.report("Submitted: " + url)
			}
			e.dispatch(ctx, dialogue.Submitted{Err: err})
		case dialogue.NotifyWake:
			metrics.RecordEffect("notify_wake")
			e.notifyWake(ctx)
		}
	}
}

// speak mutes recognition for the length of the prompt.
func (e *Engine) speak(ctx context.Context, text string) {
	if e.sess != nil {
		e.sess.Pause()
		defer e.sess.Resume()
	}
	if err := e.speaker.Speak(ctx, text); err != nil {
		logger.Error("Could not speak prompt", err)
	}
}

func (e *Engine) notifyWake(ctx context.Context) {
	if e.sess == nil {
		return
	}
	info, ok := e.sess.Session()
	if !ok {
		return
	}
	if err := e.sess.NotifyWake(ctx, info.ID); err != nil {
		logger.Error("Wake notification failed", err)
	}
}

func (e *Engine) report(msg string) {
	snap := e.machine.Snapshot()
	var chips []string
	if snap.Draft.HasScore() {
		chips = options.Chips(snap.Draft.Score)
	}
	e.onStatus(Status{
		State:         snap.State.String(),
		Message:       msg,
		Voice:         e.voice,
		Chips:         chips,
		SubmitEnabled: form.Enabled(snap.Draft),
		At:            time.Now(),
	})
}
