package dialogue

// Event is an input to the state machine.
type Event interface{ event() }

// Heard carries the text of one recognized utterance.
type Heard struct {
	Text string
}

// Submitted reports the outcome of a form submission requested by a
// SubmitForm effect.
type Submitted struct {
	Err error
}

// PlateEdited is a manual edit of the plate field.
type PlateEdited struct {
	Plate string
}

// ScoreEdited is a manual change of the star widget.
type ScoreEdited struct {
	Score float64
}

func (Heard) event()       {}
func (Submitted) event()   {}
func (PlateEdited) event() {}
func (ScoreEdited) event() {}

// Effect is an action the engine must perform after a transition.
type Effect interface{ effect() }

// Speak asks for an utterance. The engine waits for playback to finish
// before executing the next effect.
type Speak struct {
	Text string
}

// SyncForm mirrors the draft into the form fields.
type SyncForm struct {
	Draft Draft
}

// SubmitForm asks for a native form submission of the draft. The engine
// must answer with a Submitted event before dispatching anything else.
type SubmitForm struct {
	Draft Draft
}

// NotifyWake tells the session backend the wake phrase was heard.
type NotifyWake struct{}

func (Speak) effect()      {}
func (SyncForm) effect()   {}
func (SubmitForm) effect() {}
func (NotifyWake) effect() {}
