package dialogue

// State is the current step of the voice conversation.
type State int

const (
	Idle State = iota
	AwaitType
	AwaitScore
	AwaitComment
	AwaitConfirm
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case AwaitType:
		return "AWAIT_TYPE"
	case AwaitScore:
		return "AWAIT_SCORE"
	case AwaitComment:
		return "AWAIT_COMMENT"
	case AwaitConfirm:
		return "AWAIT_CONFIRM"
	default:
		return "UNKNOWN"
	}
}
