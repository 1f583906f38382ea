package executor

// State of the executor. Only one cycle runs at a time.
type State int32

const (
	Idle State = iota
	Submitting
	AwaitingConfirmation
	Claiming
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Submitting:
		return "submitting"
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	case Claiming:
		return "claiming"
	default:
		return "unknown"
	}
}
