package voice

// State is the lifecycle stage of a capture session and the turn derived
// from it. Transitions run strictly forward; Completed and Failed are
// terminal.
type State int

const (
	StateCapturing State = iota
	StateConverting
	StateTranscribing
	StateResponding
	StateSynthesizing
	StatePlaying
	StateCompleted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateCapturing:
		return "capturing"
	case StateConverting:
		return "converting"
	case StateTranscribing:
		return "transcribing"
	case StateResponding:
		return "responding"
	case StateSynthesizing:
		return "synthesizing"
	case StatePlaying:
		return "playing"
	case StateCompleted:
		return "completed"
	case StateFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether the state is Completed or Failed.
func (s State) Terminal() bool { return s == StateCompleted || s == StateFailed }
