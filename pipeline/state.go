package pipeline

type State int

const (
	Idle State = iota
	Recording
	Encoding
	Transcribing
	ShuttingDown
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Recording:
		return "recording"
	case Encoding:
		return "encoding"
	case Transcribing:
		return "transcribing"
	case ShuttingDown:
		return "shutting down"
	case Terminated:
		return "terminated"
	}
	return "unknown"
}
