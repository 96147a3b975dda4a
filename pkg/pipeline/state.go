package pipeline

// State is the position of a run in the pipeline.
type State int

const (
	StateIdle State = iota
	StateNormalizing
	StateTranscribing
	StateFiltering
	StateAssembling
	StateDone
	StateFailed
)

var stateNames = map[State]string{
	StateIdle:         "idle",
	StateNormalizing:  "normalizing",
	StateTranscribing: "transcribing",
	StateFiltering:    "filtering",
	StateAssembling:   "assembling",
	StateDone:         "done",
	StateFailed:       "failed",
}

func (s State) String() string {
	if name, ok := stateNames[s]; ok {
		return name
	}
	return "unknown"
}

// Terminal reports whether no further transition can follow.
func (s State) Terminal() bool {
	return s == StateDone || s == StateFailed
}

// Status is the short line shown to a user watching the run.
func (s State) Status() string {
	switch s {
	case StateIdle:
		return "waiting"
	case StateDone:
		return "done, transcript saved"
	case StateFailed:
		return "transcription failed"
	default:
		return "transcription in progress..."
	}
}
