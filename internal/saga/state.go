package saga

// State is the orchestrator's position in the transfer saga.
type State int8

const (
	StateChecking State = iota
	StateDebiting
	StateDone
	StateCompensating
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateChecking:
		return "CHECKING"
	case StateDebiting:
		return "DEBITING"
	case StateDone:
		return "DONE"
	case StateCompensating:
		return "COMPENSATING"
	case StateFailed:
		return "FAILED"
	default:
		return "UNKNOWN"
	}
}

// Event is what happened to the step running in the current state.
type Event int8

const (
	// EventStepSucceeded: the current step committed.
	EventStepSucceeded Event = iota
	// EventStepFailed: the current step failed terminally, or its retry
	// budget is exhausted.
	EventStepFailed
	// EventTimedOut: the whole-saga deadline expired.
	EventTimedOut
)

// Effect is the action the orchestrator must take after a transition.
type Effect int8

const (
	EffectNone Effect = iota
	EffectRunDebit
	EffectComplete
	EffectCompensate
)

// Next is the pure transition function. The timeout event routes every
// non-terminal state to compensation; terminal states absorb all events.
func Next(s State, ev Event) (State, Effect) {
	if s == StateDone || s == StateFailed {
		return s, EffectNone
	}
	if ev == EventTimedOut {
		return StateCompensating, EffectCompensate
	}
	switch s {
	case StateChecking:
		if ev == EventStepSucceeded {
			return StateDebiting, EffectRunDebit
		}
		return StateCompensating, EffectCompensate
	case StateDebiting:
		if ev == EventStepSucceeded {
			return StateDone, EffectComplete
		}
		return StateCompensating, EffectCompensate
	case StateCompensating:
		// compensation always falls through to FAILED
		return StateFailed, EffectNone
	}
	return s, EffectNone
}
