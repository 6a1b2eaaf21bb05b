package diag

import (
	"github.com/wippyai/fsm-trace/errors"
)

// State is a step of the extraction state machine.
type State int

const (
	StateStarted State = iota
	StateLocated
	StateDecoded
	StateEncoded
	StateDone
	StateFailed
)

var stateNames = [...]string{
	StateStarted: "started",
	StateLocated: "located",
	StateDecoded: "decoded",
	StateEncoded: "encoded",
	StateDone:    "done",
	StateFailed:  "failed",
}

func (s State) String() string {
	if s < 0 || int(s) >= len(stateNames) {
		return "unknown"
	}
	return stateNames[s]
}

// next holds the single forward transition from each non-terminal state.
var next = map[State]State{
	StateStarted: StateLocated,
	StateLocated: StateDecoded,
	StateDecoded: StateEncoded,
	StateEncoded: StateDone,
}

// Run tracks one extraction: Started -> Located -> Decoded -> Encoded -> Done,
// or Failed from Started, Located or Decoded.
type Run struct {
	failure errors.Kind
	history []State
	state   State
}

// NewRun returns a run in StateStarted.
func NewRun() *Run {
	return &Run{state: StateStarted, history: []State{StateStarted}}
}

// State returns the current state.
func (r *Run) State() State {
	return r.state
}

// History returns every state the run has been in, oldest first.
func (r *Run) History() []State {
	out := make([]State, len(r.history))
	copy(out, r.history)
	return out
}

// Advance moves the run to the next state.
func (r *Run) Advance(to State) error {
	if want, ok := next[r.state]; !ok || want != to {
		return errors.InvalidState(r.state.String(), to.String())
	}
	r.state = to
	r.history = append(r.history, to)
	return nil
}

// Fail moves the run to StateFailed with the given error kind.
func (r *Run) Fail(kind errors.Kind) error {
	switch r.state {
	case StateStarted, StateLocated, StateDecoded:
	default:
		return errors.InvalidState(r.state.String(), StateFailed.String())
	}
	r.state = StateFailed
	r.failure = kind
	r.history = append(r.history, StateFailed)
	return nil
}

// Failure returns the kind the run failed with, or "" if it has not failed.
func (r *Run) Failure() errors.Kind {
	return r.failure
}

// Done reports whether the run completed and may hand out its stream.
func (r *Run) Done() bool {
	return r.state == StateDone
}
