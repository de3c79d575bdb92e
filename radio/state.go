package radio

import "fmt"

// State is one of the four states the radio occupies, per spec.md §4.5.
type State uint8

const (
	StateDisabled State = iota
	StateSleep
	StateReceive
	StateTransmit
)

func (s State) String() string {
	switch s {
	case StateDisabled:
		return "disabled"
	case StateSleep:
		return "sleep"
	case StateReceive:
		return "receive"
	case StateTransmit:
		return "transmit"
	default:
		return "unknown"
	}
}

// ErrBusyTransition is returned for any transition the methods below do not
// permit; it wraps ErrBusy so callers comparing against the Radio's public
// status vocabulary see the expected "busy" outcome.
var ErrBusyTransition = fmt.Errorf("radio: transition not permitted from current state: %w", ErrBusy)

// stateMachine tracks the radio's current state. Per spec.md §5, it is read
// by the worker thread only under the barrier; the main thread otherwise
// owns it. No internal locking: callers are responsible for serializing
// access the way the barrier already serializes stack code execution.
type stateMachine struct {
	current State
}

func newStateMachine() *stateMachine {
	return &stateMachine{current: StateDisabled}
}

func (m *stateMachine) get() State {
	return m.current
}

// enable performs Disabled -> Sleep.
func (m *stateMachine) enable() error {
	if m.current != StateDisabled {
		return ErrBusyTransition
	}
	m.current = StateSleep
	return nil
}

// disable performs {Sleep,Receive} -> Disabled. Per the "any live
// state -> Sleep/Disabled, only if idle" rule, Transmit is not idle and
// rejects.
func (m *stateMachine) disable() error {
	switch m.current {
	case StateSleep, StateReceive:
		m.current = StateDisabled
		return nil
	default:
		return ErrBusyTransition
	}
}

// sleep performs {Receive} -> Sleep (the idle-only collapse from any live
// state). Already-Sleep is accepted as a no-op for idempotence; Transmit and
// Disabled are rejected.
func (m *stateMachine) sleep() error {
	switch m.current {
	case StateSleep:
		return nil
	case StateReceive:
		m.current = StateSleep
		return nil
	default:
		return ErrBusyTransition
	}
}

// receive performs Sleep -> Receive, or Receive -> Receive on a channel
// change (the caller supplies the new channel separately; this machine only
// tracks state, not the channel number).
func (m *stateMachine) receive() error {
	switch m.current {
	case StateSleep, StateReceive:
		m.current = StateReceive
		return nil
	default:
		return ErrBusyTransition
	}
}

// transmit performs Receive -> Transmit.
func (m *stateMachine) transmit() error {
	if m.current != StateReceive {
		return ErrBusyTransition
	}
	m.current = StateTransmit
	return nil
}

// transmitDone performs Transmit -> Receive, the only way out of Transmit.
func (m *stateMachine) transmitDone() error {
	if m.current != StateTransmit {
		return ErrBusyTransition
	}
	m.current = StateReceive
	return nil
}
