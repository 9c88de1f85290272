// Package targetstate implements the shared FLAT/ARMED/HOLDING/EXITING/
// COOLDOWN state space used by both strategy modes (§4.5).
package targetstate

// State is one of the five states of the Train-of-Trade / Spike-fade cycle.
type State string

const (
	StateFlat     State = "FLAT"
	StateArmed    State = "ARMED"
	StateHolding  State = "HOLDING"
	StateExiting  State = "EXITING"
	StateCooldown State = "COOLDOWN"
)

// Machine is a tiny, single-writer state holder. It does not itself decide
// transitions; the Strategy drives it and records the reason for logging.
type Machine struct {
	state State
}

func New() *Machine {
	return &Machine{state: StateFlat}
}

func (m *Machine) State() State { return m.state }

// Transition moves to next, returning the prior state.
func (m *Machine) Transition(next State) State {
	prev := m.state
	m.state = next
	return prev
}

func (m *Machine) Is(s State) bool { return m.state == s }
