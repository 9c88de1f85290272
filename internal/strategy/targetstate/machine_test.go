package targetstate

import "testing"

func TestMachine_StartsFlat(t *testing.T) {
	m := New()
	if m.State() != StateFlat {
		t.Fatalf("got=%s want=FLAT", m.State())
	}
	if !m.Is(StateFlat) {
		t.Fatal("expected Is(StateFlat) true")
	}
}

func TestMachine_TransitionReturnsPriorState(t *testing.T) {
	m := New()
	prev := m.Transition(StateArmed)
	if prev != StateFlat {
		t.Fatalf("got prev=%s want=FLAT", prev)
	}
	if m.State() != StateArmed {
		t.Fatalf("got=%s want=ARMED", m.State())
	}
}

func TestMachine_FullCycle(t *testing.T) {
	m := New()
	seq := []State{StateArmed, StateHolding, StateExiting, StateCooldown, StateFlat}
	for _, s := range seq {
		m.Transition(s)
		if !m.Is(s) {
			t.Fatalf("expected state=%s after transition", s)
		}
	}
}
