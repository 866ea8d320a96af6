package workflow

// NewRequestMachine returns a state machine for the service request lifecycle
// positioned at the given state.
//
//	new -> registered -> classified -> request_fulfilled
//	new|registered|classified -> aborted, any state except closed -> closed
//
// Re-firing the trigger of the current state is allowed; the caller records the
// repeat in history and leaves milestones untouched.
func NewRequestMachine(initial State) StateMachine {
	return requestBuilder().Build(initial)
}

func requestBuilder() StateMachineBuilder {
	b := NewBuilder()

	b.Configure(StateNew).
		Permit(TriggerRegister, StateRegistered).
		Permit(TriggerAbort, StateAborted).
		Permit(TriggerClose, StateClosed)

	b.Configure(StateRegistered).
		PermitReentry(TriggerRegister).
		Permit(TriggerClassify, StateClassified).
		Permit(TriggerAbort, StateAborted).
		Permit(TriggerClose, StateClosed)

	b.Configure(StateClassified).
		PermitReentry(TriggerClassify).
		Permit(TriggerFulfill, StateRequestFulfilled).
		Permit(TriggerAbort, StateAborted).
		Permit(TriggerClose, StateClosed)

	b.Configure(StateRequestFulfilled).
		PermitReentry(TriggerFulfill).
		Permit(TriggerClose, StateClosed)

	b.Configure(StateAborted).
		PermitReentry(TriggerAbort).
		Permit(TriggerClose, StateClosed)

	// closed is terminal

	return b
}

// CanTransition reports whether a request in state from may move to state to
func CanTransition(from, to State) bool {
	if !from.IsValid() || !to.IsValid() {
		return false
	}
	trigger, err := TriggerFor(to)
	if err != nil {
		return false
	}
	m := NewRequestMachine(from)
	if !m.CanFire(trigger) {
		return false
	}
	target, ok := m.Target(trigger)
	return ok && target == to
}
