package workflow

import "fmt"

// Trigger represents an event that can cause a state transition
type Trigger string

const (
	TriggerRegister Trigger = "REGISTER"
	TriggerClassify Trigger = "CLASSIFY"
	TriggerFulfill  Trigger = "FULFILL"
	TriggerAbort    Trigger = "ABORT"
	TriggerClose    Trigger = "CLOSE"
)

// String returns the string representation of the trigger
func (t Trigger) String() string {
	return string(t)
}

// TriggerFor returns the trigger that moves a request into the target state
func TriggerFor(target State) (Trigger, error) {
	switch target {
	case StateRegistered:
		return TriggerRegister, nil
	case StateClassified:
		return TriggerClassify, nil
	case StateRequestFulfilled:
		return TriggerFulfill, nil
	case StateAborted:
		return TriggerAbort, nil
	case StateClosed:
		return TriggerClose, nil
	default:
		return "", fmt.Errorf("%w: no trigger leads to %s", ErrInvalidState, target)
	}
}
