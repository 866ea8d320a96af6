package workflow

// State is a service request status as seen by the workflow state machine
type State string

const (
	StateNew              State = "new"
	StateRegistered       State = "registered"
	StateClassified       State = "classified"
	StateRequestFulfilled State = "request_fulfilled"
	StateAborted          State = "aborted"
	StateClosed           State = "closed"
)

var validStates = map[State]bool{
	StateNew:              true,
	StateRegistered:       true,
	StateClassified:       true,
	StateRequestFulfilled: true,
	StateAborted:          true,
	StateClosed:           true,
}

var terminalStates = map[State]bool{
	StateClosed: true,
}

// IsTerminal returns true if no further transitions are allowed from the state
func (s State) IsTerminal() bool {
	return terminalStates[s]
}

// IsInFlight reports whether the automatic pipeline may still move the request
func (s State) IsInFlight() bool {
	return s == StateNew || s == StateRegistered || s == StateClassified
}

// String returns the string representation of the state
func (s State) String() string {
	return string(s)
}

// IsValid returns true if the state is a valid workflow state
func (s State) IsValid() bool {
	return validStates[s]
}
