package event

// Type identifies the type of domain event. Values double as the notification
// message type pushed to dashboards.
type Type string

const (
	TypeRequestCreated    Type = "request_created"
	TypeRequestRegistered Type = "request_registered"
	TypeRequestClassified Type = "request_classified"
	TypeRequestHandled    Type = "request_handled"
	TypeRequestClosed     Type = "request_closed"
	TypeRequestAborted    Type = "request_aborted"
	TypeRequestUpdated    Type = "request_updated"
)

// All lists every request event type in lifecycle order
var All = []Type{
	TypeRequestCreated,
	TypeRequestRegistered,
	TypeRequestClassified,
	TypeRequestHandled,
	TypeRequestClosed,
	TypeRequestAborted,
	TypeRequestUpdated,
}

// String returns the string representation of the event type
func (t Type) String() string {
	return string(t)
}

// IsValid checks if the event type is one of the defined constants
func (t Type) IsValid() bool {
	for _, v := range All {
		if v == t {
			return true
		}
	}
	return false
}
