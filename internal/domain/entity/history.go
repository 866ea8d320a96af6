package entity

import "time"

// WorkflowHistory is one append-only entry in a request's audit trail
type WorkflowHistory struct {
	ID           int64     `json:"id"`
	RequestID    string    `json:"requestId"`
	FromStatus   *Status   `json:"fromStatus,omitempty"`
	ToStatus     Status    `json:"toStatus"`
	ChangedBy    string    `json:"changedBy,omitempty"`
	ChangeReason string    `json:"changeReason,omitempty"`
	AIConfidence *float64  `json:"aiConfidence,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}
