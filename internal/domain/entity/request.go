package entity

import "time"

// ServiceRequest is a customer service request moving through the intake workflow
type ServiceRequest struct {
	ID          string    `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Status      Status    `json:"status"`
	Priority    Priority  `json:"priority"`
	Category    *Category `json:"category,omitempty"`

	CustomerName  string `json:"customerName,omitempty"`
	CustomerEmail string `json:"customerEmail,omitempty"`
	CustomerPhone string `json:"customerPhone,omitempty"`

	// AI provenance
	ClassificationConfidence *float64 `json:"classificationConfidence,omitempty"`
	ClassificationNotes      string   `json:"classificationNotes,omitempty"`
	AIClassificationEngine   string   `json:"aiClassificationEngine,omitempty"`
	AIHandlingEngine         string   `json:"aiHandlingEngine,omitempty"`

	AssignedTo string `json:"assignedTo,omitempty"`
	Department string `json:"department,omitempty"`

	CreatedAt    time.Time  `json:"createdAt"`
	UpdatedAt    time.Time  `json:"updatedAt"`
	RegisteredAt *time.Time `json:"registeredAt,omitempty"`
	ClassifiedAt *time.Time `json:"classifiedAt,omitempty"`
	FulfilledAt  *time.Time `json:"fulfilledAt,omitempty"`
	ClosedAt     *time.Time `json:"closedAt,omitempty"`
}

// Clone returns a copy that shares no pointers with r
func (r *ServiceRequest) Clone() *ServiceRequest {
	if r == nil {
		return nil
	}
	cp := *r
	if r.Category != nil {
		c := *r.Category
		cp.Category = &c
	}
	if r.ClassificationConfidence != nil {
		v := *r.ClassificationConfidence
		cp.ClassificationConfidence = &v
	}
	cp.RegisteredAt = copyTime(r.RegisteredAt)
	cp.ClassifiedAt = copyTime(r.ClassifiedAt)
	cp.FulfilledAt = copyTime(r.FulfilledAt)
	cp.ClosedAt = copyTime(r.ClosedAt)
	return &cp
}

// MilestoneColumn returns the timestamp column stamped when a request first
// enters status, or "" when the status has no milestone.
func MilestoneColumn(status Status) string {
	switch status {
	case StatusRegistered:
		return "registered_at"
	case StatusClassified:
		return "classified_at"
	case StatusRequestFulfilled:
		return "fulfilled_at"
	case StatusClosed:
		return "closed_at"
	default:
		return ""
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}

// CreateServiceRequestInput is the payload accepted when a request is submitted
type CreateServiceRequestInput struct {
	Title         string   `json:"title" validate:"required,max=255"`
	Description   string   `json:"description" validate:"required"`
	Priority      Priority `json:"priority,omitempty" validate:"omitempty,oneof=low medium high critical"`
	CustomerName  string   `json:"customerName,omitempty"`
	CustomerEmail string   `json:"customerEmail,omitempty" validate:"omitempty,email"`
	CustomerPhone string   `json:"customerPhone,omitempty"`
}

// UpdateServiceRequestInput is a partial update; nil fields are left unchanged
type UpdateServiceRequestInput struct {
	Title       *string   `json:"title,omitempty" validate:"omitempty,min=1,max=255"`
	Description *string   `json:"description,omitempty" validate:"omitempty,min=1"`
	Priority    *Priority `json:"priority,omitempty" validate:"omitempty,oneof=low medium high critical"`
	Category    *Category `json:"category,omitempty" validate:"omitempty,oneof=technical_support account_management billing general_inquiry complaint feature_request"`
	AssignedTo  *string   `json:"assignedTo,omitempty"`
	Department  *string   `json:"department,omitempty"`
}

// IsEmpty reports whether the update carries no fields
func (u UpdateServiceRequestInput) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Priority == nil &&
		u.Category == nil && u.AssignedTo == nil && u.Department == nil
}

// ClassificationPatch carries the fields written after AI classification
type ClassificationPatch struct {
	Category   Category
	Priority   Priority
	Department string
	Confidence float64
	Notes      string
	EngineName string
}

// RequestFilter narrows request listings; empty fields match everything
type RequestFilter struct {
	Status     Status `form:"status"`
	AssignedTo string `form:"assignedTo"`
	// UpdatedBefore limits results to requests not touched since the given time
	UpdatedBefore *time.Time `form:"-"`
}
