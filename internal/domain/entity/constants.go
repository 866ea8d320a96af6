package entity

// Status is the lifecycle status of a service request
type Status string

// Status constants for ServiceRequest
const (
	StatusNew              Status = "new"
	StatusRegistered       Status = "registered"
	StatusClassified       Status = "classified"
	StatusRequestFulfilled Status = "request_fulfilled"
	StatusAborted          Status = "aborted"
	StatusClosed           Status = "closed"
)

// Statuses lists every status in lifecycle order
var Statuses = []Status{
	StatusNew, StatusRegistered, StatusClassified, StatusRequestFulfilled, StatusAborted, StatusClosed,
}

// IsValid reports whether s is a known status
func (s Status) IsValid() bool {
	for _, v := range Statuses {
		if v == s {
			return true
		}
	}
	return false
}

// Priority of a service request
type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityMedium   Priority = "medium"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Priorities lists every priority from lowest to highest
var Priorities = []Priority{PriorityLow, PriorityMedium, PriorityHigh, PriorityCritical}

// IsValid reports whether p is a known priority
func (p Priority) IsValid() bool {
	for _, v := range Priorities {
		if v == p {
			return true
		}
	}
	return false
}

// Category of a service request
type Category string

const (
	CategoryTechnicalSupport  Category = "technical_support"
	CategoryAccountManagement Category = "account_management"
	CategoryBilling           Category = "billing"
	CategoryGeneralInquiry    Category = "general_inquiry"
	CategoryComplaint         Category = "complaint"
	CategoryFeatureRequest    Category = "feature_request"
)

// Categories lists every category
var Categories = []Category{
	CategoryTechnicalSupport,
	CategoryAccountManagement,
	CategoryBilling,
	CategoryGeneralInquiry,
	CategoryComplaint,
	CategoryFeatureRequest,
}

// IsValid reports whether c is a known category
func (c Category) IsValid() bool {
	for _, v := range Categories {
		if v == c {
			return true
		}
	}
	return false
}

// EngineType is the role an AI engine plays
type EngineType string

const (
	EngineTypeClassification EngineType = "classification"
	EngineTypeHandling       EngineType = "handling"
)

// Actors recorded in workflow history
const (
	ActorSystem   = "system"
	ActorAISystem = "ai_system"
)
