package port

import (
	"context"
	"time"

	"github.com/aibymlMelissa/aibyml-business/internal/domain/entity"
)

// RequestRepository defines persistence operations for ServiceRequest
type RequestRepository interface {
	// Create inserts a request. ID, timestamps and status must already be set.
	Create(ctx context.Context, req *entity.ServiceRequest) error

	// GetByID returns nil, nil when the request does not exist
	GetByID(ctx context.Context, id string) (*entity.ServiceRequest, error)

	// List returns requests matching filter, newest first
	List(ctx context.Context, filter entity.RequestFilter) ([]*entity.ServiceRequest, error)

	// Update applies a field patch and sets updated_at to at; it never touches status.
	// Returns nil, nil when the request does not exist.
	Update(ctx context.Context, id string, patch entity.UpdateServiceRequestInput, at time.Time) (*entity.ServiceRequest, error)

	// ApplyClassification records the AI classification outcome on the request
	ApplyClassification(ctx context.Context, id string, patch entity.ClassificationPatch, at time.Time) error

	// SetHandlingEngine records which engine produced the handling recommendation
	SetHandlingEngine(ctx context.Context, id string, engineName string, at time.Time) error

	// UpdateStatus sets status and updated_at, and stamps the status milestone
	// column only if it is still empty.
	UpdateStatus(ctx context.Context, id string, status entity.Status, at time.Time) error
}

// HistoryRepository defines persistence operations for WorkflowHistory
type HistoryRepository interface {
	Create(ctx context.Context, history *entity.WorkflowHistory) error
	// GetByRequestID returns entries oldest first
	GetByRequestID(ctx context.Context, requestID string) ([]*entity.WorkflowHistory, error)
}

// AILogRepository defines persistence operations for AIProcessingLog
type AILogRepository interface {
	Create(ctx context.Context, log *entity.AIProcessingLog) error
	// GetByRequestID returns entries oldest first
	GetByRequestID(ctx context.Context, requestID string) ([]*entity.AIProcessingLog, error)
}

// TransactionManager handles database transactions
type TransactionManager interface {
	WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}
