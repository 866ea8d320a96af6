package workflow

import (
	"context"

	"github.com/aibymlMelissa/aibyml-business/internal/domain/entity"
)

// WorkflowEngine drives service requests through the intake pipeline
type WorkflowEngine interface {
	// CreateServiceRequest validates and stores a new request, then starts
	// its background pipeline. It returns as soon as the row is inserted.
	CreateServiceRequest(ctx context.Context, input entity.CreateServiceRequestInput) (*entity.ServiceRequest, error)

	RegisterRequest(ctx context.Context, id string) (*entity.ServiceRequest, error)

	// ClassifyRequest asks the classification engine for category and
	// priority and records them along with the transition to classified
	ClassifyRequest(ctx context.Context, id string) (*entity.ServiceRequest, error)

	// HandleRequest asks the handling engine for a recommendation. The request
	// ends up aborted when a human has to step in, request_fulfilled otherwise.
	HandleRequest(ctx context.Context, id string) (*entity.ServiceRequest, error)

	CloseRequest(ctx context.Context, id string, closedBy string) (*entity.ServiceRequest, error)
	AbortRequest(ctx context.Context, id string, reason string) (*entity.ServiceRequest, error)

	// UpdateRequest patches descriptive fields; status is never touched.
	// Returns nil, nil when the request does not exist.
	UpdateRequest(ctx context.Context, id string, patch entity.UpdateServiceRequestInput) (*entity.ServiceRequest, error)

	GetAllRequests(ctx context.Context, filter entity.RequestFilter) ([]*entity.ServiceRequest, error)

	// GetRequestByID returns nil, nil when the request does not exist
	GetRequestByID(ctx context.Context, id string) (*entity.ServiceRequest, error)

	GetRequestHistory(ctx context.Context, id string) ([]*entity.WorkflowHistory, error)
	GetAIProcessingHistory(ctx context.Context, id string) ([]*entity.AIProcessingLog, error)

	// Advance is the only way a request's status changes
	Advance(ctx context.Context, id string, target entity.Status, actor, reason string) (*entity.ServiceRequest, error)

	// PipelineActive reports whether a background pipeline is running for id
	PipelineActive(id string) bool
}

// Orchestrator is the slice of the AI orchestrator the engine depends on
type Orchestrator interface {
	Classify(ctx context.Context, req *entity.ServiceRequest) (*entity.ClassificationResult, error)
	Handle(ctx context.Context, req *entity.ServiceRequest) (*entity.HandlingResult, error)
	ClassifierName() string
	HandlerName() string
}

// Logger interface for minimal logging dependency
type Logger interface {
	Info(msg string, keysAndValues ...interface{})
	Error(msg string, keysAndValues ...interface{})
}

type nopLogger struct{}

func (nopLogger) Info(string, ...interface{})  {}
func (nopLogger) Error(string, ...interface{}) {}
