package workflow

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aibymlMelissa/aibyml-business/internal/application/dispatcher"
	"github.com/aibymlMelissa/aibyml-business/internal/application/port"
	"github.com/aibymlMelissa/aibyml-business/internal/domain/entity"
	"github.com/aibymlMelissa/aibyml-business/internal/domain/event"
	domainwf "github.com/aibymlMelissa/aibyml-business/internal/domain/workflow"
	"github.com/aibymlMelissa/aibyml-business/pkg/utils"
	"github.com/google/uuid"
)

const (
	defaultRegisterDelay = time.Second
	defaultClassifyDelay = 500 * time.Millisecond
)

// engineImpl is the concrete implementation of WorkflowEngine
type engineImpl struct {
	requests     port.RequestRepository
	history      port.HistoryRepository
	aiLogs       port.AILogRepository
	txManager    port.TransactionManager
	orchestrator Orchestrator
	dispatcher   dispatcher.Dispatcher
	pipeline     *PipelineRunner
	logger       Logger

	locks         *KeyedMutex
	registerDelay time.Duration
	classifyDelay time.Duration
	now           func() time.Time
}

// EngineOption configures the workflow engine
type EngineOption func(*engineImpl)

// WithDispatcher sets the event dispatcher for emitting events
func WithDispatcher(d dispatcher.Dispatcher) EngineOption {
	return func(e *engineImpl) {
		e.dispatcher = d
	}
}

// WithPipelineRunner sets the runner used for background pipelines
func WithPipelineRunner(r *PipelineRunner) EngineOption {
	return func(e *engineImpl) {
		e.pipeline = r
	}
}

// WithLogger sets the engine logger
func WithLogger(l Logger) EngineOption {
	return func(e *engineImpl) {
		if l != nil {
			e.logger = l
		}
	}
}

// WithStageDelays sets the pauses between pipeline stages
func WithStageDelays(register, classify time.Duration) EngineOption {
	return func(e *engineImpl) {
		e.registerDelay = register
		e.classifyDelay = classify
	}
}

// WithClock overrides the time source for timestamps
func WithClock(now func() time.Time) EngineOption {
	return func(e *engineImpl) {
		e.now = now
	}
}

// NewEngine creates a new workflow engine
func NewEngine(
	requests port.RequestRepository,
	history port.HistoryRepository,
	aiLogs port.AILogRepository,
	txManager port.TransactionManager,
	orchestrator Orchestrator,
	opts ...EngineOption,
) WorkflowEngine {
	e := &engineImpl{
		requests:      requests,
		history:       history,
		aiLogs:        aiLogs,
		txManager:     txManager,
		orchestrator:  orchestrator,
		logger:        nopLogger{},
		locks:         NewKeyedMutex(),
		registerDelay: defaultRegisterDelay,
		classifyDelay: defaultClassifyDelay,
		now:           time.Now,
	}

	for _, opt := range opts {
		opt(e)
	}

	if e.pipeline == nil {
		e.pipeline = NewPipelineRunner(e.logger)
	}

	return e
}

// transition describes one status change performed by advance
type transition struct {
	target entity.Status
	actor  string
	reason string
	// apply runs inside the transaction before the status is written, with
	// the timestamp the transition is stamped with
	apply func(ctx context.Context, current *entity.ServiceRequest, at time.Time) error
	// event builds the notification; nil means the default for target
	event func(updated *entity.ServiceRequest) *event.Event
}

// CreateServiceRequest validates and stores a new request and launches its pipeline
func (e *engineImpl) CreateServiceRequest(ctx context.Context, input entity.CreateServiceRequestInput) (*entity.ServiceRequest, error) {
	input.Title = utils.SanitizeString(input.Title)
	input.Description = utils.SanitizeString(input.Description)
	input.CustomerName = utils.SanitizeString(input.CustomerName)
	input.CustomerEmail = utils.SanitizeString(input.CustomerEmail)
	input.CustomerPhone = utils.SanitizeString(input.CustomerPhone)

	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	priority := input.Priority
	if priority == "" {
		priority = entity.PriorityMedium
	}

	now := e.now().UTC()
	req := &entity.ServiceRequest{
		ID:            uuid.NewString(),
		Title:         input.Title,
		Description:   input.Description,
		Status:        entity.StatusNew,
		Priority:      priority,
		CustomerName:  input.CustomerName,
		CustomerEmail: input.CustomerEmail,
		CustomerPhone: input.CustomerPhone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}

	if err := e.requests.Create(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to create service request: %w", err)
	}

	e.logger.Info("Service request created", "request_id", req.ID, "priority", req.Priority)
	e.emit(ctx, event.NewEvent(event.TypeRequestCreated, req.ID, req.Clone()))

	if !e.pipeline.Launch(req.ID, func(ctx context.Context) { e.runPipeline(ctx, req.ID) }) {
		e.logger.Error("Pipeline not started", "request_id", req.ID)
	}

	return req, nil
}

// RegisterRequest moves a request to registered
func (e *engineImpl) RegisterRequest(ctx context.Context, id string) (*entity.ServiceRequest, error) {
	return e.advance(ctx, id, transition{
		target: entity.StatusRegistered,
		actor:  entity.ActorSystem,
		reason: "Request registered in system",
	})
}

// ClassifyRequest runs AI classification and moves the request to classified
func (e *engineImpl) ClassifyRequest(ctx context.Context, id string) (*entity.ServiceRequest, error) {
	req, err := e.loadFor(ctx, id, entity.StatusClassified)
	if err != nil {
		return nil, err
	}

	result, err := e.orchestrator.Classify(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("classification failed: %w", err)
	}

	patch := entity.ClassificationPatch{
		Category:   result.Category,
		Priority:   result.Priority,
		Department: result.SuggestedDepartment,
		Confidence: result.Confidence,
		Notes:      result.Reasoning,
		EngineName: e.orchestrator.ClassifierName(),
	}

	return e.advance(ctx, id, transition{
		target: entity.StatusClassified,
		actor:  entity.ActorAISystem,
		reason: fmt.Sprintf("Classified as %s with %s priority", result.Category, result.Priority),
		apply: func(txCtx context.Context, _ *entity.ServiceRequest, at time.Time) error {
			return e.requests.ApplyClassification(txCtx, id, patch, at)
		},
	})
}

// HandleRequest runs the handling engine and settles the request
func (e *engineImpl) HandleRequest(ctx context.Context, id string) (*entity.ServiceRequest, error) {
	req, err := e.loadFor(ctx, id, entity.StatusRequestFulfilled)
	if err != nil {
		return nil, err
	}

	result, err := e.orchestrator.Handle(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("handling failed: %w", err)
	}

	target := entity.StatusRequestFulfilled
	reason := fmt.Sprintf("AI recommended action: %s", result.RecommendedAction)
	if result.RequiresHumanIntervention {
		target = entity.StatusAborted
		reason = fmt.Sprintf("Requires human intervention: %s", result.Reasoning)
	}
	engineName := e.orchestrator.HandlerName()

	return e.advance(ctx, id, transition{
		target: target,
		actor:  entity.ActorAISystem,
		reason: reason,
		apply: func(txCtx context.Context, _ *entity.ServiceRequest, at time.Time) error {
			return e.requests.SetHandlingEngine(txCtx, id, engineName, at)
		},
		event: func(updated *entity.ServiceRequest) *event.Event {
			return event.NewEvent(event.TypeRequestHandled, id, event.HandledPayload{
				Request:       updated,
				Handling:      result,
				RequiresHuman: result.RequiresHumanIntervention,
			})
		},
	})
}

// CloseRequest moves a request to closed
func (e *engineImpl) CloseRequest(ctx context.Context, id string, closedBy string) (*entity.ServiceRequest, error) {
	actor := utils.SanitizeString(closedBy)
	if actor == "" {
		actor = entity.ActorSystem
	}
	return e.advance(ctx, id, transition{
		target: entity.StatusClosed,
		actor:  actor,
		reason: "Request closed",
	})
}

// AbortRequest moves a request to aborted, recording reason
func (e *engineImpl) AbortRequest(ctx context.Context, id string, reason string) (*entity.ServiceRequest, error) {
	reason = utils.SanitizeString(reason)
	return e.advance(ctx, id, transition{
		target: entity.StatusAborted,
		actor:  entity.ActorSystem,
		reason: reason,
		event: func(updated *entity.ServiceRequest) *event.Event {
			return event.NewEvent(event.TypeRequestAborted, id, event.AbortedPayload{
				Request: updated,
				Reason:  reason,
			})
		},
	})
}

// UpdateRequest applies a field patch under the request lock
func (e *engineImpl) UpdateRequest(ctx context.Context, id string, patch entity.UpdateServiceRequestInput) (*entity.ServiceRequest, error) {
	if patch.IsEmpty() {
		return nil, entity.NewValidationError("body", entity.ErrNoFields.Error())
	}
	sanitize(patch.Title)
	sanitize(patch.Description)
	sanitize(patch.AssignedTo)
	sanitize(patch.Department)

	if err := utils.ValidateStruct(patch); err != nil {
		return nil, err
	}

	unlock := e.locks.Lock(id)
	defer unlock()

	updated, err := e.requests.Update(ctx, id, patch, e.now().UTC())
	if err != nil {
		return nil, fmt.Errorf("failed to update service request: %w", err)
	}
	if updated == nil {
		return nil, nil
	}

	e.emit(ctx, event.NewEvent(event.TypeRequestUpdated, id, updated.Clone()))
	return updated, nil
}

// GetAllRequests lists requests, newest first
func (e *engineImpl) GetAllRequests(ctx context.Context, filter entity.RequestFilter) ([]*entity.ServiceRequest, error) {
	return e.requests.List(ctx, filter)
}

// GetRequestByID returns a request or nil when it does not exist
func (e *engineImpl) GetRequestByID(ctx context.Context, id string) (*entity.ServiceRequest, error) {
	return e.requests.GetByID(ctx, id)
}

// GetRequestHistory returns the workflow history of an existing request
func (e *engineImpl) GetRequestHistory(ctx context.Context, id string) ([]*entity.WorkflowHistory, error) {
	if _, err := e.mustGet(ctx, id); err != nil {
		return nil, err
	}
	return e.history.GetByRequestID(ctx, id)
}

// GetAIProcessingHistory returns the AI log rows of an existing request
func (e *engineImpl) GetAIProcessingHistory(ctx context.Context, id string) ([]*entity.AIProcessingLog, error) {
	if _, err := e.mustGet(ctx, id); err != nil {
		return nil, err
	}
	return e.aiLogs.GetByRequestID(ctx, id)
}

// Advance performs a bare transition with the default event
func (e *engineImpl) Advance(ctx context.Context, id string, target entity.Status, actor, reason string) (*entity.ServiceRequest, error) {
	if !target.IsValid() {
		return nil, entity.NewValidationError("status", fmt.Sprintf("unknown status %q", target))
	}
	if target == entity.StatusAborted {
		return e.advance(ctx, id, transition{
			target: target,
			actor:  actor,
			reason: reason,
			event: func(updated *entity.ServiceRequest) *event.Event {
				return event.NewEvent(event.TypeRequestAborted, id, event.AbortedPayload{Request: updated, Reason: reason})
			},
		})
	}
	return e.advance(ctx, id, transition{target: target, actor: actor, reason: reason})
}

// PipelineActive reports whether a background pipeline is running for id
func (e *engineImpl) PipelineActive(id string) bool {
	return e.pipeline.IsRunning(id)
}

// advance validates and persists one transition, then emits its event.
// The event is dispatched before the request lock is released so that
// subscribers see transitions of one request in order.
func (e *engineImpl) advance(ctx context.Context, id string, t transition) (*entity.ServiceRequest, error) {
	trigger, err := domainwf.TriggerFor(domainwf.State(t.target))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", domainwf.ErrInvalidTransition, err)
	}

	unlock := e.locks.Lock(id)
	defer unlock()

	var (
		from    entity.Status
		updated *entity.ServiceRequest
	)

	err = e.txManager.WithTransaction(ctx, func(txCtx context.Context) error {
		current, err := e.mustGet(txCtx, id)
		if err != nil {
			return err
		}
		from = current.Status

		machine := domainwf.NewRequestMachine(domainwf.State(from))
		if err := machine.Fire(txCtx, trigger); err != nil {
			return fmt.Errorf("request %s: %w", id, err)
		}

		now := e.now().UTC()
		if t.apply != nil {
			if err := t.apply(txCtx, current, now); err != nil {
				return err
			}
		}

		if err := e.requests.UpdateStatus(txCtx, id, t.target, now); err != nil {
			return fmt.Errorf("failed to update request status: %w", err)
		}

		fromStatus := from
		if err := e.history.Create(txCtx, &entity.WorkflowHistory{
			RequestID:    id,
			FromStatus:   &fromStatus,
			ToStatus:     t.target,
			ChangedBy:    t.actor,
			ChangeReason: t.reason,
			CreatedAt:    now,
		}); err != nil {
			return fmt.Errorf("failed to create history record: %w", err)
		}

		updated, err = e.requests.GetByID(txCtx, id)
		if err != nil {
			return err
		}
		if updated == nil {
			return fmt.Errorf("%w: %s", entity.ErrNotFound, id)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	e.logger.Info("Request transitioned",
		"request_id", id,
		"from", from,
		"to", t.target,
		"actor", t.actor,
	)

	var evt *event.Event
	if t.event != nil {
		evt = t.event(updated.Clone())
	} else {
		evt = event.NewEvent(defaultEventType(t.target), id, updated.Clone())
	}
	e.emit(ctx, evt)

	return updated, nil
}

// loadFor fetches a request and rejects it early when target is unreachable,
// so no AI call is spent on a request that cannot move
func (e *engineImpl) loadFor(ctx context.Context, id string, target entity.Status) (*entity.ServiceRequest, error) {
	req, err := e.mustGet(ctx, id)
	if err != nil {
		return nil, err
	}
	if !domainwf.CanTransition(domainwf.State(req.Status), domainwf.State(target)) {
		return nil, fmt.Errorf("%w: request %s cannot move from %s to %s",
			domainwf.ErrInvalidTransition, id, req.Status, target)
	}
	return req, nil
}

func (e *engineImpl) mustGet(ctx context.Context, id string) (*entity.ServiceRequest, error) {
	req, err := e.requests.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if req == nil {
		return nil, fmt.Errorf("%w: %s", entity.ErrNotFound, id)
	}
	return req, nil
}

func (e *engineImpl) emit(ctx context.Context, evt *event.Event) {
	if e.dispatcher == nil {
		return
	}
	if err := e.dispatcher.Dispatch(ctx, evt); err != nil {
		e.logger.Error("Event dispatch failed",
			"event_type", evt.Type,
			"request_id", evt.RequestID,
			"error", err,
		)
	}
}

// runPipeline drives register, classify and handle. Failures abort the
// request; cancellation leaves it where it is for the stale sweeper.
func (e *engineImpl) runPipeline(ctx context.Context, id string) {
	err := e.pipelineStages(ctx, id)
	if err == nil {
		return
	}

	if ctx.Err() != nil {
		e.logger.Info("Pipeline cancelled", "request_id", id, "error", err)
		return
	}

	// someone else already settled the request
	if errors.Is(err, domainwf.ErrInvalidTransition) {
		e.logger.Info("Pipeline superseded", "request_id", id, "error", err)
		return
	}

	e.logger.Error("Pipeline failed, aborting request", "request_id", id, "error", err)
	if _, abortErr := e.AbortRequest(context.WithoutCancel(ctx), id, err.Error()); abortErr != nil {
		e.logger.Error("Failed to abort request after pipeline failure",
			"request_id", id,
			"error", abortErr,
		)
	}
}

func (e *engineImpl) pipelineStages(ctx context.Context, id string) error {
	if _, err := e.RegisterRequest(ctx, id); err != nil {
		return err
	}
	if err := sleep(ctx, e.registerDelay); err != nil {
		return err
	}
	if _, err := e.ClassifyRequest(ctx, id); err != nil {
		return err
	}
	if err := sleep(ctx, e.classifyDelay); err != nil {
		return err
	}
	_, err := e.HandleRequest(ctx, id)
	return err
}

func defaultEventType(target entity.Status) event.Type {
	switch target {
	case entity.StatusRegistered:
		return event.TypeRequestRegistered
	case entity.StatusClassified:
		return event.TypeRequestClassified
	case entity.StatusRequestFulfilled:
		return event.TypeRequestHandled
	case entity.StatusAborted:
		return event.TypeRequestAborted
	case entity.StatusClosed:
		return event.TypeRequestClosed
	default:
		return event.TypeRequestUpdated
	}
}

func sanitize(s *string) {
	if s != nil {
		*s = utils.SanitizeString(*s)
	}
}
