package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/aibymlMelissa/aibyml-business/internal/application/port"
	"github.com/aibymlMelissa/aibyml-business/internal/domain/entity"
)

// OrchestratorEngineName is recorded on failures of the combined pipeline
const OrchestratorEngineName = "AI Orchestrator"

const defaultEngineTimeout = 30 * time.Second

// ProcessingResult is the outcome of running both engines on one request
type ProcessingResult struct {
	Classification *entity.ClassificationResult `json:"classification"`
	Handling       *entity.HandlingResult       `json:"handling"`
}

// AIOrchestrator routes requests to the classification and handling engines
// and records every invocation in the AI processing log.
type AIOrchestrator struct {
	classifier port.AIEngine
	handler    port.AIEngine
	logs       port.AILogRepository
	logger     Logger
	timeout    time.Duration
	now        func() time.Time
}

// OrchestratorOption configures the orchestrator
type OrchestratorOption func(*AIOrchestrator)

// WithEngineTimeout bounds each engine call
func WithEngineTimeout(d time.Duration) OrchestratorOption {
	return func(o *AIOrchestrator) {
		if d > 0 {
			o.timeout = d
		}
	}
}

// WithClock overrides the time source used for processing durations
func WithClock(now func() time.Time) OrchestratorOption {
	return func(o *AIOrchestrator) {
		o.now = now
	}
}

// NewAIOrchestrator creates an orchestrator over the given engines
func NewAIOrchestrator(classifier, handler port.AIEngine, logs port.AILogRepository, logger Logger, opts ...OrchestratorOption) *AIOrchestrator {
	if logger == nil {
		logger = nopLogger{}
	}
	o := &AIOrchestrator{
		classifier: classifier,
		handler:    handler,
		logs:       logs,
		logger:     logger,
		timeout:    defaultEngineTimeout,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

// ClassifierName returns the display name of the classification engine
func (o *AIOrchestrator) ClassifierName() string { return o.classifier.Name() }

// HandlerName returns the display name of the handling engine
func (o *AIOrchestrator) HandlerName() string { return o.handler.Name() }

// Classify runs the classification engine and logs the attempt
func (o *AIOrchestrator) Classify(ctx context.Context, req *entity.ServiceRequest) (*entity.ClassificationResult, error) {
	input := map[string]interface{}{
		"title":       req.Title,
		"description": req.Description,
	}

	return invoke(ctx, o, o.classifier, entity.EngineTypeClassification, req.ID, input,
		func(ctx context.Context) (*entity.ClassificationResult, error) {
			return o.classifier.Classify(ctx, req)
		},
		func(r *entity.ClassificationResult) float64 { return r.Confidence },
	)
}

// Handle runs the handling engine and logs the attempt
func (o *AIOrchestrator) Handle(ctx context.Context, req *entity.ServiceRequest) (*entity.HandlingResult, error) {
	input := map[string]interface{}{
		"title":       req.Title,
		"description": req.Description,
		"category":    req.Category,
		"priority":    req.Priority,
	}

	return invoke(ctx, o, o.handler, entity.EngineTypeHandling, req.ID, input,
		func(ctx context.Context) (*entity.HandlingResult, error) {
			return o.handler.HandleRequest(ctx, req)
		},
		func(r *entity.HandlingResult) float64 { return r.Confidence },
	)
}

// ProcessBoth classifies the request, folds the classification into a copy
// and hands that copy to the handling engine.
func (o *AIOrchestrator) ProcessBoth(ctx context.Context, req *entity.ServiceRequest) (*ProcessingResult, error) {
	start := o.now()

	classification, err := o.Classify(ctx, req)
	if err != nil {
		o.recordPipelineFailure(ctx, req, start, err)
		return nil, err
	}

	enriched := req.Clone()
	category := classification.Category
	enriched.Category = &category
	enriched.Priority = classification.Priority
	if classification.SuggestedDepartment != "" {
		enriched.Department = classification.SuggestedDepartment
	}

	handling, err := o.Handle(ctx, enriched)
	if err != nil {
		o.recordPipelineFailure(ctx, req, start, err)
		return nil, err
	}

	return &ProcessingResult{Classification: classification, Handling: handling}, nil
}

func (o *AIOrchestrator) recordPipelineFailure(ctx context.Context, req *entity.ServiceRequest, start time.Time, cause error) {
	o.writeLog(ctx, &entity.AIProcessingLog{
		RequestID:        req.ID,
		EngineName:       OrchestratorEngineName,
		EngineType:       entity.EngineTypeClassification,
		InputData:        mustJSON(req),
		OutputData:       json.RawMessage("null"),
		ProcessingTimeMs: o.now().Sub(start).Milliseconds(),
		Success:          false,
		ErrorMessage:     cause.Error(),
	})
}

// invoke times one engine call under the orchestrator timeout and writes the log row
func invoke[T any](
	ctx context.Context,
	o *AIOrchestrator,
	engine port.AIEngine,
	engineType entity.EngineType,
	requestID string,
	input interface{},
	call func(ctx context.Context) (*T, error),
	confidence func(*T) float64,
) (*T, error) {
	start := o.now()
	result, err := o.callWithTimeout(ctx, engine.Name(), func(ctx context.Context) (interface{}, error) {
		return call(ctx)
	})
	elapsed := o.now().Sub(start).Milliseconds()

	entry := &entity.AIProcessingLog{
		RequestID:        requestID,
		EngineName:       engine.Name(),
		EngineType:       engineType,
		InputData:        mustJSON(input),
		ProcessingTimeMs: elapsed,
	}

	var typed *T
	if err == nil {
		typed, _ = result.(*T)
		if typed == nil {
			err = fmt.Errorf("%w: %s returned no result", entity.ErrParse, engine.Name())
		}
	}

	if err != nil {
		entry.OutputData = json.RawMessage("null")
		entry.ErrorMessage = err.Error()
		o.writeLog(ctx, entry)
		o.logger.Error("AI engine call failed",
			"engine", engine.Name(),
			"engine_type", engineType,
			"request_id", requestID,
			"duration_ms", elapsed,
			"error", err,
		)
		return nil, err
	}

	c := confidence(typed)
	entry.Success = true
	entry.OutputData = mustJSON(typed)
	entry.ConfidenceScore = &c
	o.writeLog(ctx, entry)

	o.logger.Info("AI engine call completed",
		"engine", engine.Name(),
		"engine_type", engineType,
		"request_id", requestID,
		"duration_ms", elapsed,
		"confidence", c,
	)
	return typed, nil
}

// callWithTimeout returns when the engine answers or the deadline passes,
// whichever comes first, so an engine that ignores ctx cannot stall the pipeline.
func (o *AIOrchestrator) callWithTimeout(ctx context.Context, name string, fn func(ctx context.Context) (interface{}, error)) (interface{}, error) {
	callCtx, cancel := context.WithTimeout(ctx, o.timeout)
	defer cancel()

	type outcome struct {
		v   interface{}
		err error
	}
	done := make(chan outcome, 1)
	go func() {
		v, err := fn(callCtx)
		done <- outcome{v, err}
	}()

	select {
	case out := <-done:
		if out.err != nil && errors.Is(callCtx.Err(), context.DeadlineExceeded) && !errors.Is(out.err, entity.ErrUpstream) {
			return nil, fmt.Errorf("%w: %s timed out after %s: %v", entity.ErrUpstream, name, o.timeout, out.err)
		}
		return out.v, out.err
	case <-callCtx.Done():
		if errors.Is(callCtx.Err(), context.DeadlineExceeded) {
			return nil, fmt.Errorf("%w: %s timed out after %s", entity.ErrUpstream, name, o.timeout)
		}
		return nil, callCtx.Err()
	}
}

func (o *AIOrchestrator) writeLog(ctx context.Context, entry *entity.AIProcessingLog) {
	if o.logs == nil {
		return
	}
	// the log row must survive a cancelled caller
	if err := o.logs.Create(context.WithoutCancel(ctx), entry); err != nil {
		o.logger.Error("Failed to write AI processing log",
			"engine", entry.EngineName,
			"request_id", entry.RequestID,
			"error", err,
		)
	}
}

func mustJSON(v interface{}) json.RawMessage {
	b, err := json.Marshal(v)
	if err != nil {
		return json.RawMessage("null")
	}
	return b
}
