package anthropic

import (
	"context"

	"github.com/aibymlMelissa/aibyml-business/internal/domain/entity"
	"github.com/aibymlMelissa/aibyml-business/internal/infrastructure/external/prompt"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// EngineName is the display name recorded in AI processing logs
const EngineName = "Anthropic Claude"

// handlingMaxTokens is the reply budget for handling recommendations
const handlingMaxTokens = 700

// Engine implements port.AIEngine using Claude
type Engine struct {
	api        *messages
	engineType entity.EngineType
	prompts    *prompt.Config
	logger     *zap.Logger
}

// NewEngine creates a Claude engine reporting engineType (handling when empty)
func NewEngine(cfg Config, engineType entity.EngineType, prompts *prompt.Config, logger *zap.Logger, opts ...option.RequestOption) *Engine {
	if prompts == nil {
		prompts = prompt.Default()
	}
	if engineType == "" {
		engineType = entity.EngineTypeHandling
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		api:        newMessages(cfg, logger, opts...),
		engineType: engineType,
		prompts:    prompts,
		logger:     logger,
	}
}

// Name returns the engine display name
func (e *Engine) Name() string { return EngineName }

// Type returns the engine's configured role
func (e *Engine) Type() entity.EngineType { return e.engineType }

// Classify asks Claude for category, priority and department
func (e *Engine) Classify(ctx context.Context, req *entity.ServiceRequest) (*entity.ClassificationResult, error) {
	userPrompt, err := e.prompts.ForClassification(req)
	if err != nil {
		return nil, err
	}

	content, err := e.api.complete(ctx, e.prompts.Classification, userPrompt)
	if err != nil {
		return nil, err
	}

	result, err := prompt.ParseClassification(content)
	if err != nil {
		e.logger.Error("Failed to parse Claude classification",
			zap.String("request_id", req.ID),
			zap.String("content", content),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

// HandleRequest asks Claude for a handling recommendation
func (e *Engine) HandleRequest(ctx context.Context, req *entity.ServiceRequest) (*entity.HandlingResult, error) {
	userPrompt, err := e.prompts.ForHandling(req)
	if err != nil {
		return nil, err
	}

	settings := e.prompts.Handling
	if settings.MaxTokens < handlingMaxTokens {
		settings.MaxTokens = handlingMaxTokens
	}

	content, err := e.api.complete(ctx, settings, userPrompt)
	if err != nil {
		return nil, err
	}

	result, err := prompt.ParseHandling(content)
	if err != nil {
		e.logger.Error("Failed to parse Claude handling",
			zap.String("request_id", req.ID),
			zap.String("content", content),
			zap.Error(err))
		return nil, err
	}

	e.logger.Info("Handling recommendation received",
		zap.String("request_id", req.ID),
		zap.Bool("requires_human", result.RequiresHumanIntervention),
		zap.Float64("confidence", result.Confidence))
	return result, nil
}
