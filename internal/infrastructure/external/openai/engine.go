package openai

import (
	"context"
	"fmt"

	"github.com/aibymlMelissa/aibyml-business/internal/domain/entity"
	"github.com/aibymlMelissa/aibyml-business/internal/infrastructure/external/prompt"
	openai "github.com/sashabaranov/go-openai"
	"go.uber.org/zap"
)

// EngineName is the display name recorded in AI processing logs
const EngineName = "OpenAI GPT-4"

// Config holds the settings for an OpenAI-backed engine
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
	// Type is the role reported by the engine; classification when empty
	Type entity.EngineType
}

// Engine implements port.AIEngine using the OpenAI chat completions API
type Engine struct {
	client     *openai.Client
	model      string
	engineType entity.EngineType
	prompts    *prompt.Config
	logger     *zap.Logger
}

// NewEngine creates a new OpenAI engine
func NewEngine(cfg Config, prompts *prompt.Config, logger *zap.Logger) *Engine {
	clientCfg := openai.DefaultConfig(cfg.APIKey)
	if cfg.BaseURL != "" {
		clientCfg.BaseURL = cfg.BaseURL
	}
	if prompts == nil {
		prompts = prompt.Default()
	}
	engineType := cfg.Type
	if engineType == "" {
		engineType = entity.EngineTypeClassification
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &Engine{
		client:     openai.NewClientWithConfig(clientCfg),
		model:      cfg.Model,
		engineType: engineType,
		prompts:    prompts,
		logger:     logger,
	}
}

// Name returns the engine display name
func (e *Engine) Name() string { return EngineName }

// Type returns the engine's configured role
func (e *Engine) Type() entity.EngineType { return e.engineType }

// Classify asks the model for category, priority and department
func (e *Engine) Classify(ctx context.Context, req *entity.ServiceRequest) (*entity.ClassificationResult, error) {
	userPrompt, err := e.prompts.ForClassification(req)
	if err != nil {
		return nil, err
	}

	content, err := e.complete(ctx, e.prompts.Classification, userPrompt)
	if err != nil {
		return nil, err
	}

	result, err := prompt.ParseClassification(content)
	if err != nil {
		e.logger.Error("Failed to parse OpenAI classification",
			zap.String("request_id", req.ID),
			zap.String("content", content),
			zap.Error(err))
		return nil, err
	}

	e.logger.Info("Classification completed",
		zap.String("request_id", req.ID),
		zap.String("category", string(result.Category)),
		zap.Float64("confidence", result.Confidence))
	return result, nil
}

// HandleRequest asks the model for a handling recommendation
func (e *Engine) HandleRequest(ctx context.Context, req *entity.ServiceRequest) (*entity.HandlingResult, error) {
	userPrompt, err := e.prompts.ForHandling(req)
	if err != nil {
		return nil, err
	}

	content, err := e.complete(ctx, e.prompts.Handling, userPrompt)
	if err != nil {
		return nil, err
	}

	result, err := prompt.ParseHandling(content)
	if err != nil {
		e.logger.Error("Failed to parse OpenAI handling",
			zap.String("request_id", req.ID),
			zap.String("content", content),
			zap.Error(err))
		return nil, err
	}
	return result, nil
}

func (e *Engine) complete(ctx context.Context, settings prompt.Settings, userPrompt string) (string, error) {
	resp, err := e.client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:       e.model,
		Temperature: settings.Temperature,
		MaxTokens:   settings.MaxTokens,
		Messages: []openai.ChatCompletionMessage{
			{
				Role:    openai.ChatMessageRoleSystem,
				Content: settings.System,
			},
			{
				Role:    openai.ChatMessageRoleUser,
				Content: userPrompt,
			},
		},
		ResponseFormat: &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		},
	})
	if err != nil {
		e.logger.Error("OpenAI API call failed", zap.Error(err))
		return "", fmt.Errorf("%w: OpenAI API call failed: %w", entity.ErrUpstream, err)
	}

	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("%w: no response from OpenAI", entity.ErrParse)
	}

	return resp.Choices[0].Message.Content, nil
}
