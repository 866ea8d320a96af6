// Package anthropic provides AI engines backed by the Anthropic messages API
package anthropic

import (
	"context"
	"fmt"
	"strings"

	"github.com/aibymlMelissa/aibyml-business/internal/domain/entity"
	"github.com/aibymlMelissa/aibyml-business/internal/infrastructure/external/prompt"
	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// Config holds the settings shared by the Anthropic engines
type Config struct {
	APIKey  string
	Model   string
	BaseURL string
}

// messages wraps one SDK client and model
type messages struct {
	client anthropic.Client
	model  string
	logger *zap.Logger
}

func newMessages(cfg Config, logger *zap.Logger, opts ...option.RequestOption) *messages {
	all := []option.RequestOption{option.WithAPIKey(cfg.APIKey)}
	if cfg.BaseURL != "" {
		all = append(all, option.WithBaseURL(cfg.BaseURL))
	}
	all = append(all, opts...)
	if logger == nil {
		logger = zap.NewNop()
	}
	return &messages{
		client: anthropic.NewClient(all...),
		model:  cfg.Model,
		logger: logger,
	}
}

// complete sends one user turn and returns the concatenated text blocks
func (m *messages) complete(ctx context.Context, settings prompt.Settings, userPrompt string) (string, error) {
	params := anthropic.MessageNewParams{
		Model:       anthropic.Model(m.model),
		MaxTokens:   int64(settings.MaxTokens),
		Temperature: anthropic.Float(float64(settings.Temperature)),
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(userPrompt)),
		},
	}
	if settings.System != "" {
		params.System = []anthropic.TextBlockParam{{Text: settings.System}}
	}

	message, err := m.client.Messages.New(ctx, params)
	if err != nil {
		m.logger.Error("Anthropic API call failed", zap.String("model", m.model), zap.Error(err))
		return "", fmt.Errorf("%w: Anthropic API error: %w", entity.ErrUpstream, err)
	}

	var sb strings.Builder
	for _, block := range message.Content {
		if block.Type == "text" {
			sb.WriteString(block.Text)
		}
	}
	if sb.Len() == 0 {
		return "", fmt.Errorf("%w: no text content in Anthropic response", entity.ErrParse)
	}
	return sb.String(), nil
}
