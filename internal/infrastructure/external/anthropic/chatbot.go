package anthropic

import (
	"context"
	"fmt"
	"math/rand/v2"

	"github.com/aibymlMelissa/aibyml-business/internal/domain/entity"
	"github.com/aibymlMelissa/aibyml-business/internal/infrastructure/external/prompt"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.uber.org/zap"
)

// ChatbotEngineName is the display name of the conversation engine
const ChatbotEngineName = "Chatbot Assistant"

var welcomeMessages = []string{
	"Hi! I'm here to help you create a service request. What can I assist you with today?",
	"Hello! I'm your AI assistant. Tell me about the issue you're experiencing and I'll help you get it resolved.",
	"Welcome! I can help you submit a service request. What seems to be the problem?",
	"Hi there! I'm ready to help you with your service request. What's going on?",
}

// ChatbotEngine drives the intake conversation. It satisfies port.AIEngine
// only so it can be listed with the other engines; it never classifies or handles.
type ChatbotEngine struct {
	api     *messages
	prompts *prompt.Config
	logger  *zap.Logger
	pick    func(n int) int
}

// NewChatbotEngine creates the conversation engine
func NewChatbotEngine(cfg Config, prompts *prompt.Config, logger *zap.Logger, opts ...option.RequestOption) *ChatbotEngine {
	if prompts == nil {
		prompts = prompt.Default()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ChatbotEngine{
		api:     newMessages(cfg, logger, opts...),
		prompts: prompts,
		logger:  logger,
		pick:    rand.IntN,
	}
}

// Name returns the engine display name
func (c *ChatbotEngine) Name() string { return ChatbotEngineName }

// Type returns handling
func (c *ChatbotEngine) Type() entity.EngineType { return entity.EngineTypeHandling }

// Classify is not supported
func (c *ChatbotEngine) Classify(context.Context, *entity.ServiceRequest) (*entity.ClassificationResult, error) {
	return nil, fmt.Errorf("%w: chatbot engine does not support classification", entity.ErrUnsupportedOperation)
}

// HandleRequest is not supported
func (c *ChatbotEngine) HandleRequest(context.Context, *entity.ServiceRequest) (*entity.HandlingResult, error) {
	return nil, fmt.Errorf("%w: chatbot engine does not support direct request handling", entity.ErrUnsupportedOperation)
}

// ProcessConversation answers the latest user message and, when enough is
// known, proposes form data
func (c *ChatbotEngine) ProcessConversation(ctx context.Context, message string, history []entity.ChatMessage) (*entity.ChatbotResponse, error) {
	userPrompt, err := c.prompts.ForConversation(message, history)
	if err != nil {
		return nil, err
	}

	content, err := c.api.complete(ctx, c.prompts.Conversation, userPrompt)
	if err != nil {
		return nil, err
	}

	resp, err := prompt.ParseConversation(content)
	if err != nil {
		c.logger.Error("Failed to parse chatbot reply", zap.String("content", content), zap.Error(err))
		return nil, err
	}
	return resp, nil
}

// WelcomeMessage returns one of the greeting lines at random
func (c *ChatbotEngine) WelcomeMessage() string {
	return welcomeMessages[c.pick(len(welcomeMessages))]
}
