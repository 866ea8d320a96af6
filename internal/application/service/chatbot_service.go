package service

import (
	"context"

	"github.com/aibymlMelissa/aibyml-business/internal/application/port"
	"github.com/aibymlMelissa/aibyml-business/internal/domain/entity"
	"github.com/aibymlMelissa/aibyml-business/pkg/utils"
)

// FallbackChatResponse is returned when the conversation engine fails
const FallbackChatResponse = "I apologize, but I'm having trouble processing your message right now. " +
	"Please try again or use the form to submit your request directly."

// ChatbotService fronts the conversation engine for the intake chat
type ChatbotService struct {
	engine port.ConversationEngine
	logger Logger
}

// NewChatbotService creates a new chatbot service
func NewChatbotService(engine port.ConversationEngine, logger Logger) *ChatbotService {
	if logger == nil {
		logger = nopLogger{}
	}
	return &ChatbotService{engine: engine, logger: logger}
}

// Converse validates the input and returns the bot reply. Engine failures
// degrade to an apology with zero confidence instead of an error.
func (s *ChatbotService) Converse(ctx context.Context, input entity.ConversationInput) (*entity.ChatbotResponse, error) {
	input.Message = utils.SanitizeString(input.Message)
	if err := utils.ValidateStruct(input); err != nil {
		return nil, err
	}

	resp, err := s.engine.ProcessConversation(ctx, input.Message, input.ConversationHistory)
	if err != nil {
		s.logger.Error("Conversation engine failed", "error", err, "history_len", len(input.ConversationHistory))
		return &entity.ChatbotResponse{
			Response:               FallbackChatResponse,
			ShouldTransitionToForm: false,
			Confidence:             0,
		}, nil
	}

	return resp, nil
}

// Welcome returns a greeting for a new chat session
func (s *ChatbotService) Welcome() string {
	return s.engine.WelcomeMessage()
}
