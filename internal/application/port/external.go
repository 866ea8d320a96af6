package port

import (
	"context"
	"io"

	"github.com/aibymlMelissa/aibyml-business/internal/domain/entity"
)

// AIEngine classifies and proposes handling for service requests
type AIEngine interface {
	Name() string
	Type() entity.EngineType
	Classify(ctx context.Context, req *entity.ServiceRequest) (*entity.ClassificationResult, error)
	HandleRequest(ctx context.Context, req *entity.ServiceRequest) (*entity.HandlingResult, error)
}

// ConversationEngine drives the intake chatbot
type ConversationEngine interface {
	ProcessConversation(ctx context.Context, message string, history []entity.ChatMessage) (*entity.ChatbotResponse, error)
	WelcomeMessage() string
}

// Broadcaster pushes a typed message to every connected subscriber.
// Implementations never report delivery failures to the caller.
type Broadcaster interface {
	Broadcast(eventType string, data interface{})
	SubscriberCount() int
}

// MessageSender posts a plain text message to an operator chat
type MessageSender interface {
	SendText(ctx context.Context, text string) error
}

// RequestExporter renders a set of requests into a document
type RequestExporter interface {
	Export(ctx context.Context, w io.Writer, requests []*entity.ServiceRequest) error
	ContentType() string
	FileExtension() string
}
