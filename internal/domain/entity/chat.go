package entity

// ChatSender identifies who wrote a chat message
type ChatSender string

const (
	ChatSenderUser ChatSender = "user"
	ChatSenderBot  ChatSender = "bot"
)

// ChatMessage is one turn of a chatbot conversation
type ChatMessage struct {
	Content string     `json:"content" validate:"required"`
	Sender  ChatSender `json:"sender" validate:"required,oneof=user bot"`
}

// ConversationInput is a user message plus the prior turns
type ConversationInput struct {
	Message             string        `json:"message" validate:"required"`
	ConversationHistory []ChatMessage `json:"conversationHistory" validate:"dive"`
}

// SuggestedFormData is a request draft the chatbot extracted from conversation
type SuggestedFormData struct {
	Title         string   `json:"title,omitempty"`
	Description   string   `json:"description,omitempty"`
	Priority      Priority `json:"priority,omitempty"`
	CustomerName  string   `json:"customerName,omitempty"`
	CustomerEmail string   `json:"customerEmail,omitempty"`
	CustomerPhone string   `json:"customerPhone,omitempty"`
}

// ChatbotResponse is the chatbot's reply to one user message
type ChatbotResponse struct {
	Response               string             `json:"response"`
	SuggestedFormData      *SuggestedFormData `json:"suggestedFormData,omitempty"`
	ShouldTransitionToForm bool               `json:"shouldTransitionToForm"`
	Confidence             float64            `json:"confidence"`
}
