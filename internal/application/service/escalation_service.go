package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/aibymlMelissa/aibyml-business/internal/application/port"
	"github.com/aibymlMelissa/aibyml-business/internal/domain/entity"
	"github.com/aibymlMelissa/aibyml-business/internal/domain/event"
)

// EscalationService tells operators about requests the pipeline could not settle
type EscalationService struct {
	sender port.MessageSender
	logger Logger
}

// NewEscalationService creates a new escalation service
func NewEscalationService(sender port.MessageSender, logger Logger) *EscalationService {
	if logger == nil {
		logger = nopLogger{}
	}
	return &EscalationService{sender: sender, logger: logger}
}

// HandleEvent sends a message for aborted requests and for handled requests
// that need a human. Other events are ignored.
func (s *EscalationService) HandleEvent(ctx context.Context, evt *event.Event) error {
	var (
		req    *entity.ServiceRequest
		reason string
	)

	switch evt.Type {
	case event.TypeRequestAborted:
		payload, ok := evt.Data.(event.AbortedPayload)
		if !ok {
			return nil
		}
		req, _ = payload.Request.(*entity.ServiceRequest)
		reason = payload.Reason

	case event.TypeRequestHandled:
		payload, ok := evt.Data.(event.HandledPayload)
		if !ok || !payload.RequiresHuman {
			return nil
		}
		req, _ = payload.Request.(*entity.ServiceRequest)
		if h, ok := payload.Handling.(*entity.HandlingResult); ok {
			reason = h.Reasoning
			if h.RecommendedAction != "" {
				reason = fmt.Sprintf("%s (suggested: %s)", h.Reasoning, h.RecommendedAction)
			}
		}

	default:
		return nil
	}

	message := buildEscalationMessage(evt.RequestID, req, reason)
	if err := s.sender.SendText(ctx, message); err != nil {
		s.logger.Error("Failed to send escalation", "request_id", evt.RequestID, "error", err)
		return fmt.Errorf("send escalation: %w", err)
	}

	s.logger.Info("Escalation sent", "request_id", evt.RequestID, "event_type", evt.Type)
	return nil
}

func buildEscalationMessage(requestID string, req *entity.ServiceRequest, reason string) string {
	var b strings.Builder
	b.WriteString("Service request needs attention\n\n")
	fmt.Fprintf(&b, "ID: %s\n", requestID)
	if req != nil {
		fmt.Fprintf(&b, "Title: %s\n", req.Title)
		fmt.Fprintf(&b, "Status: %s\n", req.Status)
		fmt.Fprintf(&b, "Priority: %s\n", req.Priority)
		if req.Category != nil {
			fmt.Fprintf(&b, "Category: %s\n", *req.Category)
		}
		if req.CustomerEmail != "" {
			fmt.Fprintf(&b, "Customer: %s\n", req.CustomerEmail)
		}
	}
	if reason != "" {
		fmt.Fprintf(&b, "Reason: %s\n", reason)
	}
	return strings.TrimRight(b.String(), "\n")
}
