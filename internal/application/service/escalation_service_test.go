package service

import (
	"context"
	"errors"
	"testing"

	"github.com/aibymlMelissa/aibyml-business/internal/domain/entity"
	"github.com/aibymlMelissa/aibyml-business/internal/domain/event"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func escalationRequest() *entity.ServiceRequest {
	category := entity.CategoryTechnicalSupport
	return &entity.ServiceRequest{
		ID:            "req-1",
		Title:         "Printer jam",
		Status:        entity.StatusAborted,
		Priority:      entity.PriorityHigh,
		Category:      &category,
		CustomerEmail: "jane@example.com",
	}
}

func TestEscalationService_Aborted(t *testing.T) {
	sender := &mockSender{}
	svc := NewEscalationService(sender, nil)

	evt := event.NewEvent(event.TypeRequestAborted, "req-1", event.AbortedPayload{
		Request: escalationRequest(),
		Reason:  "classification failed: ai provider error",
	})
	require.NoError(t, svc.HandleEvent(context.Background(), evt))

	require.Len(t, sender.texts, 1)
	text := sender.texts[0]
	assert.Contains(t, text, "ID: req-1")
	assert.Contains(t, text, "Title: Printer jam")
	assert.Contains(t, text, "Category: technical_support")
	assert.Contains(t, text, "Customer: jane@example.com")
	assert.Contains(t, text, "Reason: classification failed: ai provider error")
}

func TestEscalationService_Handled(t *testing.T) {
	sender := &mockSender{}
	svc := NewEscalationService(sender, nil)
	ctx := context.Background()

	fine := event.NewEvent(event.TypeRequestHandled, "req-1", event.HandledPayload{
		Request:  escalationRequest(),
		Handling: &entity.HandlingResult{RecommendedAction: "Reboot"},
	})
	require.NoError(t, svc.HandleEvent(ctx, fine))
	assert.Empty(t, sender.texts)

	human := event.NewEvent(event.TypeRequestHandled, "req-1", event.HandledPayload{
		Request:       escalationRequest(),
		Handling:      &entity.HandlingResult{RecommendedAction: "Send technician", Reasoning: "hardware fault"},
		RequiresHuman: true,
	})
	require.NoError(t, svc.HandleEvent(ctx, human))
	require.Len(t, sender.texts, 1)
	assert.Contains(t, sender.texts[0], "Reason: hardware fault (suggested: Send technician)")
}

func TestEscalationService_IgnoresOtherEvents(t *testing.T) {
	sender := &mockSender{}
	svc := NewEscalationService(sender, nil)

	for _, typ := range []event.Type{event.TypeRequestCreated, event.TypeRequestClosed, event.TypeRequestUpdated} {
		require.NoError(t, svc.HandleEvent(context.Background(), event.NewEvent(typ, "req-1", escalationRequest())))
	}
	assert.Empty(t, sender.texts)
}

func TestEscalationService_SendFailure(t *testing.T) {
	sender := &mockSender{err: errors.New("lark down")}
	logger := &recordingLogger{}
	svc := NewEscalationService(sender, logger)

	err := svc.HandleEvent(context.Background(), event.NewEvent(event.TypeRequestAborted, "req-1",
		event.AbortedPayload{Request: escalationRequest(), Reason: "x"}))
	assert.Error(t, err)
	assert.Contains(t, logger.errors, "Failed to send escalation")
}
