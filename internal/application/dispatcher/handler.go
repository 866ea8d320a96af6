package dispatcher

import (
	"context"

	"github.com/aibymlMelissa/aibyml-business/internal/domain/event"
)

// Handler processes domain events
type Handler func(ctx context.Context, evt *event.Event) error

// HandlerInfo contains handler metadata for debugging
type HandlerInfo struct {
	Name      string
	EventType event.Type // empty for handlers subscribed to every type
	Handler   Handler
	Async     bool
}
