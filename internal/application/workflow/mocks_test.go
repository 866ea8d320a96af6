package workflow

import (
	"context"
	"sync"
	"time"

	"github.com/aibymlMelissa/aibyml-business/internal/application/dispatcher"
	"github.com/aibymlMelissa/aibyml-business/internal/domain/entity"
	"github.com/aibymlMelissa/aibyml-business/internal/domain/event"
)

// Mock implementations

type mockRequestRepo struct {
	mu        sync.Mutex
	requests  map[string]*entity.ServiceRequest
	createErr error
	statusErr error
}

func newMockRequestRepo() *mockRequestRepo {
	return &mockRequestRepo{requests: make(map[string]*entity.ServiceRequest)}
}

func (m *mockRequestRepo) put(req *entity.ServiceRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.requests[req.ID] = req.Clone()
}

func (m *mockRequestRepo) Create(ctx context.Context, req *entity.ServiceRequest) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	m.requests[req.ID] = req.Clone()
	return nil
}

func (m *mockRequestRepo) GetByID(ctx context.Context, id string) (*entity.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	return req.Clone(), nil
}

func (m *mockRequestRepo) List(ctx context.Context, filter entity.RequestFilter) ([]*entity.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.ServiceRequest
	for _, r := range m.requests {
		if filter.Status != "" && r.Status != filter.Status {
			continue
		}
		if filter.AssignedTo != "" && r.AssignedTo != filter.AssignedTo {
			continue
		}
		out = append(out, r.Clone())
	}
	return out, nil
}

func (m *mockRequestRepo) Update(ctx context.Context, id string, patch entity.UpdateServiceRequestInput, at time.Time) (*entity.ServiceRequest, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return nil, nil
	}
	req.UpdatedAt = at
	if patch.Title != nil {
		req.Title = *patch.Title
	}
	if patch.Description != nil {
		req.Description = *patch.Description
	}
	if patch.Priority != nil {
		req.Priority = *patch.Priority
	}
	if patch.Category != nil {
		c := *patch.Category
		req.Category = &c
	}
	if patch.AssignedTo != nil {
		req.AssignedTo = *patch.AssignedTo
	}
	if patch.Department != nil {
		req.Department = *patch.Department
	}
	return req.Clone(), nil
}

func (m *mockRequestRepo) ApplyClassification(ctx context.Context, id string, patch entity.ClassificationPatch, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return entity.ErrNotFound
	}
	req.UpdatedAt = at
	c := patch.Category
	req.Category = &c
	req.Priority = patch.Priority
	if patch.Department != "" {
		req.Department = patch.Department
	}
	conf := patch.Confidence
	req.ClassificationConfidence = &conf
	req.ClassificationNotes = patch.Notes
	req.AIClassificationEngine = patch.EngineName
	return nil
}

func (m *mockRequestRepo) SetHandlingEngine(ctx context.Context, id string, engineName string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	req, ok := m.requests[id]
	if !ok {
		return entity.ErrNotFound
	}
	req.UpdatedAt = at
	req.AIHandlingEngine = engineName
	return nil
}

func (m *mockRequestRepo) UpdateStatus(ctx context.Context, id string, status entity.Status, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.statusErr != nil {
		return m.statusErr
	}
	req, ok := m.requests[id]
	if !ok {
		return entity.ErrNotFound
	}
	req.Status = status
	req.UpdatedAt = at
	stamp := func(p **time.Time) {
		if *p == nil {
			t := at
			*p = &t
		}
	}
	switch status {
	case entity.StatusRegistered:
		stamp(&req.RegisteredAt)
	case entity.StatusClassified:
		stamp(&req.ClassifiedAt)
	case entity.StatusRequestFulfilled:
		stamp(&req.FulfilledAt)
	case entity.StatusClosed:
		stamp(&req.ClosedAt)
	}
	return nil
}

func (m *mockRequestRepo) get(id string) *entity.ServiceRequest {
	req, _ := m.GetByID(context.Background(), id)
	return req
}

type mockHistoryRepo struct {
	mu        sync.Mutex
	histories []*entity.WorkflowHistory
	createErr error
}

func (m *mockHistoryRepo) Create(ctx context.Context, history *entity.WorkflowHistory) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	history.ID = int64(len(m.histories) + 1)
	m.histories = append(m.histories, history)
	return nil
}

func (m *mockHistoryRepo) GetByRequestID(ctx context.Context, requestID string) ([]*entity.WorkflowHistory, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var result []*entity.WorkflowHistory
	for _, h := range m.histories {
		if h.RequestID == requestID {
			result = append(result, h)
		}
	}
	return result, nil
}

type mockAILogRepo struct {
	mu   sync.Mutex
	logs []*entity.AIProcessingLog
}

func (m *mockAILogRepo) Create(ctx context.Context, log *entity.AIProcessingLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.logs = append(m.logs, log)
	return nil
}

func (m *mockAILogRepo) GetByRequestID(ctx context.Context, requestID string) ([]*entity.AIProcessingLog, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*entity.AIProcessingLog
	for _, l := range m.logs {
		if l.RequestID == requestID {
			out = append(out, l)
		}
	}
	return out, nil
}

type mockTxManager struct {
	commitErr error
}

func (m *mockTxManager) WithTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	if m.commitErr != nil {
		return m.commitErr
	}
	return fn(ctx)
}

type mockOrchestrator struct {
	classifyFunc func(ctx context.Context, req *entity.ServiceRequest) (*entity.ClassificationResult, error)
	handleFunc   func(ctx context.Context, req *entity.ServiceRequest) (*entity.HandlingResult, error)

	mu            sync.Mutex
	classifyCalls int
	handleCalls   int
}

func (m *mockOrchestrator) Classify(ctx context.Context, req *entity.ServiceRequest) (*entity.ClassificationResult, error) {
	m.mu.Lock()
	m.classifyCalls++
	m.mu.Unlock()
	return m.classifyFunc(ctx, req)
}

func (m *mockOrchestrator) Handle(ctx context.Context, req *entity.ServiceRequest) (*entity.HandlingResult, error) {
	m.mu.Lock()
	m.handleCalls++
	m.mu.Unlock()
	return m.handleFunc(ctx, req)
}

func (m *mockOrchestrator) ClassifierName() string { return "OpenAI GPT-4" }
func (m *mockOrchestrator) HandlerName() string    { return "Anthropic Claude" }

func (m *mockOrchestrator) calls() (int, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.classifyCalls, m.handleCalls
}

type mockDispatcher struct {
	mu     sync.Mutex
	events []*event.Event
}

func (m *mockDispatcher) Subscribe(eventType event.Type, handler dispatcher.Handler) {}

func (m *mockDispatcher) SubscribeNamed(eventType event.Type, name string, handler dispatcher.Handler) {
}

func (m *mockDispatcher) SubscribeAll(name string, handler dispatcher.Handler) {}

func (m *mockDispatcher) SubscribeAsync(eventType event.Type, name string, handler dispatcher.Handler) {
}

func (m *mockDispatcher) Unsubscribe(eventType event.Type, name string) {}

func (m *mockDispatcher) Dispatch(ctx context.Context, evt *event.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return nil
}

func (m *mockDispatcher) ListHandlers(eventType event.Type) []dispatcher.HandlerInfo {
	return nil
}

func (m *mockDispatcher) Close() error {
	return nil
}

func (m *mockDispatcher) types() []event.Type {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]event.Type, len(m.events))
	for i, e := range m.events {
		out[i] = e.Type
	}
	return out
}

func (m *mockDispatcher) last() *event.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	if len(m.events) == 0 {
		return nil
	}
	return m.events[len(m.events)-1]
}
