package service

import (
	"context"
	"sync"

	"github.com/aibymlMelissa/aibyml-business/internal/domain/entity"
)

type mockEngine struct {
	name       string
	engineType entity.EngineType

	classifyFunc func(ctx context.Context, req *entity.ServiceRequest) (*entity.ClassificationResult, error)
	handleFunc   func(ctx context.Context, req *entity.ServiceRequest) (*entity.HandlingResult, error)

	mu       sync.Mutex
	received []*entity.ServiceRequest
}

func (m *mockEngine) Name() string            { return m.name }
func (m *mockEngine) Type() entity.EngineType { return m.engineType }

func (m *mockEngine) Classify(ctx context.Context, req *entity.ServiceRequest) (*entity.ClassificationResult, error) {
	m.record(req)
	return m.classifyFunc(ctx, req)
}

func (m *mockEngine) HandleRequest(ctx context.Context, req *entity.ServiceRequest) (*entity.HandlingResult, error) {
	m.record(req)
	return m.handleFunc(ctx, req)
}

func (m *mockEngine) record(req *entity.ServiceRequest) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.received = append(m.received, req.Clone())
}

type mockLogRepo struct {
	mu        sync.Mutex
	logs      []*entity.AIProcessingLog
	createErr error
}

func (m *mockLogRepo) Create(ctx context.Context, log *entity.AIProcessingLog) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.createErr != nil {
		return m.createErr
	}
	log.ID = int64(len(m.logs) + 1)
	m.logs = append(m.logs, log)
	return nil
}

func (m *mockLogRepo) GetByRequestID(ctx context.Context, requestID string) ([]*entity.AIProcessingLog, error) {
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

type recordingLogger struct {
	mu     sync.Mutex
	infos  []string
	errors []string
}

func (l *recordingLogger) Info(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.infos = append(l.infos, msg)
}

func (l *recordingLogger) Error(msg string, _ ...interface{}) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.errors = append(l.errors, msg)
}

type mockConversationEngine struct {
	resp    *entity.ChatbotResponse
	err     error
	welcome string

	gotMessage string
	gotHistory []entity.ChatMessage
}

func (m *mockConversationEngine) ProcessConversation(ctx context.Context, message string, history []entity.ChatMessage) (*entity.ChatbotResponse, error) {
	m.gotMessage = message
	m.gotHistory = history
	return m.resp, m.err
}

func (m *mockConversationEngine) WelcomeMessage() string { return m.welcome }

type mockSender struct {
	mu    sync.Mutex
	texts []string
	err   error
}

func (m *mockSender) SendText(ctx context.Context, text string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.texts = append(m.texts, text)
	return nil
}
