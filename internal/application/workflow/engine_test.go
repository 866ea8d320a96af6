package workflow

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/aibymlMelissa/aibyml-business/internal/domain/entity"
	"github.com/aibymlMelissa/aibyml-business/internal/domain/event"
	domainwf "github.com/aibymlMelissa/aibyml-business/internal/domain/workflow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type testEnv struct {
	requests   *mockRequestRepo
	history    *mockHistoryRepo
	aiLogs     *mockAILogRepo
	orch       *mockOrchestrator
	dispatcher *mockDispatcher
	runner     *PipelineRunner
	engine     WorkflowEngine
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		requests:   newMockRequestRepo(),
		history:    &mockHistoryRepo{},
		aiLogs:     &mockAILogRepo{},
		dispatcher: &mockDispatcher{},
		runner:     NewPipelineRunner(nil),
		orch: &mockOrchestrator{
			classifyFunc: func(ctx context.Context, req *entity.ServiceRequest) (*entity.ClassificationResult, error) {
				return &entity.ClassificationResult{
					Category:            entity.CategoryTechnicalSupport,
					Priority:            entity.PriorityMedium,
					Confidence:          0.9,
					Reasoning:           "hardware issue",
					SuggestedDepartment: "IT",
				}, nil
			},
			handleFunc: func(ctx context.Context, req *entity.ServiceRequest) (*entity.HandlingResult, error) {
				return &entity.HandlingResult{
					RecommendedAction: "Dispatch technician",
					Confidence:        0.8,
				}, nil
			},
		},
	}
	env.engine = NewEngine(env.requests, env.history, env.aiLogs, &mockTxManager{}, env.orch,
		WithDispatcher(env.dispatcher),
		WithPipelineRunner(env.runner),
		WithStageDelays(0, 0),
	)
	t.Cleanup(func() { _ = env.runner.Stop() })
	return env
}

func (env *testEnv) seed(id string, status entity.Status) {
	now := time.Now().UTC()
	env.requests.put(&entity.ServiceRequest{
		ID:          id,
		Title:       "Printer jam",
		Description: "Office printer on 3rd floor is jammed",
		Status:      status,
		Priority:    entity.PriorityLow,
		CreatedAt:   now,
		UpdatedAt:   now,
	})
}

func TestClassifyThenHandle_Fulfilled(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seed("req-1", entity.StatusRegistered)

	classified, err := env.engine.ClassifyRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusClassified, classified.Status)
	require.NotNil(t, classified.Category)
	assert.Equal(t, entity.CategoryTechnicalSupport, *classified.Category)
	assert.Equal(t, entity.PriorityMedium, classified.Priority)
	assert.Equal(t, "IT", classified.Department)
	assert.Equal(t, "OpenAI GPT-4", classified.AIClassificationEngine)
	assert.NotNil(t, classified.ClassifiedAt)

	handled, err := env.engine.HandleRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusRequestFulfilled, handled.Status)
	assert.Equal(t, "Anthropic Claude", handled.AIHandlingEngine)
	assert.NotNil(t, handled.FulfilledAt)

	evt := env.dispatcher.last()
	require.NotNil(t, evt)
	assert.Equal(t, event.TypeRequestHandled, evt.Type)
	payload, ok := evt.Data.(event.HandledPayload)
	require.True(t, ok)
	assert.False(t, payload.RequiresHuman)

	history, err := env.engine.GetRequestHistory(ctx, "req-1")
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, entity.StatusClassified, history[0].ToStatus)
	assert.Equal(t, entity.ActorAISystem, history[0].ChangedBy)
	assert.Nil(t, history[0].AIConfidence)
	assert.Equal(t, entity.StatusRequestFulfilled, history[1].ToStatus)
}

func TestHandleRequest_RequiresHumanAborts(t *testing.T) {
	env := newTestEnv(t)
	env.orch.handleFunc = func(ctx context.Context, req *entity.ServiceRequest) (*entity.HandlingResult, error) {
		return &entity.HandlingResult{
			RecommendedAction:         "Escalate",
			Reasoning:                 "needs on-site visit",
			RequiresHumanIntervention: true,
		}, nil
	}
	env.seed("req-1", entity.StatusClassified)

	handled, err := env.engine.HandleRequest(context.Background(), "req-1")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAborted, handled.Status)

	evt := env.dispatcher.last()
	require.NotNil(t, evt)
	assert.Equal(t, event.TypeRequestHandled, evt.Type)
	payload, ok := evt.Data.(event.HandledPayload)
	require.True(t, ok)
	assert.True(t, payload.RequiresHuman)
}

func TestClassifyRequest_Errors(t *testing.T) {
	t.Run("not found", func(t *testing.T) {
		env := newTestEnv(t)
		_, err := env.engine.ClassifyRequest(context.Background(), "missing")
		assert.ErrorIs(t, err, entity.ErrNotFound)
		c, _ := env.orch.calls()
		assert.Zero(t, c)
	})

	t.Run("invalid transition skips AI call", func(t *testing.T) {
		env := newTestEnv(t)
		env.seed("req-1", entity.StatusClosed)
		_, err := env.engine.ClassifyRequest(context.Background(), "req-1")
		assert.ErrorIs(t, err, domainwf.ErrInvalidTransition)
		c, _ := env.orch.calls()
		assert.Zero(t, c)
	})

	t.Run("engine failure leaves status", func(t *testing.T) {
		env := newTestEnv(t)
		env.orch.classifyFunc = func(ctx context.Context, req *entity.ServiceRequest) (*entity.ClassificationResult, error) {
			return nil, fmt.Errorf("%w: connection refused", entity.ErrUpstream)
		}
		env.seed("req-1", entity.StatusRegistered)
		_, err := env.engine.ClassifyRequest(context.Background(), "req-1")
		assert.ErrorIs(t, err, entity.ErrUpstream)
		assert.Equal(t, entity.StatusRegistered, env.requests.get("req-1").Status)
	})
}

func TestAdvance_Rules(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	_, err := env.engine.RegisterRequest(ctx, "missing")
	assert.ErrorIs(t, err, entity.ErrNotFound)

	env.seed("req-1", entity.StatusNew)

	_, err = env.engine.Advance(ctx, "req-1", entity.StatusRequestFulfilled, entity.ActorSystem, "")
	assert.ErrorIs(t, err, domainwf.ErrInvalidTransition)

	_, err = env.engine.Advance(ctx, "req-1", entity.StatusNew, entity.ActorSystem, "")
	assert.ErrorIs(t, err, domainwf.ErrInvalidTransition)

	_, err = env.engine.Advance(ctx, "req-1", entity.Status("bogus"), entity.ActorSystem, "")
	assert.ErrorIs(t, err, entity.ErrValidation)

	closed, err := env.engine.CloseRequest(ctx, "req-1", "")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusClosed, closed.Status)
	assert.NotNil(t, closed.ClosedAt)

	_, err = env.engine.RegisterRequest(ctx, "req-1")
	assert.ErrorIs(t, err, domainwf.ErrInvalidTransition)
	_, err = env.engine.AbortRequest(ctx, "req-1", "too late")
	assert.ErrorIs(t, err, domainwf.ErrInvalidTransition)

	history, err := env.engine.GetRequestHistory(ctx, "req-1")
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, entity.ActorSystem, history[0].ChangedBy)
	require.NotNil(t, history[0].FromStatus)
	assert.Equal(t, entity.StatusNew, *history[0].FromStatus)
}

func TestAdvance_ReentryKeepsMilestone(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seed("req-1", entity.StatusNew)

	clock := time.Date(2024, 1, 1, 9, 0, 0, 0, time.UTC)
	env.engine.(*engineImpl).now = func() time.Time { return clock }

	first, err := env.engine.RegisterRequest(ctx, "req-1")
	require.NoError(t, err)
	require.NotNil(t, first.RegisteredAt)

	clock = clock.Add(time.Hour)
	second, err := env.engine.RegisterRequest(ctx, "req-1")
	require.NoError(t, err)

	assert.True(t, first.RegisteredAt.Equal(*second.RegisteredAt))
	assert.True(t, second.UpdatedAt.Equal(clock))

	history, err := env.engine.GetRequestHistory(ctx, "req-1")
	require.NoError(t, err)
	assert.Len(t, history, 2)
}

func TestAbortRequest_Payload(t *testing.T) {
	env := newTestEnv(t)
	env.seed("req-1", entity.StatusRegistered)

	aborted, err := env.engine.AbortRequest(context.Background(), "req-1", "customer withdrew")
	require.NoError(t, err)
	assert.Equal(t, entity.StatusAborted, aborted.Status)

	evt := env.dispatcher.last()
	require.NotNil(t, evt)
	assert.Equal(t, event.TypeRequestAborted, evt.Type)
	payload, ok := evt.Data.(event.AbortedPayload)
	require.True(t, ok)
	assert.Equal(t, "customer withdrew", payload.Reason)

	history, _ := env.engine.GetRequestHistory(context.Background(), "req-1")
	require.Len(t, history, 1)
	assert.Equal(t, "customer withdrew", history[0].ChangeReason)
}

func TestAdvance_StoreFailure(t *testing.T) {
	env := newTestEnv(t)
	env.seed("req-1", entity.StatusNew)
	env.requests.statusErr = fmt.Errorf("%w: disk full", entity.ErrStore)

	_, err := env.engine.RegisterRequest(context.Background(), "req-1")
	assert.ErrorIs(t, err, entity.ErrStore)
	assert.Empty(t, env.dispatcher.types())
	assert.Empty(t, env.history.histories)
}

func TestCreateServiceRequest_Validation(t *testing.T) {
	env := newTestEnv(t)

	tests := []struct {
		name  string
		input entity.CreateServiceRequestInput
		field string
	}{
		{"missing title", entity.CreateServiceRequestInput{Description: "d"}, "title"},
		{"blank title", entity.CreateServiceRequestInput{Title: "   ", Description: "d"}, "title"},
		{"missing description", entity.CreateServiceRequestInput{Title: "t"}, "description"},
		{"bad priority", entity.CreateServiceRequestInput{Title: "t", Description: "d", Priority: "urgent"}, "priority"},
		{"bad email", entity.CreateServiceRequestInput{Title: "t", Description: "d", CustomerEmail: "nope"}, "customerEmail"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := env.engine.CreateServiceRequest(context.Background(), tt.input)
			require.Error(t, err)
			var verr *entity.ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, verr.Fields, tt.field)
		})
	}

	assert.Empty(t, env.dispatcher.types())
	assert.Zero(t, env.runner.Count())
}

func TestCreateServiceRequest_PipelineHappyPath(t *testing.T) {
	env := newTestEnv(t)

	created, err := env.engine.CreateServiceRequest(context.Background(), entity.CreateServiceRequestInput{
		Title:       "Printer jam",
		Description: "Office printer on 3rd floor is jammed",
	})
	require.NoError(t, err)
	assert.Equal(t, entity.StatusNew, created.Status)
	assert.Equal(t, entity.PriorityMedium, created.Priority)
	assert.NotEmpty(t, created.ID)

	env.runner.Wait()

	final := env.requests.get(created.ID)
	require.NotNil(t, final)
	assert.Equal(t, entity.StatusRequestFulfilled, final.Status)
	assert.NotNil(t, final.RegisteredAt)
	assert.NotNil(t, final.ClassifiedAt)
	assert.NotNil(t, final.FulfilledAt)

	assert.Equal(t, []event.Type{
		event.TypeRequestCreated,
		event.TypeRequestRegistered,
		event.TypeRequestClassified,
		event.TypeRequestHandled,
	}, env.dispatcher.types())
	assert.False(t, env.engine.PipelineActive(created.ID))
}

func TestCreateServiceRequest_ClassifyFailureAborts(t *testing.T) {
	env := newTestEnv(t)
	env.orch.classifyFunc = func(ctx context.Context, req *entity.ServiceRequest) (*entity.ClassificationResult, error) {
		return nil, fmt.Errorf("%w: 503 from provider", entity.ErrUpstream)
	}

	created, err := env.engine.CreateServiceRequest(context.Background(), entity.CreateServiceRequestInput{
		Title:       "Printer jam",
		Description: "Office printer on 3rd floor is jammed",
	})
	require.NoError(t, err)

	env.runner.Wait()

	final := env.requests.get(created.ID)
	assert.Equal(t, entity.StatusAborted, final.Status)

	history, err := env.engine.GetRequestHistory(context.Background(), created.ID)
	require.NoError(t, err)
	require.Len(t, history, 2)
	assert.Equal(t, entity.StatusAborted, history[1].ToStatus)
	assert.Contains(t, history[1].ChangeReason, "503 from provider")

	_, handles := env.orch.calls()
	assert.Zero(t, handles)
}

func TestPipeline_CancelledDoesNotAbort(t *testing.T) {
	env := newTestEnv(t)
	started := make(chan struct{})
	env.orch.classifyFunc = func(ctx context.Context, req *entity.ServiceRequest) (*entity.ClassificationResult, error) {
		close(started)
		<-ctx.Done()
		return nil, ctx.Err()
	}

	created, err := env.engine.CreateServiceRequest(context.Background(), entity.CreateServiceRequestInput{
		Title:       "Printer jam",
		Description: "Office printer on 3rd floor is jammed",
	})
	require.NoError(t, err)

	<-started
	assert.True(t, env.engine.PipelineActive(created.ID))
	require.NoError(t, env.runner.Stop())

	assert.Equal(t, entity.StatusRegistered, env.requests.get(created.ID).Status)
	assert.False(t, env.engine.PipelineActive(created.ID))
}

func TestAdvance_ConcurrentHistoryChain(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seed("req-1", entity.StatusClassified)

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if i%5 == 4 {
				_, _ = env.engine.AbortRequest(ctx, "req-1", "stop")
				return
			}
			_, _ = env.engine.Advance(ctx, "req-1", entity.StatusClassified, entity.ActorAISystem, "again")
		}(i)
	}
	wg.Wait()

	history, err := env.engine.GetRequestHistory(ctx, "req-1")
	require.NoError(t, err)
	require.NotEmpty(t, history)

	require.NotNil(t, history[0].FromStatus)
	assert.Equal(t, entity.StatusClassified, *history[0].FromStatus)
	for i := 1; i < len(history); i++ {
		require.NotNil(t, history[i].FromStatus)
		assert.Equal(t, history[i-1].ToStatus, *history[i].FromStatus, "entry %d", i)
	}
	assert.Equal(t, history[len(history)-1].ToStatus, env.requests.get("req-1").Status)
	assert.Equal(t, entity.StatusAborted, env.requests.get("req-1").Status)
}

func TestUpdateRequest(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seed("req-1", entity.StatusRegistered)

	assignee := "  alice  "
	updated, err := env.engine.UpdateRequest(ctx, "req-1", entity.UpdateServiceRequestInput{AssignedTo: &assignee})
	require.NoError(t, err)
	assert.Equal(t, "alice", updated.AssignedTo)
	assert.Equal(t, entity.StatusRegistered, updated.Status)
	assert.Equal(t, []event.Type{event.TypeRequestUpdated}, env.dispatcher.types())
	assert.Empty(t, env.history.histories)

	missing, err := env.engine.UpdateRequest(ctx, "missing", entity.UpdateServiceRequestInput{AssignedTo: &assignee})
	require.NoError(t, err)
	assert.Nil(t, missing)

	_, err = env.engine.UpdateRequest(ctx, "req-1", entity.UpdateServiceRequestInput{})
	assert.ErrorIs(t, err, entity.ErrValidation)

	bad := entity.Priority("urgent")
	_, err = env.engine.UpdateRequest(ctx, "req-1", entity.UpdateServiceRequestInput{Priority: &bad})
	assert.ErrorIs(t, err, entity.ErrValidation)
}

func TestEngineClock_StampsRepositoryWrites(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seed("req-1", entity.StatusRegistered)

	clock := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)
	env.engine.(*engineImpl).now = func() time.Time { return clock }

	assignee := "bob"
	updated, err := env.engine.UpdateRequest(ctx, "req-1", entity.UpdateServiceRequestInput{AssignedTo: &assignee})
	require.NoError(t, err)
	assert.True(t, updated.UpdatedAt.Equal(clock))

	clock = clock.Add(30 * time.Minute)
	classified, err := env.engine.ClassifyRequest(ctx, "req-1")
	require.NoError(t, err)
	assert.True(t, classified.UpdatedAt.Equal(clock))
	require.NotNil(t, classified.ClassifiedAt)
	assert.True(t, classified.ClassifiedAt.Equal(clock))
}

func TestGetters(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()
	env.seed("req-1", entity.StatusNew)
	env.seed("req-2", entity.StatusClosed)

	got, err := env.engine.GetRequestByID(ctx, "req-1")
	require.NoError(t, err)
	assert.Equal(t, "req-1", got.ID)

	none, err := env.engine.GetRequestByID(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, none)

	list, err := env.engine.GetAllRequests(ctx, entity.RequestFilter{Status: entity.StatusClosed})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "req-2", list[0].ID)

	_, err = env.engine.GetRequestHistory(ctx, "missing")
	assert.ErrorIs(t, err, entity.ErrNotFound)
	_, err = env.engine.GetAIProcessingHistory(ctx, "missing")
	assert.ErrorIs(t, err, entity.ErrNotFound)

	logs, err := env.engine.GetAIProcessingHistory(ctx, "req-1")
	require.NoError(t, err)
	assert.Empty(t, logs)
}
