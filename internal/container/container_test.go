package container

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/aibymlMelissa/aibyml-business/internal/config"
	"github.com/aibymlMelissa/aibyml-business/internal/domain/entity"
	httpServer "github.com/aibymlMelissa/aibyml-business/internal/interfaces/http"
)

func testConfig(t *testing.T) *config.Config {
	t.Helper()
	return &config.Config{
		Server: config.ServerConfig{Host: "127.0.0.1", Port: 3000, CORSOrigin: "*"},
		Database: config.DatabaseConfig{
			Path:         filepath.Join(t.TempDir(), "requests.db"),
			MaxOpenConns: 5,
			MaxIdleConns: 2,
		},
		OpenAI:    config.OpenAIConfig{APIKey: "sk-test", Model: "gpt-4"},
		Anthropic: config.AnthropicConfig{APIKey: "sk-ant-test", Model: "claude-test", ChatbotModel: "claude-test"},
		AI: config.AIConfig{
			ClassificationEngine: config.ProviderOpenAI,
			HandlingEngine:       config.ProviderAnthropic,
			Timeout:              time.Second,
		},
		// the pipeline parks after registration so no engine is ever called
		Workflow:  config.WorkflowConfig{RegisterDelay: time.Hour, ClassifyDelay: time.Hour},
		WebSocket: config.WebSocketConfig{Path: "/ws", SendBuffer: 8, WriteTimeout: time.Second, PingInterval: time.Minute},
		Sweeper:   config.SweeperConfig{Enabled: true, Schedule: "*/5 * * * *", StaleAfter: time.Hour},
	}
}

func TestNewContainer_Validation(t *testing.T) {
	_, err := NewContainer(nil, zap.NewNop())
	assert.Error(t, err)

	_, err = NewContainer(testConfig(t), nil)
	assert.Error(t, err)

	cfg := testConfig(t)
	cfg.OpenAI.APIKey = ""
	_, err = NewContainer(cfg, zap.NewNop())
	assert.ErrorContains(t, err, "openai.api_key")
}

func TestContainer_Lifecycle(t *testing.T) {
	c, err := NewContainer(testConfig(t), zap.NewNop())
	require.NoError(t, err)

	require.NoError(t, c.Start(t.Context()))
	assert.True(t, c.Ready())
	assert.Error(t, c.Start(t.Context()), "second start must fail")

	assert.ElementsMatch(t,
		[]string{"pipeline-runner", "stale-request-sweeper"},
		c.Workers().RunningWorkers())

	health := c.Health()
	assert.True(t, health["database"].Healthy)
	assert.True(t, health["workers"].Healthy)
	_, hasRedis := health["redis"]
	assert.False(t, hasRedis)

	router := c.HTTPServer().Router()

	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.Equal(t, http.StatusOK, rec.Code)
	var hr httpServer.HealthResponse
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &hr))
	assert.Equal(t, "healthy", hr.Status)
	assert.Equal(t, 0, hr.WebSocketClients)

	body, _ := json.Marshal(entity.CreateServiceRequestInput{
		Title:       "Printer jam",
		Description: "Paper stuck in tray 2",
	})
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/service-requests", bytes.NewReader(body)))
	require.Equal(t, http.StatusCreated, rec.Code)

	var created entity.ServiceRequest
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &created))
	require.NotEmpty(t, created.ID)

	assert.Eventually(t, func() bool {
		req, err := c.WorkflowEngine().GetRequestByID(t.Context(), created.ID)
		return err == nil && req != nil && req.Status == entity.StatusRegistered
	}, 2*time.Second, 10*time.Millisecond)

	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/chatbot/welcome", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	require.NoError(t, c.Close())
	assert.False(t, c.Ready())
	assert.Nil(t, c.DB())
	assert.Error(t, c.Close())
	assert.Error(t, c.Start(t.Context()))
}

func TestContainer_UnknownPromptsFileFallsBackToDefaults(t *testing.T) {
	cfg := testConfig(t)
	cfg.Sweeper.Enabled = false
	cfg.AI.PromptsPath = filepath.Join(t.TempDir(), "missing.yaml")

	c, err := NewContainer(cfg, zap.NewNop())
	require.NoError(t, err)
	require.NoError(t, c.Start(t.Context()))
	t.Cleanup(func() { _ = c.Close() })

	assert.Equal(t, []string{"pipeline-runner"}, c.Workers().RunningWorkers())
	assert.NotNil(t, c.Orchestrator())
}
