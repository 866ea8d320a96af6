package container

import (
	"database/sql"
	"fmt"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/aibymlMelissa/aibyml-business/internal/application/dispatcher"
	"github.com/aibymlMelissa/aibyml-business/internal/application/port"
	"github.com/aibymlMelissa/aibyml-business/internal/application/service"
	"github.com/aibymlMelissa/aibyml-business/internal/application/workflow"
	"github.com/aibymlMelissa/aibyml-business/internal/config"
	"github.com/aibymlMelissa/aibyml-business/internal/domain/entity"
	"github.com/aibymlMelissa/aibyml-business/internal/domain/event"
	anthropicEngine "github.com/aibymlMelissa/aibyml-business/internal/infrastructure/external/anthropic"
	infraLark "github.com/aibymlMelissa/aibyml-business/internal/infrastructure/external/lark"
	openaiEngine "github.com/aibymlMelissa/aibyml-business/internal/infrastructure/external/openai"
	"github.com/aibymlMelissa/aibyml-business/internal/infrastructure/external/prompt"
	"github.com/aibymlMelissa/aibyml-business/internal/infrastructure/persistence/repository"
	"github.com/aibymlMelissa/aibyml-business/internal/infrastructure/persistence/sqlite"
	"github.com/aibymlMelissa/aibyml-business/internal/infrastructure/pubsub"
	"github.com/aibymlMelissa/aibyml-business/internal/infrastructure/worker"
	"github.com/aibymlMelissa/aibyml-business/internal/interfaces/websocket"
	"github.com/aibymlMelissa/aibyml-business/pkg/database"
)

// Subscriber names registered on the dispatcher
const (
	subscriberHub        = "websocket_hub"
	subscriberRedis      = "redis_bridge"
	subscriberEscalation = "lark_escalation"
)

// DatabaseBundle holds database-related components.
type DatabaseBundle struct {
	DB             *database.DB
	TransactionMgr *sqlite.DB
}

// RepositoryBundle groups all repositories for convenient access.
type RepositoryBundle struct {
	Requests port.RequestRepository
	History  port.HistoryRepository
	AILogs   port.AILogRepository
}

// EngineBundle holds the AI engines selected by configuration.
type EngineBundle struct {
	Classifier port.AIEngine
	Handler    port.AIEngine
	Chatbot    *anthropicEngine.ChatbotEngine
}

// ProvideDatabase opens SQLite, applies the embedded migrations and wraps the
// connection in a transaction manager.
func ProvideDatabase(cfg *config.Config, logger *zap.Logger) (*DatabaseBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	db, err := database.New(databaseConfig(cfg), logger)
	if err != nil {
		return nil, err
	}

	if err := database.NewMigrator(db, logger).RunMigrations(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}

	return &DatabaseBundle{
		DB:             db,
		TransactionMgr: sqlite.NewDB(db.DB, logger),
	}, nil
}

// ProvideRepositories creates all repositories from a database connection.
func ProvideRepositories(sqlDB *sql.DB, logger *zap.Logger) (*RepositoryBundle, error) {
	if sqlDB == nil {
		return nil, fmt.Errorf("database connection is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return &RepositoryBundle{
		Requests: repository.NewRequestRepository(sqlDB, logger),
		History:  repository.NewHistoryRepository(sqlDB, logger),
		AILogs:   repository.NewAILogRepository(sqlDB, logger),
	}, nil
}

// ProvideEngines builds the classification and handling engines named by
// ai.classification_engine and ai.handling_engine, plus the chatbot.
func ProvideEngines(cfg *config.Config, logger *zap.Logger) (*EngineBundle, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	prompts, err := prompt.Load(cfg.AI.PromptsPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load prompts: %w", err)
	}

	classifier, err := newEngine(cfg, cfg.AI.ClassificationEngine, entity.EngineTypeClassification, prompts, logger)
	if err != nil {
		return nil, err
	}
	handler, err := newEngine(cfg, cfg.AI.HandlingEngine, entity.EngineTypeHandling, prompts, logger)
	if err != nil {
		return nil, err
	}

	bundle := &EngineBundle{Classifier: classifier, Handler: handler}
	if cfg.Anthropic.APIKey != "" {
		bundle.Chatbot = anthropicEngine.NewChatbotEngine(
			anthropicConfig(cfg, cfg.Anthropic.ChatbotModel),
			prompts,
			logger.Named("chatbot"),
		)
	}

	logger.Info("AI engines configured",
		zap.String("classification", classifier.Name()),
		zap.String("handling", handler.Name()),
		zap.Bool("chatbot", bundle.Chatbot != nil))

	return bundle, nil
}

func newEngine(cfg *config.Config, provider string, role entity.EngineType, prompts *prompt.Config, logger *zap.Logger) (port.AIEngine, error) {
	switch provider {
	case config.ProviderOpenAI:
		c := openAIConfig(cfg)
		c.Type = role
		return openaiEngine.NewEngine(c, prompts, logger.Named("openai")), nil
	case config.ProviderAnthropic:
		return anthropicEngine.NewEngine(anthropicConfig(cfg, cfg.Anthropic.Model), role, prompts, logger.Named("anthropic")), nil
	default:
		return nil, fmt.Errorf("unknown %s engine provider %q", role, provider)
	}
}

// ProvideDispatcher creates the event dispatcher.
func ProvideDispatcher(logger *zap.Logger) (dispatcher.Dispatcher, error) {
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	return dispatcher.NewDispatcher(
		dispatcher.WithLogger(newLogger(logger.Named("dispatcher"))),
	), nil
}

// ProvideHub creates the notification hub and subscribes it to every event.
func ProvideHub(cfg *config.Config, disp dispatcher.Dispatcher, logger *zap.Logger) *websocket.Hub {
	hub := websocket.NewHub(hubConfig(cfg), logger.Named("websocket"))
	disp.SubscribeAll(subscriberHub, hub.HandleEvent)
	return hub
}

// ProvideEscalation subscribes the Lark escalation notifier when Lark is
// configured. It returns nil otherwise.
func ProvideEscalation(cfg *config.Config, disp dispatcher.Dispatcher, logger *zap.Logger) *service.EscalationService {
	if !cfg.Lark.Enabled() {
		logger.Info("Lark escalation disabled")
		return nil
	}

	messenger := infraLark.NewMessenger(
		infraLark.NewClient(larkConfig(cfg)),
		cfg.Lark.ReceiveIDType,
		cfg.Lark.ReceiveID,
		logger.Named("lark"),
	)
	escalation := service.NewEscalationService(messenger, newLogger(logger.Named("escalation")))

	disp.SubscribeAsync(event.TypeRequestAborted, subscriberEscalation, escalation.HandleEvent)
	disp.SubscribeAsync(event.TypeRequestHandled, subscriberEscalation, escalation.HandleEvent)

	logger.Info("Lark escalation enabled", zap.String("receive_id_type", cfg.Lark.ReceiveIDType))
	return escalation
}

// RedisBundle holds the optional cross-process notification bridge.
type RedisBundle struct {
	Client redis.UniversalClient
	Bridge *pubsub.RedisBridge
}

// ProvideRedisBridge connects the hub to a Redis channel when redis.addr is
// set. It returns nil otherwise.
func ProvideRedisBridge(cfg *config.Config, disp dispatcher.Dispatcher, sink port.Broadcaster, logger *zap.Logger) *RedisBundle {
	if !cfg.Redis.Enabled() {
		logger.Info("Redis bridge disabled")
		return nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	bridge := pubsub.NewRedisBridge(client, redisChannel(cfg), sink, logger.Named("redis"))
	disp.SubscribeAll(subscriberRedis, bridge.HandleEvent)

	return &RedisBundle{Client: client, Bridge: bridge}
}

// WorkflowDeps holds dependencies required for creating the workflow engine.
type WorkflowDeps struct {
	Config       *config.Config
	Repos        *RepositoryBundle
	TxManager    port.TransactionManager
	Orchestrator workflow.Orchestrator
	Dispatcher   dispatcher.Dispatcher
	Pipeline     *workflow.PipelineRunner
	Logger       *zap.Logger
}

// ProvideWorkflowEngine creates the workflow engine.
func ProvideWorkflowEngine(deps *WorkflowDeps) (workflow.WorkflowEngine, error) {
	if deps == nil {
		return nil, fmt.Errorf("workflow dependencies are required")
	}
	if deps.Repos == nil {
		return nil, fmt.Errorf("repositories are required")
	}
	if deps.TxManager == nil {
		return nil, fmt.Errorf("transaction manager is required")
	}
	if deps.Orchestrator == nil {
		return nil, fmt.Errorf("orchestrator is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}

	return workflow.NewEngine(
		deps.Repos.Requests,
		deps.Repos.History,
		deps.Repos.AILogs,
		deps.TxManager,
		deps.Orchestrator,
		workflow.WithDispatcher(deps.Dispatcher),
		workflow.WithPipelineRunner(deps.Pipeline),
		workflow.WithLogger(newLogger(deps.Logger.Named("workflow"))),
		workflow.WithStageDelays(deps.Config.Workflow.RegisterDelay, deps.Config.Workflow.ClassifyDelay),
	), nil
}

// WorkerDeps holds dependencies required for creating workers.
type WorkerDeps struct {
	Config   *config.Config
	Engine   workflow.WorkflowEngine
	Pipeline *workflow.PipelineRunner
	Redis    *RedisBundle
	Logger   *zap.Logger
}

// ProvideWorkers registers all background workers. Registration order is
// start order; they stop in reverse.
func ProvideWorkers(deps *WorkerDeps) (*worker.WorkerManager, error) {
	if deps == nil {
		return nil, fmt.Errorf("worker dependencies are required")
	}
	if deps.Logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	manager := worker.NewWorkerManager(deps.Logger.Named("workers"))

	if deps.Pipeline != nil {
		manager.Register(deps.Pipeline)
	}

	if deps.Redis != nil {
		manager.Register(deps.Redis.Bridge)
	}

	if deps.Config.Sweeper.Enabled {
		sweeper, err := worker.NewStaleRequestSweeper(
			deps.Engine,
			deps.Config.Sweeper.Schedule,
			deps.Config.Sweeper.StaleAfter,
			deps.Logger.Named("sweeper"),
		)
		if err != nil {
			return nil, err
		}
		manager.Register(sweeper)
	}

	return manager, nil
}
