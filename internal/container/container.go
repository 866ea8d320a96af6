package container

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/aibymlMelissa/aibyml-business/internal/application/dispatcher"
	"github.com/aibymlMelissa/aibyml-business/internal/application/service"
	"github.com/aibymlMelissa/aibyml-business/internal/application/workflow"
	"github.com/aibymlMelissa/aibyml-business/internal/config"
	"github.com/aibymlMelissa/aibyml-business/internal/infrastructure/export"
	"github.com/aibymlMelissa/aibyml-business/internal/infrastructure/worker"
	httpServer "github.com/aibymlMelissa/aibyml-business/internal/interfaces/http"
	"github.com/aibymlMelissa/aibyml-business/internal/interfaces/websocket"
	"github.com/aibymlMelissa/aibyml-business/pkg/database"
)

const healthTimeout = 2 * time.Second

// Container manages all application dependencies and lifecycle.
// Components are built in dependency order and torn down in reverse.
type Container struct {
	config *config.Config
	logger *zap.Logger

	// Infrastructure - Data
	db           *DatabaseBundle
	repositories *RepositoryBundle

	// Infrastructure - External
	engines *EngineBundle
	redis   *RedisBundle

	// Application
	dispatcher   dispatcher.Dispatcher
	orchestrator *service.AIOrchestrator
	escalation   *service.EscalationService
	chatbot      *service.ChatbotService
	pipeline     *workflow.PipelineRunner
	workflow     workflow.WorkflowEngine

	// Interfaces
	hub      *websocket.Hub
	exporter *export.RequestExporter
	server   *httpServer.Server

	// Workers
	workers *worker.WorkerManager

	// Lifecycle
	mu     sync.Mutex
	ctx    context.Context
	cancel context.CancelFunc
	ready  atomic.Bool
	closed atomic.Bool
}

// NewContainer creates a new container from configuration.
// It does not initialize components - call Start() to initialize.
func NewContainer(cfg *config.Config, logger *zap.Logger) (*Container, error) {
	if cfg == nil {
		return nil, fmt.Errorf("config is required")
	}
	if logger == nil {
		return nil, fmt.Errorf("logger is required")
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &Container{
		config: cfg,
		logger: logger,
	}, nil
}

// Start initializes all components and begins background processing:
// 1. Database and repositories
// 2. AI engines and orchestrator
// 3. Dispatcher and its subscribers (hub, escalation, Redis bridge)
// 4. Workflow engine, chatbot, exporter and HTTP server
// 5. Workers
func (c *Container) Start(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container has been closed")
	}
	if c.ready.Load() {
		return fmt.Errorf("container already started")
	}

	c.ctx, c.cancel = context.WithCancel(ctx)
	c.logger.Info("Starting container initialization")

	if err := c.initDatabase(); err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	c.logger.Info("Database initialized")

	if err := c.initAI(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize AI engines: %w", err)
	}
	c.logger.Info("AI engines initialized")

	if err := c.initDispatcher(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize dispatcher: %w", err)
	}
	c.logger.Info("Dispatcher and subscribers initialized")

	if err := c.initApplication(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize application: %w", err)
	}
	c.logger.Info("Workflow engine initialized")

	if err := c.initWorkers(); err != nil {
		c.teardown()
		return fmt.Errorf("failed to initialize workers: %w", err)
	}
	c.logger.Info("Workers started", zap.Strings("workers", c.workers.RunningWorkers()))

	c.ready.Store(true)
	c.logger.Info("Container started successfully")
	return nil
}

// Close gracefully shuts down all components in reverse order.
func (c *Container) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed.Load() {
		return fmt.Errorf("container already closed")
	}

	c.logger.Info("Closing container")
	errs := c.teardown()

	c.closed.Store(true)
	c.ready.Store(false)

	if len(errs) > 0 {
		c.logger.Error("Container closed with errors", zap.Int("error_count", len(errs)))
		return fmt.Errorf("container closed with %d errors: %w", len(errs), errs[0])
	}

	c.logger.Info("Container closed successfully")
	return nil
}

// teardown releases whatever has been built so far
func (c *Container) teardown() []error {
	var errs []error

	if c.cancel != nil {
		c.cancel()
	}

	// Workers first: no pipeline may write after the database closes
	if c.workers != nil {
		if err := c.workers.StopAll(); err != nil {
			c.logger.Error("Failed to stop workers", zap.Error(err))
			errs = append(errs, fmt.Errorf("stop workers: %w", err))
		}
	} else if c.pipeline != nil {
		_ = c.pipeline.Stop()
	}

	if c.hub != nil {
		if err := c.hub.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close hub: %w", err))
		}
	}

	if c.dispatcher != nil {
		if err := c.dispatcher.Close(); err != nil {
			c.logger.Error("Failed to close dispatcher", zap.Error(err))
			errs = append(errs, fmt.Errorf("close dispatcher: %w", err))
		}
	}

	if c.redis != nil {
		if err := c.redis.Client.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close redis: %w", err))
		}
	}

	if c.db != nil {
		if err := c.db.DB.Close(); err != nil {
			c.logger.Error("Failed to close database", zap.Error(err))
			errs = append(errs, fmt.Errorf("close database: %w", err))
		} else {
			c.logger.Info("Database closed")
		}
	}

	c.workers, c.hub, c.dispatcher, c.redis, c.db = nil, nil, nil, nil, nil
	return errs
}

// Ready returns true when all components are initialized.
func (c *Container) Ready() bool {
	return c.ready.Load()
}

// Health returns the health of every backing component.
func (c *Container) Health() map[string]httpServer.ComponentHealth {
	components := make(map[string]httpServer.ComponentHealth)

	ctx, cancel := context.WithTimeout(context.Background(), healthTimeout)
	defer cancel()

	if c.db != nil {
		if err := c.db.DB.PingContext(ctx); err != nil {
			components["database"] = httpServer.ComponentHealth{Message: fmt.Sprintf("ping failed: %v", err)}
		} else {
			components["database"] = httpServer.ComponentHealth{Healthy: true}
		}
	} else {
		components["database"] = httpServer.ComponentHealth{Message: "not initialized"}
	}

	if c.workers != nil {
		running := c.workers.RunningWorkers()
		components["workers"] = httpServer.ComponentHealth{
			Healthy: c.workers.IsRunning(),
			Message: fmt.Sprintf("%d of %d running", len(running), c.workers.GetWorkerCount()),
		}
	} else {
		components["workers"] = httpServer.ComponentHealth{Message: "not initialized"}
	}

	if c.redis != nil {
		health := httpServer.ComponentHealth{Healthy: true}
		if err := c.redis.Client.Ping(ctx).Err(); err != nil {
			health = httpServer.ComponentHealth{Message: fmt.Sprintf("ping failed: %v", err)}
		} else if c.workers == nil || !slices.Contains(c.workers.RunningWorkers(), c.redis.Bridge.Name()) {
			health = httpServer.ComponentHealth{Message: "bridge not subscribed"}
		}
		components["redis"] = health
	}

	if c.pipeline != nil {
		components["pipelines"] = httpServer.ComponentHealth{
			Healthy: true,
			Message: fmt.Sprintf("%d in flight", c.pipeline.Count()),
		}
	}

	return components
}

// initDatabase opens the database and creates all repositories.
func (c *Container) initDatabase() error {
	db, err := ProvideDatabase(c.config, c.logger)
	if err != nil {
		return err
	}
	c.db = db

	repos, err := ProvideRepositories(db.DB.DB, c.logger)
	if err != nil {
		_ = db.DB.Close()
		c.db = nil
		return err
	}
	c.repositories = repos
	return nil
}

// initAI builds the engines and the orchestrator that fronts them.
func (c *Container) initAI() error {
	engines, err := ProvideEngines(c.config, c.logger)
	if err != nil {
		return err
	}
	c.engines = engines

	c.orchestrator = service.NewAIOrchestrator(
		engines.Classifier,
		engines.Handler,
		c.repositories.AILogs,
		newLogger(c.logger.Named("orchestrator")),
		service.WithEngineTimeout(c.config.AI.Timeout),
	)
	return nil
}

// initDispatcher creates the dispatcher and registers its subscribers.
func (c *Container) initDispatcher() error {
	disp, err := ProvideDispatcher(c.logger)
	if err != nil {
		return err
	}
	c.dispatcher = disp

	c.hub = ProvideHub(c.config, disp, c.logger)
	c.escalation = ProvideEscalation(c.config, disp, c.logger)
	c.redis = ProvideRedisBridge(c.config, disp, c.hub, c.logger)
	return nil
}

// initApplication creates the workflow engine and the HTTP surface.
func (c *Container) initApplication() error {
	c.pipeline = workflow.NewPipelineRunner(newLogger(c.logger.Named("pipeline")))

	engine, err := ProvideWorkflowEngine(&WorkflowDeps{
		Config:       c.config,
		Repos:        c.repositories,
		TxManager:    c.db.TransactionMgr,
		Orchestrator: c.orchestrator,
		Dispatcher:   c.dispatcher,
		Pipeline:     c.pipeline,
		Logger:       c.logger,
	})
	if err != nil {
		return err
	}
	c.workflow = engine

	if c.engines.Chatbot != nil {
		c.chatbot = service.NewChatbotService(c.engines.Chatbot, newLogger(c.logger.Named("chatbot")))
	}
	c.exporter = export.NewRequestExporter(c.logger.Named("export"))

	deps := httpServer.Dependencies{
		Engine:   c.workflow,
		Exporter: c.exporter,
		Notifier: c.hub,
		Health:   c.Health,
	}
	if c.chatbot != nil {
		deps.Chatbot = c.chatbot
	}
	c.server = httpServer.NewServer(serverConfig(c.config), deps, newLogger(c.logger.Named("http")))
	return nil
}

// initWorkers registers and starts all background workers. A worker that
// cannot start is reported through Health instead of failing startup.
func (c *Container) initWorkers() error {
	workers, err := ProvideWorkers(&WorkerDeps{
		Config:   c.config,
		Engine:   c.workflow,
		Pipeline: c.pipeline,
		Redis:    c.redis,
		Logger:   c.logger,
	})
	if err != nil {
		return err
	}
	c.workers = workers

	if err := c.workers.StartAll(c.ctx); err != nil {
		c.logger.Error("Some workers failed to start", zap.Error(err))
	}
	return nil
}

// Getters for accessing container components

// Repositories returns all repositories.
func (c *Container) Repositories() *RepositoryBundle {
	return c.repositories
}

// Dispatcher returns the event dispatcher.
func (c *Container) Dispatcher() dispatcher.Dispatcher {
	return c.dispatcher
}

// WorkflowEngine returns the workflow engine.
func (c *Container) WorkflowEngine() workflow.WorkflowEngine {
	return c.workflow
}

// Orchestrator returns the AI orchestrator.
func (c *Container) Orchestrator() *service.AIOrchestrator {
	return c.orchestrator
}

// Hub returns the notification hub.
func (c *Container) Hub() *websocket.Hub {
	return c.hub
}

// HTTPServer returns the HTTP server; call its Start to serve.
func (c *Container) HTTPServer() *httpServer.Server {
	return c.server
}

// Workers returns the worker manager.
func (c *Container) Workers() *worker.WorkerManager {
	return c.workers
}

// Logger returns the container's logger.
func (c *Container) Logger() *zap.Logger {
	return c.logger
}

// Config returns the container's configuration.
func (c *Container) Config() *config.Config {
	return c.config
}

// DB returns the underlying database handle.
func (c *Container) DB() *database.DB {
	if c.db == nil {
		return nil
	}
	return c.db.DB
}
