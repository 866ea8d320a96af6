package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Engine provider names accepted by ai.classification_engine and ai.handling_engine
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

// Config holds all application configuration
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Anthropic AnthropicConfig `mapstructure:"anthropic"`
	AI        AIConfig        `mapstructure:"ai"`
	Workflow  WorkflowConfig  `mapstructure:"workflow"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Lark      LarkConfig      `mapstructure:"lark"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Sweeper   SweeperConfig   `mapstructure:"sweeper"`
	Logger    LoggerConfig    `mapstructure:"logger"`
}

// ServerConfig holds HTTP server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	CORSOrigin   string        `mapstructure:"cors_origin"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
}

// OpenAIConfig holds OpenAI API configuration
type OpenAIConfig struct {
	APIKey  string `mapstructure:"api_key"`
	Model   string `mapstructure:"model"`
	BaseURL string `mapstructure:"base_url"`
}

// AnthropicConfig holds Anthropic API configuration
type AnthropicConfig struct {
	APIKey       string `mapstructure:"api_key"`
	Model        string `mapstructure:"model"`
	ChatbotModel string `mapstructure:"chatbot_model"`
	BaseURL      string `mapstructure:"base_url"`
}

// AIConfig selects engines and bounds their calls
type AIConfig struct {
	ClassificationEngine string        `mapstructure:"classification_engine"`
	HandlingEngine       string        `mapstructure:"handling_engine"`
	Timeout              time.Duration `mapstructure:"timeout"`
	PromptsPath          string        `mapstructure:"prompts_path"`
}

// WorkflowConfig holds pipeline pacing
type WorkflowConfig struct {
	RegisterDelay time.Duration `mapstructure:"register_delay"`
	ClassifyDelay time.Duration `mapstructure:"classify_delay"`
}

// WebSocketConfig holds notification channel settings
type WebSocketConfig struct {
	Path         string        `mapstructure:"path"`
	SendBuffer   int           `mapstructure:"send_buffer"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
	PingInterval time.Duration `mapstructure:"ping_interval"`
}

// LarkConfig holds escalation notifier settings; empty AppID disables it
type LarkConfig struct {
	AppID         string        `mapstructure:"app_id"`
	AppSecret     string        `mapstructure:"app_secret"`
	ReceiveIDType string        `mapstructure:"receive_id_type"`
	ReceiveID     string        `mapstructure:"receive_id"`
	APITimeout    time.Duration `mapstructure:"api_timeout"`
}

// Enabled reports whether escalation messages should be sent
func (l LarkConfig) Enabled() bool {
	return l.AppID != "" && l.AppSecret != "" && l.ReceiveID != ""
}

// RedisConfig holds the cross-process notification bridge settings; empty Addr disables it
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
	Channel  string `mapstructure:"channel"`
}

// Enabled reports whether the Redis bridge should run
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

// SweeperConfig holds the stale request sweeper settings
type SweeperConfig struct {
	Enabled    bool          `mapstructure:"enabled"`
	Schedule   string        `mapstructure:"schedule"`
	StaleAfter time.Duration `mapstructure:"stale_after"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// Load loads configuration from an optional YAML file, a .env file in the
// working directory and environment variables, in increasing precedence.
func Load(configPath string) (*Config, error) {
	if err := gotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("failed to read config file: %w", err)
			}
		}
	}

	if err := bindEnvVars(v); err != nil {
		return nil, err
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 3000)
	v.SetDefault("server.read_timeout", 30*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.cors_origin", "http://localhost:3001")

	v.SetDefault("database.path", "data/service_requests.db")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", 5*time.Minute)

	v.SetDefault("openai.model", "gpt-4")
	v.SetDefault("anthropic.model", "claude-3-sonnet-20240229")
	v.SetDefault("anthropic.chatbot_model", "claude-3-sonnet-20240229")

	v.SetDefault("ai.classification_engine", ProviderOpenAI)
	v.SetDefault("ai.handling_engine", ProviderAnthropic)
	v.SetDefault("ai.timeout", 30*time.Second)

	v.SetDefault("workflow.register_delay", time.Second)
	v.SetDefault("workflow.classify_delay", 500*time.Millisecond)

	v.SetDefault("websocket.path", "/ws")
	v.SetDefault("websocket.send_buffer", 64)
	v.SetDefault("websocket.write_timeout", 10*time.Second)
	v.SetDefault("websocket.ping_interval", 30*time.Second)

	v.SetDefault("lark.receive_id_type", "chat_id")
	v.SetDefault("lark.api_timeout", 10*time.Second)

	v.SetDefault("redis.channel", "service-requests:events")

	v.SetDefault("sweeper.enabled", true)
	v.SetDefault("sweeper.schedule", "*/5 * * * *")
	v.SetDefault("sweeper.stale_after", 10*time.Minute)

	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.output_path", "stdout")
	v.SetDefault("logger.format", "json")
}

// bindEnvVars binds the conventional provider variable names
func bindEnvVars(v *viper.Viper) error {
	bindings := map[string]string{
		"openai.api_key":    "OPENAI_API_KEY",
		"anthropic.api_key": "ANTHROPIC_API_KEY",
		"lark.app_id":       "LARK_APP_ID",
		"lark.app_secret":   "LARK_APP_SECRET",
		"lark.receive_id":   "LARK_RECEIVE_ID",
		"redis.addr":        "REDIS_ADDR",
		"redis.password":    "REDIS_PASSWORD",
		"database.path":     "DATABASE_PATH",
		"server.port":       "PORT",
	}
	for key, env := range bindings {
		if err := v.BindEnv(key, env); err != nil {
			return fmt.Errorf("failed to bind %s: %w", env, err)
		}
	}
	return nil
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port must be between 1 and 65535")
	}
	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	for key, provider := range map[string]string{
		"ai.classification_engine": c.AI.ClassificationEngine,
		"ai.handling_engine":       c.AI.HandlingEngine,
	} {
		switch provider {
		case ProviderOpenAI:
			if c.OpenAI.APIKey == "" {
				return fmt.Errorf("openai.api_key is required when %s is %s", key, provider)
			}
		case ProviderAnthropic:
			if c.Anthropic.APIKey == "" {
				return fmt.Errorf("anthropic.api_key is required when %s is %s", key, provider)
			}
		default:
			return fmt.Errorf("%s must be %q or %q", key, ProviderOpenAI, ProviderAnthropic)
		}
	}

	if c.AI.Timeout <= 0 {
		return fmt.Errorf("ai.timeout must be positive")
	}
	if c.Workflow.RegisterDelay < 0 || c.Workflow.ClassifyDelay < 0 {
		return fmt.Errorf("workflow delays must not be negative")
	}
	if c.WebSocket.SendBuffer <= 0 {
		return fmt.Errorf("websocket.send_buffer must be positive")
	}
	if c.Sweeper.Enabled {
		if c.Sweeper.Schedule == "" {
			return fmt.Errorf("sweeper.schedule is required when the sweeper is enabled")
		}
		if c.Sweeper.StaleAfter <= 0 {
			return fmt.Errorf("sweeper.stale_after must be positive")
		}
	}

	return nil
}

// Address returns the HTTP listen address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
