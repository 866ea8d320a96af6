// Package container wires the service request platform together and owns the
// lifecycle of every long-lived component.
package container

import (
	"github.com/aibymlMelissa/aibyml-business/internal/config"
	anthropicEngine "github.com/aibymlMelissa/aibyml-business/internal/infrastructure/external/anthropic"
	infraLark "github.com/aibymlMelissa/aibyml-business/internal/infrastructure/external/lark"
	openaiEngine "github.com/aibymlMelissa/aibyml-business/internal/infrastructure/external/openai"
	"github.com/aibymlMelissa/aibyml-business/internal/infrastructure/pubsub"
	httpServer "github.com/aibymlMelissa/aibyml-business/internal/interfaces/http"
	"github.com/aibymlMelissa/aibyml-business/internal/interfaces/websocket"
	"github.com/aibymlMelissa/aibyml-business/pkg/database"
)

// The helpers below translate the application config into the settings each
// component takes, so component packages never import internal/config.

func databaseConfig(cfg *config.Config) database.Config {
	return database.Config{
		Path:            cfg.Database.Path,
		MaxOpenConns:    cfg.Database.MaxOpenConns,
		MaxIdleConns:    cfg.Database.MaxIdleConns,
		ConnMaxLifetime: cfg.Database.ConnMaxLifetime,
	}
}

func serverConfig(cfg *config.Config) httpServer.ServerConfig {
	return httpServer.ServerConfig{
		Host:          cfg.Server.Host,
		Port:          cfg.Server.Port,
		ReadTimeout:   cfg.Server.ReadTimeout,
		WriteTimeout:  cfg.Server.WriteTimeout,
		CORSOrigin:    cfg.Server.CORSOrigin,
		WebSocketPath: cfg.WebSocket.Path,
	}
}

func hubConfig(cfg *config.Config) websocket.Config {
	return websocket.Config{
		SendBuffer:   cfg.WebSocket.SendBuffer,
		WriteTimeout: cfg.WebSocket.WriteTimeout,
		PingInterval: cfg.WebSocket.PingInterval,
	}
}

func openAIConfig(cfg *config.Config) openaiEngine.Config {
	return openaiEngine.Config{
		APIKey:  cfg.OpenAI.APIKey,
		Model:   cfg.OpenAI.Model,
		BaseURL: cfg.OpenAI.BaseURL,
	}
}

func anthropicConfig(cfg *config.Config, model string) anthropicEngine.Config {
	return anthropicEngine.Config{
		APIKey:  cfg.Anthropic.APIKey,
		Model:   model,
		BaseURL: cfg.Anthropic.BaseURL,
	}
}

func larkConfig(cfg *config.Config) infraLark.Config {
	return infraLark.Config{
		AppID:     cfg.Lark.AppID,
		AppSecret: cfg.Lark.AppSecret,
		Timeout:   cfg.Lark.APITimeout,
	}
}

func redisChannel(cfg *config.Config) string {
	if cfg.Redis.Channel == "" {
		return pubsub.DefaultChannel
	}
	return cfg.Redis.Channel
}
