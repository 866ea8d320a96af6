// Package prompt holds the prompt templates shared by the AI engines and the
// helpers that turn model answers back into domain results.
package prompt

import (
	"bytes"
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"text/template"

	"github.com/aibymlMelissa/aibyml-business/internal/domain/entity"
	"gopkg.in/yaml.v3"
)

//go:embed default_prompts.yaml
var defaultPromptsYAML []byte

// Settings is one prompt plus its model parameters
type Settings struct {
	Temperature  float32 `yaml:"temperature"`
	MaxTokens    int     `yaml:"max_tokens"`
	System       string  `yaml:"system"`
	UserTemplate string  `yaml:"user_template"`
}

// Config holds every prompt used by the engines
type Config struct {
	Classification Settings `yaml:"classification"`
	Handling       Settings `yaml:"handling"`
	Conversation   Settings `yaml:"conversation"`
}

// ClassificationData is the template input for classification prompts
type ClassificationData struct {
	Title         string
	Description   string
	CustomerEmail string
}

// HandlingData is the template input for handling prompts
type HandlingData struct {
	Title       string
	Description string
	Category    string
	Priority    string
	Department  string
}

// ConversationData is the template input for chatbot prompts
type ConversationData struct {
	History []entity.ChatMessage
	Message string
}

// Default returns the built-in prompts
func Default() *Config {
	var cfg Config
	if err := yaml.Unmarshal(defaultPromptsYAML, &cfg); err != nil {
		panic(fmt.Sprintf("built-in prompts are invalid: %v", err))
	}
	return &cfg
}

// Load reads prompts from a YAML file. Sections and fields absent from the
// file keep their built-in values. An empty path or a missing file yields
// the defaults.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read prompts file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal prompts: %w", err)
	}

	for name, s := range map[string]Settings{
		"classification": cfg.Classification,
		"handling":       cfg.Handling,
		"conversation":   cfg.Conversation,
	} {
		if _, err := template.New(name).Parse(s.UserTemplate); err != nil {
			return nil, fmt.Errorf("invalid %s template: %w", name, err)
		}
	}

	return cfg, nil
}

// ForClassification builds the classification prompt for req
func (c *Config) ForClassification(req *entity.ServiceRequest) (string, error) {
	return Render(c.Classification.UserTemplate, ClassificationData{
		Title:         req.Title,
		Description:   req.Description,
		CustomerEmail: req.CustomerEmail,
	})
}

// ForHandling builds the handling prompt for req
func (c *Config) ForHandling(req *entity.ServiceRequest) (string, error) {
	category := ""
	if req.Category != nil {
		category = string(*req.Category)
	}
	return Render(c.Handling.UserTemplate, HandlingData{
		Title:       req.Title,
		Description: req.Description,
		Category:    category,
		Priority:    string(req.Priority),
		Department:  req.Department,
	})
}

// ForConversation builds the chatbot prompt
func (c *Config) ForConversation(message string, history []entity.ChatMessage) (string, error) {
	return Render(c.Conversation.UserTemplate, ConversationData{History: history, Message: message})
}

// Render renders a template with provided data
func Render(templateStr string, data interface{}) (string, error) {
	tmpl, err := template.New("prompt").Parse(templateStr)
	if err != nil {
		return "", fmt.Errorf("failed to parse template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return "", fmt.Errorf("failed to execute template: %w", err)
	}

	return buf.String(), nil
}
