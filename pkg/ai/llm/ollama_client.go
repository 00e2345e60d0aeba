package llm

import (
	"log"

	"github.com/sashabaranov/go-openai"
)

// OllamaClient wraps Ollama API (OpenAI compatible)
type OllamaClient struct {
	*completer
}

// OllamaConfig for Ollama client
type OllamaConfig struct {
	BaseURL     string  // default: http://localhost:11434/v1
	Model       string  // default: llama3.1:8b
	Temperature float32 // default: 0.2
	MaxTokens   int     // default: 4000
}

// NewOllamaClient creates a new Ollama client
func NewOllamaClient(cfg OllamaConfig, logger *log.Logger) *OllamaClient {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "http://localhost:11434/v1"
	}
	if cfg.Model == "" {
		cfg.Model = "llama3.1:8b"
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.2
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 4000
	}
	if logger == nil {
		logger = log.Default()
	}

	// API key is not checked by Ollama
	config := openai.DefaultConfig("ollama")
	config.BaseURL = cfg.BaseURL

	logger.Printf("ollama client initialized (model: %s, url: %s)", cfg.Model, cfg.BaseURL)

	return &OllamaClient{completer: &completer{
		provider:    "ollama",
		client:      openai.NewClientWithConfig(config),
		model:       cfg.Model,
		temperature: cfg.Temperature,
		maxTokens:   cfg.MaxTokens,
		logger:      logger,
	}}
}
