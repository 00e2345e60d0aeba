package llm

import "context"

// LLMClient is the interface for LLM clients (OpenAI, Ollama, etc.)
type LLMClient interface {
	Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error)
	Complete(ctx context.Context, prompt string, systemPrompt ...string) (string, error)
	CountTokens(text string) int
}

// Ensure implementations satisfy the interface
var _ LLMClient = (*OpenAIClient)(nil)
var _ LLMClient = (*OllamaClient)(nil)

// ChatMessage represents a chat message
type ChatMessage struct {
	Role    string `json:"role"` // system, user, assistant
	Content string `json:"content"`
}

// ChatRequest represents a chat completion request
type ChatRequest struct {
	Messages    []ChatMessage `json:"messages"`
	Temperature float32       `json:"temperature,omitempty"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	// JSONMode asks the model for a single JSON object
	JSONMode bool `json:"json_mode,omitempty"`
}

// ChatResponse represents a chat completion response
type ChatResponse struct {
	Message      string `json:"message"`
	TokensUsed   int    `json:"tokens_used"`
	FinishReason string `json:"finish_reason"`
}
