package llm

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/sashabaranov/go-openai"
)

// ErrNoChoices is returned when the provider answers without any completion
var ErrNoChoices = errors.New("no completion choices returned")

// completer holds the chat completion logic shared by every OpenAI-compatible provider
type completer struct {
	provider    string
	client      *openai.Client
	model       string
	temperature float32
	maxTokens   int
	logger      *log.Logger
}

// Chat sends a chat completion request
func (c *completer) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	c.logger.Printf("%s chat: %d messages, model: %s, json: %t", c.provider, len(req.Messages), c.model, req.JSONMode)

	messages := make([]openai.ChatCompletionMessage, len(req.Messages))
	for i, msg := range req.Messages {
		messages[i] = openai.ChatCompletionMessage{
			Role:    msg.Role,
			Content: msg.Content,
		}
	}

	temperature := req.Temperature
	if temperature == 0 {
		temperature = c.temperature
	}
	maxTokens := req.MaxTokens
	if maxTokens == 0 {
		maxTokens = c.maxTokens
	}

	chatReq := openai.ChatCompletionRequest{
		Model:       c.model,
		Messages:    messages,
		Temperature: temperature,
		MaxTokens:   maxTokens,
	}
	if req.JSONMode {
		chatReq.ResponseFormat = &openai.ChatCompletionResponseFormat{
			Type: openai.ChatCompletionResponseFormatTypeJSONObject,
		}
	}

	start := time.Now()
	resp, err := c.client.CreateChatCompletion(ctx, chatReq)
	duration := time.Since(start)

	if err != nil {
		c.logger.Printf("%s chat failed: %v (duration: %v)", c.provider, err, duration)
		return nil, fmt.Errorf("%s chat failed: %w", c.provider, err)
	}
	if len(resp.Choices) == 0 {
		return nil, fmt.Errorf("%s: %w", c.provider, ErrNoChoices)
	}

	c.logger.Printf("%s chat completed: %d tokens (duration: %v)", c.provider, resp.Usage.TotalTokens, duration)

	return &ChatResponse{
		Message:      resp.Choices[0].Message.Content,
		TokensUsed:   resp.Usage.TotalTokens,
		FinishReason: string(resp.Choices[0].FinishReason),
	}, nil
}

// Complete sends a single prompt with an optional system prompt
func (c *completer) Complete(ctx context.Context, prompt string, systemPrompt ...string) (string, error) {
	messages := []ChatMessage{}
	if len(systemPrompt) > 0 && systemPrompt[0] != "" {
		messages = append(messages, ChatMessage{Role: openai.ChatMessageRoleSystem, Content: systemPrompt[0]})
	}
	messages = append(messages, ChatMessage{Role: openai.ChatMessageRoleUser, Content: prompt})

	resp, err := c.Chat(ctx, ChatRequest{Messages: messages})
	if err != nil {
		return "", err
	}
	return resp.Message, nil
}

// CountTokens estimates the number of tokens in a text (~4 characters per token)
func (c *completer) CountTokens(text string) int {
	return len(text) / 4
}
