package agents

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/jordanlanch/rivalscope/pkg/ai/llm"
	"github.com/jordanlanch/rivalscope/pkg/competitor"
	"github.com/jordanlanch/rivalscope/pkg/domain"
	"github.com/jordanlanch/rivalscope/pkg/logger"
)

var (
	// ErrUnsupportedKind is returned for analysis kinds the agent does not know
	ErrUnsupportedKind = errors.New("unsupported analysis kind")
	// ErrUnparseableOutput is returned when the model answer holds no JSON object
	ErrUnparseableOutput = errors.New("model output is not a JSON object")
)

// ScoringAgent scores competitors by asking an LLM for a JSON verdict.
type ScoringAgent struct {
	llm    llm.LLMClient
	logger logger.Logger
}

var _ domain.ScoringEngine = (*ScoringAgent)(nil)

// NewScoringAgent creates a new scoring agent
func NewScoringAgent(client llm.LLMClient, log logger.Logger) *ScoringAgent {
	if log == nil {
		log = logger.Nop()
	}
	return &ScoringAgent{llm: client, logger: log}
}

// Analyze implements domain.ScoringEngine.
func (a *ScoringAgent) Analyze(ctx context.Context, kind string, items []map[string]any, meta map[string]any, actingUserID string) (map[string]any, error) {
	if kind != competitor.AnalysisKind {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedKind, kind)
	}

	prompt, _ := meta["prompt"].(string)
	if strings.TrimSpace(prompt) == "" {
		raw, err := json.MarshalIndent(items, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to encode items: %w", err)
		}
		prompt = "Score these competitors and answer in JSON:\n" + string(raw)
	}

	a.logger.Info("scoring competitors", "items", len(items), "user", actingUserID, "prompt_tokens", a.llm.CountTokens(prompt))

	resp, err := a.llm.Chat(ctx, llm.ChatRequest{
		Messages: []llm.ChatMessage{
			{Role: "system", Content: llm.CompetitorAnalystSystemPrompt},
			{Role: "user", Content: prompt},
		},
		JSONMode: true,
	})
	if err != nil {
		return nil, err
	}

	result, err := parseJSONObject(resp.Message)
	if err != nil {
		a.logger.Warn("unparseable scoring output", "error", err, "finish_reason", resp.FinishReason)
		return nil, err
	}
	return result, nil
}

// parseJSONObject decodes the model answer, tolerating markdown fences and surrounding prose.
func parseJSONObject(text string) (map[string]any, error) {
	text = stripCodeFence(strings.TrimSpace(text))
	if out, err := decodeObject(text); err == nil {
		return out, nil
	}

	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end <= start {
		return nil, ErrUnparseableOutput
	}
	out, err := decodeObject(text[start : end+1])
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUnparseableOutput, err)
	}
	return out, nil
}

func decodeObject(text string) (map[string]any, error) {
	dec := json.NewDecoder(bytes.NewReader([]byte(text)))
	dec.UseNumber()
	var out map[string]any
	if err := dec.Decode(&out); err != nil {
		return nil, err
	}
	if out == nil {
		return nil, ErrUnparseableOutput
	}
	return out, nil
}

func stripCodeFence(text string) string {
	if !strings.HasPrefix(text, "```") {
		return text
	}
	text = strings.TrimPrefix(text, "```")
	if nl := strings.IndexByte(text, '\n'); nl >= 0 {
		text = text[nl+1:]
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	return strings.TrimSpace(text)
}
