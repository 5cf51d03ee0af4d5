package memory

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/sandevgo/knowbot/internal/core"
	"github.com/sandevgo/knowbot/pkg/log"
)

// LLMExtractor lets the model judge whether a turn carries a durable fact.
// Any model or parse failure falls back to the keyword heuristics.
type LLMExtractor struct {
	ai       core.AIProvider
	fallback Extractor
	timeout  time.Duration
	now      func() time.Time
}

func NewLLMExtractor(ai core.AIProvider, fallback Extractor, timeout time.Duration) *LLMExtractor {
	if fallback == nil {
		fallback = NewKeywordExtractor()
	}
	return &LLMExtractor{
		ai:       ai,
		fallback: fallback,
		timeout:  timeout,
		now:      time.Now,
	}
}

type extractionVerdict struct {
	Remember bool   `json:"remember"`
	Topic    string `json:"topic"`
}

func (e *LLMExtractor) Extract(ctx context.Context, userMessage, assistantResponse string) (*core.Note, error) {
	logger := log.FromCtx(ctx)

	verdict, err := e.ask(ctx, userMessage, assistantResponse)
	if err != nil {
		logger.Warn().Err(err).Msg("llm extraction failed, using keyword fallback")
		return e.fallback.Extract(ctx, userMessage, assistantResponse)
	}

	if !verdict.Remember {
		return nil, nil
	}

	topic := strings.TrimSpace(verdict.Topic)
	if topic == "" {
		topic = topicOf(userMessage)
	}

	now := e.now().UnixMilli()
	return &core.Note{
		Topic:     topic,
		Content:   userMessage,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (e *LLMExtractor) ask(ctx context.Context, userMessage, assistantResponse string) (extractionVerdict, error) {
	if e.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.timeout)
		defer cancel()
	}

	const systemPrompt = "You are a knowledge extraction system. Output only valid JSON."

	resp, err := e.ai.Chat(ctx, []core.Message{
		{Role: core.RoleSystem, Content: systemPrompt},
		{Role: core.RoleUser, Content: buildExtractionPrompt(userMessage, assistantResponse)},
	})
	if err != nil {
		return extractionVerdict{}, fmt.Errorf("llm chat: %w", err)
	}

	return parseExtractionResponse(resp.Content)
}

func buildExtractionPrompt(userMessage, assistantResponse string) string {
	return fmt.Sprintf(
		`Decide whether the USER message states a durable fact, preference or instruction worth remembering. Ignore greetings, small talk and questions. Output format: JSON object {"remember": bool, "topic": "two to four words"}.
USER: %s
ASSISTANT: %s`,
		userMessage, assistantResponse,
	)
}

func parseExtractionResponse(content string) (extractionVerdict, error) {
	jsonStr := extractJSONObject(content)
	if jsonStr == "" {
		return extractionVerdict{}, fmt.Errorf("no JSON object found in response")
	}

	var v extractionVerdict
	if err := json.Unmarshal([]byte(jsonStr), &v); err != nil {
		return extractionVerdict{}, fmt.Errorf("unmarshal verdict: %w", err)
	}
	return v, nil
}

func extractJSONObject(content string) string {
	start := strings.Index(content, "{")
	if start == -1 {
		return ""
	}

	end := strings.LastIndex(content[start:], "}")
	if end == -1 {
		return ""
	}

	return content[start : start+end+1]
}
