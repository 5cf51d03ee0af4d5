package memory

import (
	"context"
	"strings"
	"time"

	"github.com/sandevgo/knowbot/internal/core"
)

// Extractor decides whether a completed turn holds something worth keeping.
// A nil note means there is nothing to persist.
type Extractor interface {
	Extract(ctx context.Context, userMessage, assistantResponse string) (*core.Note, error)
}

var DefaultKeywords = []string{"remember", "important", "note", "save", "favorite"}

const topicWords = 3

// KeywordExtractor keeps the user message when it contains one of the
// keywords anywhere, ignoring case. "notebook" matches "note".
type KeywordExtractor struct {
	keywords []string
	now      func() time.Time
}

func NewKeywordExtractor() *KeywordExtractor {
	return &KeywordExtractor{keywords: DefaultKeywords, now: time.Now}
}

func (e *KeywordExtractor) Extract(_ context.Context, userMessage, _ string) (*core.Note, error) {
	if !e.matches(userMessage) {
		return nil, nil
	}

	now := e.now().UnixMilli()
	return &core.Note{
		Topic:     topicOf(userMessage),
		Content:   userMessage,
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

func (e *KeywordExtractor) matches(text string) bool {
	lower := strings.ToLower(text)
	for _, kw := range e.keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// topicOf joins the first few whitespace separated words with single spaces.
func topicOf(text string) string {
	words := strings.Fields(text)
	if len(words) > topicWords {
		words = words[:topicWords]
	}
	return strings.Join(words, " ")
}
