package oracle

import (
	"context"
	"errors"
	"strings"

	"github.com/tomrodww/ai-guessing-game/pkg/domain"
)

// VerdictStatus is the oracle's raw classification of a question before the
// interpreter normalizes it.
type VerdictStatus string

const (
	// StatusCorrectSpecific means the question matched a specific candidate
	// phrase; PhraseID carries the oracle's claimed id.
	StatusCorrectSpecific VerdictStatus = "correct_specific"
	// StatusCorrectGeneral means the question states something true about the
	// story but no candidate phrase rises to a full match.
	StatusCorrectGeneral VerdictStatus = "correct_general"
	StatusIncorrect      VerdictStatus = "incorrect"
	StatusIrrelevant     VerdictStatus = "irrelevant"
	// StatusUnavailable is returned on transport or parse failure so callers
	// always have a value to reconcile instead of an error path.
	StatusUnavailable VerdictStatus = "unavailable"
)

// RawVerdict is the oracle's structured answer to one question.
type RawVerdict struct {
	Status      VerdictStatus `json:"status"`
	PhraseID    string        `json:"phraseId,omitempty"`
	Explanation string        `json:"explanation,omitempty"`
}

// Oracle classifies a free-text yes/no question against the still-hidden
// candidate phrases of a story. Implementations never retry internally and
// never return an error: failures degrade to StatusUnavailable.
type Oracle interface {
	Evaluate(ctx context.Context, question, storyContext string, candidates []domain.Phrase) RawVerdict
}

// Config selects and configures the concrete oracle provider. Provider
// selection is explicit here rather than read from process-global state.
type Config struct {
	Provider string
	APIKey   string
	Model    string
	// BaseURL targets self-hosted providers (ollama, openai-compat). Ignored
	// for gemini.
	BaseURL string
}

// New builds an Oracle for the configured provider.
func New(cfg Config) (Oracle, error) {
	provider := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if provider == "" {
		provider = "gemini"
	}
	if cfg.Model == "" {
		return nil, errors.New("oracle model required")
	}
	switch provider {
	case "gemini":
		client, err := NewGeminiClient(cfg.APIKey)
		if err != nil {
			return nil, err
		}
		return NewGeminiOracle(client, cfg.Model), nil
	case "ollama":
		return NewOllamaOracle(cfg.BaseURL, cfg.Model), nil
	case "openai-compat":
		return NewOpenAICompatOracle(cfg.BaseURL, cfg.APIKey, cfg.Model)
	default:
		return nil, errors.New("unknown oracle provider: " + provider)
	}
}
