package oracle

import (
	"context"
	"encoding/json"
	"log/slog"
	"strings"

	"github.com/tomrodww/ai-guessing-game/pkg/domain"
)

// GeminiOracle evaluates questions with a fixed Gemini model.
type GeminiOracle struct {
	client *GeminiClient
	model  string
}

// NewGeminiOracle builds a Gemini-backed Oracle.
func NewGeminiOracle(client *GeminiClient, model string) *GeminiOracle {
	return &GeminiOracle{client: client, model: model}
}

// Evaluate implements Oracle. Transport and parse failures degrade to
// StatusUnavailable; the caller decides how that affects the session.
func (o *GeminiOracle) Evaluate(ctx context.Context, question, storyContext string, candidates []domain.Phrase) RawVerdict {
	raw, err := o.client.GenerateJSON(ctx, o.model, systemPrompt, buildUserPrompt(question, storyContext, candidates))
	if err != nil {
		slog.Warn("oracle call failed", "err", err)
		return RawVerdict{Status: StatusUnavailable}
	}
	verdict, err := parseVerdict(raw)
	if err != nil {
		slog.Warn("oracle returned unparsable verdict", "err", err)
		return RawVerdict{Status: StatusUnavailable}
	}
	return verdict
}

// parseVerdict decodes the model's JSON verdict. Models occasionally wrap
// JSON in markdown fences even when asked not to, so fences are stripped
// before decoding. Unknown status strings fail the parse.
func parseVerdict(raw string) (RawVerdict, error) {
	text := strings.TrimSpace(raw)
	text = strings.TrimPrefix(text, "```json")
	text = strings.TrimPrefix(text, "```")
	text = strings.TrimSuffix(text, "```")
	text = strings.TrimSpace(text)

	var verdict RawVerdict
	if err := json.Unmarshal([]byte(text), &verdict); err != nil {
		return RawVerdict{}, err
	}
	switch normalizeStatus(string(verdict.Status)) {
	case StatusCorrectSpecific:
		verdict.Status = StatusCorrectSpecific
	case StatusCorrectGeneral:
		verdict.Status = StatusCorrectGeneral
	case StatusIncorrect:
		verdict.Status = StatusIncorrect
	case StatusIrrelevant:
		verdict.Status = StatusIrrelevant
	default:
		return RawVerdict{}, errUnknownStatus(string(verdict.Status))
	}
	return verdict, nil
}

// normalizeStatus tolerates hyphenated or spaced variants of status names.
func normalizeStatus(s string) VerdictStatus {
	s = strings.ToLower(strings.TrimSpace(s))
	s = strings.ReplaceAll(s, "-", "_")
	s = strings.ReplaceAll(s, " ", "_")
	return VerdictStatus(s)
}

type errUnknownStatus string

func (e errUnknownStatus) Error() string {
	return "unknown verdict status: " + string(e)
}
