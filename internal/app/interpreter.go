package app

import (
	"strings"

	"github.com/tomrodww/ai-guessing-game/pkg/domain"
	"github.com/tomrodww/ai-guessing-game/pkg/oracle"
)

const (
	unavailableExplanation = "The oracle could not reach a verdict for this question. Try rephrasing it."
	// phraseTailWords is how many trailing words of a candidate phrase the
	// reconciliation fallback looks for inside the oracle's justification.
	phraseTailWords = 4
)

// Interpret maps a raw oracle verdict onto the canonical evaluation result.
// It is deterministic: all nondeterminism stays on the oracle side of the
// boundary.
func Interpret(raw oracle.RawVerdict, candidates []domain.Phrase) domain.EvaluationResult {
	switch raw.Status {
	case oracle.StatusUnavailable:
		return domain.EvaluationResult{
			Verdict:     domain.VerdictIrrelevant,
			Explanation: unavailableExplanation,
		}
	case oracle.StatusCorrectSpecific:
		if phrase, ok := resolvePhrase(raw, candidates); ok {
			return domain.EvaluationResult{
				Verdict:     domain.VerdictYes,
				PhraseID:    phrase.ID,
				Explanation: raw.Explanation,
			}
		}
		// The oracle asserted a match it cannot substantiate. Treat it as a
		// true but non-revealing answer.
		return domain.EvaluationResult{
			Verdict:     domain.VerdictYes,
			Explanation: raw.Explanation,
			Partial:     true,
		}
	case oracle.StatusCorrectGeneral:
		return domain.EvaluationResult{
			Verdict:     domain.VerdictYes,
			Explanation: raw.Explanation,
			Partial:     true,
		}
	case oracle.StatusIncorrect:
		return domain.EvaluationResult{
			Verdict:     domain.VerdictNo,
			Explanation: raw.Explanation,
		}
	default:
		return domain.EvaluationResult{
			Verdict:     domain.VerdictIrrelevant,
			Explanation: raw.Explanation,
		}
	}
}

// resolvePhrase finds the candidate the oracle meant. Exact id lookup first;
// identifier drift (truncation, hallucinated ids) is expected, so fall back
// to literal text containment against the oracle's justification. The
// fallback stays literal on purpose: no fuzzy matching.
func resolvePhrase(raw oracle.RawVerdict, candidates []domain.Phrase) (domain.Phrase, bool) {
	claimed := strings.TrimSpace(raw.PhraseID)
	if claimed != "" {
		for _, p := range candidates {
			if p.ID == claimed {
				return p, true
			}
		}
	}
	justification := strings.ToLower(raw.Explanation)
	if justification == "" {
		return domain.Phrase{}, false
	}
	for _, p := range candidates {
		text := strings.ToLower(strings.TrimSpace(p.Text))
		if text == "" {
			continue
		}
		if strings.Contains(justification, text) {
			return p, true
		}
		if tail := lastWords(text, phraseTailWords); tail != "" && strings.Contains(justification, tail) {
			return p, true
		}
	}
	return domain.Phrase{}, false
}

func lastWords(text string, n int) string {
	words := strings.Fields(text)
	if len(words) <= 1 {
		return ""
	}
	if len(words) > n {
		words = words[len(words)-n:]
	}
	return strings.Join(words, " ")
}
