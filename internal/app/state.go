package app

import (
	"sort"
	"time"

	"github.com/tomrodww/ai-guessing-game/pkg/domain"
)

// The discovery state machine. Each apply* function mutates the session in
// place and either fully applies a transition or returns an error with the
// session untouched. Callers hold the per-session lock and persist the
// snapshot afterwards.

// questionOutcome summarizes what one applied question changed.
type questionOutcome struct {
	Discovered     *domain.Phrase
	CoinsEarned    int
	StoryCompleted bool
}

// applyQuestion charges the question cost and applies the evaluation result.
// The cost is charged for the act of asking, independent of verdict.
func applyQuestion(session *domain.Session, story domain.Story, result domain.EvaluationResult) (questionOutcome, error) {
	if session.Status != domain.SessionActive {
		return questionOutcome{}, ErrSessionCompleted
	}
	if session.Coins < QuestionCost {
		return questionOutcome{}, ErrInsufficientCoins
	}
	session.Coins -= QuestionCost

	var outcome questionOutcome
	if result.PhraseID != "" && !session.HasDiscovered(result.PhraseID) {
		phrase, ok := story.PhraseByID(result.PhraseID)
		if ok {
			session.Discovered = append(session.Discovered, phrase.ID)
			session.Coins += DiscoveryReward
			outcome.Discovered = &phrase
			outcome.CoinsEarned = DiscoveryReward
			outcome.StoryCompleted = checkCompletion(session, story)
		}
	}
	session.UpdatedAt = time.Now().UTC()
	return outcome, nil
}

// applyHintUnlock charges HintCost(index) and adds the hint index. An
// already-unlocked index is a rejection here; the API layer absorbs it as an
// idempotent replay. The charge never partially applies.
func applyHintUnlock(session *domain.Session, story domain.Story, index int) error {
	if index < 0 || index >= len(story.Hints) {
		return ErrUnknownHint
	}
	if session.HasHint(index) {
		return ErrHintUnlocked
	}
	cost := HintCost(index)
	if session.Coins < cost {
		return ErrInsufficientCoins
	}
	session.Coins -= cost
	session.UnlockedHints = append(session.UnlockedHints, index)
	sort.Ints(session.UnlockedHints)
	session.UpdatedAt = time.Now().UTC()
	return nil
}

// applyReveal is the paid "give up and show me" action: it charges the
// reveal cost, adds the phrase, credits the reveal reward, and re-evaluates
// completion the same way a question discovery does.
func applyReveal(session *domain.Session, story domain.Story, phraseID string) (questionOutcome, error) {
	if session.Status != domain.SessionActive {
		return questionOutcome{}, ErrSessionCompleted
	}
	phrase, ok := story.PhraseByID(phraseID)
	if !ok {
		return questionOutcome{}, ErrUnknownPhrase
	}
	if session.HasDiscovered(phraseID) {
		return questionOutcome{}, ErrPhraseDiscovered
	}
	if session.Coins < RevealCost {
		return questionOutcome{}, ErrInsufficientCoins
	}
	session.Coins -= RevealCost
	session.Discovered = append(session.Discovered, phrase.ID)
	session.Coins += RevealReward
	session.UpdatedAt = time.Now().UTC()
	return questionOutcome{
		Discovered:     &phrase,
		CoinsEarned:    RevealReward,
		StoryCompleted: checkCompletion(session, story),
	}, nil
}

// checkCompletion transitions the session to completed when the discovered
// set covers every phrase of the story.
func checkCompletion(session *domain.Session, story domain.Story) bool {
	if len(session.Discovered) < len(story.Phrases) {
		return false
	}
	for _, p := range story.Phrases {
		if !session.HasDiscovered(p.ID) {
			return false
		}
	}
	session.Status = domain.SessionCompleted
	return true
}
