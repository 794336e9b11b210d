package app

import (
	"context"
	"testing"

	"github.com/tomrodww/ai-guessing-game/pkg/domain"
	"github.com/tomrodww/ai-guessing-game/pkg/oracle"
	"github.com/tomrodww/ai-guessing-game/pkg/store"
)

// scriptedOracle returns queued verdicts in order and records every call so
// tests can assert on candidate lists and call counts.
type scriptedOracle struct {
	verdicts []oracle.RawVerdict
	calls    [][]domain.Phrase
}

func (o *scriptedOracle) Evaluate(_ context.Context, _, _ string, candidates []domain.Phrase) oracle.RawVerdict {
	o.calls = append(o.calls, candidates)
	if len(o.verdicts) == 0 {
		return oracle.RawVerdict{Status: oracle.StatusIrrelevant}
	}
	verdict := o.verdicts[0]
	o.verdicts = o.verdicts[1:]
	return verdict
}

func newTestApp(t *testing.T, verdicts ...oracle.RawVerdict) (*App, *store.MemoryStore, *scriptedOracle) {
	t.Helper()
	memStore := store.NewMemoryStore()
	if err := memStore.SaveStory(testStory()); err != nil {
		t.Fatalf("save story: %v", err)
	}
	scripted := &scriptedOracle{verdicts: verdicts}
	core, err := New(Config{Store: memStore, Oracle: scripted})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	return core, memStore, scripted
}

func TestStartSessionAlwaysFresh(t *testing.T) {
	core, _, _ := newTestApp(t)
	first, err := core.StartSession("story-1")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if first.Coins != StartingCoins || first.Status != domain.SessionActive {
		t.Fatalf("unexpected fresh session: %+v", first)
	}
	second, err := core.StartSession("story-1")
	if err != nil {
		t.Fatalf("restart session: %v", err)
	}
	if second.ID == first.ID {
		t.Fatalf("restart reused session id %s", first.ID)
	}
	if len(second.Discovered) != 0 || len(second.UnlockedHints) != 0 {
		t.Fatalf("restart inherited prior state: %+v", second)
	}
}

func TestStartSessionUnknownStory(t *testing.T) {
	core, _, _ := newTestApp(t)
	if _, err := core.StartSession("nope"); err != ErrStoryNotFound {
		t.Fatalf("err = %v, want ErrStoryNotFound", err)
	}
}

func TestGetSessionStateNotFound(t *testing.T) {
	core, _, _ := newTestApp(t)
	if _, err := core.GetSessionState("nope"); err != ErrSessionNotFound {
		t.Fatalf("err = %v, want ErrSessionNotFound", err)
	}
}

// Full walkthrough of the documented scenario: three phrases, 7 starting
// coins, one question discovery, one paid reveal, one closing discovery.
func TestFullPlaythroughScenario(t *testing.T) {
	core, _, scripted := newTestApp(t,
		oracle.RawVerdict{Status: oracle.StatusCorrectSpecific, PhraseID: "p2", Explanation: "Yes, he fell asleep."},
		oracle.RawVerdict{Status: oracle.StatusCorrectSpecific, PhraseID: "p3", Explanation: "Yes, a ship ran aground."},
	)
	session, err := core.StartSession("story-1")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	ctx := context.Background()

	ask1, err := core.AskQuestion(ctx, session.ID, "story-1", "Did he fall asleep on duty?")
	if err != nil {
		t.Fatalf("ask 1: %v", err)
	}
	if ask1.Coins != 7 {
		t.Fatalf("coins after first discovery = %d, want 7", ask1.Coins)
	}
	if ask1.Discovered == nil || ask1.Discovered.ID != "p2" {
		t.Fatalf("first ask should discover p2: %+v", ask1)
	}
	if !ask1.BlockCompleted || ask1.StoryCompleted {
		t.Fatalf("unexpected completion flags: %+v", ask1)
	}

	reveal, err := core.RevealPhrase(session.ID, "p1")
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if reveal.Coins != 9 {
		t.Fatalf("coins after reveal = %d, want 9", reveal.Coins)
	}
	if reveal.PhrasesRevealed != 2 {
		t.Fatalf("phrases revealed = %d, want 2", reveal.PhrasesRevealed)
	}

	ask2, err := core.AskQuestion(ctx, session.ID, "story-1", "Did a ship crash that night?")
	if err != nil {
		t.Fatalf("ask 2: %v", err)
	}
	if ask2.Coins != 9 {
		t.Fatalf("coins after final discovery = %d, want 9", ask2.Coins)
	}
	if !ask2.StoryCompleted {
		t.Fatalf("final discovery should complete the story")
	}

	state, err := core.GetSessionState(session.ID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.Status != domain.SessionCompleted {
		t.Fatalf("status = %q, want completed", state.Status)
	}

	// Candidate exclusion: the second oracle call must not include p2 (asked)
	// or p1 (revealed).
	if len(scripted.calls) != 2 {
		t.Fatalf("oracle calls = %d, want 2", len(scripted.calls))
	}
	for _, p := range scripted.calls[1] {
		if p.ID == "p1" || p.ID == "p2" {
			t.Fatalf("discovered phrase %s offered back to the oracle", p.ID)
		}
	}
}

func TestAskQuestionInsufficientFundsSkipsOracle(t *testing.T) {
	core, memStore, scripted := newTestApp(t)
	broke := domain.Session{
		ID:            "broke",
		StoryID:       "story-1",
		Coins:         0,
		Discovered:    []string{},
		UnlockedHints: []int{},
		Status:        domain.SessionActive,
	}
	if err := memStore.CreateSession(broke); err != nil {
		t.Fatalf("create session: %v", err)
	}
	if _, err := core.AskQuestion(context.Background(), "broke", "", "Is the story about the sea?"); err != ErrInsufficientCoins {
		t.Fatalf("err = %v, want ErrInsufficientCoins", err)
	}
	if len(scripted.calls) != 0 {
		t.Fatalf("oracle was called for an unaffordable question")
	}
	state, _ := core.GetSessionState("broke")
	if state.Coins != 0 {
		t.Fatalf("rejected question changed coins")
	}
}

func TestAskQuestionValidationIsFreeAndLocal(t *testing.T) {
	core, _, scripted := newTestApp(t)
	session, err := core.StartSession("story-1")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	for _, question := range []string{"", "   ", "what?", string(make([]rune, 400))} {
		result, err := core.AskQuestion(context.Background(), session.ID, "", question)
		if err != nil {
			t.Fatalf("question %q: %v", question, err)
		}
		if result.Verdict != domain.VerdictIrrelevant {
			t.Fatalf("question %q: verdict = %q, want irrelevant", question, result.Verdict)
		}
		if result.Coins != StartingCoins {
			t.Fatalf("question %q was charged", question)
		}
	}
	if len(scripted.calls) != 0 {
		t.Fatalf("oracle was called for invalid questions")
	}
}

func TestAskQuestionOracleUnavailableStillCharges(t *testing.T) {
	core, _, _ := newTestApp(t, oracle.RawVerdict{Status: oracle.StatusUnavailable})
	session, err := core.StartSession("story-1")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	result, err := core.AskQuestion(context.Background(), session.ID, "", "Was the man alone that night?")
	if err != nil {
		t.Fatalf("ask: %v", err)
	}
	if result.Verdict != domain.VerdictIrrelevant {
		t.Fatalf("verdict = %q, want irrelevant", result.Verdict)
	}
	if result.Coins != StartingCoins-QuestionCost {
		t.Fatalf("coins = %d, want %d (the ask is still paid for)", result.Coins, StartingCoins-QuestionCost)
	}
}

func TestAskQuestionStoryMismatch(t *testing.T) {
	core, _, _ := newTestApp(t)
	session, err := core.StartSession("story-1")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if _, err := core.AskQuestion(context.Background(), session.ID, "other-story", "Was he alone that night?"); err != ErrStoryNotFound {
		t.Fatalf("err = %v, want ErrStoryNotFound", err)
	}
}

func TestUnlockHintReplayIsIdempotentAtAPI(t *testing.T) {
	core, _, _ := newTestApp(t)
	session, err := core.StartSession("story-1")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	first, err := core.UnlockHint(session.ID, 0)
	if err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if first.Coins != StartingCoins-1 || first.Hint == "" {
		t.Fatalf("unexpected unlock result: %+v", first)
	}
	replay, err := core.UnlockHint(session.ID, 0)
	if err != nil {
		t.Fatalf("replay should be absorbed, got %v", err)
	}
	if replay.Coins != first.Coins {
		t.Fatalf("replay charged again: %d -> %d", first.Coins, replay.Coins)
	}
	if replay.Hint != first.Hint {
		t.Fatalf("replay returned a different hint")
	}
}

func TestRevealReplayIsIdempotentAtAPI(t *testing.T) {
	core, _, _ := newTestApp(t)
	session, err := core.StartSession("story-1")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	first, err := core.RevealPhrase(session.ID, "p1")
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	replay, err := core.RevealPhrase(session.ID, "p1")
	if err != nil {
		t.Fatalf("replay should be absorbed, got %v", err)
	}
	if replay.Coins != first.Coins || replay.PhrasesRevealed != first.PhrasesRevealed {
		t.Fatalf("replay changed state: %+v vs %+v", first, replay)
	}
}

func TestRevealedPhrasesComesFromSessionTaggedLog(t *testing.T) {
	core, _, _ := newTestApp(t,
		oracle.RawVerdict{Status: oracle.StatusCorrectSpecific, PhraseID: "p3", Explanation: "Yes."},
	)
	session, err := core.StartSession("story-1")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	// A second session against the same story must not leak into the first.
	other, err := core.StartSession("story-1")
	if err != nil {
		t.Fatalf("start other session: %v", err)
	}
	if _, err := core.RevealPhrase(other.ID, "p1"); err != nil {
		t.Fatalf("other reveal: %v", err)
	}

	if _, err := core.AskQuestion(context.Background(), session.ID, "", "Did a ship run aground?"); err != nil {
		t.Fatalf("ask: %v", err)
	}
	if _, err := core.RevealPhrase(session.ID, "p2"); err != nil {
		t.Fatalf("reveal: %v", err)
	}

	phrases, err := core.RevealedPhrases(session.ID, "story-1")
	if err != nil {
		t.Fatalf("revealed phrases: %v", err)
	}
	if len(phrases) != 2 {
		t.Fatalf("revealed = %d phrases, want 2", len(phrases))
	}
	// Story order, not discovery order.
	if phrases[0].ID != "p2" || phrases[1].ID != "p3" {
		t.Fatalf("revealed phrases out of order: %v", phrases)
	}
}

func TestConcurrentAsksNeverLoseUpdates(t *testing.T) {
	const asks = 5
	verdicts := make([]oracle.RawVerdict, asks)
	for i := range verdicts {
		verdicts[i] = oracle.RawVerdict{Status: oracle.StatusIncorrect, Explanation: "No."}
	}
	core, _, _ := newTestApp(t, verdicts...)
	session, err := core.StartSession("story-1")
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	done := make(chan error, asks)
	for i := 0; i < asks; i++ {
		go func() {
			_, err := core.AskQuestion(context.Background(), session.ID, "", "Was the man alone that night?")
			done <- err
		}()
	}
	for i := 0; i < asks; i++ {
		if err := <-done; err != nil {
			t.Fatalf("concurrent ask: %v", err)
		}
	}
	state, err := core.GetSessionState(session.ID)
	if err != nil {
		t.Fatalf("get state: %v", err)
	}
	if state.Coins != StartingCoins-asks {
		t.Fatalf("coins = %d, want %d: a concurrent ask applied over a stale snapshot", state.Coins, StartingCoins-asks)
	}
}

func TestCreateStoryValidation(t *testing.T) {
	core, _, _ := newTestApp(t)
	base := testStory()
	base.ID = ""

	bad := base
	bad.Phrases = nil
	if _, err := core.CreateStory(bad); err == nil {
		t.Fatalf("story without phrases accepted")
	}

	bad = base
	bad.Phrases = []domain.Phrase{{Order: 1, Text: "a"}, {Order: 3, Text: "b"}}
	if _, err := core.CreateStory(bad); err == nil {
		t.Fatalf("sparse phrase order accepted")
	}

	created, err := core.CreateStory(base)
	if err != nil {
		t.Fatalf("create story: %v", err)
	}
	if created.ID == "" {
		t.Fatalf("created story has no id")
	}
	for i, p := range created.Phrases {
		if p.ID == "" || p.StoryID != created.ID || p.Order != i+1 {
			t.Fatalf("phrase %d not normalized: %+v", i, p)
		}
	}
}
