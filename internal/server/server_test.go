package server

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"

	"github.com/tomrodww/ai-guessing-game/internal/app"
	"github.com/tomrodww/ai-guessing-game/internal/ratelimit"
	"github.com/tomrodww/ai-guessing-game/internal/sessiontoken"
	"github.com/tomrodww/ai-guessing-game/pkg/auth"
	"github.com/tomrodww/ai-guessing-game/pkg/domain"
	"github.com/tomrodww/ai-guessing-game/pkg/oracle"
	"github.com/tomrodww/ai-guessing-game/pkg/store"
)

type scriptedOracle struct {
	verdicts []oracle.RawVerdict
}

func (o *scriptedOracle) Evaluate(context.Context, string, string, []domain.Phrase) oracle.RawVerdict {
	if len(o.verdicts) == 0 {
		return oracle.RawVerdict{Status: oracle.StatusIrrelevant, Explanation: "Not related to the story."}
	}
	verdict := o.verdicts[0]
	o.verdicts = o.verdicts[1:]
	return verdict
}

func testStory() domain.Story {
	return domain.Story{
		ID:       "story-1",
		Title:    "The Lighthouse",
		Context:  "A man is found asleep at his post while a ship lies wrecked on the rocks below.",
		Solution: "The lighthouse keeper fell asleep on duty, the lamp went dark, and a ship ran aground.",
		Phrases: []domain.Phrase{
			{ID: "p1", StoryID: "story-1", Order: 1, Text: "The man was a lighthouse keeper"},
			{ID: "p2", StoryID: "story-1", Order: 2, Text: "He fell asleep during his shift"},
			{ID: "p3", StoryID: "story-1", Order: 3, Text: "A ship ran aground in the dark"},
		},
		Hints:  []string{"Think about his job", "Think about the night", "Think about the sea"},
		Active: true,
	}
}

type testEnv struct {
	srv      *httptest.Server
	tokens   *sessiontoken.Issuer
	memStore *store.MemoryStore
	oracle   *scriptedOracle
}

func newTestEnv(t *testing.T, opts ...func(*Config)) *testEnv {
	t.Helper()
	memStore := store.NewMemoryStore()
	if err := memStore.SaveStory(testStory()); err != nil {
		t.Fatalf("save story: %v", err)
	}
	scripted := &scriptedOracle{}
	core, err := app.New(app.Config{Store: memStore, Oracle: scripted})
	if err != nil {
		t.Fatalf("new app: %v", err)
	}
	tokens, err := sessiontoken.New("test-secret", time.Hour)
	if err != nil {
		t.Fatalf("new issuer: %v", err)
	}
	cfg := Config{App: core, Tokens: tokens}
	for _, opt := range opts {
		opt(&cfg)
	}
	srv := httptest.NewServer(New(cfg).Router())
	t.Cleanup(srv.Close)
	return &testEnv{srv: srv, tokens: tokens, memStore: memStore, oracle: scripted}
}

func (e *testEnv) do(t *testing.T, method, path, token string, body any) (*http.Response, map[string]any) {
	t.Helper()
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequest(method, e.srv.URL+path, reader)
	if err != nil {
		t.Fatalf("new request: %v", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s: %v", method, path, err)
	}
	defer resp.Body.Close()
	var payload map[string]any
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	if len(data) > 0 && data[0] == '{' {
		if err := json.Unmarshal(data, &payload); err != nil {
			t.Fatalf("decode body %q: %v", data, err)
		}
	}
	return resp, payload
}

func (e *testEnv) startSession(t *testing.T) (sessionID, token string) {
	t.Helper()
	resp, payload := e.do(t, http.MethodPost, "/api/sessions", "", map[string]string{"storyId": "story-1"})
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("start session: status %d", resp.StatusCode)
	}
	sessionID, _ = payload["sessionId"].(string)
	token, _ = payload["token"].(string)
	if sessionID == "" || token == "" {
		t.Fatalf("start session response missing fields: %v", payload)
	}
	return sessionID, token
}

func TestHealthz(t *testing.T) {
	env := newTestEnv(t)
	resp, payload := env.do(t, http.MethodGet, "/healthz", "", nil)
	if resp.StatusCode != http.StatusOK || payload["status"] != "ok" {
		t.Fatalf("healthz: status %d, payload %v", resp.StatusCode, payload)
	}
}

func TestListStoriesHidesSolutionAndPhrases(t *testing.T) {
	env := newTestEnv(t)
	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+"/api/stories", nil)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("list stories: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var stories []map[string]any
	if err := json.NewDecoder(resp.Body).Decode(&stories); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(stories) != 1 {
		t.Fatalf("stories = %d, want 1", len(stories))
	}
	story := stories[0]
	if story["id"] != "story-1" || story["phraseCount"] != float64(3) || story["hintCount"] != float64(3) {
		t.Fatalf("unexpected summary: %v", story)
	}
	for _, hidden := range []string{"solution", "phrases", "hints"} {
		if _, ok := story[hidden]; ok {
			t.Fatalf("summary leaks %q: %v", hidden, story)
		}
	}
}

func TestGetStoryByID(t *testing.T) {
	env := newTestEnv(t)
	resp, payload := env.do(t, http.MethodGet, "/api/stories/story-1", "", nil)
	if resp.StatusCode != http.StatusOK || payload["title"] != "The Lighthouse" {
		t.Fatalf("status %d, payload %v", resp.StatusCode, payload)
	}
	resp, _ = env.do(t, http.MethodGet, "/api/stories/ghost", "", nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("unknown story: status %d, want 404", resp.StatusCode)
	}
}

func TestCreateStoryRequiresAdminKey(t *testing.T) {
	hash, err := auth.HashKey("admin-key")
	if err != nil {
		t.Fatalf("hash key: %v", err)
	}
	env := newTestEnv(t, func(cfg *Config) { cfg.AdminKeyHash = hash })
	body := map[string]any{
		"title":    "The Elevator",
		"context":  "A man rides the elevator halfway every day.",
		"solution": "He cannot reach the top button.",
		"phrases":  []map[string]any{{"order": 1, "text": "The man is short"}},
	}

	req, _ := http.NewRequest(http.MethodPost, env.srv.URL+"/api/stories", bytes.NewReader(mustJSON(t, body)))
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("missing key: status %d, want 401", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodPost, env.srv.URL+"/api/stories", bytes.NewReader(mustJSON(t, body)))
	req.Header.Set("X-Admin-Key", "wrong")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("wrong key: status %d, want 401", resp.StatusCode)
	}

	req, _ = http.NewRequest(http.MethodPost, env.srv.URL+"/api/stories", bytes.NewReader(mustJSON(t, body)))
	req.Header.Set("X-Admin-Key", "admin-key")
	resp, err = http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("post: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("valid key: status %d, want 201", resp.StatusCode)
	}
}

func TestCreateStoryDisabledWithoutHash(t *testing.T) {
	env := newTestEnv(t)
	resp, _ := env.do(t, http.MethodPost, "/api/stories", "", map[string]string{"title": "x"})
	if resp.StatusCode != http.StatusForbidden {
		t.Fatalf("status = %d, want 403", resp.StatusCode)
	}
}

func TestSessionEndpointsRequireMatchingToken(t *testing.T) {
	env := newTestEnv(t)
	sessionID, _ := env.startSession(t)

	resp, _ := env.do(t, http.MethodGet, "/api/sessions/"+sessionID, "", nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("no token: status %d, want 401", resp.StatusCode)
	}

	_, otherToken := env.startSession(t)
	resp, _ = env.do(t, http.MethodGet, "/api/sessions/"+sessionID, otherToken, nil)
	if resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("foreign token: status %d, want 401", resp.StatusCode)
	}
}

func TestFullGameFlow(t *testing.T) {
	env := newTestEnv(t)
	env.oracle.verdicts = []oracle.RawVerdict{
		{Status: oracle.StatusCorrectSpecific, PhraseID: "p2", Explanation: "Yes, he fell asleep."},
	}
	sessionID, token := env.startSession(t)
	base := "/api/sessions/" + sessionID

	resp, state := env.do(t, http.MethodGet, base, token, nil)
	if resp.StatusCode != http.StatusOK || state["coins"] != float64(7) {
		t.Fatalf("initial state: status %d, payload %v", resp.StatusCode, state)
	}

	// Question discovery: cost 1, reward 1.
	resp, ask := env.do(t, http.MethodPost, base+"/questions", token, map[string]string{
		"storyId":  "story-1",
		"question": "Did he fall asleep on duty?",
	})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("ask: status %d, payload %v", resp.StatusCode, ask)
	}
	if ask["verdict"] != "yes" || ask["coins"] != float64(7) {
		t.Fatalf("ask payload: %v", ask)
	}
	discovered, _ := ask["discoveredPhrase"].(map[string]any)
	if discovered == nil || discovered["id"] != "p2" {
		t.Fatalf("ask did not surface the discovered phrase: %v", ask)
	}

	// Hint 0 costs 1.
	resp, hint := env.do(t, http.MethodPost, base+"/hints", token, map[string]int{"hintIndex": 0})
	if resp.StatusCode != http.StatusOK || hint["coins"] != float64(6) || hint["hint"] != "Think about his job" {
		t.Fatalf("hint: status %d, payload %v", resp.StatusCode, hint)
	}

	// Reveal p1: cost 1, reward 3.
	resp, reveal := env.do(t, http.MethodPost, base+"/reveals", token, map[string]string{"phraseId": "p1"})
	if resp.StatusCode != http.StatusOK || reveal["coins"] != float64(8) {
		t.Fatalf("reveal: status %d, payload %v", resp.StatusCode, reveal)
	}

	// Revealed phrases come back in story order.
	req, _ := http.NewRequest(http.MethodGet, env.srv.URL+base+"/phrases", nil)
	req.Header.Set("Authorization", "Bearer "+token)
	rawResp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("phrases: %v", err)
	}
	defer rawResp.Body.Close()
	var phrases []map[string]any
	if err := json.NewDecoder(rawResp.Body).Decode(&phrases); err != nil {
		t.Fatalf("decode phrases: %v", err)
	}
	if len(phrases) != 2 || phrases[0]["id"] != "p1" || phrases[1]["id"] != "p2" {
		t.Fatalf("phrases = %v", phrases)
	}
}

func TestAskQuestionInsufficientCoins(t *testing.T) {
	env := newTestEnv(t)
	sessionID, token := env.startSession(t)
	broke, _, err := env.memStore.GetSession(sessionID)
	if err != nil {
		t.Fatalf("get session: %v", err)
	}
	broke.Coins = 0
	if err := env.memStore.SaveTurn(broke, nil); err != nil {
		t.Fatalf("save session: %v", err)
	}
	resp, _ := env.do(t, http.MethodPost, "/api/sessions/"+sessionID+"/questions", token, map[string]string{
		"question": "Was the man alone that night?",
	})
	if resp.StatusCode != http.StatusPaymentRequired {
		t.Fatalf("status = %d, want 402", resp.StatusCode)
	}
}

func TestUnknownSessionIs404WithValidToken(t *testing.T) {
	env := newTestEnv(t)
	token, err := env.tokens.Issue("ghost")
	if err != nil {
		t.Fatalf("issue token: %v", err)
	}
	resp, _ := env.do(t, http.MethodGet, "/api/sessions/ghost", token, nil)
	if resp.StatusCode != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", resp.StatusCode)
	}
}

func TestQuestionRateLimit(t *testing.T) {
	mini := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mini.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	limiter, err := ratelimit.New(client, "test:ratelimit", 1, time.Minute)
	if err != nil {
		t.Fatalf("new limiter: %v", err)
	}
	env := newTestEnv(t, func(cfg *Config) { cfg.Limiter = limiter })
	sessionID, token := env.startSession(t)
	path := fmt.Sprintf("/api/sessions/%s/questions", sessionID)

	resp, _ := env.do(t, http.MethodPost, path, token, map[string]string{"question": "Was he alone that night?"})
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("first question: status %d", resp.StatusCode)
	}
	resp, _ = env.do(t, http.MethodPost, path, token, map[string]string{"question": "Was it dark outside then?"})
	if resp.StatusCode != http.StatusTooManyRequests {
		t.Fatalf("second question: status %d, want 429", resp.StatusCode)
	}
}

func mustJSON(t *testing.T, v any) []byte {
	t.Helper()
	data, err := json.Marshal(v)
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	return data
}
