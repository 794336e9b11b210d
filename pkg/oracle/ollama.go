package oracle

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/tomrodww/ai-guessing-game/pkg/domain"
)

const defaultOllamaBaseURL = "http://127.0.0.1:11434"

// OllamaOracle evaluates questions with a locally hosted model through the
// Ollama /api/chat endpoint. Useful for running the game without any external
// API dependency.
type OllamaOracle struct {
	baseURL    string
	model      string
	httpClient *http.Client
}

// NewOllamaOracle builds an Ollama-backed Oracle. Empty baseURL targets the
// default local daemon.
func NewOllamaOracle(baseURL, model string) *OllamaOracle {
	baseURL = strings.TrimSpace(baseURL)
	if baseURL == "" {
		baseURL = defaultOllamaBaseURL
	}
	return &OllamaOracle{
		baseURL:    strings.TrimRight(baseURL, "/"),
		model:      model,
		httpClient: &http.Client{Timeout: 60 * time.Second},
	}
}

// Evaluate implements Oracle.
func (o *OllamaOracle) Evaluate(ctx context.Context, question, storyContext string, candidates []domain.Phrase) RawVerdict {
	reqBody := ollamaChatRequest{
		Model: o.model,
		Messages: []ollamaChatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(question, storyContext, candidates)},
		},
		// Ollama's JSON mode; temperature zero keeps verdicts reproducible.
		Format:  "json",
		Stream:  false,
		Options: map[string]any{"temperature": 0},
	}
	var resp ollamaChatResponse
	if err := o.doJSON(ctx, "/api/chat", reqBody, &resp); err != nil {
		slog.Warn("oracle call failed", "provider", "ollama", "err", err)
		return RawVerdict{Status: StatusUnavailable}
	}
	verdict, err := parseVerdict(resp.Message.Content)
	if err != nil {
		slog.Warn("oracle returned unparsable verdict", "provider", "ollama", "err", err)
		return RawVerdict{Status: StatusUnavailable}
	}
	return verdict
}

func (o *OllamaOracle) doJSON(ctx context.Context, path string, payload, out any) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp ollamaErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error != "" {
			return fmt.Errorf("ollama api error: %s", errResp.Error)
		}
		return fmt.Errorf("ollama api error: %s", resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

type ollamaChatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type ollamaChatRequest struct {
	Model    string              `json:"model"`
	Messages []ollamaChatMessage `json:"messages"`
	Format   string              `json:"format,omitempty"`
	Stream   bool                `json:"stream"`
	Options  map[string]any      `json:"options,omitempty"`
}

type ollamaChatResponse struct {
	Message ollamaChatMessage `json:"message"`
}

type ollamaErrorResponse struct {
	Error string `json:"error"`
}
