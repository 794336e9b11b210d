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

// OpenAICompatOracle evaluates questions against any OpenAI-compatible
// /v1/chat/completions endpoint. Works with vLLM, LiteLLM, LocalAI,
// OpenRouter, self-hosted models, etc.
type OpenAICompatOracle struct {
	baseURL    string
	apiKey     string
	model      string
	httpClient *http.Client
}

// NewOpenAICompatOracle builds an OpenAI-compatible Oracle. baseURL should
// include the /v1 prefix, e.g. "http://localhost:8000/v1". apiKey can be
// empty for local models that do not require authentication.
func NewOpenAICompatOracle(baseURL, apiKey, model string) (*OpenAICompatOracle, error) {
	baseURL = strings.TrimRight(strings.TrimSpace(baseURL), "/")
	if baseURL == "" {
		return nil, fmt.Errorf("openai-compat base url required")
	}
	return &OpenAICompatOracle{
		baseURL:    baseURL,
		apiKey:     strings.TrimSpace(apiKey),
		model:      strings.TrimSpace(model),
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// Evaluate implements Oracle.
func (o *OpenAICompatOracle) Evaluate(ctx context.Context, question, storyContext string, candidates []domain.Phrase) RawVerdict {
	temperature := 0.0
	reqBody := oaiChatRequest{
		Model: o.model,
		Messages: []oaiMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: buildUserPrompt(question, storyContext, candidates)},
		},
		Temperature:    &temperature,
		ResponseFormat: &oaiResponseFormat{Type: "json_object"},
	}
	raw, err := o.complete(ctx, reqBody)
	if err != nil {
		slog.Warn("oracle call failed", "provider", "openai-compat", "err", err)
		return RawVerdict{Status: StatusUnavailable}
	}
	verdict, err := parseVerdict(raw)
	if err != nil {
		slog.Warn("oracle returned unparsable verdict", "provider", "openai-compat", "err", err)
		return RawVerdict{Status: StatusUnavailable}
	}
	return verdict
}

func (o *OpenAICompatOracle) complete(ctx context.Context, reqBody oaiChatRequest) (string, error) {
	body, err := json.Marshal(reqBody)
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, o.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")
	if o.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+o.apiKey)
	}
	resp, err := o.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("openai-compat request: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 400 {
		var errResp oaiErrorResponse
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		if errResp.Error.Message != "" {
			return "", fmt.Errorf("openai-compat api error: %s", errResp.Error.Message)
		}
		return "", fmt.Errorf("openai-compat api error: %s", resp.Status)
	}
	var chatResp oaiChatResponse
	if err := json.NewDecoder(resp.Body).Decode(&chatResp); err != nil {
		return "", fmt.Errorf("openai-compat decode: %w", err)
	}
	if len(chatResp.Choices) == 0 {
		return "", fmt.Errorf("empty response from openai-compat api")
	}
	text := strings.TrimSpace(chatResp.Choices[0].Message.Content)
	if text == "" {
		return "", fmt.Errorf("empty response from openai-compat api")
	}
	return text, nil
}

type oaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type oaiResponseFormat struct {
	Type string `json:"type"`
}

type oaiChatRequest struct {
	Model          string             `json:"model"`
	Messages       []oaiMessage       `json:"messages"`
	Temperature    *float64           `json:"temperature,omitempty"`
	ResponseFormat *oaiResponseFormat `json:"response_format,omitempty"`
}

type oaiChatResponse struct {
	Choices []struct {
		Message oaiMessage `json:"message"`
	} `json:"choices"`
}

type oaiErrorResponse struct {
	Error struct {
		Message string `json:"message"`
		Type    string `json:"type"`
	} `json:"error"`
}
