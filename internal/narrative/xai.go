package narrative

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kurihiro0119/github-compatibility/internal/domain"
	apperrors "github.com/kurihiro0119/github-compatibility/internal/errors"
)

const (
	// DefaultBaseURL is xAI's OpenAI-compatible endpoint
	DefaultBaseURL = "https://api.x.ai/v1"
	DefaultModel   = "grok-beta"
	DefaultTimeout = 60 * time.Second
)

// XAIGenerator implements Generator against an OpenAI-compatible chat
// completions API (xAI by default).
type XAIGenerator struct {
	apiKey  string
	model   string
	baseURL string
	timeout time.Duration
	http    *http.Client
}

// NewXAIGenerator creates a generator. Empty model, baseURL or timeout select the defaults.
func NewXAIGenerator(apiKey, model, baseURL string, timeout time.Duration) *XAIGenerator {
	if model == "" {
		model = DefaultModel
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &XAIGenerator{
		apiKey:  apiKey,
		model:   model,
		baseURL: strings.TrimRight(baseURL, "/"),
		timeout: timeout,
		http:    &http.Client{},
	}
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
}

type chatResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Generate asks the model for a report and parses its JSON reply. Every
// failure is returned as NARRATIVE_UNAVAILABLE.
func (g *XAIGenerator) Generate(ctx context.Context, req *domain.NarrativeRequest) (*domain.Narrative, error) {
	if g.apiKey == "" {
		return nil, apperrors.NewNarrativeUnavailableError("narrative generator is not configured (XAI_API_KEY is empty)", nil)
	}

	summary, err := json.Marshal(req)
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode narrative request", err)
	}

	body, err := json.Marshal(chatRequest{
		Model: g.model,
		Messages: []chatMessage{
			{Role: "system", Content: systemPrompt},
			{Role: "user", Content: userPrompt(req.Username1, req.Username2, summary)},
		},
		Temperature: 0.7,
	})
	if err != nil {
		return nil, apperrors.NewInternalError("failed to encode chat request", err)
	}

	ctx, cancel := context.WithTimeout(ctx, g.timeout)
	defer cancel()

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, g.baseURL+"/chat/completions", bytes.NewReader(body))
	if err != nil {
		return nil, apperrors.NewInternalError("failed to build chat request", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+g.apiKey)

	resp, err := g.http.Do(httpReq)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return nil, apperrors.NewNarrativeUnavailableError("narrative generator timed out", err)
		}
		return nil, apperrors.NewNarrativeUnavailableError(fmt.Sprintf("narrative generator request failed: %v", err), err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, apperrors.NewNarrativeUnavailableError("failed to read narrative response", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, apperrors.NewNarrativeUnavailableError(
			fmt.Sprintf("narrative generator returned %s: %s", resp.Status, bytes.TrimSpace(respBody)), nil)
	}

	var completion chatResponse
	if err := json.Unmarshal(respBody, &completion); err != nil {
		return nil, apperrors.NewNarrativeUnavailableError(
			fmt.Sprintf("narrative processing error: %v. Response content: %s", err, respBody), err)
	}

	content := ""
	if len(completion.Choices) > 0 {
		content = completion.Choices[0].Message.Content
	}
	return ParseReply(content)
}
