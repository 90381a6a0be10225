package llm

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

const (
	geminiBaseURL      = "https://generativelanguage.googleapis.com/v1beta/models"
	DefaultGeminiModel = "gemini-2.0-flash"
)

// GeminiClient calls the Gemini generateContent REST endpoint.
type GeminiClient struct {
	apiKey     string
	model      string
	endpoint   string
	httpClient *http.Client
}

// NewGeminiClient creates a client for the given model against the public API.
func NewGeminiClient(apiKey, model string) (*GeminiClient, error) {
	return NewGeminiClientWithEndpoint(apiKey, model, "")
}

// NewGeminiClientWithEndpoint points the client at a custom endpoint (for testing).
func NewGeminiClientWithEndpoint(apiKey, model, endpoint string) (*GeminiClient, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("api key required")
	}
	if model == "" {
		model = DefaultGeminiModel
	}
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s/%s:generateContent", geminiBaseURL, model)
	}
	return &GeminiClient{
		apiKey:   apiKey,
		model:    model,
		endpoint: endpoint,
		// No client timeout; callers bound the call through ctx when they want one.
		httpClient: &http.Client{},
	}, nil
}

// Model returns the model id sent with every request.
func (c *GeminiClient) Model() string { return c.model }

type geminiPart struct {
	Text string `json:"text"`
}

type geminiContent struct {
	Role  string       `json:"role,omitempty"`
	Parts []geminiPart `json:"parts"`
}

type geminiRequest struct {
	Contents []geminiContent `json:"contents"`
}

type geminiResponse struct {
	Candidates []struct {
		Content      geminiContent `json:"content"`
		FinishReason string        `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback,omitempty"`
}

// Generate sends the prompt as a single user turn and joins the text parts of the first candidate.
func (c *GeminiClient) Generate(ctx context.Context, prompt string) (string, error) {
	body, err := json.Marshal(geminiRequest{
		Contents: []geminiContent{{Role: "user", Parts: []geminiPart{{Text: prompt}}}},
	})
	if err != nil {
		return "", fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", c.apiKey)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("calling gemini API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("reading response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, truncate(string(respBody), 500))
	}
	return parseGeminiResponse(respBody)
}

func parseGeminiResponse(body []byte) (string, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("unmarshaling response: %w", err)
	}
	if len(resp.Candidates) == 0 {
		if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
			return "", fmt.Errorf("gemini: prompt blocked (%s): %w", resp.PromptFeedback.BlockReason, ErrEmptyResponse)
		}
		return "", fmt.Errorf("gemini: no candidates: %w", ErrEmptyResponse)
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		b.WriteString(part.Text)
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("gemini: finish reason %q: %w", resp.Candidates[0].FinishReason, ErrEmptyResponse)
	}
	return b.String(), nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
