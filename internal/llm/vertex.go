package llm

import (
	"context"
	"fmt"
	"strings"

	"cloud.google.com/go/vertexai/genai"
)

// DefaultVertexModel is used when no model is configured.
const DefaultVertexModel = "gemini-1.5-pro"

// VertexClient calls Gemini through Vertex AI using application default credentials.
type VertexClient struct {
	model      *genai.GenerativeModel
	baseClient *genai.Client
}

// NewVertexClient creates a client bound to one project, region and model.
func NewVertexClient(ctx context.Context, projectID, region, model string) (*VertexClient, error) {
	if projectID == "" || region == "" {
		return nil, fmt.Errorf("NewVertexClient: projectID and region cannot be empty")
	}
	if model == "" {
		model = DefaultVertexModel
	}
	baseClient, err := genai.NewClient(ctx, projectID, region)
	if err != nil {
		return nil, fmt.Errorf("genai.NewClient: %w", err)
	}
	return &VertexClient{
		model:      baseClient.GenerativeModel(model),
		baseClient: baseClient,
	}, nil
}

func (c *VertexClient) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.model.GenerateContent(ctx, genai.Text(prompt))
	if err != nil {
		return "", fmt.Errorf("vertex: %w", err)
	}
	return vertexText(resp)
}

// Close releases the underlying gRPC connection.
func (c *VertexClient) Close() error {
	if c.baseClient != nil {
		return c.baseClient.Close()
	}
	return nil
}

func vertexText(resp *genai.GenerateContentResponse) (string, error) {
	if resp == nil || len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil {
		return "", fmt.Errorf("vertex: %w", ErrEmptyResponse)
	}
	var b strings.Builder
	for _, part := range resp.Candidates[0].Content.Parts {
		if txt, ok := part.(genai.Text); ok {
			b.WriteString(string(txt))
		}
	}
	if b.Len() == 0 {
		return "", fmt.Errorf("vertex: %w", ErrEmptyResponse)
	}
	return b.String(), nil
}
