package extract

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// TextModel is the seam to the external text-understanding service. It
// takes a prompt and returns the model's free-text response; the contract
// is purely textual. This interface enables mocking in tests.
type TextModel interface {
	GenerateText(ctx context.Context, prompt string) (string, error)
}

// GeminiModel is the concrete TextModel backed by the Gemini API.
type GeminiModel struct {
	apiKey string
	model  string
}

// NewGeminiModel creates a Gemini-backed text model.
func NewGeminiModel(apiKey, model string) *GeminiModel {
	return &GeminiModel{
		apiKey: apiKey,
		model:  model,
	}
}

// GenerateText sends the prompt to Gemini and returns the raw response
// text. Failures (network, auth, quota) are surfaced to the caller; there
// are no retries here.
func (m *GeminiModel) GenerateText(ctx context.Context, prompt string) (string, error) {
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      m.apiKey,
		Backend:     genai.BackendGeminiAPI,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return "", fmt.Errorf("GenerateText: create genai client: %w", err)
	}

	resp, err := client.Models.GenerateContent(ctx, m.model, genai.Text(prompt), nil)
	if err != nil {
		return "", fmt.Errorf("GenerateText: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return "", fmt.Errorf("GenerateText: empty response from model")
	}

	return rawText, nil
}

var _ TextModel = (*GeminiModel)(nil)
