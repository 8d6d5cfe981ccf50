package nlp

import (
	"context"
	"fmt"
	"net/http"

	"google.golang.org/genai"
)

// GeminiConfig configures the Gemini vision backend.
type GeminiConfig struct {
	APIKey string
	Model  string
}

// GeminiProvider implements VisionProvider using the Google Gemini SDK.
type GeminiProvider struct {
	client *genai.Client
	model  string
}

// NewGeminiProvider creates a new Gemini vision provider.
func NewGeminiProvider(ctx context.Context, cfg GeminiConfig) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, &ErrMissingCredential{Provider: "gemini"}
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("gemini model is required")
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("create Gemini client: %w", err)
	}

	return &GeminiProvider{
		client: client,
		model:  cfg.Model,
	}, nil
}

func (p *GeminiProvider) Analyze(ctx context.Context, prompt string, image []byte, maxTokens int) (string, error) {
	contents := []*genai.Content{{
		Role: "user",
		Parts: []*genai.Part{
			{Text: prompt},
			{InlineData: &genai.Blob{
				MIMEType: http.DetectContentType(image),
				Data:     image,
			}},
		},
	}}

	result, err := p.client.Models.GenerateContent(ctx, p.model, contents, &genai.GenerateContentConfig{
		MaxOutputTokens: int32(maxTokens),
	})
	if err != nil {
		return "", &ErrProviderUnavailable{Err: err}
	}

	text := result.Text()
	if text == "" {
		return "", &ErrProviderUnavailable{Err: fmt.Errorf("empty Gemini response")}
	}

	return text, nil
}

func (p *GeminiProvider) Name() string {
	return p.model
}
