package llmclient

import (
	"context"
	"encoding/json"

	genai "google.golang.org/genai"
)

// GeminiClient is a thin wrapper around the official genai client.
// It only focuses on the API calls themselves; retries, deadlines and
// logging are applied via Middleware.
type GeminiClient struct {
	cli        *genai.Client
	model      string
	imageModel string
}

// NewGeminiClient creates a client for the given text and image models.
// An empty apiKey falls back to GEMINI_API_KEY from the environment.
func NewGeminiClient(ctx context.Context, apiKey, model, imageModel string) (*GeminiClient, error) {
	cli, err := genai.NewClient(ctx, &genai.ClientConfig{APIKey: apiKey, Backend: genai.BackendGeminiAPI})
	if err != nil {
		return nil, err
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	if imageModel == "" {
		imageModel = "imagen-3.0-generate-002"
	}
	return &GeminiClient{cli: cli, model: model, imageModel: imageModel}, nil
}

func (g *GeminiClient) Name() string { return "Gemini:" + g.model }
func (g *GeminiClient) Close() error { return nil }

// GenerateJSON concatenates prompt and input, asks for application/json,
// and returns the model's JSON as json.RawMessage.
func (g *GeminiClient) GenerateJSON(ctx context.Context, prompt string, input any) (json.RawMessage, error) {
	in, _ := json.MarshalIndent(input, "", "  ")
	full := prompt + "\n\n[INPUT JSON]\n" + string(in)

	resp, err := g.cli.Models.GenerateContent(ctx, g.model,
		[]*genai.Content{{Parts: []*genai.Part{{Text: full}}}},
		&genai.GenerateContentConfig{ResponseMIMEType: "application/json"},
	)
	if err != nil {
		return nil, err
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return nil, ErrInvalidJSON
	}
	return json.RawMessage(resp.Candidates[0].Content.Parts[0].Text), nil
}

// GenerateImage renders a single image for the prompt and returns its bytes.
func (g *GeminiClient) GenerateImage(ctx context.Context, prompt string) ([]byte, error) {
	resp, err := g.cli.Models.GenerateImages(ctx, g.imageModel, prompt,
		&genai.GenerateImagesConfig{NumberOfImages: 1},
	)
	if err != nil {
		return nil, err
	}
	if len(resp.GeneratedImages) == 0 || resp.GeneratedImages[0].Image == nil || len(resp.GeneratedImages[0].Image.ImageBytes) == 0 {
		return nil, ErrEmptyImage
	}
	return resp.GeneratedImages[0].Image.ImageBytes, nil
}
