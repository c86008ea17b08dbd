package llm

import (
	"context"
	"errors"
	"fmt"

	"google.golang.org/genai"
)

// ErrMissingAPIKey is a configuration problem, reported distinctly from
// runtime transport failures.
var ErrMissingAPIKey = errors.New("no AI provider configured: set GEMINI_API_KEY")

// CompletionRequest is the full contract the pipeline needs from a text
// model: a model identifier, an optional system message, one user message,
// and an optional "force JSON" response mode.
type CompletionRequest struct {
	Model     string
	System    string
	Prompt    string
	ForceJSON bool
}

// Client is the text-completion collaborator. Implementations return the raw
// response content; callers must treat it as untrusted text.
type Client interface {
	Complete(ctx context.Context, req CompletionRequest) (string, error)
}

// GeminiClient talks to the Gemini API.
type GeminiClient struct {
	apiKey       string
	defaultModel string
}

func NewGeminiClient(apiKey, defaultModel string) *GeminiClient {
	return &GeminiClient{apiKey: apiKey, defaultModel: defaultModel}
}

func (c *GeminiClient) Complete(ctx context.Context, req CompletionRequest) (string, error) {
	if c.apiKey == "" {
		return "", ErrMissingAPIKey
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:      c.apiKey,
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	})
	if err != nil {
		return "", fmt.Errorf("creating genai client: %w", err)
	}

	modelName := req.Model
	if modelName == "" {
		modelName = c.defaultModel
	}

	cfg := &genai.GenerateContentConfig{}
	if req.System != "" {
		cfg.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{{Text: req.System}},
		}
	}
	if req.ForceJSON {
		cfg.ResponseMIMEType = "application/json"
	}

	contents := []*genai.Content{
		{
			Role:  "user",
			Parts: []*genai.Part{{Text: req.Prompt}},
		},
	}

	resp, err := client.Models.GenerateContent(ctx, modelName, contents, cfg)
	if err != nil {
		// Propagated verbatim for diagnosability (quota, auth, network).
		return "", fmt.Errorf("generate content: %w", err)
	}

	text := resp.Text()
	if text == "" {
		return "", fmt.Errorf("empty response from model %s", modelName)
	}
	return text, nil
}
