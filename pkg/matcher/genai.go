package matcher

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GenAIOracle asks a Gemini model through the Google GenAI SDK.
type GenAIOracle struct {
	client *genai.Client
	model  string
}

// NewGenAIOracle creates an oracle for model.
func NewGenAIOracle(ctx context.Context, apiKey, model string) (*GenAIOracle, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GenAI API key is required")
	}
	if model == "" {
		model = "gemini-2.5-flash"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create GenAI client: %w", err)
	}
	return &GenAIOracle{client: client, model: model}, nil
}

func (o *GenAIOracle) Match(ctx context.Context, q Query) ([]string, error) {
	resp, err := o.client.Models.GenerateContent(ctx,
		o.model,
		genai.Text(Prompt(q)),
		&genai.GenerateContentConfig{
			ResponseMIMEType: "application/json",
			Temperature:      genai.Ptr[float32](0),
		},
	)
	if err != nil {
		return nil, fmt.Errorf("GenAI generate failed: %w", err)
	}
	return ParseAnswer(resp.Text())
}

// Name returns the oracle name.
func (o *GenAIOracle) Name() string {
	return fmt.Sprintf("genai:%s", o.model)
}
