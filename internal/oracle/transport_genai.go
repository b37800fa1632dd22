package oracle

import (
	"context"
	"fmt"

	"google.golang.org/genai"
)

// GenAITransport is the concrete Transport implementation behind the
// oracle's cache/retry/accounting layer, the same role the teacher's
// GeminiClient plays behind llm.LLMClient (pkg/llm/gemini.go). The real
// vendor wiring named in spec.md §6 (AZURE_OPENAI_*/OPENAI_* env
// groups) is the out-of-scope LLM-transport collaborator; this is the
// one concrete transport the example pack actually ships, so it stands
// in as the Oracle's example backend.
type GenAITransport struct {
	client *genai.Client
	model  string
}

// NewGenAITransport creates a transport using the given API key and
// model. An empty model defaults to "gemini-2.5-flash-lite", matching
// the teacher's default.
func NewGenAITransport(ctx context.Context, apiKey, model string) (*GenAITransport, error) {
	if model == "" {
		model = "gemini-2.5-flash-lite"
	}
	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}
	return &GenAITransport{client: client, model: model}, nil
}

// ModelID returns the model name, part of the oracle cache key.
func (t *GenAITransport) ModelID() string { return t.model }

// Complete issues one non-streaming generation call.
func (t *GenAITransport) Complete(ctx context.Context, systemPrompt, userPrompt string, temperature float64, maxTokens int) (string, int, int, error) {
	contents := []*genai.Content{
		{Role: "user", Parts: []*genai.Part{genai.NewPartFromText(userPrompt)}},
	}

	config := &genai.GenerateContentConfig{
		Temperature:     &temperature,
		MaxOutputTokens: int32(maxTokens),
	}
	if systemPrompt != "" {
		config.SystemInstruction = &genai.Content{
			Parts: []*genai.Part{genai.NewPartFromText(systemPrompt)},
		}
	}

	resp, err := t.client.Models.GenerateContent(ctx, t.model, contents, config)
	if err != nil {
		return "", 0, 0, fmt.Errorf("genai (model: %s) request failed: %w", t.model, err)
	}

	text := resp.Text()

	promptTokens, completionTokens := 0, 0
	if resp.UsageMetadata != nil {
		promptTokens = int(resp.UsageMetadata.PromptTokenCount)
		completionTokens = int(resp.UsageMetadata.CandidatesTokenCount)
	}

	return text, promptTokens, completionTokens, nil
}
