package llm

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mindprint-labs/mindprint/internal/domain"
)

// Provider constants
const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderGemini    = "gemini"
	ProviderMock      = "mock"
)

// NewClient creates an LLM client based on the provider name.
// Returns an error if the provider is unknown or the API key is empty (except for mock).
func NewClient(provider, apiKey string) (domain.LLMClient, error) {
	switch provider {
	case ProviderOpenAI:
		if apiKey == "" {
			return nil, fmt.Errorf("OPENAI_API_KEY is required for OpenAI provider")
		}
		return NewOpenAIClient(apiKey), nil

	case ProviderAnthropic:
		if apiKey == "" {
			return nil, fmt.Errorf("ANTHROPIC_API_KEY is required for Anthropic provider")
		}
		return NewAnthropicClient(apiKey), nil

	case ProviderGemini:
		if apiKey == "" {
			return nil, fmt.Errorf("GEMINI_API_KEY is required for Gemini provider")
		}
		return NewGeminiClient(apiKey), nil

	case ProviderMock:
		return NewMockClient(), nil

	default:
		return nil, fmt.Errorf("unknown LLM provider: %s (valid options: openai, anthropic, gemini, mock)", provider)
	}
}

// answersBlock renders the answered questions into the prompt body.
func answersBlock(answers []domain.AssessmentAnswer) string {
	var sb strings.Builder
	for i, a := range answers {
		sb.WriteString(fmt.Sprintf("%d. Q: %s\n   A: %s\n", i+1, a.Question, a.Answer))
	}
	return sb.String()
}

// parseAnalysisJSON strips markdown fences and validates that the model
// returned a JSON object before handing the blob to the normalizer.
func parseAnalysisJSON(result string) (json.RawMessage, error) {
	result = strings.TrimPrefix(result, "```json")
	result = strings.TrimPrefix(result, "```")
	result = strings.TrimSuffix(result, "```")
	result = strings.TrimSpace(result)

	if !json.Valid([]byte(result)) {
		return nil, fmt.Errorf("model returned invalid JSON (raw: %s)", truncate(result, 200))
	}
	return json.RawMessage(result), nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
