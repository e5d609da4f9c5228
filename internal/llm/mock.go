package llm

import (
	"context"
	"encoding/json"

	"github.com/mindprint-labs/mindprint/internal/domain"
)

// MockClient is a configurable LLM client for testing and local runs
// without an API key. Set the response fields to control what it returns.
type MockClient struct {
	GenerateAnalysisResponse json.RawMessage
	GenerateAnalysisError    error

	// Call tracking for assertions
	GenerateAnalysisCalls [][]domain.AssessmentAnswer
}

const mockAnalysisJSON = `{
	"traits": [
		{"name": "Openness", "score": 74, "description": "Curious and receptive to new ideas.",
		 "strengths": ["Creative problem solving"], "challenges": ["Can lose focus on routine work"],
		 "growthSuggestions": ["Pair exploration with deadlines"]},
		{"name": "Conscientiousness", "score": 68, "description": "Organized and dependable.",
		 "strengths": ["Follows through"], "challenges": ["Perfectionism under pressure"],
		 "growthSuggestions": ["Timebox polishing passes"]}
	],
	"intelligence": {"type": "Linguistic", "description": "Strong verbal reasoning.",
	 "strengths": ["Clear written communication"], "learningStyle": "Reading/Writing"},
	"intelligenceScore": 76,
	"emotionalIntelligenceScore": 71,
	"cognitiveStyle": {"primary": "Analytical", "secondary": "Reflective",
	 "description": "Breaks problems down before acting."},
	"valueSystem": {"coreValues": ["Honesty", "Growth"], "description": "Values candor and learning."},
	"relationshipPatterns": {"strengths": ["Loyal"], "challenges": ["Slow to open up"],
	 "description": "Builds few but deep connections."},
	"motivators": ["Mastery", "Autonomy"],
	"inhibitors": ["Ambiguity"],
	"weaknesses": ["Overcommitting"],
	"growthAreas": ["Delegation"],
	"careerSuggestions": ["Research", "Technical writing"],
	"learningPathways": ["Structured courses with written material"]
}`

func NewMockClient() *MockClient {
	return &MockClient{
		GenerateAnalysisResponse: json.RawMessage(mockAnalysisJSON),
	}
}

func (c *MockClient) GenerateAnalysis(ctx context.Context, answers []domain.AssessmentAnswer) (json.RawMessage, error) {
	c.GenerateAnalysisCalls = append(c.GenerateAnalysisCalls, answers)
	if c.GenerateAnalysisError != nil {
		return nil, c.GenerateAnalysisError
	}
	return c.GenerateAnalysisResponse, nil
}

// Reset clears recorded calls and restores the default response.
func (c *MockClient) Reset() {
	c.GenerateAnalysisResponse = json.RawMessage(mockAnalysisJSON)
	c.GenerateAnalysisError = nil
	c.GenerateAnalysisCalls = nil
}
