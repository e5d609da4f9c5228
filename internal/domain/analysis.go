package domain

import "time"

// DefaultLearningStyle is filled in when a stored intelligence profile
// carries no learning style.
const DefaultLearningStyle = "Visual"

// Trait is one scored personality dimension. All list fields are non-nil
// after normalization.
type Trait struct {
	Name              string   `json:"name"`
	Score             float64  `json:"score"`
	Description       string   `json:"description"`
	Strengths         []string `json:"strengths"`
	Challenges        []string `json:"challenges"`
	GrowthSuggestions []string `json:"growthSuggestions"`
}

// Intelligence describes the intelligence profile section of an analysis.
// Every field is populated after normalization; consumers never branch on
// missing sub-fields.
type Intelligence struct {
	Type          string   `json:"type"`
	Description   string   `json:"description"`
	Strengths     []string `json:"strengths"`
	LearningStyle string   `json:"learningStyle"`
}

type CognitiveStyle struct {
	Primary     string `json:"primary"`
	Secondary   string `json:"secondary"`
	Description string `json:"description"`
}

type ValueSystem struct {
	CoreValues  []string `json:"coreValues"`
	Description string   `json:"description"`
}

type RelationshipPatterns struct {
	Strengths   []string `json:"strengths"`
	Challenges  []string `json:"challenges"`
	Description string   `json:"description"`
}

// Analysis is the canonical in-memory representation of one generated
// personality analysis, independent of how it was stored. Created once by
// the generation step and immutable afterwards; re-fetching only supersedes
// the local copy.
//
// IntelligenceScore and EmotionalIntelligenceScore are stored and served on
// a 0-100 scale. They are never rescaled by normalization.
type Analysis struct {
	ID                         string               `json:"id"`
	OwnerID                    string               `json:"ownerId,omitempty"`
	SourceAssessmentID         string               `json:"sourceAssessmentId,omitempty"`
	CreatedAt                  time.Time            `json:"createdAt"`
	Traits                     []Trait              `json:"traits"`
	Intelligence               Intelligence         `json:"intelligence"`
	IntelligenceScore          float64              `json:"intelligenceScore"`
	EmotionalIntelligenceScore float64              `json:"emotionalIntelligenceScore"`
	CognitiveStyle             CognitiveStyle       `json:"cognitiveStyle"`
	ValueSystem                ValueSystem          `json:"valueSystem"`
	RelationshipPatterns       RelationshipPatterns `json:"relationshipPatterns"`
	Motivators                 []string             `json:"motivators"`
	Inhibitors                 []string             `json:"inhibitors"`
	Weaknesses                 []string             `json:"weaknesses"`
	GrowthAreas                []string             `json:"growthAreas"`
	CareerSuggestions          []string             `json:"careerSuggestions"`
	LearningPathways           []string             `json:"learningPathways"`
	Embedding                  []float32            `json:"-"`
}

// AnalysisWithAffinity pairs an analysis with a 0-1 affinity weight for
// related-profile results.
type AnalysisWithAffinity struct {
	Analysis
	Affinity float64 `json:"affinity"`
}
