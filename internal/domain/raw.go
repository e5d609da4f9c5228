package domain

import "encoding/json"

// RawShape tags the historical storage shape of a fetched row. The stored
// schema evolved over time; normalization dispatches per tag instead of
// probing fields ad hoc.
type RawShape string

const (
	// ShapeNested rows carry the generation step's full JSON payload in the
	// full_result column, with flat columns as backfill.
	ShapeNested RawShape = "nested_result"
	// ShapeFlat rows predate the full_result column; every field lives in
	// its own column.
	ShapeFlat RawShape = "flat_column"
	// ShapeMinimal rows come from the reduced-column projection query and
	// carry identity and timestamp only.
	ShapeMinimal RawShape = "minimal_projection"
)

// RawRecord is one row as it comes back from the store, before
// normalization. Pointer and RawMessage fields distinguish "absent" from
// "zero" so the normalizer can backfill field by field.
type RawRecord struct {
	ID                         string
	OwnerID                    *string
	SourceAssessmentID         *string
	CreatedAt                  *string
	FullResult                 json.RawMessage
	Traits                     json.RawMessage
	Intelligence               json.RawMessage
	IntelligenceScore          *float64
	EmotionalIntelligenceScore *float64
	CognitiveStyle             json.RawMessage
	ValueSystem                json.RawMessage
	RelationshipPatterns       json.RawMessage
	Motivators                 json.RawMessage
	Inhibitors                 json.RawMessage
	Weaknesses                 json.RawMessage
	GrowthAreas                json.RawMessage
	CareerSuggestions          json.RawMessage
	LearningPathways           json.RawMessage
}

// SimilarRecord is a raw row with its vector-similarity score (0-1).
type SimilarRecord struct {
	RawRecord
	Score float64
}

// Shape classifies the record by which columns the query populated.
func (r *RawRecord) Shape() RawShape {
	if len(r.FullResult) > 0 {
		return ShapeNested
	}
	if len(r.Traits) > 0 || len(r.Intelligence) > 0 || r.IntelligenceScore != nil ||
		len(r.CognitiveStyle) > 0 || len(r.ValueSystem) > 0 || len(r.RelationshipPatterns) > 0 {
		return ShapeFlat
	}
	return ShapeMinimal
}
