package domain

import (
	"context"
	"encoding/json"
)

// AnalysisStore is the generic query interface over the hosted store. The
// engine depends only on these primitives: filter-by-owner, order-by-time,
// row-range pagination, exact and pattern id lookup, and row counting.
type AnalysisStore interface {
	// Insert persists a newly generated analysis.
	Insert(ctx context.Context, a *Analysis) error

	// ListByOwner returns the owner's rows newest first, capped at limit.
	ListByOwner(ctx context.Context, ownerID string, limit int) ([]RawRecord, error)
	// CountByOwner returns the authoritative row count for an owner.
	CountByOwner(ctx context.Context, ownerID string) (int, error)
	// ListRange pages through an owner's rows newest first.
	ListRange(ctx context.Context, ownerID string, offset, pageSize int) ([]RawRecord, error)
	// ListIDsByOwner returns minimal-projection rows (id and timestamp only).
	ListIDsByOwner(ctx context.Context, ownerID string, limit int) ([]RawRecord, error)

	// GetByID returns the row with the exact id.
	GetByID(ctx context.Context, id string) (*RawRecord, error)
	// GetBySourceAssessment returns the row generated from the given assessment.
	GetBySourceAssessment(ctx context.Context, assessmentID string) (*RawRecord, error)
	// FindByIDSuffix returns the newest row whose id ends with suffix.
	FindByIDSuffix(ctx context.Context, suffix string) (*RawRecord, error)
	// ListRecent returns recent rows with no owner filter.
	ListRecent(ctx context.Context, limit int) ([]RawRecord, error)

	// UpdateEmbedding attaches a summary embedding to an existing row.
	UpdateEmbedding(ctx context.Context, id string, embedding []float32) error
	// FindSimilarTo returns rows ranked by embedding similarity to the given row.
	FindSimilarTo(ctx context.Context, id string, limit int) ([]SimilarRecord, error)
}

// AssessmentAnswer is one answered quiz question.
type AssessmentAnswer struct {
	Question string `json:"question"`
	Answer   string `json:"answer"`
}

// LLMClient is the AI-generation collaborator. It returns a raw JSON blob
// shaped like an analysis, of unknown completeness; callers normalize it
// before trusting any field.
type LLMClient interface {
	GenerateAnalysis(ctx context.Context, answers []AssessmentAnswer) (json.RawMessage, error)
}

// EmbeddingClient produces vector embeddings for related-profile lookup.
type EmbeddingClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
