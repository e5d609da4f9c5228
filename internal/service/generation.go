package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"github.com/mindprint-labs/mindprint/internal/domain"
	"github.com/mindprint-labs/mindprint/internal/normalize"
)

var ErrAnswersRequired = errors.New("assessment answers are required")

const defaultRelatedLimit = 5

// GenerationService produces new analyses from assessment answers and
// serves the related-profiles lookup over summary embeddings.
type GenerationService struct {
	store    domain.AnalysisStore
	llm      domain.LLMClient
	embedder domain.EmbeddingClient
	history  *HistoryService
	logger   *zap.Logger
}

func NewGenerationService(st domain.AnalysisStore, llm domain.LLMClient, embedder domain.EmbeddingClient, history *HistoryService, logger *zap.Logger) *GenerationService {
	return &GenerationService{
		store:    st,
		llm:      llm,
		embedder: embedder,
		history:  history,
		logger:   logger,
	}
}

// CreateAnalysis runs the model over the answers, normalizes whatever shape
// it returned, persists the result, and makes it the owner's current
// selection. Embedding the summary is best-effort: a failure there degrades
// the related-profiles feature, not the analysis itself.
func (s *GenerationService) CreateAnalysis(ctx context.Context, ownerID, sourceAssessmentID string, answers []domain.AssessmentAnswer) (*domain.Analysis, error) {
	if ownerID == "" {
		return nil, ErrOwnerRequired
	}
	if len(answers) == 0 {
		return nil, ErrAnswersRequired
	}

	blob, err := s.llm.GenerateAnalysis(ctx, answers)
	if err != nil {
		return nil, fmt.Errorf("generate analysis: %w", err)
	}

	a := normalize.Record(blob)
	a.OwnerID = ownerID
	a.SourceAssessmentID = sourceAssessmentID

	if err := s.store.Insert(ctx, &a); err != nil {
		return nil, fmt.Errorf("persist analysis: %w", err)
	}
	s.logger.Info("analysis created",
		zap.String("analysis_id", a.ID),
		zap.String("owner_id", ownerID),
		zap.Int("trait_count", len(a.Traits)))

	s.embedSummary(ctx, &a)
	s.history.SetCurrent(ownerID, a)
	return &a, nil
}

func (s *GenerationService) embedSummary(ctx context.Context, a *domain.Analysis) {
	vec, err := s.embedder.Embed(ctx, profileSummary(a))
	if err != nil {
		s.logger.Warn("embedding failed, related profiles unavailable for this analysis",
			zap.String("analysis_id", a.ID),
			zap.Error(err))
		return
	}
	if err := s.store.UpdateEmbedding(ctx, a.ID, vec); err != nil {
		s.logger.Warn("failed to store embedding",
			zap.String("analysis_id", a.ID),
			zap.Error(err))
		return
	}
	a.Embedding = vec
}

// Related returns the analyses whose summary embeddings sit closest to the
// given one, with cosine similarity mapped onto a bounded affinity.
func (s *GenerationService) Related(ctx context.Context, id string, limit int) ([]domain.AnalysisWithAffinity, error) {
	if id == "" {
		return nil, ErrAnalysisIDEmpty
	}
	if limit <= 0 {
		limit = defaultRelatedLimit
	}

	records, err := s.store.FindSimilarTo(ctx, id, limit)
	if err != nil {
		return nil, fmt.Errorf("find related analyses: %w", err)
	}

	results := make([]domain.AnalysisWithAffinity, 0, len(records))
	for i := range records {
		results = append(results, domain.AnalysisWithAffinity{
			Analysis: normalize.Record(&records[i].RawRecord),
			Affinity: normalize.Ratio(records[i].Score),
		})
	}
	return results, nil
}

// profileSummary flattens the analysis into the text the embedding model
// sees. Only the descriptive fields matter; scores add noise.
func profileSummary(a *domain.Analysis) string {
	var b strings.Builder
	for _, t := range a.Traits {
		fmt.Fprintf(&b, "%s: %s\n", t.Name, t.Description)
	}
	fmt.Fprintf(&b, "Intelligence: %s. %s\n", a.Intelligence.Type, a.Intelligence.Description)
	fmt.Fprintf(&b, "Cognitive style: %s / %s\n", a.CognitiveStyle.Primary, a.CognitiveStyle.Secondary)
	if len(a.ValueSystem.CoreValues) > 0 {
		fmt.Fprintf(&b, "Core values: %s\n", strings.Join(a.ValueSystem.CoreValues, ", "))
	}
	if len(a.Motivators) > 0 {
		fmt.Fprintf(&b, "Motivators: %s\n", strings.Join(a.Motivators, ", "))
	}
	return b.String()
}
