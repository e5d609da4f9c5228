package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	pgvector "github.com/pgvector/pgvector-go"

	"github.com/mindprint-labs/mindprint/internal/domain"
)

// AnalysisStore implements domain.AnalysisStore against Postgres.
//
// created_at is stored as ISO-8601 text because the earliest schema wrote
// client-side timestamp strings; lexicographic order matches chronological
// order for this format, so ORDER BY created_at stays correct across
// generations of rows.
type AnalysisStore struct {
	db *pgxpool.Pool
}

func NewAnalysisStore(db *pgxpool.Pool) *AnalysisStore {
	return &AnalysisStore{db: db}
}

// rawColumns is the full projection used by every query that returns
// complete rows.
const rawColumns = `id, owner_id, source_assessment_id, created_at, full_result,
	traits, intelligence, intelligence_score, emotional_intelligence_score,
	cognitive_style, value_system, relationship_patterns,
	motivators, inhibitors, weaknesses, growth_areas, career_suggestions, learning_pathways`

func scanRaw(row pgx.Row) (*domain.RawRecord, error) {
	var r domain.RawRecord
	err := row.Scan(
		&r.ID, &r.OwnerID, &r.SourceAssessmentID, &r.CreatedAt, &r.FullResult,
		&r.Traits, &r.Intelligence, &r.IntelligenceScore, &r.EmotionalIntelligenceScore,
		&r.CognitiveStyle, &r.ValueSystem, &r.RelationshipPatterns,
		&r.Motivators, &r.Inhibitors, &r.Weaknesses, &r.GrowthAreas, &r.CareerSuggestions, &r.LearningPathways,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &r, nil
}

func collectRaw(rows pgx.Rows) ([]domain.RawRecord, error) {
	defer rows.Close()

	var records []domain.RawRecord
	for rows.Next() {
		var r domain.RawRecord
		err := rows.Scan(
			&r.ID, &r.OwnerID, &r.SourceAssessmentID, &r.CreatedAt, &r.FullResult,
			&r.Traits, &r.Intelligence, &r.IntelligenceScore, &r.EmotionalIntelligenceScore,
			&r.CognitiveStyle, &r.ValueSystem, &r.RelationshipPatterns,
			&r.Motivators, &r.Inhibitors, &r.Weaknesses, &r.GrowthAreas, &r.CareerSuggestions, &r.LearningPathways,
		)
		if err != nil {
			return nil, fmt.Errorf("scan analysis row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *AnalysisStore) Insert(ctx context.Context, a *domain.Analysis) error {
	fullResult, err := json.Marshal(a)
	if err != nil {
		return fmt.Errorf("marshal analysis: %w", err)
	}
	traits, _ := json.Marshal(a.Traits)
	intelligence, _ := json.Marshal(a.Intelligence)
	cognitiveStyle, _ := json.Marshal(a.CognitiveStyle)
	valueSystem, _ := json.Marshal(a.ValueSystem)
	relationships, _ := json.Marshal(a.RelationshipPatterns)
	motivators, _ := json.Marshal(a.Motivators)
	inhibitors, _ := json.Marshal(a.Inhibitors)
	weaknesses, _ := json.Marshal(a.Weaknesses)
	growthAreas, _ := json.Marshal(a.GrowthAreas)
	careers, _ := json.Marshal(a.CareerSuggestions)
	pathways, _ := json.Marshal(a.LearningPathways)

	_, err = s.db.Exec(ctx,
		`INSERT INTO analyses (id, owner_id, source_assessment_id, created_at, full_result,
		   traits, intelligence, intelligence_score, emotional_intelligence_score,
		   cognitive_style, value_system, relationship_patterns,
		   motivators, inhibitors, weaknesses, growth_areas, career_suggestions, learning_pathways)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17, $18)`,
		a.ID, a.OwnerID, a.SourceAssessmentID, a.CreatedAt.UTC().Format(time.RFC3339), fullResult,
		traits, intelligence, a.IntelligenceScore, a.EmotionalIntelligenceScore,
		cognitiveStyle, valueSystem, relationships,
		motivators, inhibitors, weaknesses, growthAreas, careers, pathways,
	)
	if err != nil {
		var pgErr *pgconn.PgError
		if errors.As(err, &pgErr) && pgErr.Code == "23505" {
			return ErrConflict
		}
		return err
	}
	return nil
}

func (s *AnalysisStore) ListByOwner(ctx context.Context, ownerID string, limit int) ([]domain.RawRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+rawColumns+`
		 FROM analyses WHERE owner_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list by owner: %w", err)
	}
	return collectRaw(rows)
}

func (s *AnalysisStore) CountByOwner(ctx context.Context, ownerID string) (int, error) {
	var count int
	err := s.db.QueryRow(ctx,
		`SELECT COUNT(*) FROM analyses WHERE owner_id = $1`,
		ownerID,
	).Scan(&count)
	return count, err
}

func (s *AnalysisStore) ListRange(ctx context.Context, ownerID string, offset, pageSize int) ([]domain.RawRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+rawColumns+`
		 FROM analyses WHERE owner_id = $1
		 ORDER BY created_at DESC
		 OFFSET $2 LIMIT $3`,
		ownerID, offset, pageSize,
	)
	if err != nil {
		return nil, fmt.Errorf("list range: %w", err)
	}
	return collectRaw(rows)
}

func (s *AnalysisStore) ListIDsByOwner(ctx context.Context, ownerID string, limit int) ([]domain.RawRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT id, owner_id, created_at
		 FROM analyses WHERE owner_id = $1
		 ORDER BY created_at DESC
		 LIMIT $2`,
		ownerID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list ids by owner: %w", err)
	}
	defer rows.Close()

	var records []domain.RawRecord
	for rows.Next() {
		var r domain.RawRecord
		if err := rows.Scan(&r.ID, &r.OwnerID, &r.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan minimal row: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

func (s *AnalysisStore) GetByID(ctx context.Context, id string) (*domain.RawRecord, error) {
	return scanRaw(s.db.QueryRow(ctx,
		`SELECT `+rawColumns+` FROM analyses WHERE id = $1`,
		id,
	))
}

func (s *AnalysisStore) GetBySourceAssessment(ctx context.Context, assessmentID string) (*domain.RawRecord, error) {
	return scanRaw(s.db.QueryRow(ctx,
		`SELECT `+rawColumns+`
		 FROM analyses WHERE source_assessment_id = $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		assessmentID,
	))
}

// FindByIDSuffix matches ids by trailing fragment. Suffixes are not
// guaranteed unique; the newest match wins.
func (s *AnalysisStore) FindByIDSuffix(ctx context.Context, suffix string) (*domain.RawRecord, error) {
	return scanRaw(s.db.QueryRow(ctx,
		`SELECT `+rawColumns+`
		 FROM analyses WHERE id LIKE '%' || $1
		 ORDER BY created_at DESC
		 LIMIT 1`,
		suffix,
	))
}

func (s *AnalysisStore) ListRecent(ctx context.Context, limit int) ([]domain.RawRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+rawColumns+`
		 FROM analyses
		 ORDER BY created_at DESC
		 LIMIT $1`,
		limit,
	)
	if err != nil {
		return nil, fmt.Errorf("list recent: %w", err)
	}
	return collectRaw(rows)
}

func (s *AnalysisStore) UpdateEmbedding(ctx context.Context, id string, embedding []float32) error {
	vec := pgvector.NewVector(embedding)
	tag, err := s.db.Exec(ctx,
		`UPDATE analyses SET embedding = $1 WHERE id = $2`,
		vec, id,
	)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return ErrNotFound
	}
	return nil
}

func (s *AnalysisStore) FindSimilarTo(ctx context.Context, id string, limit int) ([]domain.SimilarRecord, error) {
	rows, err := s.db.Query(ctx,
		`SELECT `+rawColumns+`,
		        1 - (embedding <=> (SELECT embedding FROM analyses WHERE id = $1)) AS score
		 FROM analyses
		 WHERE id <> $1 AND embedding IS NOT NULL
		 ORDER BY score DESC
		 LIMIT $2`,
		id, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("find similar query: %w", err)
	}
	defer rows.Close()

	var results []domain.SimilarRecord
	for rows.Next() {
		var sr domain.SimilarRecord
		err := rows.Scan(
			&sr.ID, &sr.OwnerID, &sr.SourceAssessmentID, &sr.CreatedAt, &sr.FullResult,
			&sr.Traits, &sr.Intelligence, &sr.IntelligenceScore, &sr.EmotionalIntelligenceScore,
			&sr.CognitiveStyle, &sr.ValueSystem, &sr.RelationshipPatterns,
			&sr.Motivators, &sr.Inhibitors, &sr.Weaknesses, &sr.GrowthAreas, &sr.CareerSuggestions, &sr.LearningPathways,
			&sr.Score,
		)
		if err != nil {
			return nil, fmt.Errorf("scan similar row: %w", err)
		}
		results = append(results, sr)
	}
	return results, rows.Err()
}
