package normalize

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/mindprint-labs/mindprint/internal/domain"
)

// ErrorTraitName marks an analysis whose stored record could not be
// converted. Rendering code treats it like any other trait.
const ErrorTraitName = "Error Processing Data"

const placeholderTraitName = "General Disposition"

var timeNow = time.Now

// Record converts any raw stored record into a canonical Analysis. It never
// fails: unusable input yields a minimal-but-valid fallback analysis, and
// every field-presence invariant holds on the result. Normalizing an
// already-canonical Analysis is a no-op copy.
func Record(raw any) domain.Analysis {
	switch v := raw.(type) {
	case nil:
		return Fallback()
	case domain.Analysis:
		return canonical(v)
	case *domain.Analysis:
		if v == nil {
			return Fallback()
		}
		return canonical(*v)
	case domain.RawRecord:
		return fromRaw(&v)
	case *domain.RawRecord:
		if v == nil {
			return Fallback()
		}
		return fromRaw(v)
	case json.RawMessage:
		return fromJSON([]byte(v))
	case []byte:
		return fromJSON(v)
	case map[string]any:
		b, err := json.Marshal(v)
		if err != nil {
			return Fallback()
		}
		return fromJSON(b)
	default:
		return Fallback()
	}
}

// Fallback returns a minimal valid analysis carrying an explanatory
// placeholder trait, used when a stored record cannot be converted.
func Fallback() domain.Analysis {
	return canonical(domain.Analysis{
		Traits: []domain.Trait{{
			Name:        ErrorTraitName,
			Score:       0,
			Description: "The stored record for this analysis could not be read. Refresh to try again.",
		}},
	})
}

// Ratio clamps v into the unit interval for internal weighting math, e.g.
// affinity scores on related profiles. intelligenceScore and
// emotionalIntelligenceScore are stored on a 0-100 scale and must never
// pass through this helper.
func Ratio(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

// payload mirrors the JSON blob produced by the generation step. Pointer
// fields distinguish absent from zero so flat columns can backfill exactly
// the fields the nested payload is missing.
type payload struct {
	ID                         *string          `json:"id"`
	OwnerID                    *string          `json:"ownerId"`
	SourceAssessmentID         *string          `json:"sourceAssessmentId"`
	CreatedAt                  *string          `json:"createdAt"`
	Traits                     []traitDoc       `json:"traits"`
	Intelligence               *intelligenceDoc `json:"intelligence"`
	IntelligenceScore          *float64         `json:"intelligenceScore"`
	EmotionalIntelligenceScore *float64         `json:"emotionalIntelligenceScore"`
	CognitiveStyle             *cognitiveDoc    `json:"cognitiveStyle"`
	ValueSystem                *valueDoc        `json:"valueSystem"`
	RelationshipPatterns       *relationshipDoc `json:"relationshipPatterns"`
	Motivators                 []string         `json:"motivators"`
	Inhibitors                 []string         `json:"inhibitors"`
	Weaknesses                 []string         `json:"weaknesses"`
	GrowthAreas                []string         `json:"growthAreas"`
	CareerSuggestions          []string         `json:"careerSuggestions"`
	LearningPathways           []string         `json:"learningPathways"`
}

type traitDoc struct {
	Name              string   `json:"name"`
	Score             float64  `json:"score"`
	Description       string   `json:"description"`
	Strengths         []string `json:"strengths"`
	Challenges        []string `json:"challenges"`
	GrowthSuggestions []string `json:"growthSuggestions"`
}

type intelligenceDoc struct {
	Type          *string  `json:"type"`
	Description   *string  `json:"description"`
	Strengths     []string `json:"strengths"`
	LearningStyle *string  `json:"learningStyle"`
}

type cognitiveDoc struct {
	Primary     *string `json:"primary"`
	Secondary   *string `json:"secondary"`
	Description *string `json:"description"`
}

type valueDoc struct {
	CoreValues  []string `json:"coreValues"`
	Description *string  `json:"description"`
}

type relationshipDoc struct {
	Strengths   []string `json:"strengths"`
	Challenges  []string `json:"challenges"`
	Description *string  `json:"description"`
}

func fromJSON(b []byte) domain.Analysis {
	var p payload
	if err := json.Unmarshal(b, &p); err != nil {
		return Fallback()
	}
	return fromPayload(p)
}

// fromRaw dispatches on the record's historical shape. Nested rows prefer
// the full_result payload and backfill any absent field from the flat
// columns; flat rows assemble the payload from columns directly; minimal
// rows carry identity only and get defaults for everything else.
func fromRaw(rec *domain.RawRecord) domain.Analysis {
	switch rec.Shape() {
	case domain.ShapeNested:
		var nested payload
		if err := json.Unmarshal(rec.FullResult, &nested); err != nil {
			// Unreadable payload: fall back to the flat columns alone.
			return identify(fromPayload(flatPayload(rec)), rec)
		}
		merged := backfill(nested, flatPayload(rec))
		return identify(fromPayload(merged), rec)
	case domain.ShapeFlat:
		return identify(fromPayload(flatPayload(rec)), rec)
	default:
		return identify(fromPayload(payload{}), rec)
	}
}

// identify overlays the row's own identity columns, which win over anything
// the JSON payload claims about itself.
func identify(a domain.Analysis, rec *domain.RawRecord) domain.Analysis {
	if rec.ID != "" {
		a.ID = rec.ID
	}
	if rec.OwnerID != nil && *rec.OwnerID != "" {
		a.OwnerID = *rec.OwnerID
	}
	if rec.SourceAssessmentID != nil && *rec.SourceAssessmentID != "" {
		a.SourceAssessmentID = *rec.SourceAssessmentID
	}
	if rec.CreatedAt != nil {
		if t, ok := parseTimestamp(*rec.CreatedAt); ok {
			a.CreatedAt = t
		}
	}
	return a
}

// flatPayload assembles a payload from the record's flat columns. A column
// that fails to decode is treated as absent, not as an error.
func flatPayload(rec *domain.RawRecord) payload {
	var p payload
	if rec.OwnerID != nil {
		p.OwnerID = rec.OwnerID
	}
	if rec.SourceAssessmentID != nil {
		p.SourceAssessmentID = rec.SourceAssessmentID
	}
	if rec.CreatedAt != nil {
		p.CreatedAt = rec.CreatedAt
	}
	decodeColumn(rec.Traits, &p.Traits)
	decodeColumn(rec.Intelligence, &p.Intelligence)
	p.IntelligenceScore = rec.IntelligenceScore
	p.EmotionalIntelligenceScore = rec.EmotionalIntelligenceScore
	decodeColumn(rec.CognitiveStyle, &p.CognitiveStyle)
	decodeColumn(rec.ValueSystem, &p.ValueSystem)
	decodeColumn(rec.RelationshipPatterns, &p.RelationshipPatterns)
	decodeColumn(rec.Motivators, &p.Motivators)
	decodeColumn(rec.Inhibitors, &p.Inhibitors)
	decodeColumn(rec.Weaknesses, &p.Weaknesses)
	decodeColumn(rec.GrowthAreas, &p.GrowthAreas)
	decodeColumn(rec.CareerSuggestions, &p.CareerSuggestions)
	decodeColumn(rec.LearningPathways, &p.LearningPathways)
	return p
}

func decodeColumn(raw json.RawMessage, dst any) {
	if len(raw) == 0 {
		return
	}
	_ = json.Unmarshal(raw, dst)
}

// backfill fills each field the primary payload is missing from the
// secondary one. Sub-structures merge field by field so partial data in
// either source is preserved.
func backfill(primary, secondary payload) payload {
	if primary.ID == nil {
		primary.ID = secondary.ID
	}
	if primary.OwnerID == nil {
		primary.OwnerID = secondary.OwnerID
	}
	if primary.SourceAssessmentID == nil {
		primary.SourceAssessmentID = secondary.SourceAssessmentID
	}
	if primary.CreatedAt == nil {
		primary.CreatedAt = secondary.CreatedAt
	}
	if len(primary.Traits) == 0 {
		primary.Traits = secondary.Traits
	}
	primary.Intelligence = mergeIntelligence(primary.Intelligence, secondary.Intelligence)
	if primary.IntelligenceScore == nil {
		primary.IntelligenceScore = secondary.IntelligenceScore
	}
	if primary.EmotionalIntelligenceScore == nil {
		primary.EmotionalIntelligenceScore = secondary.EmotionalIntelligenceScore
	}
	primary.CognitiveStyle = mergeCognitive(primary.CognitiveStyle, secondary.CognitiveStyle)
	primary.ValueSystem = mergeValues(primary.ValueSystem, secondary.ValueSystem)
	primary.RelationshipPatterns = mergeRelationships(primary.RelationshipPatterns, secondary.RelationshipPatterns)
	if primary.Motivators == nil {
		primary.Motivators = secondary.Motivators
	}
	if primary.Inhibitors == nil {
		primary.Inhibitors = secondary.Inhibitors
	}
	if primary.Weaknesses == nil {
		primary.Weaknesses = secondary.Weaknesses
	}
	if primary.GrowthAreas == nil {
		primary.GrowthAreas = secondary.GrowthAreas
	}
	if primary.CareerSuggestions == nil {
		primary.CareerSuggestions = secondary.CareerSuggestions
	}
	if primary.LearningPathways == nil {
		primary.LearningPathways = secondary.LearningPathways
	}
	return primary
}

func mergeIntelligence(a, b *intelligenceDoc) *intelligenceDoc {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.Type == nil {
		a.Type = b.Type
	}
	if a.Description == nil {
		a.Description = b.Description
	}
	if a.Strengths == nil {
		a.Strengths = b.Strengths
	}
	if a.LearningStyle == nil {
		a.LearningStyle = b.LearningStyle
	}
	return a
}

func mergeCognitive(a, b *cognitiveDoc) *cognitiveDoc {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.Primary == nil {
		a.Primary = b.Primary
	}
	if a.Secondary == nil {
		a.Secondary = b.Secondary
	}
	if a.Description == nil {
		a.Description = b.Description
	}
	return a
}

func mergeValues(a, b *valueDoc) *valueDoc {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.CoreValues == nil {
		a.CoreValues = b.CoreValues
	}
	if a.Description == nil {
		a.Description = b.Description
	}
	return a
}

func mergeRelationships(a, b *relationshipDoc) *relationshipDoc {
	if a == nil {
		return b
	}
	if b == nil {
		return a
	}
	if a.Strengths == nil {
		a.Strengths = b.Strengths
	}
	if a.Challenges == nil {
		a.Challenges = b.Challenges
	}
	if a.Description == nil {
		a.Description = b.Description
	}
	return a
}

func fromPayload(p payload) domain.Analysis {
	var a domain.Analysis
	a.ID = deref(p.ID)
	a.OwnerID = deref(p.OwnerID)
	a.SourceAssessmentID = deref(p.SourceAssessmentID)
	if p.CreatedAt != nil {
		if t, ok := parseTimestamp(*p.CreatedAt); ok {
			a.CreatedAt = t
		}
	}
	for _, td := range p.Traits {
		a.Traits = append(a.Traits, domain.Trait{
			Name:              td.Name,
			Score:             td.Score,
			Description:       td.Description,
			Strengths:         td.Strengths,
			Challenges:        td.Challenges,
			GrowthSuggestions: td.GrowthSuggestions,
		})
	}
	if p.Intelligence != nil {
		a.Intelligence = domain.Intelligence{
			Type:          deref(p.Intelligence.Type),
			Description:   deref(p.Intelligence.Description),
			Strengths:     p.Intelligence.Strengths,
			LearningStyle: deref(p.Intelligence.LearningStyle),
		}
	}
	// Scores arrive already on the 0-100 scale; copied verbatim.
	if p.IntelligenceScore != nil {
		a.IntelligenceScore = *p.IntelligenceScore
	}
	if p.EmotionalIntelligenceScore != nil {
		a.EmotionalIntelligenceScore = *p.EmotionalIntelligenceScore
	}
	if p.CognitiveStyle != nil {
		a.CognitiveStyle = domain.CognitiveStyle{
			Primary:     deref(p.CognitiveStyle.Primary),
			Secondary:   deref(p.CognitiveStyle.Secondary),
			Description: deref(p.CognitiveStyle.Description),
		}
	}
	if p.ValueSystem != nil {
		a.ValueSystem = domain.ValueSystem{
			CoreValues:  p.ValueSystem.CoreValues,
			Description: deref(p.ValueSystem.Description),
		}
	}
	if p.RelationshipPatterns != nil {
		a.RelationshipPatterns = domain.RelationshipPatterns{
			Strengths:   p.RelationshipPatterns.Strengths,
			Challenges:  p.RelationshipPatterns.Challenges,
			Description: deref(p.RelationshipPatterns.Description),
		}
	}
	a.Motivators = p.Motivators
	a.Inhibitors = p.Inhibitors
	a.Weaknesses = p.Weaknesses
	a.GrowthAreas = p.GrowthAreas
	a.CareerSuggestions = p.CareerSuggestions
	a.LearningPathways = p.LearningPathways
	return canonical(a)
}

// canonical fills defaults on a copy so that every field-presence invariant
// holds. Applying it to an already-canonical analysis changes nothing.
func canonical(a domain.Analysis) domain.Analysis {
	if a.ID == "" {
		a.ID = uuid.NewString()
	}
	if a.CreatedAt.IsZero() {
		a.CreatedAt = timeNow().UTC()
	}
	if len(a.Traits) == 0 {
		a.Traits = []domain.Trait{{
			Name:        placeholderTraitName,
			Score:       50,
			Description: "Not enough trait data was stored for this analysis.",
		}}
	}
	for i := range a.Traits {
		a.Traits[i].Strengths = nonNil(a.Traits[i].Strengths)
		a.Traits[i].Challenges = nonNil(a.Traits[i].Challenges)
		a.Traits[i].GrowthSuggestions = nonNil(a.Traits[i].GrowthSuggestions)
	}
	if a.Intelligence.LearningStyle == "" {
		a.Intelligence.LearningStyle = domain.DefaultLearningStyle
	}
	a.Intelligence.Strengths = nonNil(a.Intelligence.Strengths)
	a.ValueSystem.CoreValues = nonNil(a.ValueSystem.CoreValues)
	a.RelationshipPatterns.Strengths = nonNil(a.RelationshipPatterns.Strengths)
	a.RelationshipPatterns.Challenges = nonNil(a.RelationshipPatterns.Challenges)
	a.Motivators = nonNil(a.Motivators)
	a.Inhibitors = nonNil(a.Inhibitors)
	a.Weaknesses = nonNil(a.Weaknesses)
	a.GrowthAreas = nonNil(a.GrowthAreas)
	a.CareerSuggestions = nonNil(a.CareerSuggestions)
	a.LearningPathways = nonNil(a.LearningPathways)
	return a
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

var timestampFormats = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
}

func parseTimestamp(s string) (time.Time, bool) {
	for _, f := range timestampFormats {
		if t, err := time.Parse(f, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
