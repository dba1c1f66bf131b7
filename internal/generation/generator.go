package generation

import (
	"context"
	"encoding/json"

	"github.com/lingotrail/trail-api/internal/domain"
)

// LessonRequest describes one lesson payload to generate: the descriptor the
// content must teach, the target language, and the lesson type.
type LessonRequest struct {
	Descriptor domain.Descriptor
	Language   string
	LessonType string
}

// Result carries a generated lesson payload plus provider accounting.
type Result struct {
	Payload    json.RawMessage
	TokensUsed int
}

// Generator produces lesson content for a curriculum descriptor. It is the
// seam between the trail pipeline and the external provider; implementations
// must honor ctx cancellation and report failures through the sentinel errors
// in this package.
type Generator interface {
	// GenerateLesson creates one lesson payload for the request. The payload
	// must be a valid JSON document; its canonical hash is the content's
	// identity in the shared cache.
	GenerateLesson(ctx context.Context, req LessonRequest) (*Result, error)
}

// SimilarityRanker ranks existing content blocks by similarity to a request,
// letting assembly prefer reusing close-enough approved content over
// generating fresh. Implementations are read-only.
type SimilarityRanker interface {
	// RankCandidates orders candidate blocks best match first. Returning an
	// empty slice means nothing is similar enough to reuse.
	RankCandidates(ctx context.Context, req LessonRequest, candidates []domain.ContentBlock) ([]domain.ContentBlock, error)
}
