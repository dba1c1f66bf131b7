package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for ContentBlock
var (
	ErrContentBlockIDEmpty           = fmt.Errorf("%w: content block ID cannot be empty", ErrValidation)
	ErrContentBlockHashEmpty         = fmt.Errorf("%w: content block hash cannot be empty", ErrValidation)
	ErrContentBlockDescriptorIDEmpty = fmt.Errorf("%w: content block descriptor ID cannot be empty", ErrValidation)
	ErrContentBlockLanguageEmpty     = fmt.Errorf("%w: content block language cannot be empty", ErrValidation)
	ErrContentBlockTypeEmpty         = fmt.Errorf("%w: content block type cannot be empty", ErrValidation)
	ErrContentBlockPayloadEmpty      = fmt.Errorf("%w: content block payload cannot be empty", ErrValidation)
)

// ContentBlock is a reusable, hash-addressed unit of generated lesson content.
// Blocks are shared across all trails and students; the content hash is the
// block's identity, so two generations of the same canonical payload always
// resolve to a single row. UsageCount only ever increases.
type ContentBlock struct {
	ID           uuid.UUID       `json:"id"`
	ContentHash  string          `json:"content_hash"`
	DescriptorID uuid.UUID       `json:"descriptor_id"`
	Language     string          `json:"language"`
	Type         string          `json:"type"`
	Payload      json.RawMessage `json:"payload"`
	QualityScore *float64        `json:"quality_score,omitempty"`
	UsageCount   int             `json:"usage_count"`
	Approved     bool            `json:"approved"`
	CreatedAt    time.Time       `json:"created_at"`
	UpdatedAt    time.Time       `json:"updated_at"`
}

// NewContentBlock creates a content block for a freshly generated payload.
// The content hash is computed from the canonical form of the payload.
func NewContentBlock(descriptorID uuid.UUID, language, blockType string, payload json.RawMessage) (*ContentBlock, error) {
	hash, err := ContentHashFor(payload)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	block := &ContentBlock{
		ID:           uuid.New(),
		ContentHash:  hash,
		DescriptorID: descriptorID,
		Language:     language,
		Type:         blockType,
		Payload:      payload,
		UsageCount:   0,
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := block.Validate(); err != nil {
		return nil, err
	}

	return block, nil
}

// Validate checks if the ContentBlock has valid data.
func (b *ContentBlock) Validate() error {
	if b.ID == uuid.Nil {
		return ErrContentBlockIDEmpty
	}

	if b.ContentHash == "" {
		return ErrContentBlockHashEmpty
	}

	if b.DescriptorID == uuid.Nil {
		return ErrContentBlockDescriptorIDEmpty
	}

	if b.Language == "" {
		return ErrContentBlockLanguageEmpty
	}

	if b.Type == "" {
		return ErrContentBlockTypeEmpty
	}

	if len(b.Payload) == 0 {
		return ErrContentBlockPayloadEmpty
	}

	return nil
}
