package domain

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Common validation errors for Blueprint
var (
	ErrBlueprintIDEmpty        = fmt.Errorf("%w: blueprint ID cannot be empty", ErrValidation)
	ErrBlueprintLanguageEmpty  = fmt.Errorf("%w: blueprint language cannot be empty", ErrValidation)
	ErrBlueprintLevelEmpty     = fmt.Errorf("%w: blueprint level cannot be empty", ErrValidation)
	ErrBlueprintStructureEmpty = fmt.Errorf("%w: blueprint structure cannot be empty", ErrValidation)
)

// Blueprint is an approved, reusable trail skeleton for a (language, level,
// preference pattern) triple. A blueprint is immutable once approved; only
// its usage statistics change.
type Blueprint struct {
	ID                uuid.UUID       `json:"id"`
	Language          string          `json:"language"`
	Level             string          `json:"level"`
	PreferencePattern json.RawMessage `json:"preference_pattern"`
	Structure         json.RawMessage `json:"structure"`
	Approved          bool            `json:"approved"`
	UsageCount        int             `json:"usage_count"`
	AvgCompletionRate *float64        `json:"avg_completion_rate,omitempty"`
	CreatedAt         time.Time       `json:"created_at"`
}

// Validate checks if the Blueprint has valid data.
func (b *Blueprint) Validate() error {
	if b.ID == uuid.Nil {
		return ErrBlueprintIDEmpty
	}

	if b.Language == "" {
		return ErrBlueprintLanguageEmpty
	}

	if b.Level == "" {
		return ErrBlueprintLevelEmpty
	}

	if len(b.Structure) == 0 {
		return ErrBlueprintStructureEmpty
	}

	return nil
}

// BlueprintStructure is the decoded shape of Blueprint.Structure: the ordered
// module skeleton a matched blueprint expands into.
type BlueprintStructure struct {
	Modules []BlueprintModule `json:"modules"`
}

// BlueprintModule is one module slot in a blueprint structure.
type BlueprintModule struct {
	CompetencyCode string   `json:"competency_code"`
	LessonTypes    []string `json:"lesson_types"`
}

// DecodeStructure parses the blueprint's structure document.
func (b *Blueprint) DecodeStructure() (*BlueprintStructure, error) {
	var structure BlueprintStructure
	if err := json.Unmarshal(b.Structure, &structure); err != nil {
		return nil, err
	}
	return &structure, nil
}

// MatchesPreferences reports whether the blueprint's preference pattern is a
// structural subset of the student's preferences: every key in the pattern
// must exist in the preferences with a matching value, recursing into nested
// objects. An empty or absent pattern matches any preferences.
func (b *Blueprint) MatchesPreferences(preferences map[string]any) bool {
	if len(b.PreferencePattern) == 0 {
		return true
	}

	var pattern map[string]any
	if err := json.Unmarshal(b.PreferencePattern, &pattern); err != nil {
		return false
	}

	return isStructuralSubset(pattern, preferences)
}

// isStructuralSubset reports whether every key/value pair in pattern appears
// in candidate, matching nested objects recursively and leaves by deep
// equality of their canonical JSON forms.
func isStructuralSubset(pattern, candidate map[string]any) bool {
	for key, patternValue := range pattern {
		candidateValue, ok := candidate[key]
		if !ok {
			return false
		}

		patternMap, patternIsMap := patternValue.(map[string]any)
		candidateMap, candidateIsMap := candidateValue.(map[string]any)

		if patternIsMap && candidateIsMap {
			if !isStructuralSubset(patternMap, candidateMap) {
				return false
			}
			continue
		}

		if patternIsMap != candidateIsMap {
			return false
		}

		if !jsonEqual(patternValue, candidateValue) {
			return false
		}
	}

	return true
}

func jsonEqual(a, b any) bool {
	aJSON, errA := json.Marshal(a)
	bJSON, errB := json.Marshal(b)
	if errA != nil || errB != nil {
		return false
	}
	return string(aJSON) == string(bJSON)
}
