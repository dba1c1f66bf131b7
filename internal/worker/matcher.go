package worker

import (
	"context"
	"fmt"

	"github.com/lingotrail/trail-api/internal/domain"
	"github.com/lingotrail/trail-api/internal/platform/logger"
	"github.com/lingotrail/trail-api/internal/store"
)

// Matcher selects a reusable blueprint for a (language, level, preferences)
// triple. Selection is deterministic: candidates arrive in a total order from
// the store and the first structural match wins, so identical inputs always
// return the same blueprint.
type Matcher struct {
	blueprints store.BlueprintStore
}

// NewMatcher creates a Matcher over the blueprint store.
func NewMatcher(blueprints store.BlueprintStore) *Matcher {
	return &Matcher{blueprints: blueprints}
}

// Match returns the best approved blueprint whose preference pattern is a
// structural subset of the student's preferences, or nil when no blueprint
// matches and assembly must fall back to the curriculum hierarchy.
func (m *Matcher) Match(ctx context.Context, language, level string, preferences map[string]any) (*domain.Blueprint, error) {
	log := logger.FromContext(ctx)

	candidates, err := m.blueprints.ListApproved(ctx, language, level)
	if err != nil {
		return nil, fmt.Errorf("failed to list blueprint candidates: %w", err)
	}

	for i := range candidates {
		if candidates[i].MatchesPreferences(preferences) {
			log.Debug("matched blueprint",
				"blueprint_id", candidates[i].ID,
				"language", language,
				"level", level,
				"usage_count", candidates[i].UsageCount)
			return &candidates[i], nil
		}
	}

	log.Debug("no blueprint matched, falling back to curriculum",
		"language", language,
		"level", level,
		"candidates", len(candidates))
	return nil, nil
}
