package worker

import (
	"context"

	"github.com/google/uuid"
)

// PreferenceProvider supplies a student's learning preferences for blueprint
// matching. The profile service owning preferences is an external
// collaborator; this is the seam it plugs into.
type PreferenceProvider interface {
	PreferencesFor(ctx context.Context, studentID uuid.UUID) (map[string]any, error)
}

// StaticPreferences is a PreferenceProvider returning the same preferences for
// every student. The empty map matches only blueprints with no preference
// pattern.
type StaticPreferences map[string]any

// PreferencesFor returns the static preference map.
func (p StaticPreferences) PreferencesFor(_ context.Context, _ uuid.UUID) (map[string]any, error) {
	return p, nil
}
