package domain

import (
	"time"

	"github.com/google/uuid"
)

// This file holds the pure readiness reconciliation for the trail tree.
// Module and trail statuses are never stored authoritatively by callers;
// after every lesson or module event the caller recomputes them from the
// children with these functions, which keeps the derived statuses correct
// under any ordering of events.

// ModuleStatusFor derives a module's status from its lessons: ready iff the
// module has at least one lesson and none of them are placeholders.
func ModuleStatusFor(lessons []Lesson) ModuleStatus {
	if len(lessons) == 0 {
		return ModuleStatusPending
	}

	for i := range lessons {
		if lessons[i].Placeholder {
			return ModuleStatusPending
		}
	}

	return ModuleStatusReady
}

// TrailStatusFor derives a trail's status from its modules. Archived is
// terminal and orthogonal to generation: an archived trail stays archived
// regardless of module state. Otherwise the trail is ready iff all modules
// are ready, partial iff some are, and generating iff none are (or the trail
// has no modules yet).
func TrailStatusFor(current TrailStatus, modules []TrailModule) TrailStatus {
	if current == TrailStatusArchived {
		return TrailStatusArchived
	}

	if len(modules) == 0 {
		return TrailStatusGenerating
	}

	ready := 0
	for i := range modules {
		if modules[i].IsReady() {
			ready++
		}
	}

	switch ready {
	case 0:
		return TrailStatusGenerating
	case len(modules):
		return TrailStatusReady
	default:
		return TrailStatusPartial
	}
}

// ProgressFor recomputes the denormalized progress rollup from a trail's
// lessons. The percentage is 0 when the trail has no lessons, the average
// score covers only completed lessons carrying a score, and time spent is
// summed in whole minutes.
func ProgressFor(trailID uuid.UUID, lessons []Lesson) TrailProgress {
	progress := TrailProgress{
		TrailID:      trailID,
		TotalLessons: len(lessons),
		UpdatedAt:    time.Now().UTC(),
	}

	scoreSum := 0.0
	scored := 0
	secondsSpent := 0

	for i := range lessons {
		lesson := &lessons[i]
		if !lesson.IsCompleted() {
			continue
		}

		progress.LessonsCompleted++
		if lesson.Score != nil {
			scoreSum += *lesson.Score
			scored++
		}
		if lesson.TimeSpentSeconds != nil {
			secondsSpent += *lesson.TimeSpentSeconds
		}
	}

	if progress.TotalLessons > 0 {
		progress.ProgressPercentage = float64(progress.LessonsCompleted) / float64(progress.TotalLessons) * 100
	}

	if scored > 0 {
		avg := scoreSum / float64(scored)
		progress.AverageScore = &avg
	}

	progress.TimeSpentMinutes = secondsSpent / 60
	return progress
}
