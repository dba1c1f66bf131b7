package domain

import (
	"encoding/json"
	"testing"

	"github.com/google/uuid"
)

func TestNewPlaceholderLesson(t *testing.T) {
	t.Parallel()
	moduleID := uuid.New()

	lesson, err := NewPlaceholderLesson(moduleID, "vocabulary", 0)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if !lesson.Placeholder {
		t.Error("Expected a new lesson slot to be a placeholder")
	}

	if lesson.IsCompleted() {
		t.Error("Expected a new lesson to be incomplete")
	}

	if lesson.ModuleID != moduleID {
		t.Errorf("Expected module ID %s, got %s", moduleID, lesson.ModuleID)
	}

	_, err = NewPlaceholderLesson(uuid.Nil, "vocabulary", 0)
	if err != ErrLessonModuleIDEmpty {
		t.Errorf("Expected error %v, got %v", ErrLessonModuleIDEmpty, err)
	}

	_, err = NewPlaceholderLesson(moduleID, "", 0)
	if err != ErrLessonTypeEmpty {
		t.Errorf("Expected error %v, got %v", ErrLessonTypeEmpty, err)
	}

	_, err = NewPlaceholderLesson(moduleID, "vocabulary", -1)
	if err != ErrLessonPositionNegative {
		t.Errorf("Expected error %v, got %v", ErrLessonPositionNegative, err)
	}
}

func TestLessonFill(t *testing.T) {
	t.Parallel()
	lesson, err := NewPlaceholderLesson(uuid.New(), "dialogue", 1)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	content := json.RawMessage(`{"title":"Ordering coffee"}`)
	lesson.Fill(content)

	if lesson.Placeholder {
		t.Error("Expected filled lesson to no longer be a placeholder")
	}
	if string(lesson.Content) != string(content) {
		t.Errorf("Expected content %s, got %s", content, lesson.Content)
	}
}

// Completing a lesson is last-write-wins: repeated calls never error and the
// final state equals the latest call's arguments.
func TestLessonCompleteIdempotent(t *testing.T) {
	t.Parallel()
	lesson, err := NewPlaceholderLesson(uuid.New(), "quiz", 2)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := lesson.Complete(70, 300); err != nil {
		t.Fatalf("Expected no error on first completion, got %v", err)
	}

	if err := lesson.Complete(95, 120); err != nil {
		t.Fatalf("Expected no error on repeated completion, got %v", err)
	}

	if !lesson.IsCompleted() {
		t.Error("Expected lesson to be completed")
	}
	if lesson.Score == nil || *lesson.Score != 95 {
		t.Errorf("Expected score 95, got %v", lesson.Score)
	}
	if lesson.TimeSpentSeconds == nil || *lesson.TimeSpentSeconds != 120 {
		t.Errorf("Expected time spent 120, got %v", lesson.TimeSpentSeconds)
	}
}

func TestLessonCompleteValidation(t *testing.T) {
	t.Parallel()
	lesson, err := NewPlaceholderLesson(uuid.New(), "quiz", 0)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	if err := lesson.Complete(101, 60); err != ErrLessonScoreOutOfRange {
		t.Errorf("Expected error %v, got %v", ErrLessonScoreOutOfRange, err)
	}

	if err := lesson.Complete(-1, 60); err != ErrLessonScoreOutOfRange {
		t.Errorf("Expected error %v, got %v", ErrLessonScoreOutOfRange, err)
	}

	if err := lesson.Complete(50, -10); err != ErrLessonTimeSpentNegative {
		t.Errorf("Expected error %v, got %v", ErrLessonTimeSpentNegative, err)
	}

	if lesson.IsCompleted() {
		t.Error("Expected failed completion calls to leave the lesson incomplete")
	}
}
