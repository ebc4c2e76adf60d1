package domain_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/vladislavdragonenkov/booking/internal/domain"
)

func TestInsufficientSpacesError(t *testing.T) {
	err := &domain.InsufficientSpacesError{
		LessonID:  "65f1a2b3c4d5e6f7a8b9c0d2",
		Topic:     "Math",
		Available: 2,
		Requested: 5,
	}

	if !errors.Is(err, domain.ErrInsufficientSpaces) {
		t.Fatal("expected error to unwrap into ErrInsufficientSpaces")
	}

	msg := err.Error()
	if !strings.Contains(msg, "Math") {
		t.Errorf("expected message to name the lesson, got %q", msg)
	}
	if !strings.Contains(msg, "available 2") || !strings.Contains(msg, "requested 5") {
		t.Errorf("expected message to show available vs requested, got %q", msg)
	}
}

func TestInsufficientSpacesError_FallsBackToID(t *testing.T) {
	err := &domain.InsufficientSpacesError{LessonID: "abc", Available: 0, Requested: 1}
	if !strings.Contains(err.Error(), "abc") {
		t.Errorf("expected message to fall back to lesson ID, got %q", err.Error())
	}
}

func TestIsNotFound(t *testing.T) {
	if !domain.IsNotFound(domain.ErrLessonNotFound) {
		t.Error("ErrLessonNotFound must be reported as not found")
	}
	if !domain.IsNotFound(fmt.Errorf("load order: %w", domain.ErrOrderNotFound)) {
		t.Error("wrapped ErrOrderNotFound must be reported as not found")
	}
	if domain.IsNotFound(domain.ErrInsufficientSpaces) {
		t.Error("conflict must not be reported as not found")
	}
}

func TestIsConflict(t *testing.T) {
	conflict := &domain.InsufficientSpacesError{LessonID: "x", Available: 1, Requested: 2}
	if !domain.IsConflict(conflict) {
		t.Error("InsufficientSpacesError must be reported as conflict")
	}
	if domain.IsConflict(domain.ErrLessonNotFound) {
		t.Error("not found must not be reported as conflict")
	}
}
