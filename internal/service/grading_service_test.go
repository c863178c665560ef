package service

import (
	"testing"

	"elevate_backend/internal/model"

	"gorm.io/gorm"
)

func TestManualGradeRequiresDispatchedAttempt(t *testing.T) {
	tests := []struct {
		name   string
		status model.AttemptStatus
		gated  bool
	}{
		{"ongoing draft", model.AttemptOngoing, true},
		{"not started", model.AttemptNotStarted, true},
		{"invalidated", model.AttemptInvalidated, true},
		{"submitted", model.AttemptSubmitted, false},
		{"grading", model.AttemptGrading, false},
		{"graded", model.AttemptGraded, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attempts := &fakeAttemptStore{attempts: map[string]*model.Attempt{
				"attempt-1": {
					UUIDBase:  model.UUIDBase{ID: "attempt-1"},
					ContestID: "contest-1",
					Status:    tt.status,
				},
			}}
			responses := &fakeResponseStore{responses: map[string]*model.Response{
				"response-1": {
					UUIDBase:   model.UUIDBase{ID: "response-1"},
					AttemptID:  "attempt-1",
					QuestionID: "question-1",
				},
			}}
			// the empty question store makes gate-open cases fail on the
			// question lookup, right after the status check passes
			svc := NewGradingService(nil, attempts, responses, &fakeQuestionStore{questions: map[string]*model.Question{}}, nil, nil)

			_, err := svc.ManualGrade("response-1", 5, "", "reviewer-1")
			if tt.gated {
				if model.KindOf(err) != model.KindInvalidState {
					t.Fatalf("expected invalid state for %s attempt, got %v", tt.status, err)
				}
				return
			}
			if err != gorm.ErrRecordNotFound {
				t.Fatalf("expected question lookup to be the blocker, got %v", err)
			}
		})
	}
}
