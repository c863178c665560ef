package service

import (
	"encoding/json"
	"testing"

	"elevate_backend/internal/model"
)

func payload(t *testing.T, qt model.QuestionType, maxMarks float64, content interface{}) QuestionPayload {
	t.Helper()
	raw, err := json.Marshal(content)
	if err != nil {
		t.Fatalf("marshal content: %v", err)
	}
	return QuestionPayload{Type: qt, MaxMarks: maxMarks, Content: raw}
}

func TestValidateQuestionPayload(t *testing.T) {
	tests := []struct {
		name    string
		payload QuestionPayload
		wantErr bool
	}{
		{
			name: "valid mcq",
			payload: payload(t, model.QuestionMCQ, 4, map[string]interface{}{
				"question":      "Pick one",
				"options":       []string{"a", "b", "c"},
				"correctAnswer": 1,
			}),
		},
		{
			name: "mcq correct answer out of range",
			payload: payload(t, model.QuestionMCQ, 4, map[string]interface{}{
				"question":      "Pick one",
				"options":       []string{"a", "b"},
				"correctAnswer": 2,
			}),
			wantErr: true,
		},
		{
			name: "mcq too few options",
			payload: payload(t, model.QuestionMCQ, 4, map[string]interface{}{
				"question":      "Pick one",
				"options":       []string{"a"},
				"correctAnswer": 0,
			}),
			wantErr: true,
		},
		{
			name: "valid coding",
			payload: payload(t, model.QuestionCoding, 10, map[string]interface{}{
				"title":            "Sum",
				"problemStatement": "Add two numbers",
				"testCases":        []map[string]interface{}{{"input": "1 2", "output": "3", "points": 5}},
			}),
		},
		{
			name: "coding without test cases",
			payload: payload(t, model.QuestionCoding, 10, map[string]interface{}{
				"title":            "Sum",
				"problemStatement": "Add two numbers",
				"testCases":        []map[string]interface{}{},
			}),
			wantErr: true,
		},
		{
			name: "coding with negative case points",
			payload: payload(t, model.QuestionCoding, 10, map[string]interface{}{
				"title":            "Sum",
				"problemStatement": "Add two numbers",
				"testCases":        []map[string]interface{}{{"input": "1", "output": "1", "points": -2}},
			}),
			wantErr: true,
		},
		{
			name: "valid subjective",
			payload: payload(t, model.QuestionSubjective, 5, map[string]interface{}{
				"question": "Explain indexes",
			}),
		},
		{
			name: "subjective without question text",
			payload: payload(t, model.QuestionSubjective, 5, map[string]interface{}{
				"rubric": "depth of reasoning",
			}),
			wantErr: true,
		},
		{
			name: "zero max marks",
			payload: payload(t, model.QuestionMCQ, 0, map[string]interface{}{
				"question":      "Pick one",
				"options":       []string{"a", "b"},
				"correctAnswer": 0,
			}),
			wantErr: true,
		},
		{
			name:    "unknown type",
			payload: payload(t, "essay", 5, map[string]interface{}{"question": "x"}),
			wantErr: true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := validateQuestionPayload(&tt.payload)
			if tt.wantErr {
				if model.KindOf(err) != model.KindValidation {
					t.Fatalf("expected validation error, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestSanitizeQuestionsStripsAnswers(t *testing.T) {
	mcqContent, _ := json.Marshal(model.MCQContent{
		Question:      "Pick one",
		Options:       []string{"a", "b"},
		CorrectAnswer: 1,
		Explanation:   "because",
	})
	codingContent, _ := json.Marshal(model.CodingContent{
		Title:            "Sum",
		ProblemStatement: "Add",
		TestCases: []model.TestCase{
			{Input: "1 2", Output: "3"},
			{Input: "9 9", Output: "18", IsHidden: true},
		},
	})

	questions := []model.Question{
		{UUIDBase: model.UUIDBase{ID: "q1"}, Type: model.QuestionMCQ, Content: mcqContent, MaxMarks: 4},
		{UUIDBase: model.UUIDBase{ID: "q2"}, Type: model.QuestionCoding, Content: codingContent, MaxMarks: 10},
	}

	out := SanitizeQuestions(questions)
	if len(out) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(out))
	}

	mcq, ok := out[0].Content.(map[string]interface{})
	if !ok {
		t.Fatalf("unexpected mcq content type %T", out[0].Content)
	}
	if _, leaked := mcq["correctAnswer"]; leaked {
		t.Fatalf("correct answer leaked to candidate view")
	}
	if _, leaked := mcq["explanation"]; leaked {
		t.Fatalf("explanation leaked to candidate view")
	}

	coding, ok := out[1].Content.(*model.CodingContent)
	if !ok {
		t.Fatalf("unexpected coding content type %T", out[1].Content)
	}
	if len(coding.TestCases) != 1 || coding.TestCases[0].IsHidden {
		t.Fatalf("hidden test cases leaked: %+v", coding.TestCases)
	}
}
