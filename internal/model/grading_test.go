package model

import (
	"encoding/json"
	"testing"
	"time"

	"gorm.io/datatypes"
)

func mcqQuestion(t *testing.T, maxMarks, negativeMarks float64) *Question {
	t.Helper()
	content, err := json.Marshal(MCQContent{
		Question:      "What does TCP stand for?",
		Options:       []string{"A", "B", "C", "D"},
		CorrectAnswer: 2,
	})
	if err != nil {
		t.Fatalf("marshal content: %v", err)
	}
	return &Question{
		Type:          QuestionMCQ,
		Content:       datatypes.JSON(content),
		MaxMarks:      maxMarks,
		NegativeMarks: negativeMarks,
	}
}

func TestGradeMCQ(t *testing.T) {
	tests := []struct {
		name     string
		negative float64
		selected int
		want     float64
	}{
		{"correct answer gets full marks", 1, 2, 4},
		{"wrong answer with negative marking", 1, 0, -1},
		{"wrong answer without negative marking", 0, 0, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := mcqQuestion(t, 4, tt.negative)
			got, err := GradeMCQ(q, &MCQAnswer{SelectedOption: tt.selected})
			if err != nil {
				t.Fatalf("grade: %v", err)
			}
			if got != tt.want {
				t.Fatalf("expected score %v, got %v", tt.want, got)
			}
		})
	}
}

func TestValidateAnswer(t *testing.T) {
	q := mcqQuestion(t, 4, 0)

	tests := []struct {
		name    string
		answer  *Answer
		wantErr bool
	}{
		{"valid mcq", &Answer{Type: QuestionMCQ, MCQ: &MCQAnswer{SelectedOption: 1}}, false},
		{"nil answer", nil, true},
		{"type mismatch", &Answer{Type: QuestionCoding, Coding: &CodingAnswer{Code: "x", Language: "c"}}, true},
		{"option out of range", &Answer{Type: QuestionMCQ, MCQ: &MCQAnswer{SelectedOption: 4}}, true},
		{"negative option", &Answer{Type: QuestionMCQ, MCQ: &MCQAnswer{SelectedOption: -1}}, true},
		{"missing variant", &Answer{Type: QuestionMCQ}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateAnswer(q, tt.answer)
			if tt.wantErr && KindOf(err) != KindValidation {
				t.Fatalf("expected validation error, got %v", err)
			}
			if !tt.wantErr && err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestValidateAnswerCodingAndSubjective(t *testing.T) {
	coding := &Question{Type: QuestionCoding}
	if err := ValidateAnswer(coding, &Answer{Type: QuestionCoding, Coding: &CodingAnswer{Code: "print(1)", Language: "python3"}}); err != nil {
		t.Fatalf("valid coding answer rejected: %v", err)
	}
	if err := ValidateAnswer(coding, &Answer{Type: QuestionCoding, Coding: &CodingAnswer{Code: "", Language: "python3"}}); err == nil {
		t.Fatalf("empty code accepted")
	}
	if err := ValidateAnswer(coding, &Answer{Type: QuestionCoding, Coding: &CodingAnswer{Code: "x"}}); err == nil {
		t.Fatalf("missing language accepted")
	}

	subjective := &Question{Type: QuestionSubjective}
	if err := ValidateAnswer(subjective, &Answer{Type: QuestionSubjective, Subjective: &SubjectiveAnswer{Text: "because"}}); err != nil {
		t.Fatalf("valid subjective answer rejected: %v", err)
	}
	if err := ValidateAnswer(subjective, &Answer{Type: QuestionSubjective, Subjective: &SubjectiveAnswer{}}); err == nil {
		t.Fatalf("empty text accepted")
	}
}

func TestWeightedScoreFraction(t *testing.T) {
	cases := []TestCase{
		{Points: 10},
		{Points: 10},
		{Points: 10},
	}
	if got := WeightedScoreFraction(cases, []bool{true, true, false}); got != 20.0/30.0 {
		t.Fatalf("expected 2/3, got %v", got)
	}

	// unweighted cases default to one point each
	plain := []TestCase{{}, {}, {}, {}}
	if got := WeightedScoreFraction(plain, []bool{true, false, true, false}); got != 0.5 {
		t.Fatalf("expected 0.5, got %v", got)
	}

	if got := WeightedScoreFraction(nil, nil); got != 0 {
		t.Fatalf("expected 0 for no cases, got %v", got)
	}
}

func TestSumCategories(t *testing.T) {
	types := map[string]QuestionType{
		"q1": QuestionMCQ,
		"q2": QuestionCoding,
		"q3": QuestionSubjective,
		"q4": QuestionCoding,
	}
	responses := []Response{
		{QuestionID: "q1", Score: 4, IsGraded: true},
		{QuestionID: "q2", Score: 7.5, IsGraded: true},
		{QuestionID: "q3", Score: 3, IsGraded: true},
		{QuestionID: "q4", Score: 99, IsGraded: false}, // ungraded must not count
	}

	sums := SumCategories(responses, types)
	if sums.MCQ != 4 || sums.Code != 7.5 || sums.Subjective != 3 {
		t.Fatalf("unexpected sums: %+v", sums)
	}
	if sums.Total() != 14.5 {
		t.Fatalf("expected total 14.5, got %v", sums.Total())
	}

	// folding again over the same rows yields the same result
	again := SumCategories(responses, types)
	if again != sums {
		t.Fatalf("fold is not idempotent: %+v vs %+v", again, sums)
	}
}

func TestRankAttempts(t *testing.T) {
	early := testNow
	late := testNow.Add(30 * time.Minute)

	attempts := []Attempt{
		{UUIDBase: UUIDBase{ID: "a1"}, ParticipantID: "p1", TotalScore: 50, FinishedAt: &late},
		{UUIDBase: UUIDBase{ID: "a2"}, ParticipantID: "p2", TotalScore: 90, FinishedAt: &late},
		{UUIDBase: UUIDBase{ID: "a3"}, ParticipantID: "p3", TotalScore: 90, FinishedAt: &early},
	}
	participants := map[string]Participant{
		"p1": {UUIDBase: UUIDBase{ID: "p1"}, Name: "One", Email: "one@example.com"},
		"p2": {UUIDBase: UUIDBase{ID: "p2"}, Name: "Two", Email: "two@example.com"},
		"p3": {UUIDBase: UUIDBase{ID: "p3"}, Name: "Three", Email: "three@example.com"},
	}

	entries := RankAttempts(attempts, participants, 2)
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].Email != "three@example.com" {
		t.Fatalf("tie must go to the earlier finisher, got %s", entries[0].Email)
	}
	if entries[1].Email != "two@example.com" {
		t.Fatalf("expected second place two@example.com, got %s", entries[1].Email)
	}
	if entries[0].Rank != 1 || entries[1].Rank != 2 {
		t.Fatalf("ranks must be dense from 1: %+v", entries)
	}
}
