package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

// GraderSystem marks scores written by automated grading as opposed to a
// named human reviewer.
const GraderSystem = "system"

// CaseResult is the per-test-case outcome kept for audit and display.
type CaseResult struct {
	Passed          bool    `json:"passed"`
	Output          string  `json:"output,omitempty"`
	ErrorKind       string  `json:"errorKind,omitempty"`
	Stderr          string  `json:"stderr,omitempty"`
	CompileOutput   string  `json:"compileOutput,omitempty"`
	ExecutionTimeMS float64 `json:"executionTimeMs"`
	MemoryUsedMB    float64 `json:"memoryUsedMb"`
	Hidden          bool    `json:"hidden"`
}

// ExecutionReport aggregates one batch run of a coding answer.
type ExecutionReport struct {
	TestCasesPassed int          `json:"testCasesPassed"`
	TotalTestCases  int          `json:"totalTestCases"`
	ScoreFraction   float64      `json:"scoreFraction"`
	ExecutionTimeMS float64      `json:"executionTimeMs"`
	MemoryUsedMB    float64      `json:"memoryUsedMb"`
	Cases           []CaseResult `json:"cases"`
}

// swagger:model Response
type Response struct {
	UUIDBase
	AttemptID  string         `gorm:"uniqueIndex:idx_attempt_question;type:varchar(36);not null" json:"attemptId"`
	QuestionID string         `gorm:"uniqueIndex:idx_attempt_question;type:varchar(36);not null" json:"questionId"`
	Answer     datatypes.JSON `json:"answer"`

	// Grading
	Score    float64    `gorm:"default:0" json:"score"`
	IsGraded bool       `gorm:"default:false;index" json:"isGraded"`
	GradedAt *time.Time `json:"gradedAt,omitempty"`
	GradedBy string     `gorm:"size:255" json:"gradedBy,omitempty"`

	ExecutionResult datatypes.JSON `json:"executionResult,omitempty"`
	Feedback        string         `gorm:"type:text" json:"feedback,omitempty"`
	SubmissionCount int            `gorm:"default:0" json:"submissionCount"`
}

func (Response) TableName() string {
	return "responses"
}

func (r *Response) DecodeAnswer() (*Answer, error) {
	var a Answer
	if err := json.Unmarshal(r.Answer, &a); err != nil {
		return nil, Validationf("malformed answer payload: %v", err)
	}
	return &a, nil
}

func (r *Response) DecodeExecutionReport() *ExecutionReport {
	if len(r.ExecutionResult) == 0 {
		return nil
	}
	var rep ExecutionReport
	if err := json.Unmarshal(r.ExecutionResult, &rep); err != nil {
		return nil
	}
	return &rep
}

// SetGraded replaces (never appends to) the score of this response.
func (r *Response) SetGraded(score float64, gradedBy string, now time.Time) {
	r.Score = score
	r.IsGraded = true
	r.GradedAt = &now
	r.GradedBy = gradedBy
}

// ClearGrade resets the response to ungraded before a regrade pass.
func (r *Response) ClearGrade() {
	r.Score = 0
	r.IsGraded = false
	r.GradedAt = nil
	r.GradedBy = ""
	r.ExecutionResult = nil
}
