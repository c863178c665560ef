package model

import (
	"encoding/json"
	"fmt"

	"gorm.io/datatypes"
)

type QuestionType string

const (
	QuestionMCQ        QuestionType = "mcq"
	QuestionCoding     QuestionType = "coding"
	QuestionSubjective QuestionType = "subjective"
)

type QuestionSource string

const (
	SourceManual QuestionSource = "manual"
	SourceUpload QuestionSource = "upload"
	SourceAI     QuestionSource = "ai"
)

type MCQContent struct {
	Question      string   `json:"question"`
	Options       []string `json:"options"`
	CorrectAnswer int      `json:"correctAnswer"`
	Explanation   string   `json:"explanation,omitempty"`
}

type TestCase struct {
	Input    string `json:"input"`
	Output   string `json:"output"`
	IsHidden bool   `json:"isHidden"`
	Points   int    `json:"points"`
}

type CodingContent struct {
	Title            string     `json:"title"`
	ProblemStatement string     `json:"problemStatement"`
	InputFormat      string     `json:"inputFormat,omitempty"`
	OutputFormat     string     `json:"outputFormat,omitempty"`
	Constraints      string     `json:"constraints,omitempty"`
	SampleInput      string     `json:"sampleInput,omitempty"`
	SampleOutput     string     `json:"sampleOutput,omitempty"`
	TestCases        []TestCase `json:"testCases"`
	TimeLimitMS      int        `json:"timeLimitMs,omitempty"`
	MemoryLimitMB    int        `json:"memoryLimitMb,omitempty"`
}

type SubjectiveContent struct {
	Question       string `json:"question"`
	Rubric         string `json:"rubric,omitempty"`
	ExpectedLength int    `json:"expectedLength,omitempty"`
}

// swagger:model Question
type Question struct {
	UUIDBase
	ContestID string         `gorm:"index:idx_contest_order;type:varchar(36);not null" json:"contestId"`
	Type      QuestionType   `gorm:"size:20;not null;index" json:"type"`
	Content   datatypes.JSON `gorm:"not null" json:"content"`

	// 评分配置
	MaxMarks      float64 `gorm:"not null" json:"maxMarks"`
	NegativeMarks float64 `gorm:"default:0" json:"negativeMarks"` // 0 = negative marking disabled

	Difficulty int            `gorm:"default:3;index" json:"difficulty"`
	Tags       datatypes.JSON `json:"tags,omitempty"`
	Source     QuestionSource `gorm:"size:20;default:'manual'" json:"source"`
	Order      int            `gorm:"index:idx_contest_order;default:0" json:"order"`
}

func (Question) TableName() string {
	return "questions"
}

func (q *Question) MCQContent() (*MCQContent, error) {
	if q.Type != QuestionMCQ {
		return nil, fmt.Errorf("question %s is not mcq", q.ID)
	}
	var c MCQContent
	if err := json.Unmarshal(q.Content, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (q *Question) CodingContent() (*CodingContent, error) {
	if q.Type != QuestionCoding {
		return nil, fmt.Errorf("question %s is not coding", q.ID)
	}
	var c CodingContent
	if err := json.Unmarshal(q.Content, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

func (q *Question) SubjectiveContent() (*SubjectiveContent, error) {
	if q.Type != QuestionSubjective {
		return nil, fmt.Errorf("question %s is not subjective", q.ID)
	}
	var c SubjectiveContent
	if err := json.Unmarshal(q.Content, &c); err != nil {
		return nil, err
	}
	return &c, nil
}

// Title extracts the display title for any question type.
func (q *Question) Title() string {
	switch q.Type {
	case QuestionMCQ:
		if c, err := q.MCQContent(); err == nil {
			return c.Question
		}
	case QuestionCoding:
		if c, err := q.CodingContent(); err == nil {
			return c.Title
		}
	case QuestionSubjective:
		if c, err := q.SubjectiveContent(); err == nil {
			return c.Question
		}
	}
	return "Untitled Question"
}

// TestCases returns the ordered test cases of a coding question, nil otherwise.
func (q *Question) TestCases() []TestCase {
	c, err := q.CodingContent()
	if err != nil {
		return nil
	}
	return c.TestCases
}

// PublicTestCases returns only the non-hidden cases.
func (q *Question) PublicTestCases() []TestCase {
	var public []TestCase
	for _, tc := range q.TestCases() {
		if !tc.IsHidden {
			public = append(public, tc)
		}
	}
	return public
}
