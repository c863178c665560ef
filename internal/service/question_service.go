package service

import (
	"encoding/json"

	"elevate_backend/internal/model"
	"elevate_backend/internal/repository"
	"elevate_backend/pkg/logger"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

var validate = validator.New()

// QuestionPayload is one question in an import batch. Content shape
// depends on Type.
type QuestionPayload struct {
	Type          model.QuestionType   `json:"type" validate:"required,oneof=mcq coding subjective"`
	MaxMarks      float64              `json:"maxMarks" validate:"required,gt=0"`
	NegativeMarks float64              `json:"negativeMarks" validate:"gte=0"`
	Difficulty    int                  `json:"difficulty" validate:"omitempty,min=1,max=5"`
	Order         int                  `json:"order" validate:"gte=0"`
	Tags          []string             `json:"tags"`
	Source        model.QuestionSource `json:"source" validate:"omitempty,oneof=manual upload ai"`
	Content       json.RawMessage      `json:"content" validate:"required"`
}

type mcqPayload struct {
	Question      string   `json:"question" validate:"required"`
	Options       []string `json:"options" validate:"required,min=2"`
	CorrectAnswer int      `json:"correctAnswer" validate:"gte=0"`
	Explanation   string   `json:"explanation"`
}

type codingPayload struct {
	Title            string           `json:"title" validate:"required"`
	ProblemStatement string           `json:"problemStatement" validate:"required"`
	TestCases        []model.TestCase `json:"testCases" validate:"required,min=1"`
	TimeLimitMS      int              `json:"timeLimitMs" validate:"gte=0"`
	MemoryLimitMB    int              `json:"memoryLimitMb" validate:"gte=0"`
}

type subjectivePayload struct {
	Question       string `json:"question" validate:"required"`
	Rubric         string `json:"rubric"`
	ExpectedLength int    `json:"expectedLength" validate:"gte=0"`
}

// validateQuestionPayload checks shape and the cross-field rules the
// struct tags cannot express.
func validateQuestionPayload(p *QuestionPayload) error {
	if err := validate.Struct(p); err != nil {
		return model.Validationf("invalid question payload: %v", err)
	}

	switch p.Type {
	case model.QuestionMCQ:
		var c mcqPayload
		if err := json.Unmarshal(p.Content, &c); err != nil {
			return model.Validationf("invalid mcq content: %v", err)
		}
		if err := validate.Struct(&c); err != nil {
			return model.Validationf("invalid mcq content: %v", err)
		}
		if c.CorrectAnswer >= len(c.Options) {
			return model.Validationf("correctAnswer %d is out of range for %d options", c.CorrectAnswer, len(c.Options))
		}

	case model.QuestionCoding:
		var c codingPayload
		if err := json.Unmarshal(p.Content, &c); err != nil {
			return model.Validationf("invalid coding content: %v", err)
		}
		if err := validate.Struct(&c); err != nil {
			return model.Validationf("invalid coding content: %v", err)
		}
		for i, tc := range c.TestCases {
			if tc.Points < 0 {
				return model.Validationf("test case %d has negative points", i)
			}
		}

	case model.QuestionSubjective:
		var c subjectivePayload
		if err := json.Unmarshal(p.Content, &c); err != nil {
			return model.Validationf("invalid subjective content: %v", err)
		}
		if err := validate.Struct(&c); err != nil {
			return model.Validationf("invalid subjective content: %v", err)
		}
	}
	return nil
}

type QuestionService struct {
	questionRepo *repository.QuestionRepository
	contestRepo  *repository.ContestRepository
}

func NewQuestionService(questionRepo *repository.QuestionRepository, contestRepo *repository.ContestRepository) *QuestionService {
	return &QuestionService{questionRepo: questionRepo, contestRepo: contestRepo}
}

// ImportPayload validates and stores a batch of questions for a contest.
// The whole batch is rejected when any payload is invalid.
func (s *QuestionService) ImportPayload(contestID string, payloads []QuestionPayload) ([]model.Question, error) {
	if _, err := s.contestRepo.FindByID(contestID); err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, model.NotFoundf("contest %s not found", contestID)
		}
		return nil, err
	}
	if len(payloads) == 0 {
		return nil, model.Validationf("no questions to import")
	}

	questions := make([]*model.Question, 0, len(payloads))
	for i := range payloads {
		p := &payloads[i]
		if err := validateQuestionPayload(p); err != nil {
			return nil, err
		}

		q := &model.Question{
			ContestID:     contestID,
			Type:          p.Type,
			Content:       datatypes.JSON(p.Content),
			MaxMarks:      p.MaxMarks,
			NegativeMarks: p.NegativeMarks,
			Difficulty:    p.Difficulty,
			Order:         p.Order,
			Source:        p.Source,
		}
		if q.Difficulty == 0 {
			q.Difficulty = 3
		}
		if q.Source == "" {
			q.Source = model.SourceManual
		}
		if len(p.Tags) > 0 {
			if raw, err := json.Marshal(p.Tags); err == nil {
				q.Tags = datatypes.JSON(raw)
			}
		}
		questions = append(questions, q)
	}

	if err := s.questionRepo.CreateBatch(questions); err != nil {
		return nil, err
	}
	logger.Log.Info("questions imported",
		zap.String("contestId", contestID),
		zap.Int("count", len(questions)))

	out := make([]model.Question, len(questions))
	for i, q := range questions {
		out[i] = *q
	}
	return out, nil
}

func (s *QuestionService) ListByContest(contestID string) ([]model.Question, error) {
	return s.questionRepo.ListByContest(contestID)
}

// CandidateQuestion is the answer-free view served to a live session.
type CandidateQuestion struct {
	ID       string             `json:"id"`
	Type     model.QuestionType `json:"type"`
	Content  interface{}        `json:"content"`
	MaxMarks float64            `json:"maxMarks"`
	Order    int                `json:"order"`
}

// SanitizeQuestions strips correct answers, explanations and hidden test
// cases before a question leaves the server mid-session.
func SanitizeQuestions(questions []model.Question) []CandidateQuestion {
	out := make([]CandidateQuestion, 0, len(questions))
	for i := range questions {
		q := &questions[i]
		cq := CandidateQuestion{
			ID:       q.ID,
			Type:     q.Type,
			MaxMarks: q.MaxMarks,
			Order:    q.Order,
		}

		switch q.Type {
		case model.QuestionMCQ:
			if c, err := q.MCQContent(); err == nil {
				cq.Content = map[string]interface{}{
					"question": c.Question,
					"options":  c.Options,
				}
			}
		case model.QuestionCoding:
			if c, err := q.CodingContent(); err == nil {
				visible := make([]model.TestCase, 0, len(c.TestCases))
				for _, tc := range c.TestCases {
					if !tc.IsHidden {
						visible = append(visible, tc)
					}
				}
				c.TestCases = visible
				cq.Content = c
			}
		case model.QuestionSubjective:
			if c, err := q.SubjectiveContent(); err == nil {
				cq.Content = map[string]interface{}{
					"question":       c.Question,
					"expectedLength": c.ExpectedLength,
				}
			}
		}
		out = append(out, cq)
	}
	return out
}
