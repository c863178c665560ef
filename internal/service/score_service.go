package service

import (
	"elevate_backend/internal/model"
	"elevate_backend/internal/repository"

	"gorm.io/gorm"
)

// ScoreService recomputes category score columns on the attempt from its
// graded responses.
type ScoreService struct {
	db           *gorm.DB
	attemptRepo  *repository.AttemptRepository
	responseRepo *repository.ResponseRepository
	questionRepo *repository.QuestionRepository
}

func NewScoreService(db *gorm.DB, attemptRepo *repository.AttemptRepository, responseRepo *repository.ResponseRepository, questionRepo *repository.QuestionRepository) *ScoreService {
	return &ScoreService{
		db:           db,
		attemptRepo:  attemptRepo,
		responseRepo: responseRepo,
		questionRepo: questionRepo,
	}
}

// Recompute folds graded response scores into the attempt's category
// columns. Only the four score columns are written so it cannot clobber
// a concurrent status transition.
func (s *ScoreService) Recompute(attemptID string) error {
	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil {
		return err
	}
	responses, err := s.responseRepo.ListByAttempt(attemptID)
	if err != nil {
		return err
	}
	types, err := s.questionRepo.TypesByContest(attempt.ContestID)
	if err != nil {
		return err
	}

	scores := model.SumCategories(responses, types)
	return s.attemptRepo.UpdateFields(attemptID, map[string]interface{}{
		"mcq_score":        scores.MCQ,
		"code_score":       scores.Code,
		"subjective_score": scores.Subjective,
		"total_score":      scores.Total(),
	})
}
