package service

import (
	"encoding/json"
	"time"

	"elevate_backend/internal/model"
	"elevate_backend/internal/repository"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type ContestService struct {
	contestRepo *repository.ContestRepository
	attemptRepo *repository.AttemptRepository

	now func() time.Time
}

func NewContestService(contestRepo *repository.ContestRepository, attemptRepo *repository.AttemptRepository) *ContestService {
	return &ContestService{
		contestRepo: contestRepo,
		attemptRepo: attemptRepo,
		now:         time.Now,
	}
}

type CreateContestInput struct {
	Name            string                 `json:"name" validate:"required"`
	Description     string                 `json:"description"`
	Instructions    string                 `json:"instructions"`
	StartAt         time.Time              `json:"startAt" validate:"required"`
	EndAt           time.Time              `json:"endAt" validate:"required"`
	DurationMinutes int                    `json:"durationMinutes" validate:"required,gt=0"`
	Settings        *model.ContestSettings `json:"settings"`
}

func (s *ContestService) Create(in CreateContestInput) (*model.Contest, error) {
	if err := validate.Struct(&in); err != nil {
		return nil, model.Validationf("invalid contest: %v", err)
	}
	if !in.EndAt.After(in.StartAt) {
		return nil, model.Validationf("endAt must be after startAt")
	}

	contest := &model.Contest{
		Name:            in.Name,
		Description:     in.Description,
		Instructions:    in.Instructions,
		StartAt:         in.StartAt,
		EndAt:           in.EndAt,
		DurationMinutes: in.DurationMinutes,
		Status:          model.ContestDraft,
	}
	if in.Settings != nil {
		if raw, err := json.Marshal(in.Settings); err == nil {
			contest.Settings = datatypes.JSON(raw)
		}
	}
	if err := s.contestRepo.Create(contest); err != nil {
		return nil, err
	}
	return contest, nil
}

// Publish makes a draft contest visible to candidates.
func (s *ContestService) Publish(id string) (*model.Contest, error) {
	contest, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if contest.Status != model.ContestDraft {
		return nil, model.InvalidStatef("cannot publish contest in status %s", contest.Status)
	}
	contest.Status = model.ContestPublished
	if err := s.contestRepo.DB.Save(contest).Error; err != nil {
		return nil, err
	}
	return contest, nil
}

func (s *ContestService) Get(id string) (*model.Contest, error) {
	contest, err := s.contestRepo.FindByID(id)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, model.NotFoundf("contest %s not found", id)
		}
		return nil, err
	}
	return contest, nil
}

func (s *ContestService) ListPublished(page, limit int) ([]model.Contest, int64, error) {
	return s.contestRepo.ListPublished(page, limit)
}

// Statistics returns the denormalized counters plus live status counts.
func (s *ContestService) Statistics(id string) (*model.ContestStatistics, error) {
	contest, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	counts, err := s.attemptRepo.CountByStatus(id)
	if err != nil {
		return nil, err
	}
	return &model.ContestStatistics{
		ContestID:         contest.ID,
		TotalParticipants: contest.TotalParticipants,
		TotalSubmissions:  contest.TotalSubmissions,
		AverageScore:      contest.AverageScore,
		Ongoing:           int(counts[model.AttemptOngoing]),
		Graded:            int(counts[model.AttemptGraded]),
	}, nil
}
