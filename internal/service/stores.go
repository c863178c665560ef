package service

import (
	"elevate_backend/internal/model"
	"elevate_backend/internal/repository"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// Narrow views of the repositories, covering only what the session and
// grading services call. The concrete repository types satisfy them;
// tests substitute in-memory fakes.

type contestStore interface {
	FindByID(id string) (*model.Contest, error)
}

type participantStore interface {
	GetOrCreate(email, name, phone string) (*model.Participant, error)
}

type questionStore interface {
	FindByID(id string) (*model.Question, error)
	ListByContest(contestID string) ([]model.Question, error)
}

type attemptStore interface {
	Create(attempt *model.Attempt) error
	FindByID(id string) (*model.Attempt, error)
	FindByIDForUpdate(tx *gorm.DB, id string) (*model.Attempt, error)
	FindByParticipantAndContest(participantID, contestID string) (*model.Attempt, error)
	UpdateFields(id string, fields map[string]interface{}) error
	UpdateFieldsIfStatus(id string, statuses []model.AttemptStatus, fields map[string]interface{}) (bool, error)
}

type responseStore interface {
	FindByID(id string) (*model.Response, error)
	Upsert(attemptID, questionID string, answer datatypes.JSON) (*model.Response, error)
	ListByAttempt(attemptID string) ([]model.Response, error)
	Save(resp *model.Response) error
	CountUngraded(tx *gorm.DB, attemptID string) (int64, error)
	ListPendingSubjective(contestID string) ([]model.Response, error)
}

type grader interface {
	Grade(attemptID string) error
}

var (
	_ contestStore     = (*repository.ContestRepository)(nil)
	_ participantStore = (*repository.ParticipantRepository)(nil)
	_ questionStore    = (*repository.QuestionRepository)(nil)
	_ attemptStore     = (*repository.AttemptRepository)(nil)
	_ responseStore    = (*repository.ResponseRepository)(nil)
	_ grader           = (*GradingService)(nil)
)
