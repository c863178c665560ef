package repository

import (
	"elevate_backend/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type ResponseRepository struct {
	DB *gorm.DB
}

func NewResponseRepository(db *gorm.DB) *ResponseRepository {
	return &ResponseRepository{DB: db}
}

func (r *ResponseRepository) FindByID(id string) (*model.Response, error) {
	var resp model.Response
	if err := r.DB.First(&resp, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *ResponseRepository) FindByAttemptAndQuestion(attemptID, questionID string) (*model.Response, error) {
	var resp model.Response
	err := r.DB.Where("attempt_id = ? AND question_id = ?", attemptID, questionID).
		First(&resp).Error
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

// Upsert saves an answer, bumping the submission counter when the row
// already exists.
func (r *ResponseRepository) Upsert(attemptID, questionID string, answer datatypes.JSON) (*model.Response, error) {
	existing, err := r.FindByAttemptAndQuestion(attemptID, questionID)
	if err == nil {
		existing.Answer = answer
		existing.SubmissionCount++
		if err := r.DB.Save(existing).Error; err != nil {
			return nil, err
		}
		return existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	resp := &model.Response{
		AttemptID:       attemptID,
		QuestionID:      questionID,
		Answer:          answer,
		SubmissionCount: 1,
	}
	if err := r.DB.Create(resp).Error; err != nil {
		return nil, err
	}
	return resp, nil
}

func (r *ResponseRepository) ListByAttempt(attemptID string) ([]model.Response, error) {
	var responses []model.Response
	err := r.DB.Where("attempt_id = ?", attemptID).Find(&responses).Error
	return responses, err
}

func (r *ResponseRepository) Save(resp *model.Response) error {
	return r.DB.Save(resp).Error
}

// CountUngraded runs inside tx so the completion check sees a consistent
// view alongside the row-locked attempt.
func (r *ResponseRepository) CountUngraded(tx *gorm.DB, attemptID string) (int64, error) {
	var count int64
	err := tx.Model(&model.Response{}).
		Where("attempt_id = ? AND is_graded = ?", attemptID, false).
		Count(&count).Error
	return count, err
}

// ListPendingSubjective joins against questions to surface the manual
// review queue for a contest. Only answers of dispatched attempts are
// reviewable; drafts of live sessions stay out of the queue.
func (r *ResponseRepository) ListPendingSubjective(contestID string) ([]model.Response, error) {
	var responses []model.Response
	err := r.DB.
		Joins("JOIN questions ON questions.id = responses.question_id").
		Joins("JOIN attempts ON attempts.id = responses.attempt_id").
		Where("questions.type = ? AND responses.is_graded = ? AND attempts.contest_id = ? AND attempts.status IN ?",
			model.QuestionSubjective, false, contestID,
			[]model.AttemptStatus{model.AttemptSubmitted, model.AttemptGrading}).
		Order("responses.created_at ASC").
		Find(&responses).Error
	return responses, err
}

// FindByIDForUpdate row-locks the response for grade writes.
func (r *ResponseRepository) FindByIDForUpdate(tx *gorm.DB, id string) (*model.Response, error) {
	var resp model.Response
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&resp, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &resp, nil
}

func (r *ResponseRepository) CountByContest(contestID string) (int64, error) {
	var count int64
	err := r.DB.Model(&model.Response{}).
		Joins("JOIN attempts ON attempts.id = responses.attempt_id").
		Where("attempts.contest_id = ?", contestID).
		Count(&count).Error
	return count, err
}
