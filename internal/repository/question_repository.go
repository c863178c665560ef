package repository

import (
	"elevate_backend/internal/model"

	"gorm.io/gorm"
)

type QuestionRepository struct {
	DB *gorm.DB
}

func NewQuestionRepository(db *gorm.DB) *QuestionRepository {
	return &QuestionRepository{DB: db}
}

func (r *QuestionRepository) Create(question *model.Question) error {
	return r.DB.Create(question).Error
}

func (r *QuestionRepository) CreateBatch(questions []*model.Question) error {
	if len(questions) == 0 {
		return nil
	}
	return r.DB.Create(questions).Error
}

func (r *QuestionRepository) FindByID(id string) (*model.Question, error) {
	var q model.Question
	if err := r.DB.First(&q, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &q, nil
}

func (r *QuestionRepository) ListByContest(contestID string) ([]model.Question, error) {
	var questions []model.Question
	err := r.DB.Where("contest_id = ?", contestID).
		Order("`order` ASC, created_at ASC").
		Find(&questions).Error
	return questions, err
}

// TypesByContest returns a question-id to type map, used when splitting
// scores by category.
func (r *QuestionRepository) TypesByContest(contestID string) (map[string]model.QuestionType, error) {
	var rows []struct {
		ID   string
		Type model.QuestionType
	}
	err := r.DB.Model(&model.Question{}).
		Select("id", "type").
		Where("contest_id = ?", contestID).
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	types := make(map[string]model.QuestionType, len(rows))
	for _, row := range rows {
		types[row.ID] = row.Type
	}
	return types, nil
}

func (r *QuestionRepository) Delete(id string) error {
	return r.DB.Delete(&model.Question{}, "id = ?", id).Error
}
