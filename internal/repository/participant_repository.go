package repository

import (
	"elevate_backend/internal/model"

	"gorm.io/gorm"
)

type ParticipantRepository struct {
	DB *gorm.DB
}

func NewParticipantRepository(db *gorm.DB) *ParticipantRepository {
	return &ParticipantRepository{DB: db}
}

func (r *ParticipantRepository) FindByID(id string) (*model.Participant, error) {
	var p model.Participant
	if err := r.DB.First(&p, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

func (r *ParticipantRepository) FindByEmail(email string) (*model.Participant, error) {
	var p model.Participant
	if err := r.DB.First(&p, "email = ?", email).Error; err != nil {
		return nil, err
	}
	return &p, nil
}

// GetOrCreate looks the participant up by email, creating the record on
// first contact.
func (r *ParticipantRepository) GetOrCreate(email, name, phone string) (*model.Participant, error) {
	existing, err := r.FindByEmail(email)
	if err == nil {
		return existing, nil
	}
	if err != gorm.ErrRecordNotFound {
		return nil, err
	}

	p := &model.Participant{Name: name, Email: email, Phone: phone}
	if err := r.DB.Create(p).Error; err != nil {
		return nil, err
	}
	return p, nil
}

func (r *ParticipantRepository) FindByIDs(ids []string) (map[string]model.Participant, error) {
	var participants []model.Participant
	if len(ids) == 0 {
		return map[string]model.Participant{}, nil
	}
	if err := r.DB.Where("id IN ?", ids).Find(&participants).Error; err != nil {
		return nil, err
	}
	byID := make(map[string]model.Participant, len(participants))
	for _, p := range participants {
		byID[p.ID] = p
	}
	return byID, nil
}

// UpdateStatistics writes only the denormalized counters.
func (r *ParticipantRepository) UpdateStatistics(id string, totalContests int, averageScore float64) error {
	return r.DB.Model(&model.Participant{}).Where("id = ?", id).Updates(map[string]interface{}{
		"total_contests": totalContests,
		"average_score":  averageScore,
	}).Error
}
