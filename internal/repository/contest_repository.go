package repository

import (
	"elevate_backend/internal/model"
	"time"

	"gorm.io/gorm"
)

type ContestRepository struct {
	DB *gorm.DB
}

func NewContestRepository(db *gorm.DB) *ContestRepository {
	return &ContestRepository{DB: db}
}

func (r *ContestRepository) Create(contest *model.Contest) error {
	return r.DB.Create(contest).Error
}

func (r *ContestRepository) FindByID(id string) (*model.Contest, error) {
	var c model.Contest
	if err := r.DB.First(&c, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &c, nil
}

func (r *ContestRepository) ListByStatuses(statuses ...model.ContestStatus) ([]model.Contest, error) {
	var contests []model.Contest
	err := r.DB.Where("status IN ?", statuses).Find(&contests).Error
	return contests, err
}

func (r *ContestRepository) ListPublished(page, limit int) ([]model.Contest, int64, error) {
	var contests []model.Contest
	var total int64

	q := r.DB.Model(&model.Contest{}).Where("status IN ?", []model.ContestStatus{model.ContestPublished, model.ContestOngoing})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Order("start_at DESC").Offset((page - 1) * limit).Limit(limit).Find(&contests).Error
	return contests, total, err
}

// MarkOngoing moves published contests whose window has opened.
func (r *ContestRepository) MarkOngoing(now time.Time) (int64, error) {
	res := r.DB.Model(&model.Contest{}).
		Where("status = ? AND start_at <= ? AND end_at > ?", model.ContestPublished, now, now).
		Update("status", model.ContestOngoing)
	return res.RowsAffected, res.Error
}

// MarkClosed moves published/ongoing contests whose window has ended.
func (r *ContestRepository) MarkClosed(now time.Time) (int64, error) {
	res := r.DB.Model(&model.Contest{}).
		Where("status IN ? AND end_at <= ?", []model.ContestStatus{model.ContestPublished, model.ContestOngoing}, now).
		Update("status", model.ContestClosed)
	return res.RowsAffected, res.Error
}

// UpdateStatistics writes only the denormalized counters.
func (r *ContestRepository) UpdateStatistics(id string, participants, submissions int, averageScore float64) error {
	return r.DB.Model(&model.Contest{}).Where("id = ?", id).Updates(map[string]interface{}{
		"total_participants": participants,
		"total_submissions":  submissions,
		"average_score":      averageScore,
	}).Error
}
