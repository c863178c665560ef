package repository

import (
	"time"

	"elevate_backend/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type AttemptRepository struct {
	DB *gorm.DB
}

func NewAttemptRepository(db *gorm.DB) *AttemptRepository {
	return &AttemptRepository{DB: db}
}

func (r *AttemptRepository) Create(attempt *model.Attempt) error {
	return r.DB.Create(attempt).Error
}

func (r *AttemptRepository) FindByID(id string) (*model.Attempt, error) {
	var a model.Attempt
	if err := r.DB.First(&a, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &a, nil
}

// FindByIDForUpdate row-locks the attempt inside tx. Callers must run it
// in a transaction.
func (r *AttemptRepository) FindByIDForUpdate(tx *gorm.DB, id string) (*model.Attempt, error) {
	var a model.Attempt
	err := tx.Clauses(clause.Locking{Strength: "UPDATE"}).
		First(&a, "id = ?", id).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// FindNonTerminal returns the participant's live attempt for the contest,
// or gorm.ErrRecordNotFound.
func (r *AttemptRepository) FindNonTerminal(participantID, contestID string) (*model.Attempt, error) {
	var a model.Attempt
	err := r.DB.Where("participant_id = ? AND contest_id = ? AND status NOT IN ?",
		participantID, contestID,
		[]model.AttemptStatus{model.AttemptGraded, model.AttemptInvalidated}).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (r *AttemptRepository) FindByParticipantAndContest(participantID, contestID string) (*model.Attempt, error) {
	var a model.Attempt
	err := r.DB.Where("participant_id = ? AND contest_id = ?", participantID, contestID).
		First(&a).Error
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListExpired returns ONGOING attempts whose deadline has passed.
func (r *AttemptRepository) ListExpired(now time.Time) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.DB.Where("status = ? AND expires_at IS NOT NULL AND expires_at < ?",
		model.AttemptOngoing, now).
		Find(&attempts).Error
	return attempts, err
}

// ListGradedByContest returns the contest's graded attempts best-first,
// ties broken by earliest finish.
func (r *AttemptRepository) ListGradedByContest(contestID string, limit int) ([]model.Attempt, error) {
	var attempts []model.Attempt
	q := r.DB.Where("contest_id = ? AND status = ?", contestID, model.AttemptGraded).
		Order("total_score DESC, finished_at ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) ListByContest(contestID string, page, limit int) ([]model.Attempt, int64, error) {
	var attempts []model.Attempt
	var total int64

	base := r.DB.Model(&model.Attempt{}).Where("contest_id = ?", contestID)
	if err := base.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := base.Order("created_at DESC").
		Offset((page - 1) * limit).Limit(limit).
		Find(&attempts).Error
	return attempts, total, err
}

// UpdateFields writes only the given columns, leaving concurrent writers
// to the rest of the row alone.
func (r *AttemptRepository) UpdateFields(id string, fields map[string]interface{}) error {
	return r.DB.Model(&model.Attempt{}).Where("id = ?", id).Updates(fields).Error
}

// UpdateFieldsIfStatus writes the columns only while the row still holds
// one of the given statuses, so a writer working from a stale read cannot
// undo a transition that happened underneath it. Returns whether a row
// matched.
func (r *AttemptRepository) UpdateFieldsIfStatus(id string, statuses []model.AttemptStatus, fields map[string]interface{}) (bool, error) {
	res := r.DB.Model(&model.Attempt{}).
		Where("id = ? AND status IN ?", id, statuses).
		Updates(fields)
	return res.RowsAffected > 0, res.Error
}

// CountByStatus aggregates attempt counts per status for a contest.
func (r *AttemptRepository) CountByStatus(contestID string) (map[model.AttemptStatus]int64, error) {
	var rows []struct {
		Status model.AttemptStatus
		Count  int64
	}
	err := r.DB.Model(&model.Attempt{}).
		Select("status", "COUNT(*) AS count").
		Where("contest_id = ?", contestID).
		Group("status").
		Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	counts := make(map[model.AttemptStatus]int64, len(rows))
	for _, row := range rows {
		counts[row.Status] = row.Count
	}
	return counts, nil
}

// AverageGradedScore returns the mean total score over graded attempts,
// zero when none exist.
func (r *AttemptRepository) AverageGradedScore(contestID string) (float64, error) {
	var avg *float64
	err := r.DB.Model(&model.Attempt{}).
		Select("AVG(total_score)").
		Where("contest_id = ? AND status = ?", contestID, model.AttemptGraded).
		Scan(&avg).Error
	if err != nil || avg == nil {
		return 0, err
	}
	return *avg, nil
}

// ListGradedByParticipant feeds the per-participant statistics sweep.
func (r *AttemptRepository) ListGradedByParticipant(participantID string) ([]model.Attempt, error) {
	var attempts []model.Attempt
	err := r.DB.Where("participant_id = ? AND status = ?", participantID, model.AttemptGraded).
		Find(&attempts).Error
	return attempts, err
}

func (r *AttemptRepository) DistinctParticipantIDs(contestID string) ([]string, error) {
	var ids []string
	err := r.DB.Model(&model.Attempt{}).
		Distinct("participant_id").
		Where("contest_id = ?", contestID).
		Pluck("participant_id", &ids).Error
	return ids, err
}
