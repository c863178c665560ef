package service

import (
	"context"
	"encoding/json"
	"time"

	"elevate_backend/internal/model"
	"elevate_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// GradingService orchestrates scoring of a submitted attempt. Choice
// questions are scored inline, coding questions go through the worker
// queue, subjective questions wait for a human.
type GradingService struct {
	db           *gorm.DB
	attemptRepo  attemptStore
	responseRepo responseStore
	questionRepo questionStore
	judge        *JudgeService
	scores       *ScoreService
	queue        *GradingQueue

	now func() time.Time
}

func NewGradingService(db *gorm.DB, attemptRepo attemptStore, responseRepo responseStore, questionRepo questionStore, judge *JudgeService, scores *ScoreService) *GradingService {
	return &GradingService{
		db:           db,
		attemptRepo:  attemptRepo,
		responseRepo: responseRepo,
		questionRepo: questionRepo,
		judge:        judge,
		scores:       scores,
		now:          time.Now,
	}
}

// AttachQueue wires the worker pool whose executor calls back into this
// service. Split from the constructor to break the cycle between them.
func (s *GradingService) AttachQueue(queue *GradingQueue) {
	s.queue = queue
}

// Grade moves a submitted attempt into grading and scores every
// response it can. Safe to call again on an attempt already grading.
func (s *GradingService) Grade(attemptID string) error {
	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return model.NotFoundf("attempt %s not found", attemptID)
		}
		return err
	}
	if attempt.Status != model.AttemptSubmitted && attempt.Status != model.AttemptGrading {
		return model.InvalidStatef("cannot grade attempt in status %s", attempt.Status)
	}

	if attempt.Status == model.AttemptSubmitted {
		if err := s.attemptRepo.UpdateFields(attemptID, map[string]interface{}{
			"status": model.AttemptGrading,
		}); err != nil {
			return err
		}
	}

	responses, err := s.responseRepo.ListByAttempt(attemptID)
	if err != nil {
		return err
	}

	for i := range responses {
		resp := &responses[i]
		if resp.IsGraded {
			continue
		}
		if err := s.gradeResponse(attemptID, resp); err != nil {
			logger.Log.Error("response grading failed",
				zap.String("attemptId", attemptID),
				zap.String("responseId", resp.ID),
				zap.Error(err))
		}
	}

	if err := s.scores.Recompute(attemptID); err != nil {
		return err
	}
	return s.FinalizeIfComplete(attemptID)
}

func (s *GradingService) gradeResponse(attemptID string, resp *model.Response) error {
	question, err := s.questionRepo.FindByID(resp.QuestionID)
	if err != nil {
		return err
	}
	answer, err := resp.DecodeAnswer()
	if err != nil {
		resp.SetGraded(0, model.GraderSystem, s.now())
		return s.responseRepo.Save(resp)
	}

	switch question.Type {
	case model.QuestionMCQ:
		if answer.MCQ == nil {
			resp.SetGraded(0, model.GraderSystem, s.now())
			return s.responseRepo.Save(resp)
		}
		score, err := model.GradeMCQ(question, answer.MCQ)
		if err != nil {
			return err
		}
		resp.SetGraded(score, model.GraderSystem, s.now())
		return s.responseRepo.Save(resp)

	case model.QuestionCoding:
		if answer.Coding == nil || answer.Coding.Code == "" {
			resp.SetGraded(0, model.GraderSystem, s.now())
			return s.responseRepo.Save(resp)
		}
		return s.queue.Enqueue(resp.ID, attemptID)

	case model.QuestionSubjective:
		// waits in the manual review queue
		return nil
	}
	return model.DataIntegrityf("question %s has unknown type %s", question.ID, question.Type)
}

// ExecuteCodingJob is the worker-pool executor for coding responses.
func (s *GradingService) ExecuteCodingJob(ctx context.Context, job *GradeJob) error {
	resp, err := s.responseRepo.FindByID(job.ResponseID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return Permanent(model.NotFoundf("response %s not found", job.ResponseID))
		}
		return err
	}
	if resp.IsGraded {
		return nil
	}

	question, err := s.questionRepo.FindByID(resp.QuestionID)
	if err != nil {
		return err
	}
	cases := question.TestCases()
	if len(cases) == 0 {
		return Permanent(model.DataIntegrityf("coding question %s has no test cases", question.ID))
	}

	answer, err := resp.DecodeAnswer()
	if err != nil || answer.Coding == nil {
		return Permanent(model.DataIntegrityf("response %s carries no coding answer", resp.ID))
	}

	report, err := s.judge.RunTestCases(ctx, answer.Coding.Code, answer.Coding.Language, cases)
	if err != nil {
		return err
	}

	raw, err := json.Marshal(report)
	if err != nil {
		return Permanent(err)
	}
	resp.ExecutionResult = datatypes.JSON(raw)
	resp.SetGraded(report.ScoreFraction*question.MaxMarks, model.GraderSystem, s.now())
	if err := s.responseRepo.Save(resp); err != nil {
		return err
	}

	if err := s.scores.Recompute(job.AttemptID); err != nil {
		return err
	}
	return s.FinalizeIfComplete(job.AttemptID)
}

// FinalizeIfComplete promotes GRADING to GRADED once nothing ungraded
// remains. The check and the write share one row-locked transaction so
// two workers finishing together cannot both half-finalize.
func (s *GradingService) FinalizeIfComplete(attemptID string) error {
	return s.db.Transaction(func(tx *gorm.DB) error {
		attempt, err := s.attemptRepo.FindByIDForUpdate(tx, attemptID)
		if err != nil {
			return err
		}
		if attempt.Status != model.AttemptGrading {
			return nil
		}
		ungraded, err := s.responseRepo.CountUngraded(tx, attemptID)
		if err != nil {
			return err
		}
		if ungraded > 0 {
			return nil
		}

		if err := tx.Model(&model.Attempt{}).Where("id = ?", attemptID).
			Update("status", model.AttemptGraded).Error; err != nil {
			return err
		}
		logger.Log.Info("attempt graded",
			zap.String("attemptId", attemptID),
			zap.Float64("totalScore", attempt.TotalScore))
		return nil
	})
}

// ManualGrade records a reviewer's score for a subjective response. The
// attempt must already be dispatched; a draft answer of a live session
// cannot take a grade the participant could then edit out from under.
func (s *GradingService) ManualGrade(responseID string, score float64, feedback, gradedBy string) (*model.Response, error) {
	resp, err := s.responseRepo.FindByID(responseID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, model.NotFoundf("response %s not found", responseID)
		}
		return nil, err
	}
	attempt, err := s.attemptRepo.FindByID(resp.AttemptID)
	if err != nil {
		return nil, err
	}
	if !attempt.Status.Reviewable() {
		return nil, model.InvalidStatef("cannot grade responses of an attempt in status %s", attempt.Status)
	}
	question, err := s.questionRepo.FindByID(resp.QuestionID)
	if err != nil {
		return nil, err
	}
	if question.Type != model.QuestionSubjective {
		return nil, model.Validationf("manual grading is only for subjective questions")
	}
	if score < 0 {
		return nil, model.Validationf("score cannot be negative")
	}
	if score > question.MaxMarks {
		return nil, model.LimitExceededf("score %.2f exceeds maximum marks %.2f", score, question.MaxMarks)
	}

	resp.SetGraded(score, gradedBy, s.now())
	resp.Feedback = feedback
	if err := s.responseRepo.Save(resp); err != nil {
		return nil, err
	}

	if err := s.scores.Recompute(resp.AttemptID); err != nil {
		return nil, err
	}
	if err := s.FinalizeIfComplete(resp.AttemptID); err != nil {
		return nil, err
	}
	return resp, nil
}

// Regrade replays automated grading for an attempt. Manual subjective
// grades survive; everything machine-scored is cleared and redone.
func (s *GradingService) Regrade(attemptID string) error {
	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return model.NotFoundf("attempt %s not found", attemptID)
		}
		return err
	}
	switch attempt.Status {
	case model.AttemptSubmitted, model.AttemptGrading, model.AttemptGraded:
	default:
		return model.InvalidStatef("cannot regrade attempt in status %s", attempt.Status)
	}

	responses, err := s.responseRepo.ListByAttempt(attemptID)
	if err != nil {
		return err
	}
	for i := range responses {
		resp := &responses[i]
		if resp.GradedBy != "" && resp.GradedBy != model.GraderSystem {
			continue
		}
		if !resp.IsGraded {
			continue
		}
		resp.ClearGrade()
		if err := s.responseRepo.Save(resp); err != nil {
			return err
		}
	}

	if err := s.attemptRepo.UpdateFields(attemptID, map[string]interface{}{
		"status": model.AttemptGrading,
	}); err != nil {
		return err
	}
	return s.Grade(attemptID)
}

// PendingSubjective lists the contest's manual review queue.
func (s *GradingService) PendingSubjective(contestID string) ([]model.Response, error) {
	return s.responseRepo.ListPendingSubjective(contestID)
}

// FailedJobs exposes terminally failed grading jobs for operators.
func (s *GradingService) FailedJobs() []GradeJob {
	if s.queue == nil {
		return nil
	}
	return s.queue.FailedJobs()
}
