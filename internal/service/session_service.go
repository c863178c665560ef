package service

import (
	"context"
	"encoding/json"
	"time"

	"elevate_backend/internal/config"
	"elevate_backend/internal/model"
	"elevate_backend/internal/util"
	"elevate_backend/pkg/logger"

	"go.uber.org/zap"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// SessionService owns the candidate-facing attempt lifecycle: start,
// autosave, heartbeat, submit, and the proctoring hooks. Every mutation
// persists only the columns it owns, guarded by the status it read, so
// concurrent transitions (sweeper expiry, grading hand-off) are never
// overwritten from a stale row.
type SessionService struct {
	cfg             *config.Config
	contestRepo     contestStore
	participantRepo participantStore
	questionRepo    questionStore
	attemptRepo     attemptStore
	responseRepo    responseStore
	grading         grader
	storage         *StorageService
	judge           *JudgeService

	now func() time.Time
}

func NewSessionService(cfg *config.Config, contestRepo contestStore, participantRepo participantStore, questionRepo questionStore, attemptRepo attemptStore, responseRepo responseStore, grading grader, storage *StorageService, judge *JudgeService) *SessionService {
	return &SessionService{
		cfg:             cfg,
		contestRepo:     contestRepo,
		participantRepo: participantRepo,
		questionRepo:    questionRepo,
		attemptRepo:     attemptRepo,
		responseRepo:    responseRepo,
		grading:         grading,
		storage:         storage,
		judge:           judge,
		now:             time.Now,
	}
}

type StartSessionInput struct {
	ContestID string
	Email     string
	Name      string
	Phone     string
	IPAddress string
	UserAgent string
}

type StartSessionResult struct {
	AttemptID            string              `json:"attemptId"`
	Token                string              `json:"token"`
	ExpiresAt            time.Time           `json:"expiresAt"`
	TimeRemainingSeconds int                 `json:"timeRemainingSeconds"`
	Resumed              bool                `json:"resumed"`
	Contest              *model.Contest      `json:"contest"`
	Questions            []CandidateQuestion `json:"questions"`
}

// StartSession begins or resumes a candidate's attempt. At most one
// non-terminal attempt may exist per participant and contest.
func (s *SessionService) StartSession(in StartSessionInput) (*StartSessionResult, error) {
	contest, err := s.contestRepo.FindByID(in.ContestID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, model.NotFoundf("contest %s not found", in.ContestID)
		}
		return nil, err
	}
	now := s.now()
	if !contest.IsActive(now) {
		return nil, model.InvalidStatef("contest is not accepting entries")
	}

	participant, err := s.participantRepo.GetOrCreate(in.Email, in.Name, in.Phone)
	if err != nil {
		return nil, err
	}

	existing, err := s.attemptRepo.FindByParticipantAndContest(participant.ID, in.ContestID)
	if err != nil && err != gorm.ErrRecordNotFound {
		return nil, err
	}

	var attempt *model.Attempt
	resumed := false
	switch {
	case existing == nil:
		attempt = &model.Attempt{
			ContestID:     in.ContestID,
			ParticipantID: participant.ID,
			Status:        model.AttemptNotStarted,
			IPAddress:     in.IPAddress,
			UserAgent:     in.UserAgent,
		}
		if err := model.StartAttempt(attempt, contest.DurationMinutes, now); err != nil {
			return nil, err
		}
		if err := s.attemptRepo.Create(attempt); err != nil {
			return nil, err
		}

	case existing.Status == model.AttemptOngoing:
		if existing.IsExpired(now) {
			if err := s.forceSubmit(existing, now); err != nil {
				return nil, err
			}
			return nil, model.InvalidStatef("previous session expired and was submitted")
		}
		attempt = existing
		resumed = true

	case existing.Status == model.AttemptNotStarted:
		attempt = existing
		if err := model.StartAttempt(attempt, contest.DurationMinutes, now); err != nil {
			return nil, err
		}
		ok, err := s.attemptRepo.UpdateFieldsIfStatus(attempt.ID,
			[]model.AttemptStatus{model.AttemptNotStarted},
			map[string]interface{}{
				"status":       model.AttemptOngoing,
				"started_at":   attempt.StartedAt,
				"expires_at":   attempt.ExpiresAt,
				"heartbeat_at": attempt.HeartbeatAt,
			})
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, model.InvalidStatef("attempt was started concurrently; retry")
		}

	default:
		return nil, model.InvalidStatef("an attempt for this contest already exists in status %s", existing.Status)
	}

	token, err := util.GenerateAttemptToken(attempt.ID, participant.ID, s.cfg.JWT.Secret, s.cfg.JWT.ExpireTime)
	if err != nil {
		return nil, err
	}

	questions, err := s.questionRepo.ListByContest(in.ContestID)
	if err != nil {
		return nil, err
	}

	logger.Log.Info("session started",
		zap.String("attemptId", attempt.ID),
		zap.String("contestId", in.ContestID),
		zap.String("participantId", participant.ID),
		zap.Bool("resumed", resumed))

	return &StartSessionResult{
		AttemptID:            attempt.ID,
		Token:                token,
		ExpiresAt:            *attempt.ExpiresAt,
		TimeRemainingSeconds: attempt.TimeRemainingSeconds(now),
		Resumed:              resumed,
		Contest:              contest,
		Questions:            SanitizeQuestions(questions),
	}, nil
}

// Autosave stores a draft answer. On an expired session it submits the
// attempt instead and reports the expiry to the caller.
func (s *SessionService) Autosave(attemptID, questionID string, answer *model.Answer) (*model.Response, error) {
	attempt, err := s.findAttempt(attemptID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	if attempt.IsExpired(now) {
		if err := s.forceSubmit(attempt, now); err != nil {
			return nil, err
		}
		return nil, model.InvalidStatef("session time has expired; attempt was submitted")
	}
	if attempt.Status != model.AttemptOngoing {
		return nil, model.InvalidStatef("cannot save answers in status %s", attempt.Status)
	}

	question, err := s.questionRepo.FindByID(questionID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, model.NotFoundf("question %s not found", questionID)
		}
		return nil, err
	}
	if question.ContestID != attempt.ContestID {
		return nil, model.Validationf("question does not belong to this contest")
	}
	if err := model.ValidateAnswer(question, answer); err != nil {
		return nil, err
	}

	raw, err := json.Marshal(answer)
	if err != nil {
		return nil, err
	}
	resp, err := s.responseRepo.Upsert(attemptID, questionID, datatypes.JSON(raw))
	if err != nil {
		return nil, err
	}

	_ = s.attemptRepo.UpdateFields(attemptID, map[string]interface{}{"heartbeat_at": now})
	return resp, nil
}

// SubmitSession finalizes the attempt and kicks off grading in the
// background.
func (s *SessionService) SubmitSession(attemptID string) (*model.Attempt, error) {
	attempt, err := s.findAttempt(attemptID)
	if err != nil {
		return nil, err
	}
	if err := model.SubmitAttempt(attempt, s.now()); err != nil {
		return nil, err
	}
	ok, err := s.attemptRepo.UpdateFieldsIfStatus(attemptID,
		[]model.AttemptStatus{model.AttemptOngoing},
		map[string]interface{}{
			"status":      model.AttemptSubmitted,
			"finished_at": attempt.FinishedAt,
		})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.InvalidStatef("attempt is no longer ongoing")
	}
	s.gradeAsync(attemptID)
	return attempt, nil
}

type HeartbeatResult struct {
	Status               string `json:"status"`
	TimeRemainingSeconds int    `json:"timeRemainingSeconds"`
	TabBlurCount         int    `json:"tabBlurCount"`
}

// Heartbeat keeps the session alive and folds in proctoring signals. A
// heartbeat against a finished attempt reports inactive instead of
// erroring, so stale clients quietly stop.
func (s *SessionService) Heartbeat(attemptID string, blurred bool) (*HeartbeatResult, error) {
	attempt, err := s.findAttempt(attemptID)
	if err != nil {
		return nil, err
	}
	now := s.now()

	if attempt.Status != model.AttemptOngoing {
		return &HeartbeatResult{Status: "inactive", TabBlurCount: attempt.TabBlurCount}, nil
	}
	if attempt.IsExpired(now) {
		if err := s.forceSubmit(attempt, now); err != nil {
			return nil, err
		}
		return &HeartbeatResult{Status: "inactive", TabBlurCount: attempt.TabBlurCount}, nil
	}

	fields := map[string]interface{}{"heartbeat_at": now}
	if blurred {
		contest, err := s.contestRepo.FindByID(attempt.ContestID)
		if err != nil {
			return nil, err
		}
		limit := contest.TabBlurLimit(s.cfg.Session.DefaultTabBlurLimit)
		if model.RegisterTabBlur(attempt, limit, now) {
			ok, err := s.attemptRepo.UpdateFieldsIfStatus(attemptID,
				[]model.AttemptStatus{model.AttemptOngoing},
				map[string]interface{}{
					"status":         model.AttemptInvalidated,
					"tab_blur_count": attempt.TabBlurCount,
					"proctoring_log": attempt.ProctoringLog,
				})
			if err != nil {
				return nil, err
			}
			if !ok {
				return &HeartbeatResult{Status: "inactive", TabBlurCount: attempt.TabBlurCount}, nil
			}
			logger.Log.Warn("attempt invalidated by tab blur limit",
				zap.String("attemptId", attemptID),
				zap.Int("blurCount", attempt.TabBlurCount))
			return &HeartbeatResult{Status: "invalidated", TabBlurCount: attempt.TabBlurCount}, nil
		}
		fields["tab_blur_count"] = attempt.TabBlurCount
		fields["proctoring_log"] = attempt.ProctoringLog
	}

	ok, err := s.attemptRepo.UpdateFieldsIfStatus(attemptID,
		[]model.AttemptStatus{model.AttemptOngoing}, fields)
	if err != nil {
		return nil, err
	}
	if !ok {
		// submitted or invalidated between our read and write
		return &HeartbeatResult{Status: "inactive", TabBlurCount: attempt.TabBlurCount}, nil
	}
	return &HeartbeatResult{
		Status:               "active",
		TimeRemainingSeconds: attempt.TimeRemainingSeconds(now),
		TabBlurCount:         attempt.TabBlurCount,
	}, nil
}

// ExtendTime grants extra minutes to an attempt that has not finished.
// On a NOT_STARTED attempt the grant is banked and folded into the
// deadline when the session begins. Grants above the configured
// per-grant ceiling are rejected.
func (s *SessionService) ExtendTime(attemptID string, minutes int, grantedBy, reason string) (*model.Attempt, error) {
	attempt, err := s.findAttempt(attemptID)
	if err != nil {
		return nil, err
	}
	switch attempt.Status {
	case model.AttemptOngoing, model.AttemptNotStarted:
	default:
		return nil, model.InvalidStatef("cannot extend attempt in status %s", attempt.Status)
	}
	if err := model.ExtendAttempt(attempt, minutes, s.cfg.Session.MaxExtensionMinutes, grantedBy, reason, s.now()); err != nil {
		return nil, err
	}
	ok, err := s.attemptRepo.UpdateFieldsIfStatus(attemptID,
		[]model.AttemptStatus{attempt.Status},
		map[string]interface{}{
			"time_extension_minutes": attempt.TimeExtensionMinutes,
			"expires_at":             attempt.ExpiresAt,
			"proctoring_log":         attempt.ProctoringLog,
		})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.InvalidStatef("attempt changed while extending; retry")
	}
	logger.Log.Info("attempt time extended",
		zap.String("attemptId", attemptID),
		zap.Int("minutes", minutes),
		zap.String("grantedBy", grantedBy))
	return attempt, nil
}

// Invalidate terminates an attempt for a proctoring violation.
func (s *SessionService) Invalidate(attemptID, reason string) (*model.Attempt, error) {
	attempt, err := s.findAttempt(attemptID)
	if err != nil {
		return nil, err
	}
	if err := model.InvalidateAttempt(attempt, reason, s.now()); err != nil {
		return nil, err
	}
	ok, err := s.attemptRepo.UpdateFieldsIfStatus(attemptID,
		[]model.AttemptStatus{model.AttemptOngoing},
		map[string]interface{}{
			"status":         model.AttemptInvalidated,
			"proctoring_log": attempt.ProctoringLog,
		})
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, model.InvalidStatef("attempt is no longer ongoing")
	}
	return attempt, nil
}

// AttachSnapshot stores a proctoring still and records it on the
// attempt's log.
func (s *SessionService) AttachSnapshot(ctx context.Context, attemptID, kind, contentType string, data []byte) (string, error) {
	attempt, err := s.findAttempt(attemptID)
	if err != nil {
		return "", err
	}
	if attempt.Status != model.AttemptOngoing {
		return "", model.InvalidStatef("cannot attach snapshots in status %s", attempt.Status)
	}

	url, err := s.storage.UploadSnapshot(ctx, attemptID, kind, contentType, data)
	if err != nil {
		return "", err
	}

	attempt.AppendProctoringEvent(model.ProctoringEvent{
		Type:   model.ProctoringSnapshot,
		Reason: kind,
		URL:    url,
		At:     s.now(),
	})
	ok, err := s.attemptRepo.UpdateFieldsIfStatus(attemptID,
		[]model.AttemptStatus{model.AttemptOngoing},
		map[string]interface{}{"proctoring_log": attempt.ProctoringLog})
	if err != nil {
		return "", err
	}
	if !ok {
		return "", model.InvalidStatef("attempt is no longer ongoing")
	}
	return url, nil
}

// RunSample executes candidate code against the question's visible test
// cases without recording anything.
func (s *SessionService) RunSample(ctx context.Context, attemptID, questionID, code, language string) (*model.ExecutionReport, error) {
	attempt, err := s.findAttempt(attemptID)
	if err != nil {
		return nil, err
	}
	if attempt.Status != model.AttemptOngoing {
		return nil, model.InvalidStatef("cannot run code in status %s", attempt.Status)
	}
	question, err := s.questionRepo.FindByID(questionID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, model.NotFoundf("question %s not found", questionID)
		}
		return nil, err
	}
	if question.ContestID != attempt.ContestID {
		return nil, model.Validationf("question does not belong to this contest")
	}
	if question.Type != model.QuestionCoding {
		return nil, model.Validationf("only coding questions can be executed")
	}
	return s.judge.RunSample(ctx, code, language, question)
}

// Attempt returns the raw attempt row for admin views.
func (s *SessionService) Attempt(attemptID string) (*model.Attempt, error) {
	return s.findAttempt(attemptID)
}

func (s *SessionService) Responses(attemptID string) ([]model.Response, error) {
	if _, err := s.findAttempt(attemptID); err != nil {
		return nil, err
	}
	return s.responseRepo.ListByAttempt(attemptID)
}

func (s *SessionService) findAttempt(attemptID string) (*model.Attempt, error) {
	attempt, err := s.attemptRepo.FindByID(attemptID)
	if err != nil {
		if err == gorm.ErrRecordNotFound {
			return nil, model.NotFoundf("attempt %s not found", attemptID)
		}
		return nil, err
	}
	return attempt, nil
}

func (s *SessionService) forceSubmit(attempt *model.Attempt, now time.Time) error {
	if err := model.SubmitAttempt(attempt, now); err != nil {
		return err
	}
	ok, err := s.attemptRepo.UpdateFieldsIfStatus(attempt.ID,
		[]model.AttemptStatus{model.AttemptOngoing},
		map[string]interface{}{
			"status":      model.AttemptSubmitted,
			"finished_at": attempt.FinishedAt,
		})
	if err != nil {
		return err
	}
	if ok {
		// whoever wins the race owns the grading hand-off
		s.gradeAsync(attempt.ID)
	}
	return nil
}

func (s *SessionService) gradeAsync(attemptID string) {
	go func() {
		if err := s.grading.Grade(attemptID); err != nil {
			logger.Log.Error("background grading failed",
				zap.String("attemptId", attemptID),
				zap.Error(err))
		}
	}()
}
