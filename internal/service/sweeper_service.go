package service

import (
	"context"
	"sync"
	"time"

	"elevate_backend/internal/config"
	"elevate_backend/internal/model"
	"elevate_backend/internal/repository"
	"elevate_backend/pkg/logger"
	"elevate_backend/pkg/monitoring"

	"go.uber.org/zap"
)

// SweeperService runs the periodic maintenance passes: expiring overdue
// sessions, refreshing leaderboards and statistics, and rolling contest
// statuses forward.
type SweeperService struct {
	cfg             *config.SweeperConfig
	contestRepo     *repository.ContestRepository
	participantRepo *repository.ParticipantRepository
	attemptRepo     *repository.AttemptRepository
	responseRepo    *repository.ResponseRepository
	grading         *GradingService
	leaderboard     *LeaderboardService

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	now    func() time.Time
}

func NewSweeperService(cfg *config.SweeperConfig, contestRepo *repository.ContestRepository, participantRepo *repository.ParticipantRepository, attemptRepo *repository.AttemptRepository, responseRepo *repository.ResponseRepository, grading *GradingService, leaderboard *LeaderboardService) *SweeperService {
	ctx, cancel := context.WithCancel(context.Background())
	return &SweeperService{
		cfg:             cfg,
		contestRepo:     contestRepo,
		participantRepo: participantRepo,
		attemptRepo:     attemptRepo,
		responseRepo:    responseRepo,
		grading:         grading,
		leaderboard:     leaderboard,
		ctx:             ctx,
		cancel:          cancel,
		now:             time.Now,
	}
}

func (s *SweeperService) Start() {
	s.loop(s.cfg.ExpiryInterval, "expiry", func() {
		s.ExpireOverdueAttempts()
		s.ContestStatusSweep()
	})
	s.loop(s.cfg.LeaderboardInterval, "leaderboard", s.RefreshLeaderboards)
	s.loop(s.cfg.StatisticsInterval, "statistics", s.RefreshStatistics)
	logger.Log.Info("sweeper started",
		zap.Duration("expiryInterval", s.cfg.ExpiryInterval),
		zap.Duration("leaderboardInterval", s.cfg.LeaderboardInterval),
		zap.Duration("statisticsInterval", s.cfg.StatisticsInterval))
}

func (s *SweeperService) Stop() {
	s.cancel()
	s.wg.Wait()
	logger.Log.Info("sweeper stopped")
}

func (s *SweeperService) loop(interval time.Duration, kind string, fn func()) {
	if interval <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-s.ctx.Done():
				return
			case <-ticker.C:
				monitoring.SweepRuns.WithLabelValues(kind).Inc()
				fn()
			}
		}
	}()
}

// ExpireOverdueAttempts submits every ONGOING attempt whose deadline
// passed. A failure on one attempt is logged and never blocks the rest.
func (s *SweeperService) ExpireOverdueAttempts() {
	now := s.now()
	attempts, err := s.attemptRepo.ListExpired(now)
	if err != nil {
		logger.Log.Error("expiry sweep query failed", zap.Error(err))
		return
	}

	for i := range attempts {
		attempt := &attempts[i]
		if err := model.SubmitAttempt(attempt, now); err != nil {
			logger.Log.Warn("expiry sweep skipped attempt",
				zap.String("attemptId", attempt.ID), zap.Error(err))
			continue
		}
		ok, err := s.attemptRepo.UpdateFieldsIfStatus(attempt.ID,
			[]model.AttemptStatus{model.AttemptOngoing},
			map[string]interface{}{
				"status":      model.AttemptSubmitted,
				"finished_at": attempt.FinishedAt,
			})
		if err != nil {
			logger.Log.Error("expiry sweep save failed",
				zap.String("attemptId", attempt.ID), zap.Error(err))
			continue
		}
		if !ok {
			// the candidate's own submit got there first
			continue
		}
		if err := s.grading.Grade(attempt.ID); err != nil {
			logger.Log.Error("expiry sweep grading failed",
				zap.String("attemptId", attempt.ID), zap.Error(err))
		}
	}

	if len(attempts) > 0 {
		logger.Log.Info("expired attempts submitted", zap.Int("count", len(attempts)))
	}
}

// RefreshLeaderboards recomputes and republishes rankings for every
// contest that still has an audience.
func (s *SweeperService) RefreshLeaderboards() {
	contests, err := s.contestRepo.ListByStatuses(model.ContestOngoing, model.ContestClosed)
	if err != nil {
		logger.Log.Error("leaderboard sweep query failed", zap.Error(err))
		return
	}

	for i := range contests {
		contest := &contests[i]
		attempts, err := s.attemptRepo.ListGradedByContest(contest.ID, s.cfg.LeaderboardSize)
		if err != nil {
			logger.Log.Error("leaderboard sweep attempts failed",
				zap.String("contestId", contest.ID), zap.Error(err))
			continue
		}

		ids := make([]string, 0, len(attempts))
		for _, a := range attempts {
			ids = append(ids, a.ParticipantID)
		}
		participants, err := s.participantRepo.FindByIDs(ids)
		if err != nil {
			logger.Log.Error("leaderboard sweep participants failed",
				zap.String("contestId", contest.ID), zap.Error(err))
			continue
		}

		entries := model.RankAttempts(attempts, participants, s.cfg.LeaderboardSize)
		if err := s.leaderboard.Publish(s.ctx, contest.ID, entries, s.cfg.LeaderboardTTL); err != nil {
			logger.Log.Error("leaderboard publish failed",
				zap.String("contestId", contest.ID), zap.Error(err))
		}
	}
}

// RefreshStatistics rewrites the denormalized counters on contests and
// their participants.
func (s *SweeperService) RefreshStatistics() {
	contests, err := s.contestRepo.ListByStatuses(model.ContestOngoing, model.ContestClosed)
	if err != nil {
		logger.Log.Error("statistics sweep query failed", zap.Error(err))
		return
	}

	touched := map[string]struct{}{}
	for i := range contests {
		contest := &contests[i]

		participantIDs, err := s.attemptRepo.DistinctParticipantIDs(contest.ID)
		if err != nil {
			logger.Log.Error("statistics sweep participants failed",
				zap.String("contestId", contest.ID), zap.Error(err))
			continue
		}
		submissions, err := s.responseRepo.CountByContest(contest.ID)
		if err != nil {
			logger.Log.Error("statistics sweep submissions failed",
				zap.String("contestId", contest.ID), zap.Error(err))
			continue
		}
		average, err := s.attemptRepo.AverageGradedScore(contest.ID)
		if err != nil {
			logger.Log.Error("statistics sweep average failed",
				zap.String("contestId", contest.ID), zap.Error(err))
			continue
		}

		if err := s.contestRepo.UpdateStatistics(contest.ID, len(participantIDs), int(submissions), average); err != nil {
			logger.Log.Error("statistics sweep write failed",
				zap.String("contestId", contest.ID), zap.Error(err))
			continue
		}
		for _, pid := range participantIDs {
			touched[pid] = struct{}{}
		}
	}

	for pid := range touched {
		graded, err := s.attemptRepo.ListGradedByParticipant(pid)
		if err != nil || len(graded) == 0 {
			continue
		}
		var sum float64
		for _, a := range graded {
			sum += a.TotalScore
		}
		if err := s.participantRepo.UpdateStatistics(pid, len(graded), sum/float64(len(graded))); err != nil {
			logger.Log.Error("participant statistics write failed",
				zap.String("participantId", pid), zap.Error(err))
		}
	}
}

// ContestStatusSweep rolls published contests into ongoing and ongoing
// contests past their end into closed.
func (s *SweeperService) ContestStatusSweep() {
	now := s.now()
	opened, err := s.contestRepo.MarkOngoing(now)
	if err != nil {
		logger.Log.Error("contest status sweep (ongoing) failed", zap.Error(err))
	}
	closed, err := s.contestRepo.MarkClosed(now)
	if err != nil {
		logger.Log.Error("contest status sweep (closed) failed", zap.Error(err))
	}
	if opened > 0 || closed > 0 {
		logger.Log.Info("contest statuses rolled",
			zap.Int64("opened", opened), zap.Int64("closed", closed))
	}
}
