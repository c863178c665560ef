package service

import (
	"testing"
	"time"

	"elevate_backend/internal/config"
	"elevate_backend/internal/model"
)

var sessionNow = time.Date(2026, 3, 14, 9, 0, 0, 0, time.UTC)

type sessionFixture struct {
	svc       *SessionService
	contests  *fakeContestStore
	attempts  *fakeAttemptStore
	responses *fakeResponseStore
	grader    *fakeGrader
}

func newSessionFixture() *sessionFixture {
	cfg := &config.Config{}
	cfg.JWT.Secret = "0123456789abcdef0123456789abcdef"
	cfg.JWT.ExpireTime = time.Hour
	cfg.Session.MaxExtensionMinutes = 30
	cfg.Session.DefaultTabBlurLimit = 3

	f := &sessionFixture{
		contests:  &fakeContestStore{contests: map[string]*model.Contest{}},
		attempts:  &fakeAttemptStore{attempts: map[string]*model.Attempt{}},
		responses: &fakeResponseStore{responses: map[string]*model.Response{}},
		grader:    &fakeGrader{},
	}
	participants := &fakeParticipantStore{participant: &model.Participant{
		UUIDBase: model.UUIDBase{ID: "participant-1"},
		Email:    "dev@example.com",
		Name:     "Dev",
	}}
	questions := &fakeQuestionStore{questions: map[string]*model.Question{}}

	f.svc = NewSessionService(cfg, f.contests, participants, questions, f.attempts, f.responses, f.grader, nil, nil)
	f.svc.now = func() time.Time { return sessionNow }
	return f
}

func (f *sessionFixture) addContest(id string, durationMinutes int) {
	f.contests.contests[id] = &model.Contest{
		UUIDBase:        model.UUIDBase{ID: id},
		Name:            "Backend Challenge",
		Status:          model.ContestOngoing,
		StartAt:         sessionNow.Add(-time.Hour),
		EndAt:           sessionNow.Add(time.Hour),
		DurationMinutes: durationMinutes,
	}
}

func (f *sessionFixture) addAttempt(a *model.Attempt) {
	f.attempts.attempts[a.ID] = a
}

func TestStartSessionRejectsSecondLiveAttempt(t *testing.T) {
	f := newSessionFixture()
	f.addContest("contest-1", 60)
	finished := sessionNow.Add(-time.Hour)
	f.addAttempt(&model.Attempt{
		UUIDBase:      model.UUIDBase{ID: "attempt-1"},
		ContestID:     "contest-1",
		ParticipantID: "participant-1",
		Status:        model.AttemptSubmitted,
		FinishedAt:    &finished,
	})

	_, err := f.svc.StartSession(StartSessionInput{ContestID: "contest-1", Email: "dev@example.com"})
	if model.KindOf(err) != model.KindInvalidState {
		t.Fatalf("expected invalid state for existing submitted attempt, got %v", err)
	}
	if len(f.attempts.attempts) != 1 {
		t.Fatalf("rejected start must not create another attempt")
	}
}

func TestStartSessionResumesOngoingAttempt(t *testing.T) {
	f := newSessionFixture()
	f.addContest("contest-1", 60)
	expires := sessionNow.Add(20 * time.Minute)
	f.addAttempt(&model.Attempt{
		UUIDBase:      model.UUIDBase{ID: "attempt-1"},
		ContestID:     "contest-1",
		ParticipantID: "participant-1",
		Status:        model.AttemptOngoing,
		ExpiresAt:     &expires,
	})

	result, err := f.svc.StartSession(StartSessionInput{ContestID: "contest-1", Email: "dev@example.com"})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	if !result.Resumed || result.AttemptID != "attempt-1" {
		t.Fatalf("expected resume of attempt-1, got %+v", result)
	}
	if result.TimeRemainingSeconds != 1200 {
		t.Fatalf("expected 1200 seconds remaining, got %d", result.TimeRemainingSeconds)
	}
}

func TestAutosaveOnExpiredSessionSubmitsInstead(t *testing.T) {
	f := newSessionFixture()
	expires := sessionNow.Add(-time.Minute)
	f.addAttempt(&model.Attempt{
		UUIDBase:      model.UUIDBase{ID: "attempt-1"},
		ContestID:     "contest-1",
		ParticipantID: "participant-1",
		Status:        model.AttemptOngoing,
		ExpiresAt:     &expires,
	})

	_, err := f.svc.Autosave("attempt-1", "question-1", &model.Answer{})
	if model.KindOf(err) != model.KindInvalidState {
		t.Fatalf("expected invalid state on expired save, got %v", err)
	}

	stored := f.attempts.stored("attempt-1")
	if stored.Status != model.AttemptSubmitted || stored.FinishedAt == nil {
		t.Fatalf("expired save must submit the attempt, got %s %v", stored.Status, stored.FinishedAt)
	}
	if len(f.responses.responses) != 0 {
		t.Fatalf("expired save must not persist the answer")
	}
	waitFor(t, func() bool { return f.grader.gradedCount() == 1 })
}

func TestHeartbeatStaleReadCannotRegressStatus(t *testing.T) {
	f := newSessionFixture()
	expires := sessionNow.Add(30 * time.Minute)
	f.addAttempt(&model.Attempt{
		UUIDBase:      model.UUIDBase{ID: "attempt-1"},
		ContestID:     "contest-1",
		ParticipantID: "participant-1",
		Status:        model.AttemptOngoing,
		ExpiresAt:     &expires,
	})

	// between the heartbeat's read and its write, the sweeper submits
	// the attempt and grading takes over
	f.attempts.afterFind = func() {
		f.attempts.mu.Lock()
		defer f.attempts.mu.Unlock()
		a := f.attempts.attempts["attempt-1"]
		a.Status = model.AttemptGrading
		a.TotalScore = 42
	}

	result, err := f.svc.Heartbeat("attempt-1", false)
	if err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if result.Status != "inactive" {
		t.Fatalf("expected inactive after losing the race, got %s", result.Status)
	}

	stored := f.attempts.stored("attempt-1")
	if stored.Status != model.AttemptGrading {
		t.Fatalf("stale heartbeat regressed status to %s", stored.Status)
	}
	if stored.TotalScore != 42 {
		t.Fatalf("stale heartbeat clobbered the score: %v", stored.TotalScore)
	}
	if stored.HeartbeatAt != nil {
		t.Fatalf("guarded write must not touch a non-ongoing row")
	}
}

func TestHeartbeatBlurInvalidatesAtLimit(t *testing.T) {
	f := newSessionFixture()
	f.addContest("contest-1", 60)
	f.svc.cfg.Session.DefaultTabBlurLimit = 1
	expires := sessionNow.Add(30 * time.Minute)
	f.addAttempt(&model.Attempt{
		UUIDBase:      model.UUIDBase{ID: "attempt-1"},
		ContestID:     "contest-1",
		ParticipantID: "participant-1",
		Status:        model.AttemptOngoing,
		ExpiresAt:     &expires,
		TabBlurCount:  1,
	})

	result, err := f.svc.Heartbeat("attempt-1", true)
	if err != nil {
		t.Fatalf("heartbeat: %v", err)
	}
	if result.Status != "invalidated" || result.TabBlurCount != 2 {
		t.Fatalf("expected invalidation at blur 2, got %+v", result)
	}

	stored := f.attempts.stored("attempt-1")
	if stored.Status != model.AttemptInvalidated {
		t.Fatalf("expected invalidated, got %s", stored.Status)
	}

	// stale clients just go quiet afterwards
	again, err := f.svc.Heartbeat("attempt-1", true)
	if err != nil || again.Status != "inactive" {
		t.Fatalf("expected inactive on terminal attempt, got %+v %v", again, err)
	}
}

func TestExtendTimeBeforeStartBanksMinutes(t *testing.T) {
	f := newSessionFixture()
	f.addContest("contest-1", 60)
	f.addAttempt(&model.Attempt{
		UUIDBase:      model.UUIDBase{ID: "attempt-1"},
		ContestID:     "contest-1",
		ParticipantID: "participant-1",
		Status:        model.AttemptNotStarted,
	})

	attempt, err := f.svc.ExtendTime("attempt-1", 10, "proctor-1", "accommodation")
	if err != nil {
		t.Fatalf("extend before start: %v", err)
	}
	if attempt.TimeExtensionMinutes != 10 || attempt.ExpiresAt != nil {
		t.Fatalf("expected banked 10 minutes with no deadline, got %+v", attempt)
	}

	// the banked grant folds into the deadline when the session begins
	result, err := f.svc.StartSession(StartSessionInput{ContestID: "contest-1", Email: "dev@example.com"})
	if err != nil {
		t.Fatalf("start session: %v", err)
	}
	want := sessionNow.Add(70 * time.Minute)
	if !result.ExpiresAt.Equal(want) {
		t.Fatalf("expected deadline %v, got %v", want, result.ExpiresAt)
	}
}

func TestExtendTimeRejectsFinishedAttempt(t *testing.T) {
	f := newSessionFixture()
	f.addAttempt(&model.Attempt{
		UUIDBase:      model.UUIDBase{ID: "attempt-1"},
		ContestID:     "contest-1",
		ParticipantID: "participant-1",
		Status:        model.AttemptSubmitted,
	})

	_, err := f.svc.ExtendTime("attempt-1", 10, "proctor-1", "")
	if model.KindOf(err) != model.KindInvalidState {
		t.Fatalf("expected invalid state, got %v", err)
	}
}
