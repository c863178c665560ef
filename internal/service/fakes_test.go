package service

import (
	"sync"
	"time"

	"elevate_backend/internal/model"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// In-memory stand-ins for the repository layer. They return copies the
// way gorm does, so a caller holding a loaded row never shares memory
// with the store.

type fakeContestStore struct {
	contests map[string]*model.Contest
}

func (f *fakeContestStore) FindByID(id string) (*model.Contest, error) {
	c, ok := f.contests[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *c
	return &cp, nil
}

type fakeParticipantStore struct {
	participant *model.Participant
}

func (f *fakeParticipantStore) GetOrCreate(email, name, phone string) (*model.Participant, error) {
	return f.participant, nil
}

type fakeQuestionStore struct {
	questions map[string]*model.Question
}

func (f *fakeQuestionStore) FindByID(id string) (*model.Question, error) {
	q, ok := f.questions[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *q
	return &cp, nil
}

func (f *fakeQuestionStore) ListByContest(contestID string) ([]model.Question, error) {
	var out []model.Question
	for _, q := range f.questions {
		if q.ContestID == contestID {
			out = append(out, *q)
		}
	}
	return out, nil
}

type fakeAttemptStore struct {
	mu       sync.Mutex
	attempts map[string]*model.Attempt

	// afterFind runs once the read has returned its copy, letting tests
	// change the stored row between a service's read and its write.
	afterFind func()
}

func (f *fakeAttemptStore) Create(attempt *model.Attempt) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if attempt.ID == "" {
		attempt.ID = model.GenerateUUID()
	}
	cp := *attempt
	f.attempts[attempt.ID] = &cp
	return nil
}

func (f *fakeAttemptStore) FindByID(id string) (*model.Attempt, error) {
	f.mu.Lock()
	a, ok := f.attempts[id]
	var cp model.Attempt
	if ok {
		cp = *a
	}
	f.mu.Unlock()
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	if f.afterFind != nil {
		f.afterFind()
	}
	return &cp, nil
}

func (f *fakeAttemptStore) FindByIDForUpdate(tx *gorm.DB, id string) (*model.Attempt, error) {
	return f.FindByID(id)
}

func (f *fakeAttemptStore) FindByParticipantAndContest(participantID, contestID string) (*model.Attempt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.attempts {
		if a.ParticipantID == participantID && a.ContestID == contestID {
			cp := *a
			return &cp, nil
		}
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAttemptStore) UpdateFields(id string, fields map[string]interface{}) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if a, ok := f.attempts[id]; ok {
		applyAttemptFields(a, fields)
	}
	return nil
}

func (f *fakeAttemptStore) UpdateFieldsIfStatus(id string, statuses []model.AttemptStatus, fields map[string]interface{}) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.attempts[id]
	if !ok {
		return false, nil
	}
	match := false
	for _, s := range statuses {
		if a.Status == s {
			match = true
		}
	}
	if !match {
		return false, nil
	}
	applyAttemptFields(a, fields)
	return true, nil
}

// stored returns a copy of the row for assertions.
func (f *fakeAttemptStore) stored(id string) model.Attempt {
	f.mu.Lock()
	defer f.mu.Unlock()
	return *f.attempts[id]
}

func applyAttemptFields(a *model.Attempt, fields map[string]interface{}) {
	for column, value := range fields {
		switch column {
		case "status":
			a.Status = value.(model.AttemptStatus)
		case "started_at":
			a.StartedAt = asTimePtr(value)
		case "expires_at":
			a.ExpiresAt = asTimePtr(value)
		case "finished_at":
			a.FinishedAt = asTimePtr(value)
		case "heartbeat_at":
			a.HeartbeatAt = asTimePtr(value)
		case "tab_blur_count":
			a.TabBlurCount = value.(int)
		case "time_extension_minutes":
			a.TimeExtensionMinutes = value.(int)
		case "proctoring_log":
			a.ProctoringLog = value.(datatypes.JSON)
		}
	}
}

func asTimePtr(value interface{}) *time.Time {
	switch t := value.(type) {
	case *time.Time:
		return t
	case time.Time:
		return &t
	}
	return nil
}

type fakeResponseStore struct {
	mu        sync.Mutex
	responses map[string]*model.Response
}

func (f *fakeResponseStore) FindByID(id string) (*model.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.responses[id]
	if !ok {
		return nil, gorm.ErrRecordNotFound
	}
	cp := *r
	return &cp, nil
}

func (f *fakeResponseStore) Upsert(attemptID, questionID string, answer datatypes.JSON) (*model.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.responses {
		if r.AttemptID == attemptID && r.QuestionID == questionID {
			r.Answer = answer
			r.SubmissionCount++
			cp := *r
			return &cp, nil
		}
	}
	resp := &model.Response{
		AttemptID:       attemptID,
		QuestionID:      questionID,
		Answer:          answer,
		SubmissionCount: 1,
	}
	resp.ID = model.GenerateUUID()
	f.responses[resp.ID] = resp
	cp := *resp
	return &cp, nil
}

func (f *fakeResponseStore) ListByAttempt(attemptID string) ([]model.Response, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []model.Response
	for _, r := range f.responses {
		if r.AttemptID == attemptID {
			out = append(out, *r)
		}
	}
	return out, nil
}

func (f *fakeResponseStore) Save(resp *model.Response) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *resp
	f.responses[resp.ID] = &cp
	return nil
}

func (f *fakeResponseStore) CountUngraded(tx *gorm.DB, attemptID string) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var count int64
	for _, r := range f.responses {
		if r.AttemptID == attemptID && !r.IsGraded {
			count++
		}
	}
	return count, nil
}

func (f *fakeResponseStore) ListPendingSubjective(contestID string) ([]model.Response, error) {
	return nil, nil
}

type fakeGrader struct {
	mu     sync.Mutex
	graded []string
}

func (f *fakeGrader) Grade(attemptID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.graded = append(f.graded, attemptID)
	return nil
}

func (f *fakeGrader) gradedCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.graded)
}
