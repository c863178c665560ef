package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type AttemptStatus string

const (
	AttemptNotStarted  AttemptStatus = "not_started"
	AttemptOngoing     AttemptStatus = "ongoing"
	AttemptSubmitted   AttemptStatus = "submitted"
	AttemptGrading     AttemptStatus = "grading"
	AttemptGraded      AttemptStatus = "graded"
	AttemptInvalidated AttemptStatus = "invalidated"
)

// IsTerminal reports whether no further session activity is possible.
func (s AttemptStatus) IsTerminal() bool {
	return s == AttemptGraded || s == AttemptInvalidated
}

// Reviewable reports whether the attempt's answers may be manually
// graded. Answers stay read-only to reviewers until the participant has
// dispatched the attempt; invalidated attempts never enter review.
func (s AttemptStatus) Reviewable() bool {
	switch s {
	case AttemptSubmitted, AttemptGrading, AttemptGraded:
		return true
	}
	return false
}

const (
	ProctoringTabBlur       = "tab_blur"
	ProctoringTimeExtension = "time_extension"
	ProctoringInvalidation  = "invalidation"
	ProctoringSnapshot      = "snapshot"
)

// ProctoringEvent 监考事件，按时间顺序追加到 Attempt 的日志里
type ProctoringEvent struct {
	Type      string    `json:"type"`
	Reason    string    `json:"reason,omitempty"`
	Minutes   int       `json:"minutes,omitempty"`
	GrantedBy string    `json:"grantedBy,omitempty"`
	URL       string    `json:"url,omitempty"`
	At        time.Time `json:"at"`
}

// swagger:model Attempt
type Attempt struct {
	UUIDBase
	ContestID     string        `gorm:"uniqueIndex:idx_participant_contest;index:idx_contest_status;type:varchar(36);not null" json:"contestId"`
	ParticipantID string        `gorm:"uniqueIndex:idx_participant_contest;type:varchar(36);not null" json:"participantId"`
	Status        AttemptStatus `gorm:"size:20;default:'not_started';index:idx_contest_status;index:idx_status_expires" json:"status"`

	// Timing
	StartedAt            *time.Time `json:"startedAt,omitempty"`
	ExpiresAt            *time.Time `gorm:"index:idx_status_expires" json:"expiresAt,omitempty"`
	FinishedAt           *time.Time `json:"finishedAt,omitempty"`
	TimeExtensionMinutes int        `gorm:"default:0" json:"timeExtensionMinutes"`

	// Monitoring
	HeartbeatAt   *time.Time     `json:"heartbeatAt,omitempty"`
	TabBlurCount  int            `gorm:"default:0" json:"tabBlurCount"`
	IPAddress     string         `gorm:"size:45" json:"ipAddress,omitempty"`
	UserAgent     string         `gorm:"type:text" json:"userAgent,omitempty"`
	ProctoringLog datatypes.JSON `json:"proctoringLog,omitempty"`

	// 分类得分缓存，仅由 Score Aggregator 写入
	MCQScore        float64 `gorm:"default:0" json:"mcqScore"`
	CodeScore       float64 `gorm:"default:0" json:"codeScore"`
	SubjectiveScore float64 `gorm:"default:0" json:"subjectiveScore"`
	TotalScore      float64 `gorm:"default:0" json:"totalScore"`
}

func (Attempt) TableName() string {
	return "attempts"
}

func (a *Attempt) ProctoringEvents() []ProctoringEvent {
	var events []ProctoringEvent
	if len(a.ProctoringLog) > 0 {
		_ = json.Unmarshal(a.ProctoringLog, &events)
	}
	return events
}

// AppendProctoringEvent keeps the log ordered by append time.
func (a *Attempt) AppendProctoringEvent(ev ProctoringEvent) {
	events := append(a.ProctoringEvents(), ev)
	raw, err := json.Marshal(events)
	if err != nil {
		return
	}
	a.ProctoringLog = raw
}

// StartAttempt moves NOT_STARTED -> ONGOING and fixes the deadline.
// expires_at is set exactly once here; only ExtendAttempt may push it forward.
func StartAttempt(a *Attempt, durationMinutes int, now time.Time) error {
	if a.Status != AttemptNotStarted {
		return ErrInvalidTransition(a.Status, AttemptOngoing)
	}
	expires := now.Add(time.Duration(durationMinutes+a.TimeExtensionMinutes) * time.Minute)
	a.Status = AttemptOngoing
	a.StartedAt = &now
	a.ExpiresAt = &expires
	a.HeartbeatAt = &now
	return nil
}

// SubmitAttempt moves ONGOING -> SUBMITTED. Grading hand-off is the caller's job.
func SubmitAttempt(a *Attempt, now time.Time) error {
	if a.Status != AttemptOngoing {
		return ErrInvalidTransition(a.Status, AttemptSubmitted)
	}
	a.Status = AttemptSubmitted
	a.FinishedAt = &now
	return nil
}

// ExtendAttempt adds minutes to the extension budget and pushes the deadline
// forward by the same amount. Rejected beyond maxMinutes per grant.
func ExtendAttempt(a *Attempt, minutes, maxMinutes int, grantedBy, reason string, now time.Time) error {
	if minutes <= 0 {
		return ErrExtensionInvalid
	}
	if minutes > maxMinutes {
		return ErrExtensionTooLarge(maxMinutes)
	}
	a.TimeExtensionMinutes += minutes
	if a.ExpiresAt != nil {
		extended := a.ExpiresAt.Add(time.Duration(minutes) * time.Minute)
		a.ExpiresAt = &extended
	}
	a.AppendProctoringEvent(ProctoringEvent{
		Type:      ProctoringTimeExtension,
		Reason:    reason,
		Minutes:   minutes,
		GrantedBy: grantedBy,
		At:        now,
	})
	return nil
}

// InvalidateAttempt moves ONGOING -> INVALIDATED (terminal) and records why.
func InvalidateAttempt(a *Attempt, reason string, now time.Time) error {
	if a.Status != AttemptOngoing {
		return ErrInvalidTransition(a.Status, AttemptInvalidated)
	}
	a.Status = AttemptInvalidated
	a.AppendProctoringEvent(ProctoringEvent{
		Type:   ProctoringInvalidation,
		Reason: reason,
		At:     now,
	})
	return nil
}

// RegisterTabBlur bumps the blur counter and invalidates once it exceeds limit.
// Returns true when this event caused the invalidation.
func RegisterTabBlur(a *Attempt, limit int, now time.Time) bool {
	a.TabBlurCount++
	a.AppendProctoringEvent(ProctoringEvent{Type: ProctoringTabBlur, At: now})
	if a.TabBlurCount > limit {
		if err := InvalidateAttempt(a, "Exceeded tab blur limit", now); err == nil {
			return true
		}
	}
	return false
}

// TimeRemainingSeconds is only meaningful while ONGOING; 0 otherwise.
func (a *Attempt) TimeRemainingSeconds(now time.Time) int {
	if a.Status != AttemptOngoing || a.ExpiresAt == nil {
		return 0
	}
	delta := a.ExpiresAt.Sub(now)
	if delta < 0 {
		return 0
	}
	return int(delta.Seconds())
}

func (a *Attempt) IsExpired(now time.Time) bool {
	return a.Status == AttemptOngoing && a.ExpiresAt != nil && now.After(*a.ExpiresAt)
}

// LessRanked orders GRADED attempts for the leaderboard: total score
// descending, ties broken by earlier finished_at.
func LessRanked(a, b *Attempt) bool {
	if a.TotalScore != b.TotalScore {
		return a.TotalScore > b.TotalScore
	}
	switch {
	case a.FinishedAt == nil:
		return false
	case b.FinishedAt == nil:
		return true
	default:
		return a.FinishedAt.Before(*b.FinishedAt)
	}
}
