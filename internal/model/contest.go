package model

import (
	"encoding/json"
	"time"

	"gorm.io/datatypes"
)

type ContestStatus string

const (
	ContestDraft     ContestStatus = "draft"
	ContestPublished ContestStatus = "published"
	ContestOngoing   ContestStatus = "ongoing"
	ContestClosed    ContestStatus = "closed"
	ContestArchived  ContestStatus = "archived"
)

// ContestSettings 比赛行为配置，存为 JSON 列
type ContestSettings struct {
	ShuffleQuestions  bool     `json:"shuffleQuestions"`
	AllowedLanguages  []string `json:"allowedLanguages,omitempty"`
	DefaultLanguage   string   `json:"defaultLanguage,omitempty"`
	ProctoringEnabled bool     `json:"proctoringEnabled"`
	TabBlurLimit      int      `json:"tabBlurLimit,omitempty"`
	PassingPercentage float64  `json:"passingPercentage,omitempty"`
}

// swagger:model Contest
type Contest struct {
	UUIDBase
	Name            string         `gorm:"size:255;not null;index" json:"name"`
	Description     string         `gorm:"type:text" json:"description"`
	Instructions    string         `gorm:"type:text" json:"instructions"`
	StartAt         time.Time      `gorm:"index" json:"startAt"`
	EndAt           time.Time      `gorm:"index" json:"endAt"`
	DurationMinutes int            `gorm:"not null" json:"durationMinutes"`
	Status          ContestStatus  `gorm:"size:20;default:'draft';index" json:"status"`
	Settings        datatypes.JSON `json:"settings,omitempty"`

	// 统计字段（反规范化，由 Sweeper 刷新）
	TotalParticipants int     `gorm:"default:0" json:"totalParticipants"`
	TotalSubmissions  int     `gorm:"default:0" json:"totalSubmissions"`
	AverageScore      float64 `gorm:"default:0" json:"averageScore"`
}

func (Contest) TableName() string {
	return "contests"
}

func (c *Contest) SettingsData() ContestSettings {
	var s ContestSettings
	if len(c.Settings) > 0 {
		_ = json.Unmarshal(c.Settings, &s)
	}
	return s
}

// TabBlurLimit returns the contest's blur limit, or fallback when unset.
func (c *Contest) TabBlurLimit(fallback int) int {
	if limit := c.SettingsData().TabBlurLimit; limit > 0 {
		return limit
	}
	return fallback
}

func (c *Contest) IsActive(now time.Time) bool {
	if c.Status != ContestPublished && c.Status != ContestOngoing {
		return false
	}
	return !now.Before(c.StartAt) && !now.After(c.EndAt)
}
